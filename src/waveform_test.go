package psk31

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextSymbolTransitionTable(t *testing.T) {
	cases := []struct {
		from SymbolKind
		bit  int
		want SymbolKind
	}{
		{SymL, 0, SymLH},
		{SymL, 1, SymL},
		{SymH, 0, SymHL},
		{SymH, 1, SymH},
		{SymLH, 0, SymHL},
		{SymLH, 1, SymH},
		{SymHL, 0, SymLH},
		{SymHL, 1, SymL},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, NextSymbol(c.from, c.bit), "from=%s bit=%d", c.from, c.bit)
	}
}

// A run of all-1 bits never changes phase: H and L are fixed points.
func TestNextSymbolBitOnePreservesSteadyStates(t *testing.T) {
	assert.Equal(t, SymH, NextSymbol(SymH, 1))
	assert.Equal(t, SymL, NextSymbol(SymL, 1))
}

func TestShapeLevelEndpoints(t *testing.T) {
	const amplitude = 0.8

	levelMin := 0.5 - amplitude/2
	levelMax := 0.5 + amplitude/2

	assert.InDelta(t, levelMin, shapeLevel(SymL, amplitude, 0), 1e-9)
	assert.InDelta(t, levelMin, shapeLevel(SymL, amplitude, 1), 1e-9)
	assert.InDelta(t, levelMax, shapeLevel(SymH, amplitude, 0), 1e-9)
	assert.InDelta(t, levelMax, shapeLevel(SymH, amplitude, 1), 1e-9)

	// LH starts low and ends high; HL is its mirror image.
	assert.InDelta(t, levelMin, shapeLevel(SymLH, amplitude, 0), 1e-9)
	assert.InDelta(t, levelMax, shapeLevel(SymLH, amplitude, 1), 1e-9)
	assert.InDelta(t, levelMax, shapeLevel(SymHL, amplitude, 0), 1e-9)
	assert.InDelta(t, levelMin, shapeLevel(SymHL, amplitude, 1), 1e-9)
}

func TestShapeLevelMidpointCrossesCenter(t *testing.T) {
	assert.InDelta(t, 0.5, shapeLevel(SymLH, 0.8, 0.5), 1e-9)
	assert.InDelta(t, 0.5, shapeLevel(SymHL, 0.8, 0.5), 1e-9)
}
