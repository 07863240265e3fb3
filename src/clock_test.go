package psk31

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChooseMashExplicitOverrideForcesStage(t *testing.T) {
	c := &Clock{}

	assert.Equal(t, uint32(0), c.chooseMash(0, 100))
	assert.Equal(t, uint32(1), c.chooseMash(-1, 100))
	assert.Equal(t, uint32(2), c.chooseMash(-2, 100))
	assert.Equal(t, uint32(3), c.chooseMash(-3, 100))
}

func TestChooseMashAutoFallsBackByDiviFeasibility(t *testing.T) {
	c := &Clock{}

	// divi=25 clears mash-3's divi>=23 floor.
	assert.Equal(t, uint32(3), c.chooseMash(3, 25))

	// divi=20 clears only mash-1's divi>=20 floor.
	assert.Equal(t, uint32(1), c.chooseMash(3, 20))

	// divi=19 clears no stage's floor at all.
	assert.Equal(t, uint32(0), c.chooseMash(3, 19))
}

func TestChooseMashCeilingCapsAtThree(t *testing.T) {
	c := &Clock{}

	// An override above 3 is clamped to the same ceiling as exactly 3.
	assert.Equal(t, c.chooseMash(3, 25), c.chooseMash(7, 25))
}

func TestDivFromFrequency(t *testing.T) {
	// 500MHz PLLD source, /4 = 125MHz carrier -> divider of exactly 4<<12.
	assert.Equal(t, uint32(4)<<12, divFromFrequency(125.0))
}
