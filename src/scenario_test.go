package psk31

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Scenario 2: a single character's codeword is sent between the starting
// preamble and the first fill burst.
func TestScenarioSingleCharacterEmitsPreambleThenCodeword(t *testing.T) {
	engine := newFakeEngine(t)
	m := NewModulator(-1)
	m.Write([]byte{'e'})

	codeword := EncodeVaricode('e')

	for i := 0; i < 20; i++ {
		m.Feed(engine, 1)
	}
	assert.Equal(t, "START", m.State())

	for i := 0; i < int(codeword.Length); i++ {
		m.Feed(engine, 1)
	}
	assert.Equal(t, "SEND", m.State())

	m.Feed(engine, 1)
	assert.Equal(t, "FILL", m.State())
}

// Scenario 3: back-to-back 'a','a' with timeout=0 skips fill entirely and
// runs starting | a | a | ending -- 20+6+6+20 = 52 symbols -- before
// settling back in IDLE.
func TestScenarioBackToBackCharactersTimeoutZeroGoesStraightToEnding(t *testing.T) {
	engine := newFakeEngine(t)
	m := NewModulator(0)
	m.Write([]byte{'a', 'a'})

	codewordLen := int(EncodeVaricode('a').Length)
	total := 20 + codewordLen + codewordLen + 20

	for i := 0; i < total; i++ {
		m.Feed(engine, 1)
	}
	assert.Equal(t, "STOP", m.State())

	m.Feed(engine, 1)
	assert.Equal(t, "IDLE", m.State())
}

// Scenario 5: a writer sends "hi" and disconnects. The modulator has no
// way to observe the disconnect directly -- it only ever sees an empty
// ring -- so this drains both codewords, runs exactly fill_timeout fill
// bursts, then ending, then settles in IDLE without any new data arriving
// (no restart).
func TestScenarioFIFODisconnectRunsFillTimeoutThenEndingThenIdle(t *testing.T) {
	const fillTimeout = 3

	engine := newFakeEngine(t)
	m := NewModulator(fillTimeout)
	m.Write([]byte("hi"))

	hLen := int(EncodeVaricode('h').Length)
	iLen := int(EncodeVaricode('i').Length)

	for i := 0; i < 20+hLen+iLen; i++ {
		m.Feed(engine, 1)
	}
	assert.Equal(t, "SEND", m.State())

	for i := 0; i < fillTimeout; i++ {
		m.Feed(engine, 1)
		assert.Equal(t, "FILL", m.State())
	}

	m.Feed(engine, 1)
	assert.Equal(t, "STOP", m.State())

	for i := 0; i < 19; i++ {
		m.Feed(engine, 1)
	}
	assert.Equal(t, "STOP", m.State())

	m.Feed(engine, 1)
	assert.Equal(t, "IDLE", m.State())

	for i := 0; i < 5; i++ {
		m.Feed(engine, 1)
		assert.Equal(t, "IDLE", m.State())
	}
}

// Scenario 6: for the documented nominal parameters (amplitude=0.5,
// rc=4.7ms), the sigma-delta model's worst-case tracking error stays
// under 60mV on a 3300mV rail.
func TestScenarioNominalParametersLevelErrorUnderSixtyMillivolts(t *testing.T) {
	arena := newFakeArenaForCompile(oneSymbolRegionPages, func(i int) uint32 {
		return uint32(0x10000000 + i*pageSize)
	})
	w := newWaveformCompilerForTest(arena, 0.5, 4.7e-3, uintptr(oneSymbolRegionPages*pageSize))

	for _, kind := range []SymbolKind{SymL, SymH, SymLH, SymHL} {
		_, err := w.CompileBS(kind)
		assert.NoError(t, err)
	}

	assert.Less(t, w.LevelErrorMax()*3300, 60.0)
}
