package psk31

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeEngine builds an Engine whose ring is populated with synthetic,
// distinct chains so Enqueue's splice logic has something real to write
// into, without touching any hardware (no peripheral map, no pinned
// memory -- just a plain byte slice standing in for the arena).
func newFakeEngine(t *testing.T) *Engine {
	t.Helper()

	const chainsTotal = tsCount * int(symCount)
	mem := make([]byte, chainsTotal*cbSize)

	e := &Engine{log: newLogger(compEngine), arena: &Arena{mem: mem}} //nolint:exhaustruct

	idx := 0
	for ts := 0; ts < tsCount; ts++ {
		for s := SymbolKind(0); s < symCount; s++ {
			off := uintptr(idx * cbSize)
			e.slots[ts].chains[s] = &BSChain{
				FirstBus:     uint32(0x1000 + idx*cbSize),
				LastCBOffset: off,
				NumCBs:       1,
			}
			idx++
		}
	}

	return e
}

func TestModulatorStartsIdle(t *testing.T) {
	m := NewModulator(-1)
	assert.Equal(t, "IDLE", m.State())
	assert.Equal(t, 0, m.PendingChar())
	assert.True(t, m.HasRoom())
}

func TestModulatorWriteRespectsRingCapacity(t *testing.T) {
	m := NewModulator(-1)

	data := make([]byte, sendSize+10)
	n := m.Write(data)

	assert.Equal(t, sendSize, n)
	assert.False(t, m.HasRoom())
	assert.Equal(t, sendSize, m.PendingChar())

	// The ring is full: a further write accepts nothing.
	more := m.Write([]byte{1, 2, 3})
	assert.Zero(t, more)
}

func TestModulatorFeedNegativeTimeoutNeverStops(t *testing.T) {
	engine := newFakeEngine(t)
	m := NewModulator(-1)

	n := m.Write([]byte("A"))
	require.Equal(t, 1, n)

	for i := 0; i < 200; i++ {
		m.Feed(engine, 1)
		require.NotEqual(t, "STOP", m.State(), "iteration %d", i)
	}

	// Once data drains, --timeout<0 keeps feeding fill bursts forever.
	assert.Equal(t, "FILL", m.State())
	assert.Zero(t, m.PendingChar())
}

func TestModulatorFeedZeroTimeoutStopsThenIdles(t *testing.T) {
	engine := newFakeEngine(t)
	m := NewModulator(0)

	n := m.Write([]byte("A"))
	require.Equal(t, 1, n)

	sawStop := false
	for i := 0; i < 200; i++ {
		m.Feed(engine, 1)
		if m.State() == "STOP" {
			sawStop = true
		}
	}

	assert.True(t, sawStop, "expected the FSM to pass through STOP once input and fill drained")
	assert.Equal(t, "IDLE", m.State())
}

func TestModulatorFeedQueuesSymbolTransitions(t *testing.T) {
	engine := newFakeEngine(t)
	m := NewModulator(-1)

	require.Equal(t, 1, m.Write([]byte("A")))

	before := engine.LastSym()
	m.Feed(engine, 1)
	after := engine.LastSym()

	// Every fed bit enqueues a transition derived from NextSymbol; for bit
	// 0 (starting_burst is all zero bits) the symbol always changes.
	assert.Equal(t, NextSymbol(before, 0), after)
}
