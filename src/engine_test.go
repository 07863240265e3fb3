package psk31

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeEngineForPending(t *testing.T, tsLast int) *Engine {
	t.Helper()

	sortedBus := make([]uint32, tsCount)
	for i := range sortedBus {
		sortedBus[i] = uint32(100 * (i + 1)) // 100, 200, ..., 1600
	}

	return &Engine{ //nolint:exhaustruct
		pm:        &PeripheralMap{DMA: newFakeWindow(16)},
		sortedBus: sortedBus,
		tsLast:    tsLast,
	}
}

func TestEnginePendingZeroWhenDMAOnCurrentSlot(t *testing.T) {
	e := newFakeEngineForPending(t, 5)
	e.pm.DMA.store(regDMA_CONBLK_AD, e.sortedBus[5])

	pending, err := e.Pending()
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestEnginePendingCountsSlotsAhead(t *testing.T) {
	e := newFakeEngineForPending(t, 5)

	e.pm.DMA.store(regDMA_CONBLK_AD, e.sortedBus[3])
	pending, err := e.Pending()
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	e.pm.DMA.store(regDMA_CONBLK_AD, e.sortedBus[0])
	pending, err = e.Pending()
	require.NoError(t, err)
	assert.Equal(t, 5, pending)
}

func TestEnginePendingBinarySearchFindsEnclosingSlot(t *testing.T) {
	e := newFakeEngineForPending(t, 5)

	// A bus address between slot 2's and slot 3's CB still belongs to
	// slot 2's still-executing chain.
	e.pm.DMA.store(regDMA_CONBLK_AD, e.sortedBus[2]+1)

	pending, err := e.Pending()
	require.NoError(t, err)
	assert.Equal(t, 3, pending)
}

func TestEnginePendingWrapsAroundRing(t *testing.T) {
	e := newFakeEngineForPending(t, 2)
	e.pm.DMA.store(regDMA_CONBLK_AD, e.sortedBus[13])

	pending, err := e.Pending()
	require.NoError(t, err)
	// (2-13) & 15 == 5
	assert.Equal(t, 5, pending)
}

func TestEnginePendingZeroRegisterIsFatal(t *testing.T) {
	e := newFakeEngineForPending(t, 0)
	e.pm.DMA.store(regDMA_CONBLK_AD, 0)

	_, err := e.Pending()
	assert.Error(t, err)
}

func TestEngineLastSymTracksMostRecentEnqueue(t *testing.T) {
	e := newFakeEngine(t)

	e.Enqueue(SymH)
	assert.Equal(t, SymH, e.LastSym())

	e.Enqueue(SymLH)
	assert.Equal(t, SymLH, e.LastSym())
}

func newFakeEngineForCurrentCBOffset(numPages int) *Engine {
	arena := newFakeArenaForCompile(numPages, func(i int) uint32 {
		return uint32(0x10000000 + i*pageSize)
	})
	arena.cbFrames = arena.pages

	return &Engine{pm: &PeripheralMap{DMA: newFakeWindow(16)}, arena: arena} //nolint:exhaustruct
}

func TestEngineCurrentCBOffsetResolvesBusAddress(t *testing.T) {
	e := newFakeEngineForCurrentCBOffset(4)
	e.pm.DMA.store(regDMA_CONBLK_AD, e.arena.pages[2].bus+8)

	offset, err := e.CurrentCBOffset()
	require.NoError(t, err)
	assert.Equal(t, uintptr(2*pageSize+8), offset)
}

func TestEngineCurrentCBOffsetZeroRegisterIsFatal(t *testing.T) {
	e := newFakeEngineForCurrentCBOffset(1)
	e.pm.DMA.store(regDMA_CONBLK_AD, 0)

	_, err := e.CurrentCBOffset()
	assert.Error(t, err)
}

func TestEngineCurrentCBOffsetUnknownBusAddressErrors(t *testing.T) {
	e := newFakeEngineForCurrentCBOffset(1)
	e.pm.DMA.store(regDMA_CONBLK_AD, 0xdeadbeef)

	_, err := e.CurrentCBOffset()
	assert.Error(t, err)
}
