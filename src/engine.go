package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Own the 16-slot ring: compile every (slot, symbol) chain
 *		once at startup, start DMA on slot 0's idle ("H") chain, and
 *		splice new symbols onto the executing path as the
 *		modulation driver selects them.
 *
 * Description:	Grounded on original_source/psk/psk31.c's tx_sym_enqueue()/
 *		tx_sym_pending()/init_hardware(): same binary search of
 *		the DMA's CONBLK_AD register against a sorted slot-address
 *		table, same ts_last/ts_last_cbp/ts_last_sym ring cursor
 *		triple, same "first enqueue has no predecessor" special
 *		case.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
)

// slot holds the four compiled burst-symbol chains for one ring position
// plus the bus address of its first CB (= the SymL chain's first CB),
// used for the binary-search lookup in Pending().
type slot struct {
	chains    [symCount]*BSChain
	firstBus  uint32
}

// Engine is the Signal Engine (spec §4.4): it owns the pinned arena, the
// compiled ring, and the DMA/clock/pacing peripherals driving it.
type Engine struct {
	log *log.Logger

	arena   *Arena
	pm      *PeripheralMap
	clock   *Clock
	pacing  *Pacing
	compiler *WaveformCompiler

	slots [tsCount]slot

	tsLast       int
	tsLastCBOff  uintptr
	tsLastSym    SymbolKind
	haveLastCB   bool

	sortedBus []uint32 // slots' firstBus, sorted (spec invariant (c))
}

// NewEngine wires the already-opened peripherals together. Compile must
// be called before Start.
func NewEngine(arena *Arena, pm *PeripheralMap, clock *Clock, pacing *Pacing, compiler *WaveformCompiler) *Engine {
	return &Engine{
		log:      newLogger(compEngine),
		arena:    arena,
		pm:       pm,
		clock:    clock,
		pacing:   pacing,
		compiler: compiler,
	}
}

// Compile builds all TS_COUNT*4 burst-symbol chains (spec §4.3/§4.4).
func (e *Engine) Compile() error {
	for ts := 0; ts < tsCount; ts++ {
		var first uint32

		for s := SymbolKind(0); s < symCount; s++ {
			bs, err := e.compiler.CompileBS(s)
			if err != nil {
				return fmt.Errorf("psk31: failed to compile slot %d symbol %s: %w", ts, s, err)
			}

			e.slots[ts].chains[s] = bs
			if s == SymL {
				first = bs.FirstBus
			}
		}

		e.slots[ts].firstBus = first
	}

	e.sortedBus = make([]uint32, tsCount)
	for i, sl := range e.slots {
		e.sortedBus[i] = sl.firstBus
	}

	if !sort.SliceIsSorted(e.sortedBus, func(i, j int) bool { return e.sortedBus[i] < e.sortedBus[j] }) {
		return fmt.Errorf("psk31: compiled slot addresses are not monotonically non-decreasing (invariant (c) violated)")
	}

	e.log.Info("compiled waveform library", "slots", tsCount, "level_error_max", e.compiler.LevelErrorMax())

	return nil
}

// Start primes the ring with TS_COUNT idle ("H") enqueues, then arms and
// starts the DMA engine against slot 0's H chain (spec §4.4 "DMA start").
func (e *Engine) Start() error {
	for i := 0; i < tsCount; i++ {
		e.Enqueue(SymH)
	}

	idlePhys := e.slots[0].chains[SymH].FirstBus

	e.pm.DMA.store(regDMA_CS, csReset)
	e.pm.DMA.store(regDMA_CONBLK_AD, idlePhys)
	e.pm.DMA.store(regDMA_DEBUG, 7) // clear READ_ERROR|FIFO_ERROR|READ_LAST_NOT_SET_ERROR
	e.pm.DMA.store(regDMA_CS, csActive|csWaitForOutstandingWrites|(1<<7))

	e.pacing.EnableOutput()

	e.log.Info("DMA engine started", "idle_phys", fmt.Sprintf("0x%08x", idlePhys))

	return nil
}

// Enqueue appends one symbol's chain to the ring, splicing it onto the
// current tail with a single atomic 32-bit store (spec §4.4 "Slot
// enqueue").
func (e *Engine) Enqueue(sym SymbolKind) {
	if !e.haveLastCB {
		e.tsLast = 0
	} else {
		e.tsLast = (e.tsLast + 1) % tsCount
	}

	bs := e.slots[e.tsLast].chains[sym]

	writeCBNext(e.arena.Bytes(), bs.LastCBOffset, 0)

	if e.haveLastCB {
		writeCBNext(e.arena.Bytes(), e.tsLastCBOff, bs.FirstBus)
	}

	e.tsLastCBOff = bs.LastCBOffset
	e.tsLastSym = sym
	e.haveLastCB = true
}

// Pending reads the DMA's current-block register and binary-searches it
// against the slot table, returning how many slots are queued ahead of
// the one DMA is currently executing. A zero register read is a runtime
// hardware failure -- DMA has stopped (underrun) -- and is fatal (spec
// §7).
func (e *Engine) Pending() (int, error) {
	phys := e.pm.DMA.load(regDMA_CONBLK_AD)
	if phys == 0 {
		return 0, fmt.Errorf("psk31: DMA stopped (current-block read as 0): underrun")
	}

	l, u := 0, tsCount
	for u > l+1 {
		m := (l + u) / 2
		if phys >= e.sortedBus[m] {
			l = m
		} else {
			u = m
		}
	}

	return (e.tsLast - l) & (tsCount - 1), nil
}

// LastSym is the differential-BPSK state: the symbol kind most recently
// enqueued.
func (e *Engine) LastSym() SymbolKind {
	return e.tsLastSym
}

// CurrentCBOffset resolves the bus address DMA is currently executing
// back to its arena-relative offset (spec §4.2's BusToVirt), for
// diagnostics: an operator comparing the running CB against the compiled
// slot table without cross-referencing bus addresses by hand.
func (e *Engine) CurrentCBOffset() (uintptr, error) {
	phys := e.pm.DMA.load(regDMA_CONBLK_AD)
	if phys == 0 {
		return 0, fmt.Errorf("psk31: DMA stopped (current-block read as 0): underrun")
	}

	virt, err := e.arena.BusToVirt(phys)
	if err != nil {
		return 0, err
	}

	return virt - e.arena.Base(), nil
}

// ResetDMA implements the FatalHandler contract (spec §9): stop DMA
// immediately, regardless of what it was doing.
func (e *Engine) ResetDMA() {
	if e.pm == nil || e.pm.DMA == nil {
		return
	}

	e.pm.DMA.store(regDMA_CS, csReset)
}

// StopClock implements the other half of the FatalHandler contract.
func (e *Engine) StopClock() {
	e.clock.Stop()
}
