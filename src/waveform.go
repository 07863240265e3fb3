package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Synthesize, for every (time slot, symbol) pair, the chain
 *		of DMA control blocks that renders that symbol's envelope
 *		via sigma-delta bit-banging of the two antiphase GPIO pins.
 *
 * Description:	Grounded on original_source/psk/psk31.c's init_bs(): the
 *		same single-pole IIR filter simulation (mean_decay/
 *		mean_weight), the same up/up_old redundant-write elision,
 *		the same three-CB-per-sample emission (positive pad,
 *		negative pad, pacing-FIFO delay). CB linking here goes
 *		through dma.go's writeCBNext so every `next` write is the
 *		single atomic store the splice invariant requires, even
 *		though compile time itself is single-threaded and
 *		uncontended.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
)

// SymbolKind is one of the four envelope shapes (spec §3).
type SymbolKind int

const (
	SymL SymbolKind = iota
	SymH
	SymLH
	SymHL
	symCount
)

func (s SymbolKind) String() string {
	switch s {
	case SymL:
		return "L"
	case SymH:
		return "H"
	case SymLH:
		return "LH"
	case SymHL:
		return "HL"
	default:
		return "?"
	}
}

// NextSymbol implements the differential-BPSK transition table (spec §3):
// bit 0 reverses phase (crossing through a ramp), bit 1 preserves it.
func NextSymbol(s SymbolKind, bit int) SymbolKind {
	switch {
	case s == SymL && bit == 0:
		return SymLH
	case s == SymL && bit == 1:
		return SymL
	case s == SymH && bit == 0:
		return SymHL
	case s == SymH && bit == 1:
		return SymH
	case s == SymLH && bit == 0:
		return SymHL
	case s == SymLH && bit == 1:
		return SymH
	case s == SymHL && bit == 0:
		return SymLH
	case s == SymHL && bit == 1:
		return SymL
	default:
		return s
	}
}

const (
	pulseWidthIncrUS = 10
	bsUS             = 32000
	bsSamples        = bsUS / pulseWidthIncrUS
	tsCount          = 16

	gpioPosPin = 17
	gpioNegPin = 18
)

// Arena sizing for the production wiring (spec §4.2's NUM_PAGES formula:
// ceil((NUM_CBS*32+8)/PAGE_SIZE)). Every compiled (slot, symbol) chain can
// cost up to 3*bsSamples control blocks (P2 in properties_test.go), so the
// pinned arena must budget for tsCount*symCount chains at that worst case,
// not the average case.
const (
	// ArenaNumPagesCBs is the worst-case CB-bearing page count.
	ArenaNumPagesCBs = tsCount * int(symCount) * 3 * bsSamples * cbSize / pageSize
	// ArenaNumPages adds one page for the waveform compiler's two scratch
	// sample words, which must live outside the CB-bearing prefix.
	ArenaNumPages = ArenaNumPagesCBs + 1
	// ArenaCBRegionLen is the CB-bearing prefix's byte length, passed to
	// NewWaveformCompiler as cbRegionLen.
	ArenaCBRegionLen = ArenaNumPagesCBs * pageSize
	// ArenaSampleWordsOffset is the first free byte after the CB region,
	// passed to NewWaveformCompiler as sampleWordsOffset.
	ArenaSampleWordsOffset = ArenaCBRegionLen
)

// shapeLevel evaluates one of the four envelope shape functions (spec
// §4.3) at t in [0,1] for the given amplitude A.
func shapeLevel(kind SymbolKind, amplitude, t float64) float64 {
	levelMin := 0.5 - amplitude/2
	levelMax := 0.5 + amplitude/2

	switch kind {
	case SymL:
		return levelMin
	case SymH:
		return levelMax
	case SymLH:
		return 0.5 - math.Cos(math.Pi*t)*(levelMax-0.5)
	case SymHL:
		return 0.5 + math.Cos(math.Pi*t)*(levelMax-0.5)
	default:
		return 0.5
	}
}

// BSChain is one compiled burst-symbol chain: the bus address DMA should
// jump to, and the arena offset of its final (delay) CB -- the splice
// point the signal engine rewrites on every enqueue.
type BSChain struct {
	FirstBus     uint32
	LastCBOffset uintptr
	NumCBs       int
}

// WaveformCompiler builds all TS_COUNT*4 burst-symbol chains into a
// pinned arena.
type WaveformCompiler struct {
	log *log.Logger

	arena *Arena
	pm    *PeripheralMap

	amplitude float64
	rc        float64

	fifoBus uint32
	permap  dmaTransferInfo

	samplePosBus uint32
	sampleNegBus uint32

	gpioSetBus uint32
	gpioClrBus uint32

	cbCursor     uintptr
	cbRegionLen  uintptr
	levelErrorMax float64
}

// NewWaveformCompiler prepares a compiler writing into the arena's
// CB-bearing prefix. sampleWordsOffset must point at 8 free bytes
// reserved outside the CB region (the arena's trailing "sample pages").
func NewWaveformCompiler(arena *Arena, pm *PeripheralMap, bases PeripheralBases, pacing *Pacing, amplitude, rc float64, cbRegionLen uintptr, sampleWordsOffset uintptr) (*WaveformCompiler, error) {
	base := arena.Base()

	samplesBytes := arena.Bytes()
	binaryPutUint32(samplesBytes[sampleWordsOffset:], 1<<gpioPosPin)
	binaryPutUint32(samplesBytes[sampleWordsOffset+4:], 1<<gpioNegPin)

	samplePosBus, err := arena.VirtToBus(base + sampleWordsOffset)
	if err != nil {
		return nil, err
	}

	sampleNegBus, err := arena.VirtToBus(base + sampleWordsOffset + 4)
	if err != nil {
		return nil, err
	}

	fifoBus, permap := pacing.FIFOBusAddr(bases)

	return &WaveformCompiler{
		log:          newLogger(compWaveform),
		arena:        arena,
		pm:           pm,
		amplitude:    amplitude,
		rc:           rc,
		fifoBus:      fifoBus,
		permap:       permap,
		samplePosBus: samplePosBus,
		sampleNegBus: sampleNegBus,
		gpioSetBus:   busAddr(bases.GPIO, 0x1c),
		gpioClrBus:   busAddr(bases.GPIO, 0x28),
		cbRegionLen:  cbRegionLen,
	}, nil
}

func binaryPutUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func (w *WaveformCompiler) allocCB() (uintptr, uint32, error) {
	if w.cbCursor+cbSize > w.cbRegionLen {
		return 0, 0, fmt.Errorf("psk31: control-block arena exhausted at offset %d", w.cbCursor)
	}

	offset := w.cbCursor
	w.cbCursor += cbSize

	bus, err := w.arena.VirtToBus(w.arena.Base() + offset)
	if err != nil {
		return 0, 0, err
	}

	return offset, bus, nil
}

// CompileBS renders one symbol's chain: up to 3*BS_SAMPLES CBs, fewer
// when consecutive sub-samples share a drive direction (spec §4.3
// "Optimization").
func (w *WaveformCompiler) CompileBS(kind SymbolKind) (*BSChain, error) {
	meanDecay := math.Exp(-float64(pulseWidthIncrUS) / (1_000_000.0 * w.rc))
	meanWeight := 1.0 - meanDecay

	var firstBus uint32
	var prevOffset uintptr
	havePrev := false
	numCBs := 0

	link := func(offset uintptr, bus uint32) {
		if havePrev {
			writeCBNext(w.arena.Bytes(), prevOffset, bus)
		} else {
			firstBus = bus
		}
		prevOffset = offset
		havePrev = true
	}

	vOld := shapeLevel(kind, w.amplitude, 0)
	upOld := false

	for i := 0; i < bsSamples; i++ {
		t := float64(i+1) / float64(bsSamples)
		v := shapeLevel(kind, w.amplitude, t)
		up := v > vOld

		vNew := vOld * meanDecay
		if up {
			vNew += meanWeight
		}

		if vErr := math.Abs(v - vNew); vErr > w.levelErrorMax {
			w.levelErrorMax = vErr
		}

		if i == 0 || up != upOld {
			posOff, posBus, err := w.allocCB()
			if err != nil {
				return nil, err
			}

			posDst := w.gpioClrBus
			if up {
				posDst = w.gpioSetBus
			}

			controlBlock{
				info: uint32(tiNoWideBursts | tiWaitResp), src: w.samplePosBus,
				dst: posDst, length: 4,
			}.encode(w.arena.Bytes()[posOff : posOff+cbSize])
			link(posOff, posBus)
			numCBs++

			negOff, negBus, err := w.allocCB()
			if err != nil {
				return nil, err
			}

			negDst := w.gpioSetBus
			if up {
				negDst = w.gpioClrBus
			}

			controlBlock{
				info: uint32(tiNoWideBursts | tiWaitResp), src: w.sampleNegBus,
				dst: negDst, length: 4,
			}.encode(w.arena.Bytes()[negOff : negOff+cbSize])
			link(negOff, negBus)
			numCBs++
		}

		delayOff, delayBus, err := w.allocCB()
		if err != nil {
			return nil, err
		}

		controlBlock{
			info:   uint32(tiNoWideBursts|tiWaitResp|tiDstDReq) | uint32(w.permap),
			src:    w.samplePosBus,
			dst:    w.fifoBus,
			length: 4,
		}.encode(w.arena.Bytes()[delayOff : delayOff+cbSize])
		link(delayOff, delayBus)
		numCBs++

		upOld = up
		vOld = vNew
	}

	// Terminate the chain (spec P2: "last CB having next == 0 at compile time").
	writeCBNext(w.arena.Bytes(), prevOffset, 0)

	return &BSChain{FirstBus: firstBus, LastCBOffset: prevOffset, NumCBs: numCBs}, nil
}

// LevelErrorMax is the largest instantaneous sigma-delta tracking error
// observed across every chain compiled so far (spec §4.3, P1, scenario 6).
func (w *WaveformCompiler) LevelErrorMax() float64 {
	return w.levelErrorMax
}

// CBCursor reports how many arena bytes have been consumed, so the
// caller can reclaim unused trailing CB pages (spec §4.3 "Memory
// reclamation").
func (w *WaveformCompiler) CBCursor() uintptr {
	return w.cbCursor
}
