package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Drive bytes from the data FIFO through Varicode and the
 *		five-state producer FSM into the Signal Engine's ring.
 *
 * Description:	Grounded on original_source/psk/psk31.c's main select()
 *		loop body: the 128-byte SENDSIZE wrap-around ring
 *		(sendbuf/sendread/sendwrite/sendcount), the
 *		START/SEND/FILL/STOP/IDLE transition table, and the feed
 *		loop's `TS_COUNT - 1 - tx_sym_pending()` slack computation.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"

	"github.com/charmbracelet/log"
)

const sendSize = 128

type modState int

const (
	stateIdle modState = iota
	stateStart
	stateSend
	stateFill
	stateStop
)

func (s modState) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateStart:
		return "START"
	case stateSend:
		return "SEND"
	case stateFill:
		return "FILL"
	case stateStop:
		return "STOP"
	default:
		return "?"
	}
}

// Modulator is the Modulation Driver (spec §4.5).
type Modulator struct {
	log *log.Logger

	buf                [sendSize]byte
	readIdx, writeIdx  int
	count              int

	state       modState
	curBurst    Burst
	fillTimeout int

	// Timeout is the user --timeout parameter: negative means "run
	// forever", 0 means "stop immediately on empty input".
	Timeout int
}

func NewModulator(timeout int) *Modulator {
	return &Modulator{
		log:     newLogger(compModulator),
		state:   stateIdle,
		Timeout: timeout,
	}
}

// Write appends as many bytes as fit into the 128-byte ring, returning
// how many were consumed -- callers loop until either the source or the
// ring is exhausted, mirroring the original's read-into-sendbuf loop.
func (m *Modulator) Write(p []byte) int {
	n := 0

	for n < len(p) && m.count < sendSize {
		m.buf[m.writeIdx] = p[n]
		m.writeIdx = (m.writeIdx + 1) % sendSize
		m.count++
		n++
	}

	return n
}

// HasRoom reports whether the input ring can currently accept more bytes
// (used to decide whether the data FIFO is worth selecting on).
func (m *Modulator) HasRoom() bool {
	return m.count < sendSize
}

// PendingChar is the current FIFO backlog, reported verbatim in the
// status payload (spec §6).
func (m *Modulator) PendingChar() int {
	return m.count
}

func (m *Modulator) popByte() byte {
	b := m.buf[m.readIdx]
	m.readIdx = (m.readIdx + 1) % sendSize
	m.count--

	return b
}

// advanceState runs the FSM transition table until a non-empty burst is
// loaded (spec §4.5's table); a no-op while curBurst still has bits left.
func (m *Modulator) advanceState() {
	for m.curBurst.Length == 0 {
		switch m.state {
		case stateStart:
			m.state = stateSend
		case stateSend:
			if m.count > 0 {
				m.curBurst = EncodeVaricode(m.popByte())
			} else {
				m.fillTimeout = m.Timeout
				m.state = stateFill
			}
		case stateFill:
			switch {
			case m.count > 0:
				m.state = stateSend
			case m.fillTimeout != 0:
				m.curBurst = fillBurst
				if m.fillTimeout > 0 {
					m.fillTimeout--
				}
			default:
				m.state = stateStop
				m.curBurst = endingBurst
			}
		case stateStop:
			m.state = stateIdle
		case stateIdle:
			if m.Timeout < 0 || m.count > 0 {
				m.state = stateStart
				m.curBurst = startingBurst
			} else {
				m.curBurst = idleBurst
			}
		}
	}
}

// Feed runs the feed loop: for each of n empty ring slots, pull one bit
// from the current burst (advancing the FSM as needed) and enqueue the
// corresponding differential-BPSK symbol (spec §4.4 "Feed loop").
func (m *Modulator) Feed(engine *Engine, n int) {
	for ; n > 0; n-- {
		m.advanceState()

		bit := int(m.curBurst.Bits & 1)
		m.curBurst.Bits >>= 1
		m.curBurst.Length--

		engine.Enqueue(NextSymbol(engine.LastSym(), bit))
	}
}

// RunOnce computes the current slack (spec invariant (d): always keep at
// least one slot empty) and runs Feed for that many enqueues. Returns an
// error, without feeding, when Pending reports that DMA has stopped.
func (m *Modulator) RunOnce(engine *Engine) error {
	pending, err := engine.Pending()
	if err != nil {
		return fmt.Errorf("psk31: feed loop aborted: %w", err)
	}

	slack := tsCount - 1 - pending
	m.Feed(engine, slack)

	return nil
}

// State exposes the current FSM state for diagnostics (monitor/status).
func (m *Modulator) State() string {
	return m.state.String()
}
