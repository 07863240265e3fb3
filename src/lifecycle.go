package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	The process-wide fatal-shutdown funnel (spec §5
 *		"Cancellation") and the main event loop tying the FIFO,
 *		the Modulation Driver, the status socket, and the optional
 *		console/monitor/rig together.
 *
 * Description:	Grounded on original_source/psk/psk31.c's main()
 *		select()-over-heterogeneous-fds loop. Idiomatic Go has no
 *		single call that multiplexes a file descriptor, a Unix
 *		listener, and a timer the way select(2) does directly, so
 *		this uses the corpus's own answer to that problem: a
 *		goroutine per blocking source feeding a channel (the
 *		StatusServer's acceptLoop does this), consumed by one
 *		select statement here; the non-blocking data FIFO is polled
 *		from that select's default branch. Every signal number the teacher's
 *		spec names (0..63) installs the same handler, since the
 *		only signal-relevant state is "is DMA still running" --
 *		there is nothing signal-number-specific to do.
 *
 *------------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"
)

// FatalHandler is the minimal contract a fatal shutdown needs: stop the
// hardware from continuing to toggle GPIOs after the process is gone.
// Implemented by *Engine.
type FatalHandler interface {
	ResetDMA()
	StopClock()
}

// Terminate performs the full shutdown funnel (spec §5): reset DMA, stop
// the clock, and unlink the boundary files.
func Terminate(h FatalHandler) error {
	h.ResetDMA()
	h.StopClock()
	UnlinkBoundaryFiles()

	return nil
}

// InstallSignalHandlers arms every signal Go can catch to run the fatal
// shutdown funnel exactly once and then exit with status 1, so DMA is
// quiesced before the process actually dies regardless of which signal
// arrived.
// Returns a channel that is closed once the handler has run, for a
// caller that wants to block until cleanup is complete.
func InstallSignalHandlers(h FatalHandler) <-chan struct{} {
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh)

	go func() {
		sig := <-sigCh
		newLogger(compLifecycle).Warn("received signal, shutting down", "signal", sig)

		_ = Terminate(h)

		close(done)
		os.Exit(1)
	}()

	return done
}

// feedInterval mirrors the original's select() timeout of
// TS_US * TS_COUNT / 4 microseconds, where TS_US (bsUS here) is one
// 31.25-baud symbol period.
const feedInterval = time.Duration(bsUS*tsCount/4) * time.Microsecond

// pttKeyer is the subset of *RigPTT the main loop needs, broken out so the
// IDLE-edge keying logic below can be exercised without a real Hamlib
// connection.
type pttKeyer interface {
	Key(on bool) error
}

// keyRigOnStateEdge keys an external rig on the Modulation Driver's
// IDLE<->non-IDLE edges: starting_burst begins on the IDLE->START edge, and
// PTT drops once ending_burst has run its course and the FSM falls back to
// IDLE (spec §4.5). A nil rig (no --hamlib-rig configured) is a no-op.
func keyRigOnStateEdge(rig pttKeyer, lastState, state string) error {
	if rig == nil || lastState == state {
		return nil
	}

	switch {
	case lastState == "IDLE" && state != "IDLE":
		return rig.Key(true)
	case state == "IDLE" && lastState != "IDLE":
		return rig.Key(false)
	default:
		return nil
	}
}

// reopenOnEOF closes fifo and opens its replacement via reopenFIFO,
// implementing the writer-disconnect reconnect RunLoop needs on FIFO EOF
// (spec §7, "FIFO EOF reopened"). Split out from RunLoop so the reconnect
// behavior can be exercised against a real kernel FIFO without driving
// the rest of the event loop.
func reopenOnEOF(fifo *os.File, reopenFIFO func() (*os.File, error)) (*os.File, error) {
	fifo.Close()

	reopened, err := reopenFIFO()
	if err != nil {
		return nil, fmt.Errorf("psk31: failed to reopen data FIFO after EOF: %w", err)
	}

	return reopened, nil
}

// RunLoop is the main event loop: FIFO bytes feed the Modulator, a
// periodic tick drains slack into the Signal Engine, and status
// connections are served as they arrive. levelErrorMax is the worst
// sigma-delta quantization error observed at compile time, threaded
// through only to label the console's status line. reopenFIFO is called to
// replace fifo once every writer has disconnected (spec §7, "FIFO EOF
// reopened"); production callers pass OpenDataFIFO, tests pass a thunk
// reopening a scratch FIFO so the reconnect path doesn't need /dev access.
// Returns when quit is closed or a fatal error occurs.
func RunLoop(fifo *os.File, modulator *Modulator, engine *Engine, status *StatusServer, monitor *Monitor, console *Console, rig pttKeyer, reopenFIFO func() (*os.File, error), levelErrorMax float64, quit <-chan struct{}) error {
	lg := newLogger(compLifecycle)

	ticker := time.NewTicker(feedInterval)
	defer ticker.Stop()

	buf := make([]byte, 4096)
	lastState := modulator.State()

	defer func() { fifo.Close() }()

	for {
		select {
		case <-quit:
			return nil

		case conn := <-status.Conns():
			status.Handle(conn)

		case <-ticker.C:
			if err := modulator.RunOnce(engine); err != nil {
				return fmt.Errorf("psk31: fatal feed loop error: %w", err)
			}

			if state := modulator.State(); state != lastState {
				if monitor != nil {
					monitor.MirrorTransition(state)
				}

				if err := keyRigOnStateEdge(rig, lastState, state); err != nil {
					lg.Warn("rig PTT keying failed", "err", err)
				}

				lastState = state
			}

			if console != nil {
				pending, err := engine.Pending()
				if err != nil {
					return fmt.Errorf("psk31: fatal feed loop error: %w", err)
				}

				console.Redraw(pending, modulator.State(), levelErrorMax)
			}

			if cbOffset, err := engine.CurrentCBOffset(); err == nil {
				lg.Debug("DMA executing control block", "offset", fmt.Sprintf("0x%x", cbOffset))
			}

		default:
			if !modulator.HasRoom() {
				time.Sleep(time.Millisecond)
				continue
			}

			// Read no more than the ring has room for, so Write takes
			// every byte read.
			n, err := fifo.Read(buf[:sendSize-modulator.PendingChar()])
			if err != nil {
				// EOF means every writer closed the FIFO. The original
				// closes fd_send and reopens it so a future writer can
				// attach (spec §7, "FIFO EOF reopened"); a non-blocking
				// read against an already-closed write end never becomes
				// readable again on its own, so the fd itself must be
				// replaced, not just retried.
				if errors.Is(err, io.EOF) {
					reopened, reopenErr := reopenOnEOF(fifo, reopenFIFO)
					if reopenErr != nil {
						return reopenErr
					}
					fifo = reopened

					time.Sleep(10 * time.Millisecond)
					continue
				}

				lg.Debug("FIFO read idle", "err", err)
				time.Sleep(time.Millisecond)
				continue
			}

			consumed := modulator.Write(buf[:n])
			if monitor != nil {
				for i := 0; i < consumed; i++ {
					monitor.MirrorByte(buf[i])
				}
			}
		}
	}
}
