package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Optional foreground interactive console (`--foreground`):
 *		a raw-mode terminal showing a live one-line status redraw
 *		and watching for 'q' to request shutdown, for operators
 *		running the transmitter attached to a terminal instead of
 *		as a background service.
 *
 * Description:	Grounded on the teacher's serial_port.go use of
 *		github.com/pkg/term (term.Open(path, term.RawMode)),
 *		applied here to the controlling terminal /dev/tty instead
 *		of a radio's serial port -- the same "put the tty in raw
 *		mode so single keystrokes arrive immediately" need.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
)

// Console is the optional foreground raw-mode terminal UI.
type Console struct {
	log *log.Logger
	tty *term.Term

	quit chan struct{}
}

// OpenConsole puts the controlling terminal into raw mode. Returns an
// Initialization failure if no controlling terminal is attached (e.g.
// --foreground given while running under a service manager).
func OpenConsole() (*Console, error) {
	tty, err := term.Open("/dev/tty", term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("psk31: --foreground requires a controlling terminal: %w", err)
	}

	c := &Console{
		log:  newLogger(compLifecycle),
		tty:  tty,
		quit: make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

// Quit is closed when the operator presses 'q'; the main loop selects on
// it alongside the data FIFO and status connections.
func (c *Console) Quit() <-chan struct{} {
	return c.quit
}

func (c *Console) readLoop() {
	buf := make([]byte, 1)

	for {
		n, err := c.tty.Read(buf)
		if err != nil {
			return
		}

		if n > 0 && (buf[0] == 'q' || buf[0] == 'Q') {
			close(c.quit)
			return
		}
	}
}

// Redraw overwrites the current line with a one-line status summary:
// pending ring slots, the current FSM state, and the worst envelope
// sigma-delta quantization error observed at compile time (spec §4.3's
// level_error_max diagnostic).
func (c *Console) Redraw(pending int, state string, levelErrorMax float64) {
	fmt.Fprintf(c.tty, "\r\x1b[K pending=%2d state=%-5s level_error_max=%.4f", pending, state, levelErrorMax)
}

func (c *Console) Close() error {
	fmt.Fprint(c.tty, "\r\n")
	return c.tty.Restore()
}
