package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Mirror the data FIFO bytes and burst-kind transitions to a
 *		pseudo-terminal for a human or a terminal program to watch
 *		a transmission in progress without touching the real
 *		boundary files.
 *
 * Description:	Grounded on the teacher's kiss.go kisspt_open_pt(): open
 *		a pty pair with github.com/creack/pty, log the slave's
 *		device name so an operator can `cat` or `screen` it, and
 *		write best-effort -- a reader that falls behind or never
 *		attaches must never block the transmitter, so writes use a
 *		short deadline and drop data rather than stall (the
 *		teacher's own fcntl-nonblocking intent for the same pty,
 *		left as a FIXME KG in kiss.go; idiomatic Go reaches for
 *		SetWriteDeadline instead of raw fcntl flags).
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
)

// Monitor mirrors transmitter activity to a pty for an operator's terminal
// program (spec §6's /dev/psk31.stat, which the `monitor` subcommand
// reads, is a snapshot; this is a live trace).
type Monitor struct {
	log    *log.Logger
	master *os.File
	slave  *os.File
}

// NewMonitor opens a pty pair and returns the monitor with the slave's
// path logged for discovery.
func NewMonitor() (*Monitor, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("psk31: failed to open monitor pty: %w", err)
	}

	m := &Monitor{
		log:    newLogger(compMonitor),
		master: master,
		slave:  slave,
	}

	m.log.Info("monitor pty available", "device", slave.Name())

	return m, nil
}

// Path returns the slave device path an operator should open.
func (m *Monitor) Path() string {
	return m.slave.Name()
}

// MirrorByte writes one data-FIFO byte to the monitor pty, dropping it
// silently if no one is reading (the pty buffer is full and a 10ms
// deadline elapses) rather than ever blocking the feed loop.
func (m *Monitor) MirrorByte(b byte) {
	m.write([]byte{b})
}

// MirrorTransition logs a burst-kind change, e.g. entering FILL or STOP,
// so a watcher can see the FSM move without decoding Varicode itself.
func (m *Monitor) MirrorTransition(state string) {
	m.write([]byte(fmt.Sprintf("[%s]\n", state)))
}

func (m *Monitor) write(p []byte) {
	_ = m.master.SetWriteDeadline(time.Now().Add(10 * time.Millisecond))

	if _, err := m.master.Write(p); err != nil {
		m.log.Debug("monitor write dropped", "err", err)
	}
}

func (m *Monitor) Close() error {
	m.slave.Close()
	return m.master.Close()
}
