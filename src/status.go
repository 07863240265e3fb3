package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Serve the seven-line status snapshot over the boundary
 *		Unix socket, and optionally advertise a TCP mirror of it
 *		over mDNS/DNS-SD so a `monitor` client can find a running
 *		transmitter without being told its host.
 *
 * Description:	The core boundary contract (spec §6) is a Unix-domain
 *		stream socket at /dev/psk31.stat, grounded on
 *		original_source/psk/psk31.c's stat_accept()/stat_write():
 *		every new connection immediately receives the seven labeled
 *		lines and is closed. The optional TCP/DNS-SD mirror reuses
 *		the teacher's own dns_sd.go pattern verbatim
 *		(dnssd.Config{Name,Type,Port}, dnssd.NewService,
 *		dnssd.NewResponder, rp.Add, go rp.Respond) against a
 *		`_psk31-stat._tcp` service type instead of the teacher's
 *		`_kiss-tnc._tcp`, since a Unix socket path has no network
 *		port to advertise.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// StatusPayload is the set of parameters reported on every status
// connection (spec §6).
type StatusPayload struct {
	Amplitude   float64
	RC          float64
	ClockDiv    uint32
	ClockMash   uint32
	ClockFreq   float64
	Timeout     int
	PendingChar int
}

// FormatStatusPayload renders the exact seven-line plain-text snapshot
// byte-for-byte as specified in §6.
func FormatStatusPayload(p StatusPayload) string {
	return fmt.Sprintf(
		"amplitude %g\nrc %g\nclock_div %d\nclock_mash %d\nclock_freq %g\ntimeout %d\npending_char %d\n",
		p.Amplitude, p.RC, p.ClockDiv, p.ClockMash, p.ClockFreq, p.Timeout, p.PendingChar,
	)
}

// StatusServer owns the /dev/psk31.stat Unix socket and, optionally, a
// TCP mirror advertised over DNS-SD.
type StatusServer struct {
	log *log.Logger

	unixLn net.Listener
	tcpLn  net.Listener

	conns chan net.Conn

	snapshot func() StatusPayload
}

// NewStatusServer binds the boundary Unix socket at mode 0666 (spec §6).
// Connection acceptance happens on a background goroutine feeding a
// channel, the idiomatic Go analogue of the original's select()-based
// readiness loop: the main loop's own select statement (lifecycle.go)
// drains this channel alongside FIFO input and timer ticks.
func NewStatusServer(snapshot func() StatusPayload) (*StatusServer, error) {
	ln, err := net.Listen("unix", DevfileStat)
	if err != nil {
		return nil, fmt.Errorf("psk31: failed to bind status socket: %w", err)
	}

	if err := os.Chmod(DevfileStat, 0o666); err != nil {
		ln.Close()
		return nil, fmt.Errorf("psk31: failed to set permissions on %s: %w", DevfileStat, err)
	}

	s := &StatusServer{
		log:      newLogger(compStatus),
		unixLn:   ln,
		conns:    make(chan net.Conn, 8),
		snapshot: snapshot,
	}

	go s.acceptLoop(ln)

	return s, nil
}

func (s *StatusServer) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}

		s.conns <- conn
	}
}

// Conns exposes the channel of newly-accepted connections for the main
// select loop to drain.
func (s *StatusServer) Conns() <-chan net.Conn {
	return s.conns
}

// Handle writes the current snapshot and closes the connection -- the
// entirety of stat_write()'s behavior (spec §6: "then the connection is
// closed").
func (s *StatusServer) Handle(conn net.Conn) {
	defer conn.Close()

	payload := FormatStatusPayload(s.snapshot())
	if _, err := conn.Write([]byte(payload)); err != nil {
		// EPIPE (client already gone) is tolerated (spec §7); any other
		// write failure is logged but not fatal -- only the data path and
		// DMA liveness are load-bearing enough to kill the process.
		s.log.Warn("status write failed", "err", err)
	}
}

// AdvertiseTCPMirror starts a TCP listener mirroring the same payload
// (for remote `monitor` clients) and advertises it over mDNS/DNS-SD.
func (s *StatusServer) AdvertiseTCPMirror(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("psk31: failed to bind status TCP mirror: %w", err)
	}

	s.tcpLn = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			go s.Handle(conn)
		}
	}()

	cfg := dnssd.Config{ //nolint:exhaustruct
		Name: "psk31tx",
		Type: "_psk31-stat._tcp",
		Port: port,
	}

	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("psk31: failed to create DNS-SD service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("psk31: failed to create DNS-SD responder: %w", err)
	}

	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("psk31: failed to add DNS-SD service: %w", err)
	}

	s.log.Info("DNS-SD: announcing status mirror", "port", port)

	go func() {
		if err := rp.Respond(context.Background()); err != nil {
			s.log.Error("DNS-SD responder error", "err", err)
		}
	}()

	return nil
}

func (s *StatusServer) Close() error {
	if s.tcpLn != nil {
		s.tcpLn.Close()
	}

	return s.unixLn.Close()
}
