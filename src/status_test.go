package psk31

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatStatusPayloadExactSevenLines(t *testing.T) {
	payload := StatusPayload{
		Amplitude:   0.9,
		RC:          0.0047,
		ClockDiv:    0x1000,
		ClockMash:   1,
		ClockFreq:   1000000,
		Timeout:     -1,
		PendingChar: 42,
	}

	got := FormatStatusPayload(payload)

	want := "amplitude 0.9\n" +
		"rc 0.0047\n" +
		"clock_div 4096\n" +
		"clock_mash 1\n" +
		"clock_freq 1e+06\n" +
		"timeout -1\n" +
		"pending_char 42\n"

	assert.Equal(t, want, got)
}

func TestStatusServerHandleWritesSnapshotAndCloses(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := &StatusServer{ //nolint:exhaustruct
		log: newLogger(compStatus),
		snapshot: func() StatusPayload {
			return StatusPayload{Amplitude: 0.5, Timeout: -1, PendingChar: 3} //nolint:exhaustruct
		},
	}

	done := make(chan struct{})
	go func() {
		s.Handle(server)
		close(done)
	}()

	out, err := io.ReadAll(client)
	require.NoError(t, err)
	<-done

	assert.Contains(t, string(out), "amplitude 0.5\n")
	assert.Contains(t, string(out), "pending_char 3\n")
}
