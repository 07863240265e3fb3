package psk31

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakeFatalHandler struct {
	resetCalled bool
	stopCalled  bool
}

func (f *fakeFatalHandler) ResetDMA()  { f.resetCalled = true }
func (f *fakeFatalHandler) StopClock() { f.stopCalled = true }

func TestTerminateResetsDMAAndStopsClock(t *testing.T) {
	h := &fakeFatalHandler{}

	err := Terminate(h)
	require.NoError(t, err)

	assert.True(t, h.resetCalled)
	assert.True(t, h.stopCalled)
}

type fakeKeyer struct {
	calls []bool
	err   error
}

func (k *fakeKeyer) Key(on bool) error {
	k.calls = append(k.calls, on)
	return k.err
}

func TestKeyRigOnStateEdgeKeysUpLeavingIdle(t *testing.T) {
	k := &fakeKeyer{}

	require.NoError(t, keyRigOnStateEdge(k, "IDLE", "START"))
	assert.Equal(t, []bool{true}, k.calls)
}

func TestKeyRigOnStateEdgeKeysDownReturningToIdle(t *testing.T) {
	k := &fakeKeyer{}

	require.NoError(t, keyRigOnStateEdge(k, "FILL", "IDLE"))
	assert.Equal(t, []bool{false}, k.calls)
}

func TestKeyRigOnStateEdgeIgnoresTransitionsBetweenActiveStates(t *testing.T) {
	k := &fakeKeyer{}

	require.NoError(t, keyRigOnStateEdge(k, "START", "SEND"))
	require.NoError(t, keyRigOnStateEdge(k, "SEND", "FILL"))
	require.NoError(t, keyRigOnStateEdge(k, "FILL", "STOP"))

	assert.Empty(t, k.calls)
}

func TestKeyRigOnStateEdgeNilRigIsNoop(t *testing.T) {
	assert.NoError(t, keyRigOnStateEdge(nil, "IDLE", "START"))
}

func TestKeyRigOnStateEdgeSameStateIsNoop(t *testing.T) {
	k := &fakeKeyer{}

	require.NoError(t, keyRigOnStateEdge(k, "SEND", "SEND"))
	assert.Empty(t, k.calls)
}

func TestKeyRigOnStateEdgePropagatesKeyError(t *testing.T) {
	k := &fakeKeyer{err: assert.AnError}

	err := keyRigOnStateEdge(k, "IDLE", "START")
	assert.ErrorIs(t, err, assert.AnError)
}

// TestReopenOnEOFCyclesRealFIFOThroughWriterCloseAndReopen drives
// reopenOnEOF against a real kernel FIFO (not /dev/psk31.data, to avoid
// requiring privileged paths): a writer attaches, sends a message, and
// disconnects, the reader observes EOF the way RunLoop's default case
// does, and reopenOnEOF must hand back a fresh handle that a second,
// independent writer can attach to and be read from.
func TestReopenOnEOFCyclesRealFIFOThroughWriterCloseAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.fifo")
	require.NoError(t, unix.Mkfifo(path, 0o622))

	open := func() (*os.File, error) {
		return os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0) //nolint:gosec
	}

	fifo, err := open()
	require.NoError(t, err)

	writer, err := os.OpenFile(path, os.O_WRONLY, 0) //nolint:gosec
	require.NoError(t, err)
	_, err = writer.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	buf := make([]byte, 16)
	n, err := fifo.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))

	// The ring is drained and the writer is gone: the next read observes
	// EOF, same as RunLoop's default case would.
	_, err = fifo.Read(buf)
	require.ErrorIs(t, err, io.EOF)

	reopened, err := reopenOnEOF(fifo, open)
	require.NoError(t, err)
	defer reopened.Close()

	writer2, err := os.OpenFile(path, os.O_WRONLY, 0) //nolint:gosec
	require.NoError(t, err)
	defer writer2.Close()

	_, err = writer2.Write([]byte("bye"))
	require.NoError(t, err)

	n, err = reopened.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(buf[:n]))
}

func TestReopenOnEOFPropagatesReopenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.fifo")
	require.NoError(t, unix.Mkfifo(path, 0o622))

	fifo, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0) //nolint:gosec
	require.NoError(t, err)

	_, err = reopenOnEOF(fifo, func() (*os.File, error) {
		return nil, assert.AnError
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
