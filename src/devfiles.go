package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Create, permission, and tear down the three boundary files
 *		named in spec §6.
 *
 * Description:	Grounded on original_source/psk/psk31.c's devfile_create()/
 *		devfiles_unlink(): two write-only FIFOs (mode 0622) plus a
 *		Unix-domain stream socket (mode 0666) bound at a fixed path.
 *		/dev/psk31.ctrl is created for ABI compatibility but never
 *		read from, per spec §9's Open Question.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	DevfileData = "/dev/psk31.data"
	DevfileCtrl = "/dev/psk31.ctrl"
	DevfileStat = "/dev/psk31.stat"
)

// UnlinkBoundaryFiles removes all three boundary files, ignoring
// not-exist errors. Called both before creation (stale files from a
// previous crashed run) and during the fatal shutdown path.
func UnlinkBoundaryFiles() {
	for _, path := range []string{DevfileData, DevfileCtrl, DevfileStat} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			newLogger(compLifecycle).Warn("failed to unlink boundary file", "path", path, "err", err)
		}
	}
}

// CreateDataFIFOs creates /dev/psk31.data and /dev/psk31.ctrl as
// world-writable FIFOs (mode 0622). Failure is an Initialization
// failure.
func CreateDataFIFOs() error {
	for _, path := range []string{DevfileData, DevfileCtrl} {
		if err := unix.Mkfifo(path, 0o622); err != nil {
			return fmt.Errorf("psk31: failed to create FIFO %s: %w", path, err)
		}

		if err := os.Chmod(path, 0o622); err != nil {
			return fmt.Errorf("psk31: failed to set permissions on %s: %w", path, err)
		}
	}

	return nil
}

// OpenDataFIFO opens the data FIFO read-only, non-blocking, so the main
// loop's readiness-selection call never stalls waiting for a writer.
func OpenDataFIFO() (*os.File, error) {
	f, err := os.OpenFile(DevfileData, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("psk31: failed to open %s: %w", DevfileData, err)
	}

	return f, nil
}
