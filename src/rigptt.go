package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Key an external transceiver into transmit via Hamlib's
 *		rig-control CAT protocol, for operators who feed the
 *		GPIO envelope signal into a rig's microphone/line input
 *		but still need something to flip it into transmit.
 *
 * Description:	Grounded on the teacher's own commented-out "FIXME KG"
 *		Hamlib block in ptt.go, itself the direct cgo equivalent
 *		of this: rig_init()/rig_open()/rig_set_ptt()/rig_cleanup()
 *		translate 1:1 to goHamlib's NewRig/Open/SetPTT/Close. The
 *		teacher never finished that port (it predates this library
 *		and stayed behind a C binding); this module supplements the
 *		feature the teacher documented but left disabled.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	hamlib "github.com/xylo04/goHamlib"
)

// RigPTT keys an external rig in and out of transmit over a Hamlib CAT
// connection. Entirely optional: a transmitter with no --hamlib-rig flag
// never constructs one.
type RigPTT struct {
	log *log.Logger
	rig *hamlib.Rig
}

// NewRigPTT opens a CAT connection to the given Hamlib rig model over
// port (a device path such as /dev/ttyUSB0, or host:port for rigctld
// with model 2). baud of 0 leaves the rig's default serial rate alone,
// mirroring the teacher's "config file can optionally override the rate
// hamlib came up with" behavior.
func NewRigPTT(modelID int, port string, baud int) (*RigPTT, error) {
	rig := hamlib.NewRig(modelID)
	if rig == nil {
		return nil, fmt.Errorf("psk31: unknown hamlib rig model %d (see \"rigctl --list\")", modelID)
	}

	if err := rig.SetConf("rig_pathname", port); err != nil {
		return nil, fmt.Errorf("psk31: hamlib: failed to set rig path %s: %w", port, err)
	}

	if baud > 0 {
		if err := rig.SetConf("serial_speed", strconv.Itoa(baud)); err != nil {
			return nil, fmt.Errorf("psk31: hamlib: failed to override serial rate: %w", err)
		}
	}

	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("psk31: hamlib: rig_open failed for model %d on %s: %w", modelID, port, err)
	}

	return &RigPTT{
		log: newLogger(compRig),
		rig: rig,
	}, nil
}

// Key sets the rig's PTT state, called on the Modulation Driver's
// START/STOP transitions (spec §4.5) so the rig keys up exactly when
// starting_burst begins and drops exactly when ending_burst completes.
func (r *RigPTT) Key(on bool) error {
	state := hamlib.RigPttOff
	if on {
		state = hamlib.RigPttOn
	}

	if err := r.rig.SetPTT(hamlib.RigVfoCurr, state); err != nil {
		return fmt.Errorf("psk31: hamlib: set_ptt failed: %w", err)
	}

	r.log.Debug("rig PTT", "on", on)

	return nil
}

// Close releases the CAT connection, unkeying the rig first. The signal
// handler exits without running deferred calls, so a signal-triggered
// shutdown does not reach this.
func (r *RigPTT) Close() error {
	if err := r.Key(false); err != nil {
		r.log.Warn("failed to unkey rig on close", "err", err)
	}

	return r.rig.Close()
}
