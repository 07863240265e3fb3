package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Program the clock manager's GP0 fractional-N divider and
 *		MASH dithering to generate the carrier on GPIO4.
 *
 * Description:	Grounded line-for-line on original_source/psk/psk31.c's
 *		clock_start()/clock_stop(): the password-gated (0x5A)
 *		CM_GP0CTL/CM_GP0DIV register pair, the same divi_min/
 *		divi_dec/divi_inc MASH feasibility table, and the same
 *		500MHz*4096/F divisor formula.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
)

const (
	gpioFreqPin = 4
	gpioModeAlt0 = 4

	cmPassword = 0x5a000000
	cmSrcPLLD  = 6 // CM_GP0CTL source field selecting PLLD (500MHz)
	cmEnable   = 0x00000010
	cmBusy     = 0x00000080
	cmCtlKillAndSrcMask = 0x0000070f
)

type mashFeasibility struct {
	diviMin, diviDec, diviInc uint32
}

// mashTable indexes by (mash-1), matching the teacher-adjacent original's
// `dt[]` feasibility table.
var mashTable = [3]mashFeasibility{
	{diviMin: 2, diviDec: 0, diviInc: 1},
	{diviMin: 3, diviDec: 1, diviInc: 2},
	{diviMin: 5, diviDec: 3, diviInc: 4},
}

// ClockConfig carries the user-facing --clock-div/--frequency/--mash
// options (spec §6).
type ClockConfig struct {
	Div       uint32 // raw 22-bit fractional divider; 0 means "derive from Frequency"
	Frequency float64 // MHz
	Mash      int    // -3..3; negative forces a stage, 0..3 is a ceiling
}

// ClockState reports what was actually programmed, for the status payload.
type ClockState struct {
	Div  uint32
	Mash uint32
	Freq float64
}

// Clock owns the CM_GP0 divider/control registers.
type Clock struct {
	log *log.Logger
	pm  *PeripheralMap

	state ClockState
}

func NewClock(pm *PeripheralMap) *Clock {
	return &Clock{log: newLogger(compClock), pm: pm}
}

// Start derives the divider (directly or from frequency), picks the
// highest feasible MASH stage, and writes the password-gated registers.
// A zero/negative result from the derivation (neither a usable raw
// divider nor a frequency high enough to express in 22 bits) is an
// Initialization failure.
func (c *Clock) Start(cfg ClockConfig) error {
	c.Stop()

	var div uint32
	switch {
	case cfg.Div > 0 && cfg.Div <= 0x00fff000:
		div = cfg.Div
	case cfg.Frequency >= 500.0*float64(uint32(1)<<12)/float64(0x00fff000):
		div = uint32(500.0/cfg.Frequency*float64(uint32(1)<<12) + 0.5)
	default:
		return fmt.Errorf("psk31: no usable clock divider: div=%d frequency=%gMHz out of range", cfg.Div, cfg.Frequency)
	}

	divi := div >> 12
	if divi < 1 || div > 0x00fff000 {
		return fmt.Errorf("psk31: derived divider 0x%x out of range", div)
	}

	c.pm.GPIOSetMode(gpioFreqPin, gpioModeAlt0)

	c.pm.CLK.store(regCM_GP0DIV, cmPassword|div)

	mash := c.chooseMash(cfg.Mash, divi)

	ctl := uint32(cmPassword|cmSrcPLLD) | (mash << 9)
	c.pm.CLK.store(regCM_GP0CTL, ctl)
	c.pm.CLK.store(regCM_GP0CTL, ctl|cmEnable)

	freq := 500.0 / (float64(div) / float64(uint32(1)<<12))
	c.state = ClockState{Div: div, Mash: mash, Freq: freq}

	c.log.Info("carrier clock started", "div", div, "mash", mash, "freq_mhz", freq)

	return nil
}

// chooseMash implements the same override/auto-select rule as
// clock_start(): a non-positive override forces |override| stages;
// otherwise the highest stage in [1, min(3,override)] whose divi
// constraints are satisfied wins, falling back to 0 (integer divide,
// no dithering) if none fit.
func (c *Clock) chooseMash(override int, divi uint32) uint32 {
	if override >= -3 && override <= 0 {
		return uint32(-override)
	}

	ceiling := override
	if ceiling > 3 {
		ceiling = 3
	}

	for mash := uint32(ceiling); mash >= 1; mash-- {
		t := mashTable[mash-1]
		if divi < t.diviMin {
			continue
		}
		if divi < uint32(500/25)+t.diviDec {
			continue
		}
		if divi > 4095-t.diviInc {
			continue
		}
		return mash
	}

	return 0
}

// Stop writes the password+stop pattern, preserving the existing source
// bits, and busy-waits for CM_GP0CTL's BUSY bit to clear -- satisfying
// the FatalHandler contract (spec §9) that a crash path can always stop
// the clock even if Start was never called.
func (c *Clock) Stop() {
	if c.pm == nil || c.pm.CLK == nil {
		return
	}

	current := c.pm.CLK.load(regCM_GP0CTL)
	c.pm.CLK.store(regCM_GP0CTL, cmPassword|(current&cmCtlKillAndSrcMask))

	for c.pm.CLK.load(regCM_GP0CTL)&cmBusy != 0 {
		// busy-wait for the clock generator to actually stop
	}

	c.state = ClockState{}
}

func (c *Clock) State() ClockState {
	return c.state
}

// divFromFrequency is exposed for the selftest subcommand and for unit
// tests that want the formula without touching hardware registers.
func divFromFrequency(freqMHz float64) uint32 {
	return uint32(math.Round(500.0 / freqMHz * float64(uint32(1)<<12)))
}
