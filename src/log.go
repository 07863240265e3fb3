package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Structured diagnostic logging for every component.
 *
 * Description:	The original C kept a single fatal()/dw_printf() pair and
 *		a five-color text_color_set() scheme (see the teacher's
 *		textcolor.c).  This replaces both with one
 *		github.com/charmbracelet/log logger per named component,
 *		leveled instead of colored. Initialization failures and
 *		runtime hardware faults (spec §7) are not logged here: they
 *		are returned as errors to the command entry point, which
 *		prints them to stderr. Everything else is Info, Warn or
 *		Debug.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Component names used as a logger's prefix.
const (
	compPeripheral = "peripheral"
	compArena      = "arena"
	compWaveform   = "waveform"
	compEngine     = "engine"
	compModulator  = "modulator"
	compStatus     = "status"
	compClock      = "clock"
	compLifecycle  = "lifecycle"
	compRig        = "rig"
	compMonitor    = "monitor"
)

var rootLogger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      time.RFC3339,
})

// newLogger returns a named sub-logger for one component.
func newLogger(component string) *log.Logger {
	return rootLogger.WithPrefix(component)
}

// SetLogLevel adjusts verbosity at runtime from the --debug flag.
func SetLogLevel(debug bool) {
	if debug {
		rootLogger.SetLevel(log.DebugLevel)
	} else {
		rootLogger.SetLevel(log.InfoLevel)
	}
}

// timestamper builds a timestamp prefix from a strftime pattern instead
// of a fixed Go time layout. An empty pattern disables prefixing. Only
// the tests construct one: log lines use rootLogger's RFC3339 format, and
// no status snapshot or monitor output carries a prefix.
type timestamper struct {
	f *strftime.Strftime
}

func newTimestamper(pattern string) (*timestamper, error) {
	if pattern == "" {
		return &timestamper{}, nil
	}

	f, err := strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp format %q: %w", pattern, err)
	}

	return &timestamper{f: f}, nil
}

func (t *timestamper) prefix(now time.Time) string {
	if t == nil || t.f == nil {
		return ""
	}

	s, err := t.f.FormatString(now)
	if err != nil {
		return ""
	}

	return s + " "
}
