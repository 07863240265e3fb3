package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	The transmitter's parameter set, shared by the `serve`
 *		and `selftest` subcommands' flags and by an optional YAML
 *		config file.
 *
 * Description:	Grounded on the teacher's cmd/direwolf/main.go /
 *		kissutil.go direct github.com/spf13/pflag use, generalized
 *		here to cobra subcommands per SPEC_FULL.md's Configuration
 *		section. YAML loading (gopkg.in/yaml.v3) lets the daemon
 *		start from an init system without a long argv; flags take
 *		precedence when both are given.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in spec §6 plus the ambient-stack
// additions (hamlib, foreground console, status mirror, peripheral base
// override).
type Config struct {
	Amplitude float64 `yaml:"amplitude"`
	RC        float64 `yaml:"rc"`

	ClockDiv  uint32  `yaml:"clock_div"`
	Frequency float64 `yaml:"frequency"`
	Mash      int     `yaml:"mash"`
	PCM       bool    `yaml:"pcm"`

	Timeout int `yaml:"timeout"`

	PeripheralBaseOverride string `yaml:"peripheral_base_override"`

	HamlibRig  int    `yaml:"hamlib_rig"`
	HamlibPort string `yaml:"hamlib_port"`
	HamlibBaud int    `yaml:"hamlib_baud"`

	Foreground      bool   `yaml:"foreground"`
	Debug           bool   `yaml:"debug"`
	TimestampFormat string `yaml:"timestamp_format"`
	StatusTCPPort   int    `yaml:"status_tcp_port"`

	ConfigFile string `yaml:"-"`
}

// DefaultConfig returns the compiled-in defaults (amplitude 0.9, rc
// 4.7ms, no fixed clock divisor -- frequency selects it).
func DefaultConfig() Config {
	return Config{
		Amplitude: 0.9,
		RC:        4.7e-3,
		Frequency: 14.070000025,
		Mash:      -1,
		Timeout:   -1,
		HamlibRig: -1,
	}
}

// RegisterFlags binds every Config field to a *pflag.FlagSet, the same
// library the teacher registers kissutil's flags with directly.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&c.Amplitude, "amplitude", c.Amplitude, "carrier envelope amplitude, 0.0-1.0")
	fs.Float64Var(&c.RC, "rc", c.RC, "simulated single-pole RC filter time constant (seconds)")
	fs.Uint32Var(&c.ClockDiv, "clock-div", c.ClockDiv, "raw PLLD clock divisor (overrides --frequency)")
	fs.Float64Var(&c.Frequency, "frequency", c.Frequency, "carrier frequency in MHz")
	fs.IntVar(&c.Mash, "mash", c.Mash, "MASH noise-shaping stage: -3..0 forces that many stages, 1..3 is the ceiling for automatic selection")
	fs.BoolVar(&c.PCM, "pcm", c.PCM, "use PCM instead of PWM for DMA pacing")
	fs.IntVar(&c.Timeout, "timeout", c.Timeout, "fill-burst timeout in symbol periods, -1 to run forever")
	fs.StringVar(&c.PeripheralBaseOverride, "peripheral-base-override", c.PeripheralBaseOverride, "force a SoC generation (bcm2835, bcm2711) instead of udev autodetection")
	fs.IntVar(&c.HamlibRig, "hamlib-rig", c.HamlibRig, "Hamlib rig model ID for external PTT keying, -1 to disable")
	fs.StringVar(&c.HamlibPort, "hamlib-port", c.HamlibPort, "Hamlib rig device path or host:port")
	fs.IntVar(&c.HamlibBaud, "hamlib-baud", c.HamlibBaud, "override Hamlib's default serial rate, 0 to leave it alone")
	fs.BoolVar(&c.Foreground, "foreground", c.Foreground, "run an interactive raw-mode console instead of detaching")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug-level logging")
	fs.StringVar(&c.TimestampFormat, "timestamp-format", c.TimestampFormat, "strftime timestamp format (stored in the config; no output is prefixed with it)")
	fs.IntVar(&c.StatusTCPPort, "status-tcp-port", c.StatusTCPPort, "advertise a TCP mirror of the status socket on this port via DNS-SD, 0 to disable")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML config file; flags override values loaded from it")
}

// LoadConfigFile returns DefaultConfig with a YAML file's values merged
// over it. It sees no flags: deciding whether parsed flags or file values
// win is left to the caller (see cmd/psk31tx).
func LoadConfigFile(path string) (Config, error) {
	c := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("psk31: failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("psk31: failed to parse config file %s: %w", path, err)
	}

	return c, nil
}
