package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/rsp-tools/internal/sdr"
)

const (
	DefaultUpdateTimeout = 10 * time.Millisecond
	DefaultPollInterval  = time.Microsecond
)

// Config represents the gain cycler configuration
type Config struct {
	ConfigPath string `yaml:"-"`

	Settings    Settings          `yaml:"settings"`
	Device      sdr.Config        `yaml:"device"`
	GainChanges GainChangesConfig `yaml:"gainChanges"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// GainChangesConfig represents the gain cycling settings
type GainChangesConfig struct {
	Gains         sdr.IntList   `yaml:"gains"`         // -g IF gain reductions (dB), cycled
	LNAStates     sdr.IntList   `yaml:"lnaStates"`     // -l LNA states, cycled
	Count         uint32        `yaml:"count"`         // -n number of gain changes, the first being the initial configuration
	Wait          time.Duration `yaml:"wait"`          // -w wait between gain changes
	UpdateTimeout time.Duration `yaml:"updateTimeout"` // how long to wait for the stream to report a change
	PollInterval  time.Duration `yaml:"pollInterval"`  // unit of the elapsed ticks logged in verbose mode
	Debug         bool          `yaml:"debug"`         // -L enable the API debug log
	Verbose       bool          `yaml:"verbose"`       // -V log every change
	Journal       string        `yaml:"journal"`       // -db run journal path
}

func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Device:   sdr.DefaultConfig(),
		GainChanges: GainChangesConfig{
			Gains:         sdr.IntList{sdr.DefaultGainReduction},
			LNAStates:     sdr.IntList{0},
			Count:         math.MaxUint32,
			UpdateTimeout: DefaultUpdateTimeout,
			PollInterval:  DefaultPollInterval,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c := NewConfig()
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	c.ConfigPath = path

	return c, nil
}

func newFlagSet(c *Config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("gainchanges", flag.ContinueOnError)
	fs.SetOutput(output)

	g := &c.GainChanges
	fs.StringVar(&c.ConfigPath, "c", c.ConfigPath, "Path to the configuration file, flags override its values")
	sdr.BindFlags(fs, &c.Device)
	fs.Var(&g.Gains, "g", "IF gain reduction (dB) <gr>[,<gr>[,...]]")
	fs.Var(&g.LNAStates, "l", "LNA state <lna>[,<lna>[,...]]")
	fs.Func("n", "number of gain changes (default: until the 32-bit counter overflows)", func(s string) error {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid number of gain changes: %q", s)
		}
		g.Count = uint32(n)
		return nil
	})
	fs.Func("w", "wait time between gain changes (in microseconds)", func(s string) error {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid wait time: %q", s)
		}
		g.Wait = time.Duration(n) * time.Microsecond
		return nil
	})
	fs.BoolVar(&g.Debug, "L", g.Debug, "enable SDRplay API debug log level")
	fs.BoolVar(&g.Verbose, "V", g.Verbose, "verbose (shows the elapsed time of each gain change)")
	fs.StringVar(&g.Journal, "db", g.Journal, "Path to the run journal database")
	fs.DurationVar(&g.UpdateTimeout, "update-timeout", g.UpdateTimeout, "how long to wait for a gain change to be reported by the stream")
	fs.DurationVar(&g.PollInterval, "poll-interval", g.PollInterval, "unit of the elapsed time logged in verbose mode")

	return fs
}

// NewConfigFromCLI builds the configuration from the command line. When a
// configuration file is given with -c, it is loaded first and the flags are
// applied on top of it. flag.ErrHelp is returned after -h printed the usage.
func NewConfigFromCLI(args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := newFlagSet(c, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.ConfigPath != "" {
		loaded, err := LoadConfig(c.ConfigPath)
		if err != nil {
			return nil, err
		}

		c = loaded
		fs = newFlagSet(c, output)
		if err = fs.Parse(args); err != nil {
			return nil, err
		}
	}

	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if err := c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}

// Validate checks the gain lists and copies the first gain change, the
// initial configuration, into the device configuration.
func (c *Config) Validate() error {
	g := &c.GainChanges

	if len(g.Gains) == 0 {
		return errors.New("app.Config: at least one IF gain reduction is required")
	}
	for _, gr := range g.Gains {
		if gr < sdr.GainReductionMin || gr > sdr.GainReductionMax {
			return fmt.Errorf("app.Config: invalid IF gain reduction: %d, must be between %d and %d dB", gr, sdr.GainReductionMin, sdr.GainReductionMax)
		}
	}

	if len(g.LNAStates) == 0 {
		return errors.New("app.Config: at least one LNA state is required")
	}
	for _, lna := range g.LNAStates {
		if lna < 0 || lna > sdr.LNAStateMax {
			return fmt.Errorf("app.Config: invalid LNA state: %d, must be between 0 and %d", lna, sdr.LNAStateMax)
		}
	}

	if g.UpdateTimeout <= 0 {
		return fmt.Errorf("app.Config: invalid update timeout: %s", g.UpdateTimeout)
	}
	if g.PollInterval <= 0 {
		return fmt.Errorf("app.Config: invalid poll interval: %s", g.PollInterval)
	}
	if g.Wait < 0 {
		return fmt.Errorf("app.Config: invalid wait time: %s", g.Wait)
	}

	c.Device.GainReduction = sdr.GainReduction{DB: g.Gains[0]}
	c.Device.LNAState = uint8(g.LNAStates[0])

	return c.Device.Validate()
}

// Schedule returns the gain schedule of the configuration.
func (c *Config) Schedule() Schedule {
	return Schedule{Gains: c.GainChanges.Gains, LNAStates: c.GainChanges.LNAStates}
}
