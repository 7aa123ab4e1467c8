package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/rsp-tools/internal/sdr"
	"github.com/roman-kulish/rsp-tools/internal/stream"
)

const (
	DefaultDuration   = 10 * time.Second
	DefaultDrainDelay = time.Second
)

// Config represents the recorder configuration
type Config struct {
	ConfigPath string `yaml:"-"`

	Settings  Settings        `yaml:"settings"`
	Device    sdr.Config      `yaml:"device"`
	Recording RecordingConfig `yaml:"recording"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// RecordingConfig represents the streaming settings
type RecordingConfig struct {
	Duration          time.Duration `yaml:"duration"`          // -x streaming time
	Output            string        `yaml:"output"`            // -o output file, SAMPLERATE is replaced by the measured rate in kHz
	TimeDiff          bool          `yaml:"timeDiff"`          // -T measure callback time differences only
	TimeDiffThreshold time.Duration `yaml:"timeDiffThreshold"` // gaps above this are reported in time difference mode
	Histogram         string        `yaml:"histogram"`         // PNG file for the I/Q amplitude histogram
	Debug             bool          `yaml:"debug"`             // -L enable the API debug log
	Journal           string        `yaml:"journal"`           // -db run journal path
	DrainDelay        time.Duration `yaml:"drainDelay"`        // wait after stopping the stream before closing the output
}

func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Device:   sdr.DefaultConfig(),
		Recording: RecordingConfig{
			Duration:          DefaultDuration,
			TimeDiffThreshold: stream.DefaultTimeDiffThreshold,
			DrainDelay:        DefaultDrainDelay,
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
	fs := flag.NewFlagSet("recorder", flag.ContinueOnError)
	fs.SetOutput(output)

	r := &c.Recording
	fs.StringVar(&c.ConfigPath, "c", c.ConfigPath, "Path to the configuration file, flags override its values")
	sdr.BindFlags(fs, &c.Device)
	fs.Var(&c.Device.GainReduction, "g", "IF gain reduction in dB or AGC")
	fs.Func("l", fmt.Sprintf("LNA state (default: %d)", c.Device.LNAState), sdr.ParseLNAState(&c.Device.LNAState))
	fs.Func("x", fmt.Sprintf("streaming time in seconds (default: %.0f)", r.Duration.Seconds()), func(s string) error {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid streaming time: %q", s)
		}
		r.Duration = time.Duration(n) * time.Second
		return nil
	})
	fs.StringVar(&r.Output, "o", r.Output, "output file ('"+stream.SampleRatePlaceholder+"' will be replaced by the estimated sample rate in kHz)")
	fs.BoolVar(&r.Debug, "L", r.Debug, "enable SDRplay API debug log level")
	fs.BoolVar(&r.TimeDiff, "T", r.TimeDiff, "measure callback time differences only")
	fs.DurationVar(&r.TimeDiffThreshold, "time-diff-threshold", r.TimeDiffThreshold, "callback gap reported in time difference mode")
	fs.StringVar(&r.Histogram, "histogram", r.Histogram, "write the I/Q amplitude histogram to this PNG file")
	fs.StringVar(&r.Journal, "db", r.Journal, "Path to the run journal database")

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

func (c *Config) Validate() error {
	r := &c.Recording

	if r.Duration <= 0 {
		return fmt.Errorf("app.Config: invalid streaming time: %s", r.Duration)
	}
	if r.TimeDiffThreshold <= 0 {
		return fmt.Errorf("app.Config: invalid time difference threshold: %s", r.TimeDiffThreshold)
	}
	if r.DrainDelay < 0 {
		return fmt.Errorf("app.Config: invalid drain delay: %s", r.DrainDelay)
	}
	if r.TimeDiff && r.Histogram != "" {
		return errors.New("app.Config: the histogram is not collected in time difference mode")
	}

	return c.Device.Validate()
}
