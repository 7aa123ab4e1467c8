package sdr

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/rsp-tools/internal/sdr/driver"
	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
)

const (
	SampleRateMin = 2_000_000
	SampleRateMax = 10_660_000

	FrequencyMin = 1_000
	FrequencyMax = 2_000_000_000

	GainReductionMin = 20
	GainReductionMax = 59

	LNAStateMax = 27

	DecimationMax = 64

	// DefaultSampleRate is 2 MHz, the lowest rate the hardware supports
	// without decimation.
	DefaultSampleRate = 2_000_000
	DefaultFrequency  = 100_000_000

	DefaultGainReduction = 40

	// AGCMode is the loop used when the gain reduction is given as "AGC".
	AGCMode = sdrplay.AGC50Hz
)

// DefaultDCOffsetTuner is the tuner DC offset compensation the tools apply
// unless told otherwise.
var DefaultDCOffsetTuner = sdrplay.DCOffsetTuner{
	DCCal:           3,
	SpeedUp:         0,
	TrackTime:       1,
	RefreshRateTime: 2048,
}

// GainReduction is an IF gain reduction in dB, or AGC.
type GainReduction struct {
	AGC bool
	DB  int
}

// ParseGainReduction parses "AGC" (any case) or a gain reduction in dB.
func ParseGainReduction(s string) (GainReduction, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "AGC") {
		return GainReduction{AGC: true}, nil
	}

	db, err := strconv.Atoi(s)
	if err != nil {
		return GainReduction{}, fmt.Errorf("sdr.GainReduction: invalid value %q: want dB or AGC", s)
	}
	return GainReduction{DB: db}, nil
}

func (g GainReduction) String() string {
	if g.AGC {
		return "AGC"
	}
	return strconv.Itoa(g.DB)
}

func (g *GainReduction) Set(s string) error {
	v, err := ParseGainReduction(s)
	if err != nil {
		return err
	}
	*g = v
	return nil
}

func (g *GainReduction) UnmarshalYAML(value *yaml.Node) error {
	return g.Set(value.Value)
}

func (g GainReduction) MarshalYAML() (interface{}, error) {
	if g.AGC {
		return "AGC", nil
	}
	return g.DB, nil
}

// Config is the receive channel configuration written into the device's
// parameter block.
type Config struct {
	Serial        string                `yaml:"serial"`        // -s serial number (default: first device)
	SampleRate    float64               `yaml:"sampleRate"`    // -r sample rate (Hz)
	Decimation    uint8                 `yaml:"decimation"`    // -d decimation factor (1 disables decimation)
	IFFrequency   sdrplay.IFType        `yaml:"ifFrequency"`   // -i IF frequency (kHz)
	IFBandwidth   sdrplay.Bandwidth     `yaml:"ifBandwidth"`   // -b IF bandwidth (kHz)
	GainReduction GainReduction         `yaml:"gainReduction"` // -g IF gain reduction (dB) or AGC
	LNAState      uint8                 `yaml:"lnaState"`      // -l LNA state
	DCEnable      bool                  `yaml:"dcEnable"`      // -D disables
	IQEnable      bool                  `yaml:"iqEnable"`      // -I disables
	DCOffsetTuner sdrplay.DCOffsetTuner `yaml:"dcOffsetTuner"` // -y dcCal,speedUp,trackTime,refreshRateTime
	Frequency     float64               `yaml:"frequency"`     // -f center frequency (Hz)
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		SampleRate:    DefaultSampleRate,
		Decimation:    1,
		IFFrequency:   sdrplay.IFZero,
		IFBandwidth:   sdrplay.BW0_200,
		GainReduction: GainReduction{DB: DefaultGainReduction},
		LNAState:      0,
		DCEnable:      true,
		IQEnable:      true,
		DCOffsetTuner: DefaultDCOffsetTuner,
		Frequency:     DefaultFrequency,
	}
}

func (c *Config) Validate() error {
	if c.SampleRate < SampleRateMin || c.SampleRate > SampleRateMax {
		return driver.NewConfigError(fmt.Sprintf("sdr.Config: invalid sample rate: %.0f, must be between %d and %d Hz", c.SampleRate, SampleRateMin, SampleRateMax))
	}
	if c.Decimation == 0 || c.Decimation > DecimationMax || c.Decimation&(c.Decimation-1) != 0 {
		return driver.NewConfigError(fmt.Sprintf("sdr.Config: invalid decimation: %d, must be a power of two between 1 and %d", c.Decimation, DecimationMax))
	}
	if !c.IFFrequency.Valid() {
		return driver.NewConfigError(fmt.Sprintf("sdr.Config: invalid IF frequency: %d kHz", c.IFFrequency))
	}
	if !c.IFBandwidth.Valid() {
		return driver.NewConfigError(fmt.Sprintf("sdr.Config: invalid IF bandwidth: %d kHz", c.IFBandwidth))
	}
	if !c.GainReduction.AGC && (c.GainReduction.DB < GainReductionMin || c.GainReduction.DB > GainReductionMax) {
		return driver.NewConfigError(fmt.Sprintf("sdr.Config: invalid gain reduction: %d, must be between %d and %d dB", c.GainReduction.DB, GainReductionMin, GainReductionMax))
	}
	if c.LNAState > LNAStateMax {
		return driver.NewConfigError(fmt.Sprintf("sdr.Config: invalid LNA state: %d, must be at most %d", c.LNAState, LNAStateMax))
	}
	if c.DCOffsetTuner.TrackTime < 0 || c.DCOffsetTuner.RefreshRateTime < 0 {
		return driver.NewConfigError("sdr.Config: DC offset tuner times must not be negative")
	}
	if c.Frequency < FrequencyMin || c.Frequency > FrequencyMax {
		return driver.NewConfigError(fmt.Sprintf("sdr.Config: invalid frequency: %.0f, must be between %d and %d Hz", c.Frequency, FrequencyMin, FrequencyMax))
	}

	return nil
}

// Params returns the parameter block mirror for c.
func (c *Config) Params() *sdrplay.Params {
	p := sdrplay.Params{
		SampleRateHz: c.SampleRate,
		Decimation: sdrplay.Decimation{
			Enable: c.Decimation > 1,
			Factor: c.Decimation,
		},
		IFType:        c.IFFrequency,
		Bandwidth:     c.IFBandwidth,
		AGC:           sdrplay.AGCDisable,
		GainReduction: c.GainReduction.DB,
		LNAState:      c.LNAState,
		DCEnable:      c.DCEnable,
		IQEnable:      c.IQEnable,
		DCOffsetTuner: c.DCOffsetTuner,
		RFHz:          c.Frequency,
	}
	if c.GainReduction.AGC {
		p.AGC = AGCMode
	}
	return &p
}

func (c *Config) String() string {
	return fmt.Sprintf("SR=%.0f LO=%.0f BW=%d If=%d Dec=%d IFgain=%s LNAstate=%d DCenable=%t IQenable=%t dcCal=%d speedUp=%d trackTime=%d refreshRateTime=%d",
		c.SampleRate,
		c.Frequency,
		c.IFBandwidth,
		c.IFFrequency,
		c.Decimation,
		c.GainReduction,
		c.LNAState,
		c.DCEnable,
		c.IQEnable,
		c.DCOffsetTuner.DCCal,
		c.DCOffsetTuner.SpeedUp,
		c.DCOffsetTuner.TrackTime,
		c.DCOffsetTuner.RefreshRateTime)
}
