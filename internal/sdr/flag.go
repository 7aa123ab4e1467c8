package sdr

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
)

// IntList is a comma separated list of integers, e.g. "40,50,59".
type IntList []int

// ParseIntList parses a comma separated list of integers.
func ParseIntList(s string) (IntList, error) {
	var list IntList
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("sdr.IntList: invalid value %q", field)
		}
		list = append(list, v)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("sdr.IntList: empty list %q", s)
	}
	return list, nil
}

func (l *IntList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *IntList) Set(s string) error {
	v, err := ParseIntList(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// UnmarshalYAML accepts a sequence of integers or a comma separated scalar.
func (l *IntList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var v []int
		if err := value.Decode(&v); err != nil {
			return fmt.Errorf("sdr.IntList: %w", err)
		}
		*l = v
		return nil
	}
	return l.Set(value.Value)
}

// ParseDCOffsetTuner parses "dcCal,speedUp,trackTime,refreshRateTime".
func ParseDCOffsetTuner(s string) (sdrplay.DCOffsetTuner, error) {
	var t sdrplay.DCOffsetTuner

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return t, fmt.Errorf("sdr.DCOffsetTuner: want dcCal,speedUp,trackTime,refreshRateTime: %q given", s)
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return t, fmt.Errorf("sdr.DCOffsetTuner: invalid value %q in %q", p, s)
		}
		v[i] = n
	}
	if v[0] > 255 || v[1] > 255 {
		return t, fmt.Errorf("sdr.DCOffsetTuner: dcCal and speedUp must fit in a byte: %q given", s)
	}

	t.DCCal = uint8(v[0])
	t.SpeedUp = uint8(v[1])
	t.TrackTime = v[2]
	t.RefreshRateTime = v[3]
	return t, nil
}

type dcOffsetTunerValue struct {
	t *sdrplay.DCOffsetTuner
}

func (v dcOffsetTunerValue) String() string {
	if v.t == nil {
		return ""
	}
	return fmt.Sprintf("%d,%d,%d,%d", v.t.DCCal, v.t.SpeedUp, v.t.TrackTime, v.t.RefreshRateTime)
}

func (v dcOffsetTunerValue) Set(s string) error {
	t, err := ParseDCOffsetTuner(s)
	if err != nil {
		return err
	}
	*v.t = t
	return nil
}

func parseUint8(name string, dst *uint8) func(string) error {
	return func(s string) error {
		n, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return fmt.Errorf("invalid %s: %q", name, s)
		}
		*dst = uint8(n)
		return nil
	}
}

// BindFlags registers the channel configuration flags shared by the tools
// (-s -r -d -i -b -D -I -y -f) on fs, using the current values of c as
// defaults. Gain and LNA flags differ between the tools and are bound by
// them.
func BindFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.Serial, "s", c.Serial, "serial number (default: first available device)")
	fs.Float64Var(&c.SampleRate, "r", c.SampleRate, "sample rate (Hz)")
	fs.Func("d", fmt.Sprintf("decimation (default: %d)", c.Decimation), parseUint8("decimation", &c.Decimation))
	fs.Func("i", fmt.Sprintf("IF frequency in kHz (default: %d)", c.IFFrequency), func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid IF frequency: %q", s)
		}
		c.IFFrequency = sdrplay.IFType(n)
		return nil
	})
	fs.Func("b", fmt.Sprintf("IF bandwidth in kHz (default: %d)", c.IFBandwidth), func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid IF bandwidth: %q", s)
		}
		c.IFBandwidth = sdrplay.Bandwidth(n)
		return nil
	})
	fs.BoolFunc("D", "disable post tuner DC offset compensation (default: enabled)", func(string) error {
		c.DCEnable = false
		return nil
	})
	fs.BoolFunc("I", "disable post tuner I/Q balance compensation (default: enabled)", func(string) error {
		c.IQEnable = false
		return nil
	})
	fs.Var(dcOffsetTunerValue{&c.DCOffsetTuner}, "y", "tuner DC offset compensation parameters <dcCal,speedUp,trackTime,refreshRateTime>")
	fs.Float64Var(&c.Frequency, "f", c.Frequency, "center frequency (Hz)")
}

// ParseLNAState returns a flag.Func parser writing an LNA state into dst.
func ParseLNAState(dst *uint8) func(string) error {
	return parseUint8("LNA state", dst)
}
