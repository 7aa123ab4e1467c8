package app

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/rsp-tools/internal/sdr"
	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
)

func TestNewConfigFromCLIDefaults(t *testing.T) {
	c, err := NewConfigFromCLI(nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, c.Recording.Duration)
	assert.Equal(t, 5*time.Millisecond, c.Recording.TimeDiffThreshold)
	assert.Equal(t, time.Second, c.Recording.DrainDelay)
	assert.Empty(t, c.Recording.Output)
	assert.False(t, c.Recording.TimeDiff)
	assert.Equal(t, 2e6, c.Device.SampleRate)
	assert.Equal(t, sdr.GainReduction{DB: 40}, c.Device.GainReduction)
}

func TestNewConfigFromCLIFlags(t *testing.T) {
	args := []string{
		"-s", "1000AAAA",
		"-r", "6e6",
		"-b", "1536",
		"-g", "agc",
		"-l", "3",
		"-I",
		"-f", "137.5e6",
		"-x", "30",
		"-o", "noaa-SAMPLERATEk.iq16",
		"-L",
		"-histogram", "noaa.png",
		"-db", "journal.sqlite",
	}

	c, err := NewConfigFromCLI(args, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "1000AAAA", c.Device.Serial)
	assert.Equal(t, sdrplay.BW1_536, c.Device.IFBandwidth)
	assert.True(t, c.Device.GainReduction.AGC)
	assert.Equal(t, sdr.AGCMode, c.Device.Params().AGC)
	assert.Equal(t, uint8(3), c.Device.LNAState)
	assert.False(t, c.Device.IQEnable)
	assert.True(t, c.Device.DCEnable)
	assert.Equal(t, 30*time.Second, c.Recording.Duration)
	assert.Equal(t, "noaa-SAMPLERATEk.iq16", c.Recording.Output)
	assert.True(t, c.Recording.Debug)
	assert.Equal(t, "noaa.png", c.Recording.Histogram)
	assert.Equal(t, "journal.sqlite", c.Recording.Journal)
}

func TestNewConfigFromCLIErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "invalid gain", args: []string{"-g", "auto"}},
		{name: "gain out of range", args: []string{"-g", "19"}},
		{name: "invalid LNA state", args: []string{"-l", "256"}},
		{name: "LNA out of range", args: []string{"-l", "28"}},
		{name: "zero streaming time", args: []string{"-x", "0"}},
		{name: "invalid streaming time", args: []string{"-x", "1.5"}},
		{name: "histogram in time difference mode", args: []string{"-T", "-histogram", "h.png"}},
		{name: "invalid DC offset tuner", args: []string{"-y", "3,0,1"}},
		{name: "extra arguments", args: []string{"-x", "5", "out.iq16"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigFromCLI(tt.args, io.Discard)
			require.Error(t, err)
		})
	}
}

func TestNewConfigFromCLIHelp(t *testing.T) {
	_, err := NewConfigFromCLI([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestNewConfigFromCLIWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recorder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device:
  sampleRate: 6000000
  gainReduction: AGC
  frequency: 137500000
recording:
  duration: 2m
  output: capture-SAMPLERATE.iq16
  timeDiff: true
  timeDiffThreshold: 2ms
`), 0o644))

	c, err := NewConfigFromCLI([]string{"-c", path, "-g", "35"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 6e6, c.Device.SampleRate)
	assert.Equal(t, 137.5e6, c.Device.Frequency)
	assert.Equal(t, sdr.GainReduction{DB: 35}, c.Device.GainReduction, "flags override the file")
	assert.Equal(t, 2*time.Minute, c.Recording.Duration)
	assert.Equal(t, "capture-SAMPLERATE.iq16", c.Recording.Output)
	assert.True(t, c.Recording.TimeDiff)
	assert.Equal(t, 2*time.Millisecond, c.Recording.TimeDiffThreshold)
	assert.Equal(t, time.Second, c.Recording.DrainDelay)
}
