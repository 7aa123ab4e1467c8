package app

import (
	"flag"
	"io"
	"math"
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

	assert.Equal(t, sdr.IntList{40}, c.GainChanges.Gains)
	assert.Equal(t, sdr.IntList{0}, c.GainChanges.LNAStates)
	assert.Equal(t, uint32(math.MaxUint32), c.GainChanges.Count)
	assert.Equal(t, 10*time.Millisecond, c.GainChanges.UpdateTimeout)
	assert.Equal(t, time.Microsecond, c.GainChanges.PollInterval)
	assert.Zero(t, c.GainChanges.Wait)
	assert.Equal(t, 2e6, c.Device.SampleRate)
	assert.Equal(t, sdr.GainReduction{DB: 40}, c.Device.GainReduction)
	assert.Equal(t, "info", c.Settings.LogLevel)
}

func TestNewConfigFromCLIFlags(t *testing.T) {
	args := []string{
		"-s", "1000AAAA",
		"-r", "6e6",
		"-d", "2",
		"-i", "1620",
		"-b", "1536",
		"-g", "30,45,59",
		"-l", "2,4",
		"-D",
		"-y", "2,1,3,1024",
		"-f", "137.5e6",
		"-n", "5000",
		"-w", "250",
		"-L", "-V",
		"-db", "journal.sqlite",
		"-update-timeout", "20ms",
	}

	c, err := NewConfigFromCLI(args, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "1000AAAA", c.Device.Serial)
	assert.Equal(t, 6e6, c.Device.SampleRate)
	assert.Equal(t, uint8(2), c.Device.Decimation)
	assert.Equal(t, sdrplay.IF1620, c.Device.IFFrequency)
	assert.Equal(t, sdrplay.BW1_536, c.Device.IFBandwidth)
	assert.False(t, c.Device.DCEnable)
	assert.True(t, c.Device.IQEnable)
	assert.Equal(t, sdrplay.DCOffsetTuner{DCCal: 2, SpeedUp: 1, TrackTime: 3, RefreshRateTime: 1024}, c.Device.DCOffsetTuner)
	assert.Equal(t, 137.5e6, c.Device.Frequency)

	assert.Equal(t, sdr.IntList{30, 45, 59}, c.GainChanges.Gains)
	assert.Equal(t, sdr.IntList{2, 4}, c.GainChanges.LNAStates)
	assert.Equal(t, uint32(5000), c.GainChanges.Count)
	assert.Equal(t, 250*time.Microsecond, c.GainChanges.Wait)
	assert.True(t, c.GainChanges.Debug)
	assert.True(t, c.GainChanges.Verbose)
	assert.Equal(t, "journal.sqlite", c.GainChanges.Journal)
	assert.Equal(t, 20*time.Millisecond, c.GainChanges.UpdateTimeout)

	// The first change is the initial configuration.
	assert.Equal(t, sdr.GainReduction{DB: 30}, c.Device.GainReduction)
	assert.Equal(t, uint8(2), c.Device.LNAState)
}

func TestNewConfigFromCLIErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "invalid gain", args: []string{"-g", "40,x"}},
		{name: "gain out of range", args: []string{"-g", "40,60"}},
		{name: "LNA out of range", args: []string{"-l", "28"}},
		{name: "invalid count", args: []string{"-n", "-1"}},
		{name: "invalid wait", args: []string{"-w", "soon"}},
		{name: "invalid sample rate", args: []string{"-r", "1e6"}},
		{name: "unknown flag", args: []string{"-q"}},
		{name: "extra arguments", args: []string{"extra"}},
		{name: "missing config file", args: []string{"-c", "/nonexistent/config.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigFromCLI(tt.args, io.Discard)
			require.Error(t, err)
			assert.NotErrorIs(t, err, flag.ErrHelp)
		})
	}
}

func TestNewConfigFromCLIHelp(t *testing.T) {
	_, err := NewConfigFromCLI([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestNewConfigFromCLIWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gainchanges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
settings:
  logLevel: debug
device:
  serial: "2000BBBB"
  sampleRate: 8000000
  ifBandwidth: 5000
  dcOffsetTuner: {dcCal: 4, speedUp: 0, trackTime: 2, refreshRateTime: 512}
gainChanges:
  gains: [20, 59]
  lnaStates: "1,2,3"
  count: 100
  wait: 1ms
  updateTimeout: 50ms
`), 0o644))

	c, err := NewConfigFromCLI([]string{"-c", path, "-n", "7"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, path, c.ConfigPath)
	assert.Equal(t, "debug", c.Settings.LogLevel)
	assert.Equal(t, "2000BBBB", c.Device.Serial)
	assert.Equal(t, 8e6, c.Device.SampleRate)
	assert.Equal(t, sdrplay.BW5_000, c.Device.IFBandwidth)
	assert.Equal(t, 512, c.Device.DCOffsetTuner.RefreshRateTime)
	assert.True(t, c.Device.DCEnable, "defaults survive a partial file")
	assert.Equal(t, sdr.IntList{20, 59}, c.GainChanges.Gains)
	assert.Equal(t, sdr.IntList{1, 2, 3}, c.GainChanges.LNAStates)
	assert.Equal(t, time.Millisecond, c.GainChanges.Wait)
	assert.Equal(t, 50*time.Millisecond, c.GainChanges.UpdateTimeout)
	assert.Equal(t, uint32(7), c.GainChanges.Count, "flags override the file")
}
