package app

import (
	"context"
	"encoding/binary"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
	"github.com/roman-kulish/rsp-tools/internal/sdr"
	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay/sdrplaytest"
	"github.com/roman-kulish/rsp-tools/internal/storage"
)

// syncBuffer is a log sink shared with the fake's callback goroutine.
type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	var buf syncBuffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func testSamples(n uint64) (int16, int16) {
	return int16(n%512) - 256, -int16(n % 100)
}

func newTestFake() *sdrplaytest.Fake {
	return &sdrplaytest.Fake{
		DeviceList: []sdrplay.Device{sdrplaytest.NewDevice("1000AAAA", sdrplay.RSP1A)},
		BlockSize:  1000,
		Interval:   time.Millisecond,
		Samples:    testSamples,
	}
}

func newTestConfig(t *testing.T) *Config {
	t.Helper()

	c := NewConfig()
	c.Recording.Duration = 50 * time.Millisecond
	c.Recording.DrainDelay = 0
	require.NoError(t, c.Validate())
	return c
}

func TestRunRecordsAndRenames(t *testing.T) {
	dir := t.TempDir()

	config := newTestConfig(t)
	config.Recording.Output = filepath.Join(dir, "capture-SAMPLERATEk.iq16")
	config.Recording.Histogram = filepath.Join(dir, "capture.png")
	config.Recording.Journal = filepath.Join(dir, "journal.sqlite")

	fake := newTestFake()
	logger, logs := newTestLogger()
	require.NoError(t, Run(context.Background(), config, fake, logger))

	_, err := os.Stat(config.Recording.Output)
	assert.True(t, os.IsNotExist(err), "the placeholder file is renamed")

	matches, err := filepath.Glob(filepath.Join(dir, "capture-*k.iq16"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Regexp(t, regexp.MustCompile(`capture-\d+k\.iq16$`), matches[0])

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Zero(t, len(data)%4000, "whole blocks of interleaved I/Q pairs")

	for n := 0; n < 3; n++ {
		wantI, wantQ := testSamples(uint64(n))
		assert.Equal(t, wantI, int16(binary.LittleEndian.Uint16(data[4*n:])))
		assert.Equal(t, wantQ, int16(binary.LittleEndian.Uint16(data[4*n+2:])))
	}

	out := logs.String()
	assert.Contains(t, out, "total_samples=")
	assert.Contains(t, out, "rounded_sample_rate_kHz=")
	assert.Contains(t, out, `I_range=[-256,255]`)
	assert.Contains(t, out, `Q_range=[-99,0]`)
	assert.Contains(t, out, "written="+humanize.IBytes(uint64(len(data))))

	f, err := os.Open(config.Recording.Histogram)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	require.NoError(t, err)

	store := storage.NewSqliteStore(config.Recording.Journal)
	defer store.Close()

	sess, err := store.Session(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, measurement.ToolRecorder, sess.Tool)
	assert.Equal(t, measurement.StatusDone, sess.Status)

	rec, err := store.Recording(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, measurement.ModeRecord, rec.Mode)
	assert.Equal(t, matches[0], rec.Path)
	assert.Equal(t, uint64(len(data)/4), rec.TotalSamples)
	assert.Zero(t, rec.DroppedSamples)
	assert.Equal(t, int16(-256), rec.IMin)
	assert.Equal(t, int16(255), rec.IMax)

	assert.Contains(t, out, fmt.Sprintf(`msg="journal written" session=1 status=done mode=record path=%s samples=%d`, matches[0], rec.TotalSamples))

	calls := fake.Calls()
	assert.Equal(t, []string{"Uninit", "LockDeviceAPI", "ReleaseDevice", "UnlockDeviceAPI", "Close"}, calls[len(calls)-5:])
}

func TestRunStatisticsOnly(t *testing.T) {
	fake := newTestFake()
	fake.Skip = map[int]uint32{2: 42}

	logger, logs := newTestLogger()
	require.NoError(t, Run(context.Background(), newTestConfig(t), fake, logger))

	out := logs.String()
	assert.Contains(t, out, "total_samples=")
	assert.Contains(t, out, "dropped samples")
	assert.Contains(t, out, "dropped=42")
	assert.Contains(t, out, "dropped_samples=42")
	assert.NotContains(t, out, "written=", "nothing is written without an output file")
}

func TestRunTimeDiff(t *testing.T) {
	dir := t.TempDir()

	config := newTestConfig(t)
	config.Recording.TimeDiff = true
	config.Recording.TimeDiffThreshold = 5 * time.Millisecond
	config.Recording.Output = filepath.Join(dir, "unused.iq16")

	fake := newTestFake()
	fake.Interval = 10 * time.Millisecond

	logger, logs := newTestLogger()
	require.NoError(t, Run(context.Background(), config, fake, logger))

	out := logs.String()
	assert.Contains(t, out, "callback gap")
	assert.Contains(t, out, "numSamples=1000")
	assert.Contains(t, out, "time difference measurement done")
	assert.NotContains(t, out, "total_samples=")

	_, err := os.Stat(config.Recording.Output)
	assert.True(t, os.IsNotExist(err), "no output in time difference mode")
}

func TestRunOutputOpenFailureUnwinds(t *testing.T) {
	config := newTestConfig(t)
	config.Recording.Output = filepath.Join(t.TempDir(), "missing", "capture.iq16")

	fake := newTestFake()
	err := Run(context.Background(), config, fake, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening output file")

	// Only the verification pass initialised the device.
	calls := fake.Calls()
	assert.Equal(t, []string{"Init", "Params", "Uninit", "LockDeviceAPI", "ReleaseDevice", "UnlockDeviceAPI", "Close"}, calls[len(calls)-7:])
}

func TestRunVerificationMismatch(t *testing.T) {
	dir := t.TempDir()

	config := newTestConfig(t)
	config.Device.GainReduction = sdr.GainReduction{DB: 59}
	config.Recording.Output = filepath.Join(dir, "capture.iq16")

	fake := newTestFake()
	fake.Clamp = func(p *sdrplay.Params) {
		p.GainReduction = 50
	}

	err := Run(context.Background(), config, fake, nil)

	var mismatch *sdr.MismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Len(t, mismatch.Mismatches, 1)
	assert.Equal(t, "gain.gRdB", mismatch.Mismatches[0].Field)

	_, err = os.Stat(config.Recording.Output)
	assert.True(t, os.IsNotExist(err), "nothing is recorded after a mismatch")
}

func TestRunCancelled(t *testing.T) {
	config := newTestConfig(t)
	config.Recording.Duration = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	fake := newTestFake()
	logger, logs := newTestLogger()

	start := time.Now()
	require.NoError(t, Run(ctx, config, fake, logger))

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, logs.String(), "interrupted")
	assert.False(t, fake.Locked())
}

func TestRenameOutput(t *testing.T) {
	logger, logs := newTestLogger()

	t.Run("unknown rate keeps the name", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "x-SAMPLERATE.iq16")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		assert.Equal(t, path, renameOutput(path, 0, logger))
		assert.FileExists(t, path)
		assert.Contains(t, logs.String(), "sample rate unknown")
	})

	t.Run("rename failure is logged", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gone-SAMPLERATE.iq16")

		assert.Equal(t, path, renameOutput(path, 6e6, logger))
		assert.Contains(t, logs.String(), "rename failed")
	})

	t.Run("renamed", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "x-SAMPLERATEk.iq16")
		require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4}, 0o644))

		got := renameOutput(path, 6_000_400, logger)
		assert.Equal(t, filepath.Join(dir, "x-6000k.iq16"), got)
		assert.FileExists(t, got)
	})

	t.Run("no placeholder", func(t *testing.T) {
		assert.Equal(t, "plain.iq16", renameOutput("plain.iq16", 6e6, logger))
	})
}
