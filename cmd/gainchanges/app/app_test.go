package app

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

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
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func newTestFake() *sdrplaytest.Fake {
	return &sdrplaytest.Fake{
		DeviceList:     []sdrplay.Device{sdrplaytest.NewDevice("1000AAAA", sdrplay.RSP1A)},
		BlockSize:      336,
		Interval:       100 * time.Microsecond,
		AckGainUpdates: true,
	}
}

func newTestConfig(t *testing.T, count uint32) *Config {
	t.Helper()

	c := NewConfig()
	c.GainChanges.Gains = sdr.IntList{40, 50, 59}
	c.GainChanges.LNAStates = sdr.IntList{0, 1}
	c.GainChanges.Count = count
	c.GainChanges.UpdateTimeout = time.Second
	require.NoError(t, c.Validate())
	return c
}

func TestRunCyclesGains(t *testing.T) {
	fake := newTestFake()
	config := newTestConfig(t, 6)
	config.GainChanges.Journal = filepath.Join(t.TempDir(), "journal.sqlite")
	config.GainChanges.Verbose = true

	logger, logs := newTestLogger()
	require.NoError(t, Run(context.Background(), config, fake, logger))

	want := []sdrplaytest.Update{
		{Tuner: sdrplay.TunerA, Reason: sdrplay.UpdateTunerGr, GainReduction: 50, LNAState: 1},
		{Tuner: sdrplay.TunerA, Reason: sdrplay.UpdateTunerGr, GainReduction: 59, LNAState: 0},
		{Tuner: sdrplay.TunerA, Reason: sdrplay.UpdateTunerGr, GainReduction: 40, LNAState: 1},
		{Tuner: sdrplay.TunerA, Reason: sdrplay.UpdateTunerGr, GainReduction: 50, LNAState: 0},
		{Tuner: sdrplay.TunerA, Reason: sdrplay.UpdateTunerGr, GainReduction: 59, LNAState: 1},
	}
	assert.Equal(t, want, fake.Updates())

	calls := fake.Calls()
	assert.Equal(t, []string{"Uninit", "LockDeviceAPI", "ReleaseDevice", "UnlockDeviceAPI", "Close"}, calls[len(calls)-5:])
	assert.False(t, fake.Locked())

	assert.NotContains(t, logs.String(), "gain change update timeout")
	assert.Contains(t, logs.String(), "grChanged")
	assert.Contains(t, logs.String(), "reset")
	assert.Contains(t, logs.String(), "changes=5 timeouts=0")
	assert.Contains(t, logs.String(), `msg="journal written" session=1 status=done changes=5 timeouts=0`)

	// The journal holds every change, all acknowledged.
	store := storage.NewSqliteStore(config.GainChanges.Journal)
	defer store.Close()

	sess, err := store.Session(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, measurement.ToolGainChanges, sess.Tool)
	assert.Equal(t, measurement.StatusDone, sess.Status)
	assert.Equal(t, "1000AAAA", sess.DeviceSerial)

	reader, err := store.ReadGainChanges(context.Background(), sess.ID)
	require.NoError(t, err)
	defer reader.Close()

	var n uint32
	for reader.Next(context.Background()) {
		n++
		gc := reader.Current()
		assert.Equal(t, n, gc.Sequence)
		assert.Equal(t, want[n-1].GainReduction, gc.GainReduction)
		assert.Equal(t, want[n-1].LNAState, gc.LNAState)
		assert.True(t, gc.Acknowledged)
	}
	require.NoError(t, reader.Error())
	assert.Equal(t, uint32(5), n)
}

func TestRunTimeoutIsNotFatal(t *testing.T) {
	fake := newTestFake()
	fake.AckGainUpdates = false

	config := newTestConfig(t, 3)
	config.GainChanges.UpdateTimeout = 2 * time.Millisecond

	logger, logs := newTestLogger()
	require.NoError(t, Run(context.Background(), config, fake, logger))

	assert.Len(t, fake.Updates(), 2)
	assert.Equal(t, 2, strings.Count(logs.String(), "gain change update timeout"))
}

func TestRunReportsSequenceJumps(t *testing.T) {
	fake := newTestFake()
	fake.Skip = map[int]uint32{3: 100}

	// Every acknowledged change takes at least one block, so five changes
	// stream past the skipped block.
	config := newTestConfig(t, 6)

	logger, logs := newTestLogger()
	require.NoError(t, Run(context.Background(), config, fake, logger))

	assert.Len(t, fake.Updates(), 5)
	assert.Contains(t, logs.String(), "jump in sample sequence number")
	assert.Contains(t, logs.String(), "jumps=1")
}

func TestRunUpdateFailureUnwinds(t *testing.T) {
	fake := newTestFake()
	fake.Fail = map[string]error{"Update": errors.New("sdrplay_api_Update() failed: sdrplay_api_NotInitialised")}

	err := Run(context.Background(), newTestConfig(t, 10), fake, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gain change #1")

	calls := fake.Calls()
	assert.Equal(t, []string{"Update", "Uninit", "LockDeviceAPI", "ReleaseDevice", "UnlockDeviceAPI", "Close"}, calls[len(calls)-6:])
}

func TestRunVerificationMismatchStopsBeforeStreaming(t *testing.T) {
	fake := newTestFake()
	fake.Clamp = func(p *sdrplay.Params) {
		p.SampleRateHz = 2e6
		p.LNAState = 3
	}

	config := newTestConfig(t, 10)
	config.Device.SampleRate = 6e6
	require.NoError(t, config.Validate())

	logger, logs := newTestLogger()
	err := Run(context.Background(), config, fake, logger)

	var mismatch *sdr.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Len(t, mismatch.Mismatches, 2)

	initCount := 0
	for _, c := range fake.Calls() {
		if c == "Init" {
			initCount++
		}
	}
	assert.Equal(t, 1, initCount, "only the verification pass initialises the device")
	assert.Empty(t, fake.Updates())
	assert.Contains(t, logs.String(), "unexpected change")
}

func TestRunCancelled(t *testing.T) {
	fake := newTestFake()
	config := newTestConfig(t, 1<<31)
	config.GainChanges.Wait = time.Millisecond
	config.GainChanges.Journal = filepath.Join(t.TempDir(), "journal.sqlite")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	logger, logs := newTestLogger()
	require.NoError(t, Run(ctx, config, fake, logger))

	assert.NotEmpty(t, fake.Updates())
	assert.Contains(t, logs.String(), "interrupted")
	assert.False(t, fake.Locked())

	store := storage.NewSqliteStore(config.GainChanges.Journal)
	defer store.Close()

	sess, err := store.Session(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, measurement.StatusCanceled, sess.Status)
	assert.Contains(t, logs.String(), `msg="journal written" session=1 status=canceled`)
}
