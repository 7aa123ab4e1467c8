package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "journal.sqlite"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestSession(t *testing.T, s *SqliteStore, tool string) int64 {
	t.Helper()

	id, err := s.CreateSession(context.Background(), &measurement.Session{
		StartTime:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Tool:         tool,
		DeviceSerial: "1000AAAA",
		HWVersion:    "RSP1A",
	}, map[string]any{"sampleRate": 6e6})
	require.NoError(t, err)
	return id
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id := createTestSession(t, s, measurement.ToolRecorder)
	require.NoError(t, s.FinishSession(ctx, id, measurement.StatusDone))

	sess, err := s.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, measurement.ToolRecorder, sess.Tool)
	assert.Equal(t, "1000AAAA", sess.DeviceSerial)
	assert.Equal(t, "RSP1A", sess.HWVersion)
	assert.Equal(t, measurement.StatusDone, sess.Status)
	assert.True(t, sess.StartTime.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	require.NotNil(t, sess.EndTime)
	require.NotNil(t, sess.Config)
	assert.JSONEq(t, `{"sampleRate": 6000000}`, *sess.Config)

	second := createTestSession(t, s, measurement.ToolGainChanges)
	assert.Equal(t, id+1, second)
	sess, err = s.Session(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, measurement.ToolGainChanges, sess.Tool)
	assert.Equal(t, measurement.StatusRunning, sess.Status)
	assert.Nil(t, sess.EndTime)

	_, err = s.Session(ctx, 999)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.FinishSession(ctx, 999, measurement.StatusDone), ErrSessionNotFound)
}

func TestGainChanges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := createTestSession(t, s, measurement.ToolGainChanges)

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	changes := make([]measurement.GainChange, 0, 2500)
	for n := uint32(1); n <= 2500; n++ {
		changes = append(changes, measurement.GainChange{
			Sequence:      n,
			Timestamp:     t0.Add(time.Duration(n) * time.Millisecond),
			GainReduction: 20 + int(n%40),
			LNAState:      uint8(n % 4),
			Elapsed:       time.Duration(n) * time.Microsecond,
			Acknowledged:  n%100 != 0,
		})
	}

	require.NoError(t, s.StoreGainChanges(ctx, id, changes))
	require.NoError(t, s.StoreGainChanges(ctx, id, nil))

	t.Run("all", func(t *testing.T) {
		r, err := s.ReadGainChanges(ctx, id)
		require.NoError(t, err)
		defer r.Close()

		assert.Equal(t, id, r.Session().ID)

		var n uint32
		for r.Next(ctx) {
			n++
			c := r.Current()
			require.Equal(t, n, c.Sequence)
			if n == 1 {
				assert.Equal(t, changes[0].GainReduction, c.GainReduction)
				assert.Equal(t, changes[0].LNAState, c.LNAState)
				assert.Equal(t, changes[0].Elapsed, c.Elapsed)
				assert.True(t, c.Timestamp.Equal(changes[0].Timestamp))
				assert.True(t, c.Acknowledged)
			}
		}
		require.NoError(t, r.Error())
		assert.Equal(t, uint32(2500), n)
	})

	t.Run("unacknowledged", func(t *testing.T) {
		r, err := s.ReadGainChanges(ctx, id, WithUnacknowledgedOnly())
		require.NoError(t, err)
		defer r.Close()

		var n int
		for r.Next(ctx) {
			assert.False(t, r.Current().Acknowledged)
			assert.Zero(t, r.Current().Sequence%100)
			n++
		}
		require.NoError(t, r.Error())
		assert.Equal(t, 25, n)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := s.ReadGainChanges(ctx, 999)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestRecording(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := createTestSession(t, s, measurement.ToolRecorder)

	_, err := s.Recording(ctx, id)
	require.ErrorIs(t, err, ErrNoRecording)

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	want := &measurement.Recording{
		Mode:           measurement.ModeRecord,
		Path:           "noaa-6000k.iq16",
		StartTime:      t0,
		EndTime:        t0.Add(2500 * time.Millisecond),
		TotalSamples:   15_000_000,
		SampleRate:     6_000_000,
		RoundedKHz:     6000,
		DroppedSamples: 11,
		DropEvents:     1,
		IMin:           -2048,
		IMax:           2047,
		QMin:           -1900,
		QMax:           1999,
	}
	require.NoError(t, s.StoreRecording(ctx, id, want))

	got, err := s.Recording(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.StartTime.Equal(want.StartTime))
	assert.True(t, got.EndTime.Equal(want.EndTime))

	got.StartTime, got.EndTime = want.StartTime, want.EndTime
	assert.Equal(t, want, got)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "journal.sqlite"))
	createTestSession(t, s, measurement.ToolRecorder)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
