package stream

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
)

// DefaultTimeDiffThreshold is the callback interval above which TimeDiff
// reports a gap.
const DefaultTimeDiffThreshold = 5 * time.Millisecond

// WithTimeDiffLogger sets the logger for the time difference monitor
func WithTimeDiffLogger(logger *slog.Logger) func(t *TimeDiff) {
	return func(t *TimeDiff) {
		t.logger = logger
	}
}

// WithTimeDiffClock replaces the callback timestamp source.
func WithTimeDiffClock(now func() time.Time) func(t *TimeDiff) {
	return func(t *TimeDiff) {
		t.now = now
	}
}

// TimeDiff is the stream handler of a timing run: it ignores the samples
// and reports callbacks arriving later than the threshold after the
// previous one.
type TimeDiff struct {
	threshold time.Duration

	// prev is owned by the callback goroutine.
	prev time.Time

	// Written by the callback goroutine, read by the controller.
	callbacks atomic.Uint64
	gaps      atomic.Uint64
	maxGap    atomic.Int64

	now    func() time.Time
	logger *slog.Logger
}

var _ sdrplay.StreamHandler = (*TimeDiff)(nil)

// NewTimeDiff creates a TimeDiff with the given threshold. A non-positive
// threshold selects DefaultTimeDiffThreshold.
func NewTimeDiff(threshold time.Duration, options ...func(t *TimeDiff)) *TimeDiff {
	if threshold <= 0 {
		threshold = DefaultTimeDiffThreshold
	}

	t := TimeDiff{
		threshold: threshold,
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

// HandleStream implements sdrplay.StreamHandler.
func (t *TimeDiff) HandleStream(xi, xq []int16, params sdrplay.StreamParams, reset bool) {
	now := t.now()
	count := t.callbacks.Load()

	if !t.prev.IsZero() {
		diff := now.Sub(t.prev)
		if diff > t.threshold {
			t.gaps.Add(1)
			if int64(diff) > t.maxGap.Load() {
				t.maxGap.Store(int64(diff))
			}

			t.logger.Warn("callback gap",
				slog.Uint64("count", count),
				slog.Int("numSamples", len(xi)),
				slog.Duration("diff", diff),
			)
		}
	}

	t.prev = now
	t.callbacks.Add(1)
}

// Callbacks returns the number of callbacks seen.
func (t *TimeDiff) Callbacks() uint64 {
	return t.callbacks.Load()
}

// Gaps returns the number of intervals above the threshold.
func (t *TimeDiff) Gaps() uint64 {
	return t.gaps.Load()
}

// MaxGap returns the longest interval above the threshold.
func (t *TimeDiff) MaxGap() time.Duration {
	return time.Duration(t.maxGap.Load())
}
