package stream

import (
	"encoding/binary"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
)

// RecordBufferSamples is the number of I/Q pairs the record buffer holds
// before it has to grow.
const RecordBufferSamples = 4096

// WithRecorderLogger sets the logger for the recorder
func WithRecorderLogger(logger *slog.Logger) func(r *Recorder) {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithHistogram makes the recorder count sample amplitudes into h.
func WithHistogram(h *Histogram) func(r *Recorder) {
	return func(r *Recorder) {
		r.histogram = h
	}
}

// WithClock replaces the callback timestamp source.
func WithClock(now func() time.Time) func(r *Recorder) {
	return func(r *Recorder) {
		r.now = now
	}
}

// Recorder is the stream handler of a recording run. It tracks timestamps,
// sequence gaps and sample ranges into Stats and writes every block to w as
// little-endian int16 interleaved I,Q pairs. A nil writer only collects
// statistics.
type Recorder struct {
	w         io.Writer
	stats     *Stats
	histogram *Histogram

	// seq and buf are owned by the callback goroutine.
	seq SequenceTracker
	buf []byte

	now    func() time.Time
	logger *slog.Logger
}

var _ sdrplay.StreamHandler = (*Recorder)(nil)

// NewRecorder creates a Recorder writing to w (may be nil) and counting into
// stats.
func NewRecorder(w io.Writer, stats *Stats, options ...func(r *Recorder)) *Recorder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	r := Recorder{
		w:      w,
		stats:  stats,
		now:    time.Now,
		logger: logger,
	}

	for _, option := range options {
		option(&r)
	}

	if r.w != nil {
		r.buf = make([]byte, RecordBufferSamples*4)
	}

	return &r
}

// HandleStream implements sdrplay.StreamHandler.
func (r *Recorder) HandleStream(xi, xq []int16, params sdrplay.StreamParams, reset bool) {
	n := uint32(min(len(xi), len(xq)))

	r.stats.ObserveCallback(r.now(), n)

	if dropped, gap := r.seq.Observe(params.FirstSampleNum, n); gap {
		r.stats.ObserveDrop(dropped)
		r.logger.Warn("dropped samples", slog.Uint64("dropped", uint64(dropped)))
	}

	xi, xq = xi[:n], xq[:n]
	r.stats.ObserveRange(BlockRange(xi, xq))

	if r.histogram != nil {
		r.histogram.Add(xi, xq)
	}

	if r.w != nil && n > 0 {
		r.write(xi, xq)
	}
}

func (r *Recorder) write(xi, xq []int16) {
	size := len(xi) * 4
	if size > len(r.buf) {
		r.buf = make([]byte, size)
	}

	buf := r.buf[:size]
	for i := range xi {
		binary.LittleEndian.PutUint16(buf[4*i:], uint16(xi[i]))
		binary.LittleEndian.PutUint16(buf[4*i+2:], uint16(xq[i]))
	}

	written, err := r.w.Write(buf)
	r.stats.ObserveWrite(written)
	if err != nil {
		r.stats.ObserveWriteError()
		r.logger.Error("write failed", slog.String("error", err.Error()))
		return
	}
	if written != size {
		r.stats.ObserveWriteError()
		r.logger.Error("incomplete write",
			slog.Int("expected", size),
			slog.Int("actual", written),
		)
	}
}
