package app

import (
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
	"github.com/roman-kulish/rsp-tools/internal/stream"
)

// monitor is the stream handler of the gain cycler. It ignores the samples,
// forwards grChanged to the acknowledgment and reports resets and jumps in
// the sample sequence.
type monitor struct {
	ack     *stream.GainAck
	verbose bool
	logger  *slog.Logger

	// seq is owned by the callback goroutine.
	seq stream.SequenceTracker

	// Written by the callback goroutine, read after streaming stopped.
	totalSamples atomic.Uint64
	jumps        atomic.Uint64
}

var _ sdrplay.StreamHandler = (*monitor)(nil)

func newMonitor(ack *stream.GainAck, verbose bool, logger *slog.Logger) *monitor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger
	}
	return &monitor{ack: ack, verbose: verbose, logger: logger}
}

func (m *monitor) HandleStream(xi, xq []int16, params sdrplay.StreamParams, reset bool) {
	if m.verbose && params.GrChanged {
		m.logger.Info("grChanged", slog.Uint64("firstSampleNum", uint64(params.FirstSampleNum)))
	}
	m.ack.Observe(params.GrChanged)

	if reset {
		m.logger.Info("reset")
	}

	n := uint32(len(xi))
	expected, _ := m.seq.Next()
	if _, gap := m.seq.Observe(params.FirstSampleNum, n); gap {
		m.jumps.Add(1)
		m.logger.Warn("jump in sample sequence number",
			slog.Uint64("from", uint64(expected)),
			slog.Uint64("to", uint64(params.FirstSampleNum)),
		)
	}

	m.totalSamples.Add(uint64(n))
}
