package stream

import (
	"math"
	"sync/atomic"
	"time"
)

// Stats accumulates the streaming counters of one run.
//
// Every field has a single writer, the callback goroutine, and is read by the
// controlling goroutine through Snapshot, usually after streaming stopped.
type Stats struct {
	totalSamples atomic.Uint64

	// Unix nanoseconds of the first and the latest callback, 0 until the
	// first callback.
	earliest atomic.Int64
	latest   atomic.Int64

	droppedSamples atomic.Uint64
	dropEvents     atomic.Uint64
	writeErrors    atomic.Uint64
	bytesWritten   atomic.Uint64

	imin atomic.Int32
	imax atomic.Int32
	qmin atomic.Int32
	qmax atomic.Int32
}

// NewStats returns Stats with empty sample ranges.
func NewStats() *Stats {
	s := Stats{}
	s.imin.Store(math.MaxInt16)
	s.imax.Store(math.MinInt16)
	s.qmin.Store(math.MaxInt16)
	s.qmax.Store(math.MinInt16)
	return &s
}

// ObserveCallback records a callback delivering n samples at t.
func (s *Stats) ObserveCallback(t time.Time, n uint32) {
	ts := t.UnixNano()
	s.latest.Store(ts)
	s.earliest.CompareAndSwap(0, ts)
	s.totalSamples.Add(uint64(n))
}

// ObserveDrop records a sequence gap of n samples.
func (s *Stats) ObserveDrop(n uint32) {
	s.droppedSamples.Add(uint64(n))
	s.dropEvents.Add(1)
}

// ObserveWriteError records a failed or incomplete write.
func (s *Stats) ObserveWriteError() {
	s.writeErrors.Add(1)
}

// ObserveWrite records n bytes accepted by the output writer.
func (s *Stats) ObserveWrite(n int) {
	if n > 0 {
		s.bytesWritten.Add(uint64(n))
	}
}

// ObserveRange widens the I and Q ranges to include the given block range.
func (s *Stats) ObserveRange(imin, imax, qmin, qmax int16) {
	if int32(imin) < s.imin.Load() {
		s.imin.Store(int32(imin))
	}
	if int32(imax) > s.imax.Load() {
		s.imax.Store(int32(imax))
	}
	if int32(qmin) < s.qmin.Load() {
		s.qmin.Store(int32(qmin))
	}
	if int32(qmax) > s.qmax.Load() {
		s.qmax.Store(int32(qmax))
	}
}

// Snapshot is a point in time copy of Stats.
type Snapshot struct {
	TotalSamples   uint64
	Earliest       time.Time
	Latest         time.Time
	DroppedSamples uint64
	DropEvents     uint64
	WriteErrors    uint64
	BytesWritten   uint64

	IMin, IMax int16
	QMin, QMax int16
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		TotalSamples:   s.totalSamples.Load(),
		DroppedSamples: s.droppedSamples.Load(),
		DropEvents:     s.dropEvents.Load(),
		WriteErrors:    s.writeErrors.Load(),
		BytesWritten:   s.bytesWritten.Load(),
		IMin:           int16(s.imin.Load()),
		IMax:           int16(s.imax.Load()),
		QMin:           int16(s.qmin.Load()),
		QMax:           int16(s.qmax.Load()),
	}
	if ts := s.earliest.Load(); ts != 0 {
		snap.Earliest = time.Unix(0, ts)
	}
	if ts := s.latest.Load(); ts != 0 {
		snap.Latest = time.Unix(0, ts)
	}
	return snap
}

// SampleRate returns the throughput estimate of the snapshot.
func (s Snapshot) SampleRate() float64 {
	return Throughput(s.TotalSamples, s.Earliest, s.Latest)
}

// BlockRange returns the minimum and maximum of xi and xq. Empty slices
// yield an empty range (min > max).
func BlockRange(xi, xq []int16) (imin, imax, qmin, qmax int16) {
	imin, imax = math.MaxInt16, math.MinInt16
	qmin, qmax = math.MaxInt16, math.MinInt16

	for _, v := range xi {
		imin = min(imin, v)
		imax = max(imax, v)
	}
	for _, v := range xq {
		qmin = min(qmin, v)
		qmax = max(qmax, v)
	}
	return imin, imax, qmin, qmax
}
