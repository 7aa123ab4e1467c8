// Package stream holds the bookkeeping done on the API's callback thread
// while samples are streamed: sequence gap detection, sample range and
// amplitude statistics, gain change acknowledgment and the stream consumers
// used by the tools.
package stream

// SequenceTracker detects gaps in the sample sequence numbers reported with
// every block. It is owned by the callback goroutine and is not safe for
// concurrent use.
type SequenceTracker struct {
	next   uint32
	primed bool
}

// Observe records a block of n samples starting at first and returns the
// number of samples missing before it. Sequence numbers wrap at 2^32, so the
// gap is computed modulo 2^32. The first block never reports a gap.
func (t *SequenceTracker) Observe(first, n uint32) (dropped uint32, gap bool) {
	if t.primed && first != t.next {
		dropped = first - t.next
		gap = true
	}

	t.next = first + n
	t.primed = true
	return dropped, gap
}

// Next returns the sequence number expected for the next block.
func (t *SequenceTracker) Next() (uint32, bool) {
	return t.next, t.primed
}

// Reset forgets the expected sequence number.
func (t *SequenceTracker) Reset() {
	*t = SequenceTracker{}
}
