package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAckTimeout is returned by GainAck.Wait when no acknowledgment arrived in
// time.
var ErrAckTimeout = errors.New("gain change update timeout")

// GainAck carries the "gain changed" acknowledgment from the stream callback
// to the goroutine requesting gain changes.
//
// The requester calls Arm before every Update and then Wait; the callback
// calls Observe with the grChanged flag of every block. Only the first
// grChanged after Arm signals.
//
// Arm and the signalling part of Observe run under mu, so a signal is pending
// whenever acked is set.
type GainAck struct {
	mu sync.Mutex

	// acked is set by the callback goroutine and reset by Arm.
	acked  atomic.Bool
	signal chan struct{}
}

func NewGainAck() *GainAck {
	return &GainAck{signal: make(chan struct{}, 1)}
}

// Arm clears the acknowledgment, including a signal left over from the
// previous change.
func (a *GainAck) Arm() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.acked.Store(false)
	select {
	case <-a.signal:
	default:
	}
}

// Observe is called from the stream callback with the block's grChanged
// flag. It only contends with Arm and never waits on the requester.
func (a *GainAck) Observe(grChanged bool) {
	if !grChanged {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.acked.CompareAndSwap(false, true) {
		return
	}
	select {
	case a.signal <- struct{}{}:
	default:
	}
}

// Acked reports whether a gain change was observed since the last Arm.
func (a *GainAck) Acked() bool {
	return a.acked.Load()
}

// Wait blocks until the callback observes a gain change, the timeout expires
// or ctx is done. It returns the time spent waiting.
func (a *GainAck) Wait(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	start := time.Now()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-a.signal:
		return time.Since(start), nil
	case <-timer.C:
		return time.Since(start), ErrAckTimeout
	case <-ctx.Done():
		return time.Since(start), ctx.Err()
	}
}
