package observable

import "sync/atomic"

// Clock is a monotonic logical clock for dispatch event ordering.
//
// Every telemetry event is stamped with a strictly increasing seq number
// from this clock, never a wall-clock timestamp. Two runs of the same
// deterministic scenario therefore produce identical event sequences, which
// is what golden trace comparison relies on.
//
// The counter is atomic, so stamping stays correct even when callers ignore
// the runtime's single-goroutine contract.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
