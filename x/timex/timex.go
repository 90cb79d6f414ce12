package timex

import "time"

// Clock is a free-running microsecond counter. It wraps at 2^32.
type Clock interface {
	Micros() uint32
}

// SystemClock reads the runtime monotonic clock.
type SystemClock struct{ epoch time.Time }

// NewSystemClock returns a clock whose counter starts near zero.
func NewSystemClock() *SystemClock { return &SystemClock{epoch: time.Now()} }

func (c *SystemClock) Micros() uint32 {
	return uint32(time.Since(c.epoch) / time.Microsecond)
}

// Reached reports whether now is at or past deadline on a wrapping counter.
// Valid while the two are less than 2^31 µs apart.
func Reached(now, deadline uint32) bool { return int32(now-deadline) >= 0 }

// SpinUntil busy-waits until clk reaches deadline. It never yields; a
// preemption inside the loop stretches the wait.
func SpinUntil(clk Clock, deadline uint32) {
	for !Reached(clk.Micros(), deadline) {
	}
}

// Spin busy-waits for d microseconds from now.
func Spin(clk Clock, d uint32) {
	SpinUntil(clk, clk.Micros()+d)
}

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }
