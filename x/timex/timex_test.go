package timex

import (
	"testing"
	"time"
)

type stepClock struct{ now, step uint32 }

func (c *stepClock) Micros() uint32 { v := c.now; c.now += c.step; return v }

func TestReachedAcrossWrap(t *testing.T) {
	for _, c := range []struct {
		now, deadline uint32
		want          bool
	}{
		{100, 100, true},
		{99, 100, false},
		{101, 100, true},
		{5, 0xFFFFFFF0, true},           // counter wrapped past deadline
		{0xFFFFFFF0, 5, false},          // deadline is after the wrap
		{0x7FFFFFFF, 0xFFFFFFFF, false}, // just under half the range ahead
	} {
		if got := Reached(c.now, c.deadline); got != c.want {
			t.Fatalf("Reached(%#x, %#x) = %v, want %v", c.now, c.deadline, got, c.want)
		}
	}
}

func TestSpinUntilStopsAtDeadline(t *testing.T) {
	clk := &stepClock{now: 0xFFFFFF00, step: 3}
	SpinUntil(clk, 0x00000010)
	if !Reached(clk.now, 0x10) || clk.now-0x10 > 6 {
		t.Fatalf("overshoot: now=%#x", clk.now)
	}
}

func TestSystemClockAdvances(t *testing.T) {
	c := NewSystemClock()
	a := c.Micros()
	time.Sleep(2 * time.Millisecond)
	if b := c.Micros(); b-a < 1000 {
		t.Fatalf("clock advanced only %d µs", b-a)
	}
}
