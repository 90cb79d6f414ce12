package sim

import (
	"testing"

	"softuart-go/services/hal"
)

func TestClockStepsOnRead(t *testing.T) {
	c := NewClock(2)
	if c.Micros() != 0 || c.Micros() != 2 || c.Now() != 4 {
		t.Fatalf("unexpected clock progression, now=%d", c.Now())
	}
	c.Set(0xFFFFFFFF)
	c.Advance(2)
	if c.Now() != 1 {
		t.Fatalf("wrap: now=%d", c.Now())
	}
}

func TestByNumberRange(t *testing.T) {
	b := NewBench(nil)
	if _, ok := b.ByNumber(-1); ok {
		t.Fatal("negative pin accepted")
	}
	if _, ok := b.ByNumber(DefaultPins); ok {
		t.Fatal("out-of-range pin accepted")
	}
	p1, ok := b.ByNumber(4)
	p2, _ := b.ByNumber(4)
	if !ok || p1 != p2 || p1.Number() != 4 {
		t.Fatal("ByNumber must return a stable pin")
	}
}

func TestConnectedWireCarriesLevelHistory(t *testing.T) {
	b := NewBench(nil)
	b.Connect(0, 3)
	tx, rx := b.Pin(0), b.Pin(3)
	_ = tx.ConfigureOutput(true)
	_ = rx.ConfigureInput(hal.PullUp)

	b.Clock.Set(100)
	tx.Set(false)
	b.Clock.Set(200)
	tx.Set(true)

	b.Clock.Set(150)
	if rx.Get() {
		t.Fatal("rx should read low inside the pulse")
	}
	b.Clock.Set(250)
	if !rx.Get() {
		t.Fatal("rx should read high after the pulse")
	}
	b.Clock.Set(50)
	if !rx.Get() {
		t.Fatal("rx should read idle high before the pulse")
	}
}

func TestDeliverReplaysAtEdgeTimeAndMasksWhileDetached(t *testing.T) {
	b := NewBench(nil)
	rx := b.Pin(5)
	_ = rx.ConfigureInput(hal.PullUp)

	var seen []uint32
	var handler func()
	handler = func() {
		seen = append(seen, b.Clock.Now())
		_ = rx.ClearIRQ()
		b.Clock.Advance(1000) // busy for 1 ms
		_ = rx.SetIRQ(hal.EdgeFalling, handler)
	}
	_ = rx.SetIRQ(hal.EdgeFalling, handler)

	// Three low pulses: at 10, 500 (inside the busy window) and 2000.
	b.Inject(5, 10, 1, 0x00)   // one frame: falls at 10
	b.Inject(5, 500, 1, 0x00)  // falls at 500
	b.Inject(5, 2000, 1, 0x00) // falls at 2000
	b.Clock.Set(3000)

	if n := b.Deliver(); n != 2 {
		t.Fatalf("delivered %d, want 2 (seen=%v)", n, seen)
	}
	if seen[0] != 10 || seen[1] != 2000 {
		t.Fatalf("handler times %v, want [10 2000]", seen)
	}
	if b.Masked() != 1 {
		t.Fatalf("masked=%d want 1", b.Masked())
	}
	if b.Clock.Now() != 3000 {
		t.Fatalf("clock moved backwards or forwards: %d", b.Clock.Now())
	}
	if b.Pending() != 0 {
		t.Fatal("queue not drained")
	}
}

func TestLatchedEdgeFiresOnceWhenRearmed(t *testing.T) {
	b := NewBench(nil)
	b.LatchEdges = true
	rx := b.Pin(5)
	_ = rx.ConfigureInput(hal.PullUp)

	var seen []uint32
	var handler func()
	handler = func() {
		seen = append(seen, b.Clock.Now())
		_ = rx.ClearIRQ()
		b.Clock.Advance(1000)
		_ = rx.SetIRQ(hal.EdgeFalling, handler)
	}
	_ = rx.SetIRQ(hal.EdgeFalling, handler)

	// Falls at 10, then 500 and 600 inside the first busy window, then 2000
	// inside the second.
	b.Inject(5, 10, 1, 0x00)
	b.Inject(5, 500, 1, 0x00)
	b.Inject(5, 600, 1, 0x00)
	b.Inject(5, 2000, 1, 0x00)
	b.Clock.Set(3000)

	if n := b.Deliver(); n != 3 {
		t.Fatalf("delivered %d, want 3 (seen=%v)", n, seen)
	}
	// The two edges in the first window collapse into one replay at re-arm.
	if seen[0] != 10 || seen[1] != 1010 || seen[2] != 2010 {
		t.Fatalf("handler times %v, want [10 1010 2010]", seen)
	}
	if b.Masked() != 3 || b.Pending() != 0 {
		t.Fatalf("masked=%d pending=%d", b.Masked(), b.Pending())
	}
}

func TestInjectFrameLevels(t *testing.T) {
	b := NewBench(nil)
	p := b.Pin(2)
	end := b.Inject(2, 1000, 100, 0x5A)
	if end != 2000 {
		t.Fatalf("end=%d want 2000", end)
	}
	want := []bool{false, false, true, false, true, true, false, true, false, true}
	for i, w := range want {
		b.Clock.Set(1000 + uint32(i)*100 + 50)
		if got := p.Get(); got != w {
			t.Fatalf("bit slot %d: got %v want %v", i, got, w)
		}
	}
}

func TestInputIgnoresSet(t *testing.T) {
	b := NewBench(nil)
	p := b.Pin(1)
	_ = p.ConfigureInput(hal.PullUp)
	p.Set(false)
	if !p.Get() || p.Output() || p.Pull() != hal.PullUp {
		t.Fatal("input pin must not drive the wire")
	}
}
