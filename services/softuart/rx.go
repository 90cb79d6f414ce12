package softuart

import (
	"runtime"

	"softuart-go/services/hal"
	"softuart-go/x/timex"
)

// onStartBit is the falling-edge handler on RX. It runs in interrupt context
// and keeps the line to itself for a whole frame: the interrupt is detached on
// entry, so start bits arriving before it re-arms are lost, not queued. On
// parts that latch edge events, one of those edges fires the handler again
// right after the re-arm; the line is high then and the call is ignored.
//
// Framing is inferred from the nominal bit period only. There is no stop-bit
// check and no mid-byte resynchronisation; a peer at a different rate
// produces wrong bytes without any error.
func (u *instance) onStartBit() {
	entry := u.clk.Micros()
	if !u.state.CompareAndSwap(stateArmed, stateSampling) {
		u.stats.ignored.Add(1)
		return
	}
	l := u.cfg.Load()
	if l.rx.Get() {
		// Line already high: an edge latched while the handler was
		// detached, not a start bit.
		if !u.state.CompareAndSwap(stateSampling, stateArmed) {
			_ = l.rx.ClearIRQ()
			u.state.Store(stateClosed)
		}
		u.stats.ignored.Add(1)
		return
	}
	_ = l.rx.ClearIRQ()

	var d byte
	for i := 0; i < 8; i++ {
		timex.SpinUntil(u.clk, entry+l.timing.Sample(i))
		d >>= 1
		if l.rx.Get() {
			d |= 0x80
		}
	}

	if u.state.Load() == stateSampling {
		if u.buf.Put(d) {
			u.stats.frames.Add(1)
		} else {
			u.stats.overruns.Add(1)
		}
	}

	timex.SpinUntil(u.clk, entry+l.timing.Rearm())

	_ = l.rx.SetIRQ(hal.EdgeFalling, u.isr)
	if !u.state.CompareAndSwap(stateSampling, stateArmed) {
		// Close arrived mid-frame.
		_ = l.rx.ClearIRQ()
		u.state.Store(stateClosed)
	}
}

func spinYield() { runtime.Gosched() }
