//go:build rp2040 || rp2350

// Package rp2 backs the hal interfaces with the RP2040/RP2350 GPIO block.
package rp2

import (
	"machine"

	"softuart-go/services/hal"
)

// MaxPin is the highest user GPIO on a Pico header.
const MaxPin = 28

type pinFactory struct{}

type pin struct {
	p   machine.Pin
	n   int
	ch  machine.PinChange
	irq hal.IRQHandler[machine.Pin]
}

// NewPinFactory returns a factory for GP0..GP28. Every pin supports edge
// interrupts.
func NewPinFactory() hal.PinFactory { return pinFactory{} }

func (pinFactory) ByNumber(n int) (hal.GPIOPin, bool) {
	if n < 0 || n > MaxPin {
		return nil, false
	}
	return &pin{p: machine.Pin(n), n: n}, true
}

func (r *pin) ConfigureInput(p hal.Pull) error {
	var mode machine.PinMode
	switch p {
	case hal.PullUp:
		mode = machine.PinInputPullup
	case hal.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *pin) Set(b bool) { r.p.Set(b) }
func (r *pin) Get() bool  { return r.p.Get() }
func (r *pin) Toggle() {
	if r.p.Get() {
		r.p.Low()
	} else {
		r.p.High()
	}
}
func (r *pin) Number() int { return r.n }

// SetIRQ is called from the receive interrupt to re-arm, so after the first
// call from Open it must not allocate: the callback handed to the machine
// package is built once per pin.
func (r *pin) SetIRQ(edge hal.Edge, handler func()) error {
	var ch machine.PinChange
	switch edge {
	case hal.EdgeRising:
		ch = machine.PinRising
	case hal.EdgeFalling:
		ch = machine.PinFalling
	case hal.EdgeBoth:
		ch = machine.PinToggle
	default:
		return r.ClearIRQ()
	}
	r.ch = ch
	return r.p.SetInterrupt(ch, r.irq.Bind(handler))
}

// ClearIRQ detaches the handler and disables the edges last enabled. Edge
// events may still be latched in hardware; the receiver checks the line
// level when the handler next runs.
func (r *pin) ClearIRQ() error {
	r.irq.Unbind()
	return r.p.SetInterrupt(r.ch, nil)
}
