package softuart

import (
	"context"

	"tinygo.org/x/drivers"

	"softuart-go/errcode"
	"softuart-go/services/hal"
)

// Port is a stream view of one instance. It satisfies the TinyGo driver
// UART interface, so NMEA and AT-command drivers can sit on a soft UART.
// A Port stays valid across Close and reopen of its index; operations on a
// closed index fail with errcode.Inactive.
type Port struct {
	r     *Registry
	index int
}

var (
	_ drivers.UART = (*Port)(nil)
	_ hal.UARTPort = (*Port)(nil)
)

// Port returns the stream view of index, or nil if index is out of range.
func (r *Registry) Port(index int) *Port {
	if !validIndex(index) {
		return nil
	}
	return &Port{r: r, index: index}
}

func (p *Port) Index() int { return p.index }

// Read drains buffered bytes without blocking. It returns 0, nil when the
// buffer is empty.
func (p *Port) Read(b []byte) (int, error) { return p.r.Read(p.index, b) }

func (p *Port) ReadByte() (byte, error) { return p.r.ReadByte(p.index) }

// Write transmits b, blocking for the whole duration of the frames.
func (p *Port) Write(b []byte) (int, error) { return p.r.Write(p.index, b) }

func (p *Port) WriteByte(b byte) error { return p.r.Put(p.index, b) }

func (p *Port) WriteString(s string) (int, error) {
	return putEach(s, func(c byte) error { return p.r.Put(p.index, c) })
}

// Buffered returns the receive occupancy.
func (p *Port) Buffered() int { return p.r.Available(p.index) }

// Readable is signalled (coalesced) whenever the receiver stores a byte.
func (p *Port) Readable() <-chan struct{} { return p.r.uarts[p.index].buf.Readable() }

// RecvSomeContext blocks until at least one byte is available or ctx ends.
func (p *Port) RecvSomeContext(ctx context.Context, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	for {
		n, err := p.r.Read(p.index, b)
		if n > 0 || err != nil {
			return n, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-p.Readable():
		}
	}
}

// ReadByteContext is the blocking form of ReadByte.
func (p *Port) ReadByteContext(ctx context.Context) (byte, error) {
	var one [1]byte
	if _, err := p.RecvSomeContext(ctx, one[:]); err != nil {
		return 0, err
	}
	return one[0], nil
}

// Overflow reports the advisory overflow flag.
func (p *Port) Overflow() bool { return p.r.Overflow(p.index) }

// Active reports whether the underlying index is open.
func (p *Port) Active() bool { return p.r.IsActive(p.index) }

// Close closes the underlying index.
func (p *Port) Close() error {
	if p == nil {
		return errcode.InvalidIndex
	}
	return p.r.Close(p.index)
}
