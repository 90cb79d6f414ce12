package softuart

import (
	"sync/atomic"

	"softuart-go/errcode"
)

// OverflowPolicy decides when the overflow flag, once set by the receiver,
// goes back to false. The receiver itself never clears it.
type OverflowPolicy uint8

const (
	// OverflowSticky keeps the flag until ClearOverflow or a reopen.
	OverflowSticky OverflowPolicy = iota
	// OverflowClearOnRead clears the flag on the next successful read.
	OverflowClearOnRead
	// OverflowClearOnEmpty clears the flag when a read drains the buffer.
	OverflowClearOnEmpty
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowClearOnRead:
		return "clear_on_read"
	case OverflowClearOnEmpty:
		return "clear_on_empty"
	default:
		return "sticky"
	}
}

// ParseOverflowPolicy maps the config spelling to a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "", "sticky":
		return OverflowSticky, true
	case "clear_on_read":
		return OverflowClearOnRead, true
	case "clear_on_empty":
		return OverflowClearOnEmpty, true
	}
	return OverflowSticky, false
}

// Available returns the number of buffered bytes, or 0 when index is not
// active.
func (r *Registry) Available(index int) int {
	u, _, err := r.active("available", index)
	if err != nil {
		return 0
	}
	return u.buf.Used()
}

// ReadByte pops the oldest received byte. It returns 0 with an inactive or
// empty error when there is nothing to read.
func (r *Registry) ReadByte(index int) (byte, error) {
	u, _, err := r.active("read", index)
	if err != nil {
		return 0, err
	}
	b, ok := u.buf.Get()
	if !ok {
		return 0, errcode.Empty
	}
	r.afterRead(u)
	return b, nil
}

// Read drains up to len(p) bytes without blocking.
func (r *Registry) Read(index int, p []byte) (int, error) {
	u, _, err := r.active("read", index)
	if err != nil {
		return 0, err
	}
	n := u.buf.ReadInto(p)
	if n > 0 {
		r.afterRead(u)
	}
	return n, nil
}

func (r *Registry) afterRead(u *instance) {
	switch r.policy {
	case OverflowClearOnRead:
		u.buf.ClearOverflow()
	case OverflowClearOnEmpty:
		if u.buf.Used() == 0 {
			u.buf.ClearOverflow()
		}
	}
}

// Overflow reports whether bytes were dropped since the flag last cleared.
// It is advisory and false for inactive instances.
func (r *Registry) Overflow(index int) bool {
	u, _, err := r.active("overflow", index)
	return err == nil && u.buf.Overflow()
}

// ClearOverflow clears the flag and returns its previous value.
func (r *Registry) ClearOverflow(index int) (bool, error) {
	u, _, err := r.active("clear_overflow", index)
	if err != nil {
		return false, err
	}
	return u.buf.ClearOverflow(), nil
}

// Policy returns the registry's overflow policy.
func (r *Registry) Policy() OverflowPolicy { return r.policy }

// ---- stats ----

// Stats are monotonically increasing per-instance counters. They survive
// Close and reopen.
type Stats struct {
	Frames   uint64 // bytes stored by the receiver
	Overruns uint64 // bytes dropped on a full buffer
	Ignored  uint64 // edges that found the receiver not armed
	Sent     uint64 // frames transmitted
}

type counters struct {
	frames   atomic.Uint64
	overruns atomic.Uint64
	ignored  atomic.Uint64
	sent     atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Frames:   c.frames.Load(),
		Overruns: c.overruns.Load(),
		Ignored:  c.ignored.Load(),
		Sent:     c.sent.Load(),
	}
}

// Stats returns a snapshot of index's counters.
func (r *Registry) Stats(index int) (Stats, error) {
	if !validIndex(index) {
		return Stats{}, errcode.New(errcode.InvalidIndex, "stats", "index out of range")
	}
	return r.uarts[index].stats.snapshot(), nil
}
