// Package shmring is the receive buffer shared between interrupt context
// (producer) and normal context (consumer).
//
// head is the next read position and is only advanced by the consumer; tail
// is the next write position and is only advanced by the producer. Both stay
// in [0, Size). One slot is kept free so that head == tail always means empty;
// the ring therefore holds at most Size-1 bytes.
package shmring

import "sync/atomic"

// Size is the ring capacity. Power of two for a cheap modulo.
const Size = 64

const mask = Size - 1

// Ring is a single-producer, single-consumer byte ring with a sticky overflow
// flag. The zero value is an empty ring; call Init before use to get a
// readable notification channel.
type Ring struct {
	buf  [Size]byte
	head atomic.Uint32 // consumer index
	tail atomic.Uint32 // producer index

	overflow atomic.Bool

	readable chan struct{} // coalesced "data stored" edge
}

// Init allocates the notification channel. Safe to call once.
func (r *Ring) Init() {
	if r.readable == nil {
		r.readable = make(chan struct{}, 1)
	}
}

// Used returns the current occupancy in [0, Size-1].
func (r *Ring) Used() int {
	return int((r.tail.Load() - r.head.Load()) & mask)
}

// Space returns how many more bytes Put can accept.
func (r *Ring) Space() int { return Size - 1 - r.Used() }

// ---- Producer side ----

// Put stores v at tail. If storing would make tail collide with head the byte
// is dropped, the overflow flag is set and Put returns false. Put never blocks.
func (r *Ring) Put(v byte) bool {
	t := r.tail.Load()
	next := (t + 1) & mask
	if next == r.head.Load() { // acquire consumer progress
		r.overflow.Store(true)
		return false
	}
	r.buf[t] = v       // 1) write data
	r.tail.Store(next) // 2) publish
	if r.readable != nil {
		select {
		case r.readable <- struct{}{}:
		default:
		}
	}
	return true
}

// ---- Consumer side ----

// Get pops the byte at head. It returns (0, false) when empty.
func (r *Ring) Get() (byte, bool) {
	h := r.head.Load()
	if h == r.tail.Load() { // acquire producer writes
		return 0, false
	}
	v := r.buf[h]                // 1) read element
	r.head.Store((h + 1) & mask) // 2) release the slot
	return v, true
}

// ReadInto pops up to len(dst) bytes and returns the count.
func (r *Ring) ReadInto(dst []byte) (n int) {
	for n < len(dst) {
		v, ok := r.Get()
		if !ok {
			break
		}
		dst[n] = v
		n++
	}
	return n
}

// Overflow reports the sticky overflow flag.
func (r *Ring) Overflow() bool { return r.overflow.Load() }

// ClearOverflow clears the flag and returns its previous value.
func (r *Ring) ClearOverflow() bool { return r.overflow.Swap(false) }

// Reset empties the ring and clears the flag. Only valid while no producer
// is running.
func (r *Ring) Reset() {
	r.head.Store(0)
	r.tail.Store(0)
	r.overflow.Store(false)
	if r.readable != nil {
		select {
		case <-r.readable:
		default:
		}
	}
}

// Indices exposes head and tail for diagnostics.
func (r *Ring) Indices() (head, tail uint32) {
	return r.head.Load(), r.tail.Load()
}

// Readable returns the coalesced notification channel (nil before Init).
// Callers must re-check Used after waking.
func (r *Ring) Readable() <-chan struct{} { return r.readable }
