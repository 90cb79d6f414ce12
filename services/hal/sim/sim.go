// Package sim is a host GPIO bench for exercising bit-banged protocols
// without hardware.
//
// Time is virtual: every Clock.Micros read advances the clock by one step,
// so busy-wait loops terminate deterministically. Pins sit on wires that
// record their level history. Edges are not dispatched while a writer is
// driving the wire; they are queued and Deliver replays each one at its own
// timestamp, so a handler that samples the wire after the edge sees the
// levels the writer produced. An edge is delivered only if the pin had a
// handler armed at or before the edge time; edges that land while the
// handler has detached itself are masked. With LatchEdges set, a masked edge
// is remembered the way an RP2040 edge status bit is, and fires the handler
// once at the moment it is armed again.
//
// A Bench is not safe for a writer and Deliver running concurrently.
package sim

import (
	"sort"
	"sync"
	"sync/atomic"

	"softuart-go/services/hal"
	"softuart-go/x/timex"
)

// DefaultPins is the number of GPIOs on a fresh bench (GP0..GP29).
const DefaultPins = 30

// Clock is a virtual microsecond counter.
type Clock struct {
	now  atomic.Uint32
	step uint32
}

// NewClock returns a clock that advances step µs per read (minimum 1).
func NewClock(step uint32) *Clock {
	if step == 0 {
		step = 1
	}
	return &Clock{step: step}
}

// Micros returns the current time and advances it by one step.
func (c *Clock) Micros() uint32 { return c.now.Add(c.step) - c.step }

// Now returns the current time without advancing it.
func (c *Clock) Now() uint32 { return c.now.Load() }

func (c *Clock) Set(t uint32)     { c.now.Store(t) }
func (c *Clock) Advance(d uint32) { c.now.Add(d) }

var _ timex.Clock = (*Clock)(nil)

// ----------------------------- wires -----------------------------------------

type transition struct {
	at    uint32
	level bool
}

type wire struct {
	idle bool
	hist []transition // ordered by at
	pins []*Pin
}

func (w *wire) levelAt(t uint32) bool {
	lvl := w.idle
	for _, tr := range w.hist {
		if !timex.Reached(t, tr.at) {
			break
		}
		lvl = tr.level
	}
	return lvl
}

func (w *wire) insert(tr transition) {
	i := sort.Search(len(w.hist), func(i int) bool {
		return !timex.Reached(tr.at, w.hist[i].at) // first entry strictly after tr
	})
	w.hist = append(w.hist, transition{})
	copy(w.hist[i+1:], w.hist[i:])
	w.hist[i] = tr
}

// trim forgets history that can no longer be sampled.
func (w *wire) trim(now uint32) {
	keep := 0
	for i, tr := range w.hist {
		if timex.Reached(now, tr.at) {
			keep = i
		}
	}
	if keep > 0 {
		w.hist = append(w.hist[:0], w.hist[keep:]...)
	}
}

func (w *wire) detach(p *Pin) {
	for i, q := range w.pins {
		if q == p {
			w.pins = append(w.pins[:i], w.pins[i+1:]...)
			return
		}
	}
}

// ----------------------------- bench -----------------------------------------

type pending struct {
	pin    *Pin
	at     uint32
	edge   hal.Edge
	replay bool // a latched edge fired at re-arm
}

// Bench owns the clock, the pins and the queue of undelivered edges.
type Bench struct {
	Clock *Clock

	// LatchEdges replays one masked edge per pin when its handler is armed
	// again, instead of dropping it.
	LatchEdges bool

	mu        sync.Mutex
	npins     int
	pins      map[int]*Pin
	queue     []pending
	masked    uint64
	delivered uint64
}

// NewBench returns a bench with DefaultPins pins. A nil clock gets a 1 µs
// step clock.
func NewBench(clk *Clock) *Bench {
	if clk == nil {
		clk = NewClock(1)
	}
	return &Bench{Clock: clk, npins: DefaultPins, pins: make(map[int]*Pin)}
}

// ByNumber implements hal.PinFactory. Pins are created on first use, each on
// its own wire idling high.
func (b *Bench) ByNumber(n int) (hal.GPIOPin, bool) {
	p := b.Pin(n)
	if p == nil {
		return nil, false
	}
	return p, true
}

// Pin returns the concrete pin, or nil when n is out of range.
func (b *Bench) Pin(n int) *Pin {
	if n < 0 || n >= b.npins {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pinLocked(n)
}

func (b *Bench) pinLocked(n int) *Pin {
	p, ok := b.pins[n]
	if !ok {
		w := &wire{idle: true}
		p = &Pin{b: b, n: n, w: w}
		w.pins = append(w.pins, p)
		b.pins[n] = p
	}
	return p
}

// Connect puts pin to on the wire of pin from (e.g. TX of one UART to RX of
// another). Out-of-range pins are ignored.
func (b *Bench) Connect(from, to int) {
	if from < 0 || from >= b.npins || to < 0 || to >= b.npins || from == to {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	src, dst := b.pinLocked(from), b.pinLocked(to)
	if src.w == dst.w {
		return
	}
	dst.w.detach(dst)
	dst.w = src.w
	src.w.pins = append(src.w.pins, dst)
}

// drive records a level change by src (nil for an external driver) and
// queues the resulting edge for every other pin on the wire.
func (b *Bench) drive(w *wire, src *Pin, at uint32, level bool) {
	prev := w.levelAt(at)
	w.insert(transition{at: at, level: level})
	if prev == level {
		return
	}
	edge := hal.EdgeRising
	if !level {
		edge = hal.EdgeFalling
	}
	for _, q := range w.pins {
		if q != src {
			b.queue = append(b.queue, pending{pin: q, at: at, edge: edge})
		}
	}
}

// Inject drives 8-N-1 frames onto pin's wire as an external peer would:
// start bit at at, data LSB first, one stop bit, frames back to back. It
// returns the time the last stop bit ends.
func (b *Bench) Inject(pin int, at, bitPeriod uint32, data ...byte) uint32 {
	p := b.Pin(pin)
	if p == nil {
		return at
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := at
	for _, d := range data {
		b.drive(p.w, nil, t, false)
		for i := uint32(0); i < 8; i++ {
			b.drive(p.w, nil, t+bitPeriod*(i+1), d&(1<<i) != 0)
		}
		b.drive(p.w, nil, t+bitPeriod*9, true)
		t += bitPeriod * 10
	}
	return t
}

// Deliver replays queued edges in time order, invoking armed handlers with
// the clock rewound to each edge's timestamp. Afterwards the clock never
// stands earlier than where it was. It returns the number of handler calls.
func (b *Bench) Deliver() int {
	n := 0
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			now := b.Clock.Now()
			for _, p := range b.pins {
				p.w.trim(now)
			}
			b.mu.Unlock()
			return n
		}
		i := 0
		for j := 1; j < len(b.queue); j++ {
			if !timex.Reached(b.queue[j].at, b.queue[i].at) {
				i = j
			}
		}
		ev := b.queue[i]
		b.queue = append(b.queue[:i], b.queue[i+1:]...)

		p := ev.pin
		if ev.replay {
			p.replayQueued = false
		}
		if !edgeWanted(p.edge, ev.edge) {
			b.mu.Unlock()
			continue
		}
		h := p.handler
		if h == nil || !timex.Reached(ev.at, p.armedAt) {
			b.masked++
			if b.LatchEdges {
				p.latched = ev.edge
				if h != nil {
					b.replayLocked(p)
				}
			}
			b.mu.Unlock()
			continue
		}
		resume := b.Clock.Now()
		b.Clock.Set(ev.at)
		b.delivered++
		b.mu.Unlock()

		h()
		n++
		if !timex.Reached(b.Clock.Now(), resume) {
			b.Clock.Set(resume)
		}
	}
}

// replayLocked queues the latched edge of p to fire at its arm time. At
// most one replay per pin is outstanding, as a status bit holds one event.
func (b *Bench) replayLocked(p *Pin) {
	if p.latched == hal.EdgeNone {
		return
	}
	if !p.replayQueued {
		b.queue = append(b.queue, pending{pin: p, at: p.armedAt, edge: p.latched, replay: true})
		p.replayQueued = true
	}
	p.latched = hal.EdgeNone
}

// Pending returns the number of queued, undelivered edges.
func (b *Bench) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Delivered counts handler invocations.
func (b *Bench) Delivered() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delivered
}

// Masked counts wanted edges dropped because the handler was detached.
func (b *Bench) Masked() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.masked
}

func edgeWanted(cfg, seen hal.Edge) bool {
	switch cfg {
	case hal.EdgeBoth:
		return seen == hal.EdgeRising || seen == hal.EdgeFalling
	default:
		return cfg == seen
	}
}

// ----------------------------- pins ------------------------------------------

// Pin implements hal.IRQPin on a bench wire.
type Pin struct {
	b *Bench
	n int
	w *wire

	out     bool
	pull    hal.Pull
	edge    hal.Edge // last requested edge; kept across ClearIRQ
	handler func()
	armedAt uint32

	latched      hal.Edge // edge seen while masked, LatchEdges only
	replayQueued bool
}

func (p *Pin) ConfigureInput(pull hal.Pull) error {
	p.b.mu.Lock()
	p.out = false
	p.pull = pull
	if len(p.w.hist) == 0 {
		p.w.idle = pull != hal.PullDown
	}
	p.b.mu.Unlock()
	return nil
}

func (p *Pin) ConfigureOutput(initial bool) error {
	p.b.mu.Lock()
	p.out = true
	p.b.drive(p.w, p, p.b.Clock.Now(), initial)
	p.b.mu.Unlock()
	return nil
}

// Set drives the wire when the pin is an output; inputs ignore it.
func (p *Pin) Set(level bool) {
	p.b.mu.Lock()
	if p.out {
		p.b.drive(p.w, p, p.b.Clock.Now(), level)
	}
	p.b.mu.Unlock()
}

func (p *Pin) Get() bool {
	p.b.mu.Lock()
	v := p.w.levelAt(p.b.Clock.Now())
	p.b.mu.Unlock()
	return v
}

func (p *Pin) Toggle() { p.Set(!p.Get()) }

func (p *Pin) Number() int { return p.n }

func (p *Pin) SetIRQ(edge hal.Edge, handler func()) error {
	p.b.mu.Lock()
	p.edge = edge
	p.handler = handler
	p.armedAt = p.b.Clock.Now()
	if p.b.LatchEdges {
		p.b.replayLocked(p)
	}
	p.b.mu.Unlock()
	return nil
}

func (p *Pin) ClearIRQ() error {
	p.b.mu.Lock()
	p.handler = nil
	p.b.mu.Unlock()
	return nil
}

// Armed reports whether an interrupt handler is attached.
func (p *Pin) Armed() bool {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.handler != nil
}

// Output reports whether the pin is configured as an output.
func (p *Pin) Output() bool {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.out
}

// Pull returns the configured pull resistor.
func (p *Pin) Pull() hal.Pull {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.pull
}

var _ hal.IRQPin = (*Pin)(nil)
