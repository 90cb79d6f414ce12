// Package softuart bit-bangs 8-N-1 asynchronous serial over two GPIOs.
//
// A Registry holds a fixed table of MaxInstances UARTs. Opening an instance
// configures its pins and arms a falling-edge interrupt on RX; the interrupt
// handler samples one byte per start bit into the instance's ring. Transmit is
// a blocking busy-wait sequencer in the caller's context.
//
// Timing relies on polling a microsecond clock. Anything that preempts the
// polling loops (other interrupts, a host scheduler) stretches the bit being
// produced or sampled; this is a known limitation of software UARTs.
package softuart

import (
	"sync"
	"sync/atomic"

	"softuart-go/errcode"
	"softuart-go/services/hal"
	"softuart-go/services/softuart/internal/timing"
	"softuart-go/x/logx"
	"softuart-go/x/shmring"
	"softuart-go/x/timex"
)

// MaxInstances is the size of the instance table.
const MaxInstances = 2

// Receive state machine: closed -> armed -> sampling -> armed. Close landing
// during sampling moves to closing; the handler then finishes without
// committing or re-arming and moves to closed.
const (
	stateClosed uint32 = iota
	stateArmed
	stateSampling
	stateClosing
)

// line is the immutable configuration of one open instance.
type line struct {
	rx     hal.IRQPin
	tx     hal.GPIOPin
	rxPin  int
	txPin  int
	baud   float64
	timing timing.Profile
}

type instance struct {
	index int
	clk   timex.Clock
	cfg   atomic.Pointer[line] // nil while closed
	state atomic.Uint32
	buf   shmring.Ring
	stats counters
	isr   func()

	txMu sync.Mutex // serialises transmitters in normal context
}

// Registry is the bounded instance table.
type Registry struct {
	mu     sync.Mutex // Open/Close; never taken in interrupt context
	pins   hal.PinFactory
	clk    timex.Clock
	margin uint32
	settle uint32
	policy OverflowPolicy
	uarts  [MaxInstances]instance
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the microsecond time source used by both engines.
func WithClock(c timex.Clock) Option { return func(r *Registry) { r.clk = c } }

// WithStartupMargin sets the extra centring delay in µs (default 80).
func WithStartupMargin(us uint32) Option { return func(r *Registry) { r.margin = us } }

// WithSettleBits sets the idle hold after each transmitted byte, in bit
// periods (default 6).
func WithSettleBits(n uint32) Option { return func(r *Registry) { r.settle = n } }

// WithOverflowPolicy selects when the overflow flag clears.
func WithOverflowPolicy(p OverflowPolicy) Option { return func(r *Registry) { r.policy = p } }

// New builds a registry over the given pins. All instances start closed.
func New(pins hal.PinFactory, opts ...Option) *Registry {
	r := &Registry{
		pins:   pins,
		margin: timing.DefaultStartupMargin,
		settle: timing.DefaultSettleBits,
		policy: OverflowSticky,
	}
	for _, o := range opts {
		o(r)
	}
	if r.clk == nil {
		r.clk = timex.NewSystemClock()
	}
	for i := range r.uarts {
		u := &r.uarts[i]
		u.index = i
		u.clk = r.clk
		u.buf.Init()
		u.isr = u.onStartBit
	}
	return r
}

func validIndex(index int) bool { return index >= 0 && index < MaxInstances }

// Open activates instance index at baud on the given pins. It fails without
// touching any state when the index or baud rate is invalid, the pins are the
// same, a pin is unknown or lacks interrupts, or another active instance
// already uses either pin. Otherwise any previous configuration of index is
// closed, the receive buffer is emptied, RX becomes a pulled-up input, TX an
// output idling high, and the start-bit interrupt is armed. If a pin refuses
// its configuration, any previous configuration of index keeps running.
func (r *Registry) Open(index int, baud float64, rxPin, txPin int) error {
	const op = "open"
	if !validIndex(index) {
		return r.reject(op, errcode.InvalidIndex, index, "index out of range")
	}
	if !timing.Valid(baud) {
		return r.reject(op, errcode.InvalidBaud, index, "baud rate must be positive and finite")
	}
	if rxPin == txPin {
		return r.reject(op, errcode.InvalidParams, index, "rx and tx must differ")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.uarts {
		if i == index {
			continue
		}
		other := r.uarts[i].cfg.Load()
		if other == nil {
			continue
		}
		if other.rxPin == rxPin || other.txPin == txPin || other.rxPin == txPin || other.txPin == rxPin {
			return r.reject(op, errcode.PinInUse, index, "pins shared with active instance", "other", i)
		}
	}

	rx, tx, err := r.resolve(rxPin, txPin)
	if err != nil {
		return r.reject(op, errcode.Of(err), index, err.Error())
	}

	// Pins are configured before the prior configuration is torn down, so a
	// failure here leaves index as it was.
	if err := rx.ConfigureInput(hal.PullUp); err != nil {
		return &errcode.E{C: errcode.Error, Op: op, Msg: "configure rx", Err: err}
	}
	if err := tx.ConfigureOutput(true); err != nil {
		return &errcode.E{C: errcode.Error, Op: op, Msg: "configure tx", Err: err}
	}

	u := &r.uarts[index]
	u.shutdown()

	l := &line{
		rx:     rx,
		tx:     tx,
		rxPin:  rxPin,
		txPin:  txPin,
		baud:   baud,
		timing: timing.For(baud, r.margin, r.settle),
	}
	u.buf.Reset()
	u.cfg.Store(l)
	u.state.Store(stateArmed)
	if err := rx.SetIRQ(hal.EdgeFalling, u.isr); err != nil {
		u.state.Store(stateClosed)
		u.cfg.Store(nil)
		return &errcode.E{C: errcode.Error, Op: op, Msg: "attach interrupt", Err: err}
	}
	logx.Debug(logx.ComponentSoftUART, "opened", "index", index, "baud", baud,
		"rx", rxPin, "tx", txPin, "bit_us", l.timing.BitPeriod)
	return nil
}

func (r *Registry) resolve(rxPin, txPin int) (hal.IRQPin, hal.GPIOPin, error) {
	gp, ok := r.pins.ByNumber(rxPin)
	if !ok {
		return nil, nil, errcode.UnknownPin
	}
	rx, ok := gp.(hal.IRQPin)
	if !ok {
		return nil, nil, errcode.Unsupported
	}
	tx, ok := r.pins.ByNumber(txPin)
	if !ok {
		return nil, nil, errcode.UnknownPin
	}
	return rx, tx, nil
}

func (r *Registry) reject(op string, c errcode.Code, index int, msg string, args ...any) error {
	logx.Warn(logx.ComponentSoftUART, op+" rejected",
		append([]any{"index", index, "code", string(c)}, args...)...)
	return errcode.New(c, op, msg)
}

// Close detaches the RX interrupt and marks index inactive. Closing an
// inactive instance succeeds. If a reception is in flight, Close waits for
// the handler to finish; that byte is discarded.
func (r *Registry) Close(index int) error {
	if !validIndex(index) {
		return r.reject("close", errcode.InvalidIndex, index, "index out of range")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uarts[index].shutdown() {
		logx.Debug(logx.ComponentSoftUART, "closed", "index", index)
	}
	return nil
}

// IsActive reports whether index is open.
func (r *Registry) IsActive(index int) bool {
	return validIndex(index) && r.uarts[index].cfg.Load() != nil
}

// Config reports the baud rate and pins of an active instance.
func (r *Registry) Config(index int) (baud float64, rxPin, txPin int, ok bool) {
	if !validIndex(index) {
		return 0, 0, 0, false
	}
	l := r.uarts[index].cfg.Load()
	if l == nil {
		return 0, 0, 0, false
	}
	return l.baud, l.rxPin, l.txPin, true
}

// BitPeriod returns the bit period in µs of an active instance, 0 otherwise.
func (r *Registry) BitPeriod(index int) uint32 {
	if !validIndex(index) {
		return 0
	}
	if l := r.uarts[index].cfg.Load(); l != nil {
		return l.timing.BitPeriod
	}
	return 0
}

// active gates every per-instance operation.
func (r *Registry) active(op string, index int) (*instance, *line, error) {
	if !validIndex(index) {
		return nil, nil, errcode.New(errcode.InvalidIndex, op, "index out of range")
	}
	u := &r.uarts[index]
	l := u.cfg.Load()
	if l == nil {
		return u, nil, errcode.New(errcode.Inactive, op, "instance not open")
	}
	return u, l, nil
}

// shutdown disarms the receiver and clears the configuration. It reports
// whether the instance was active.
func (u *instance) shutdown() bool {
	l := u.cfg.Load()
	if l == nil {
		return false
	}
	for {
		switch u.state.Load() {
		case stateClosed:
			u.cfg.Store(nil)
			return true
		case stateArmed:
			if u.state.CompareAndSwap(stateArmed, stateClosed) {
				_ = l.rx.ClearIRQ()
				u.cfg.Store(nil)
				return true
			}
		case stateSampling:
			u.state.CompareAndSwap(stateSampling, stateClosing)
		case stateClosing:
			// The handler is finishing its frame; it moves to closed.
			spinYield()
		}
	}
}

// MaxSettleBits is the largest settle hold honoured; larger values are
// clamped.
const MaxSettleBits = timing.MaxSettleBits

// ValidBaud reports whether Open would accept baud.
func ValidBaud(baud float64) bool { return timing.Valid(baud) }
