package uartio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"softuart-go/errcode"
	"softuart-go/services/hal/sim"
	"softuart-go/services/softuart"
)

// --- minimal fake UART implementing hal.UARTPort ---

type fakeUART struct {
	mu sync.Mutex
	rx []byte
	rd chan struct{}
}

func newFakeUART() *fakeUART { return &fakeUART{rd: make(chan struct{}, 1)} }

func (f *fakeUART) inject(b []byte) {
	f.mu.Lock()
	f.rx = append(f.rx, b...)
	f.mu.Unlock()
	select {
	case f.rd <- struct{}{}:
	default:
	}
}

func (f *fakeUART) WriteByte(byte) error        { return nil }
func (f *fakeUART) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeUART) Buffered() int               { f.mu.Lock(); n := len(f.rx); f.mu.Unlock(); return n }
func (f *fakeUART) Read(p []byte) (int, error) {
	f.mu.Lock()
	n := copy(p, f.rx)
	f.rx = f.rx[n:]
	f.mu.Unlock()
	return n, nil
}
func (f *fakeUART) Readable() <-chan struct{} { return f.rd }
func (f *fakeUART) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	for {
		if n, _ := f.Read(p); n > 0 {
			return n, nil
		}
		select {
		case <-f.rd:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// --- helpers ---

func recvEvent(ch <-chan Event, d time.Duration) (Event, bool) {
	select {
	case ev := <-ch:
		return ev, true
	case <-time.After(d):
		return Event{}, false
	}
}

// --- tests ---

func TestWorker_BytesMode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := newFakeUART()
	w := New(8)
	stop, err := w.Register(ctx, ReaderCfg{Index: 1, Port: u, Mode: ModeBytes, MaxFrame: 16})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer stop()

	u.inject([]byte("abc"))
	ev, ok := recvEvent(w.Events(), time.Second)
	if !ok {
		t.Fatal("timeout waiting for rx")
	}
	if ev.Index != 1 || ev.Dir != DirRX || string(ev.Data) != "abc" || ev.TS.IsZero() {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// Longer than MaxFrame: split across reads.
	u.inject([]byte("0123456789abcdefXYZ"))
	var got []byte
	for len(got) < 19 {
		ev, ok := recvEvent(w.Events(), time.Second)
		if !ok {
			t.Fatalf("timeout, have %q", got)
		}
		if len(ev.Data) > 16 {
			t.Fatalf("frame of %d bytes exceeds MaxFrame", len(ev.Data))
		}
		got = append(got, ev.Data...)
	}
	if string(got) != "0123456789abcdefXYZ" {
		t.Fatalf("got %q", got)
	}
}

func TestWorker_LinesMode_NewlineAndIdleFlush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := newFakeUART()
	w := New(8)
	stop, _ := w.Register(ctx, ReaderCfg{
		Index:     0,
		Port:      u,
		Mode:      ModeLines,
		MaxFrame:  32,
		IdleFlush: 30 * time.Millisecond,
	})
	defer stop()

	u.inject([]byte("a"))
	ev, ok := recvEvent(w.Events(), 500*time.Millisecond)
	if !ok || string(ev.Data) != "a" {
		t.Fatalf("idle flush got %q ok=%v", ev.Data, ok)
	}

	u.inject([]byte("hi\r\nthere\n"))
	for _, want := range []string{"hi", "there"} {
		ev, ok := recvEvent(w.Events(), time.Second)
		if !ok || string(ev.Data) != want {
			t.Fatalf("got %q ok=%v want %q", ev.Data, ok, want)
		}
	}
}

func TestWorker_StopEndsReader(t *testing.T) {
	u := newFakeUART()
	w := New(1)
	stop, _ := w.Register(context.Background(), ReaderCfg{Port: u, Mode: ModeBytes})
	stop()
	time.Sleep(20 * time.Millisecond)
	u.inject([]byte("late"))
	if _, ok := recvEvent(w.Events(), 50*time.Millisecond); ok {
		t.Fatal("event after stop")
	}
}

func TestWorker_RegisterRejectsBadConfig(t *testing.T) {
	w := New(1)
	if _, err := w.Register(context.Background(), ReaderCfg{Mode: ModeBytes}); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("nil port: %v", err)
	}
	if _, err := w.Register(context.Background(), ReaderCfg{Port: newFakeUART(), Mode: "frames"}); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("bad mode: %v", err)
	}
}

func TestWorker_TxEchoChunking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := newFakeUART()
	w := New(4)
	stop, _ := w.Register(ctx, ReaderCfg{Index: 3, Port: u, Mode: ModeBytes, MaxFrame: 8})
	defer stop()

	w.EmitTX(3, []byte("ABCDEFGHIJKLMNOPQRST"))
	for _, want := range []string{"ABCDEFGH", "IJKLMNOP", "QRST"} {
		ev, ok := recvEvent(w.Events(), time.Second)
		if !ok || ev.Dir != DirTX || string(ev.Data) != want {
			t.Fatalf("got %+v ok=%v want %q", ev, ok, want)
		}
	}
}

func TestWorker_DropsWhenConsumerSlow(t *testing.T) {
	w := New(1)
	w.EmitTX(0, []byte("a"))
	w.EmitTX(0, []byte("b"))
	if w.Dropped() != 1 {
		t.Fatalf("dropped=%d", w.Dropped())
	}
}

// NMEA lines over a real soft UART on the simulation bench.
func TestWorker_LinesOverSoftUART(t *testing.T) {
	b := sim.NewBench(nil)
	reg := softuart.New(b, softuart.WithClock(b.Clock))
	if err := reg.Open(0, 4800, 5, 4); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(4)
	stop, _ := w.Register(ctx, ReaderCfg{Index: 0, Port: reg.Port(0), Mode: ModeLines, MaxFrame: 64})
	defer stop()

	b.Inject(5, b.Clock.Now()+10, reg.BitPeriod(0), []byte("$GPGLL,1*\r\n")...)
	b.Deliver()

	ev, ok := recvEvent(w.Events(), time.Second)
	if !ok || string(ev.Data) != "$GPGLL,1*" {
		t.Fatalf("got %q ok=%v", ev.Data, ok)
	}
}
