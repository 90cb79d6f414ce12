// Package uartio turns a UART port into a stream of events: raw chunks in
// bytes mode or newline-terminated records in lines mode (NMEA, AT
// responses).
package uartio

import (
	"context"
	"sync"
	"time"

	"softuart-go/errcode"
	"softuart-go/services/hal"
	"softuart-go/services/internal/util"
	"softuart-go/x/logx"
	"softuart-go/x/mathx"
)

const (
	ModeBytes = "bytes"
	ModeLines = "lines"

	DirRX = "rx"
	DirTX = "tx"

	minFrame     = 8
	maxFrame     = 256
	maxIdleFlush = 2 * time.Second
	recvSlice    = 250 * time.Millisecond
)

type Event struct {
	Index int
	Dir   string // "rx" | "tx"
	Data  []byte
	TS    time.Time
}

type ReaderCfg struct {
	Index     int
	Port      hal.UARTPort
	Mode      string        // "bytes" | "lines"
	MaxFrame  int           // clamp 8..256
	IdleFlush time.Duration // clamp 0..2s (lines mode)
}

type Worker struct {
	outQ chan Event

	mu     sync.Mutex
	frames map[int]int // index -> MaxFrame, for TX echo chunking
	drops  uint64
}

func New(outBuf int) *Worker {
	if outBuf <= 0 {
		outBuf = 64
	}
	return &Worker{outQ: make(chan Event, outBuf), frames: map[int]int{}}
}

func (w *Worker) Events() <-chan Event { return w.outQ }

// Dropped counts events discarded because the consumer was slow.
func (w *Worker) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drops
}

func (w *Worker) emit(ev Event) {
	select {
	case w.outQ <- ev:
	default:
		w.mu.Lock()
		w.drops++
		w.mu.Unlock()
	}
}

// Register starts a reader goroutine for cfg.Port. The returned function
// stops it. An empty Mode means bytes.
func (w *Worker) Register(ctx context.Context, cfg ReaderCfg) (func(), error) {
	if cfg.Port == nil {
		return nil, errcode.New(errcode.InvalidParams, "uartio", "nil port")
	}
	switch cfg.Mode {
	case "", ModeBytes, ModeLines:
	default:
		return nil, errcode.New(errcode.InvalidParams, "uartio", "unknown mode "+cfg.Mode)
	}
	max := mathx.Clamp(cfg.MaxFrame, minFrame, maxFrame)
	idle := mathx.Clamp(cfg.IdleFlush, 0, maxIdleFlush)
	lines := cfg.Mode == ModeLines

	w.mu.Lock()
	w.frames[cfg.Index] = max
	w.mu.Unlock()

	cctx, cancel := context.WithCancel(ctx)
	logx.Debug(logx.ComponentReader, "reader started", "index", cfg.Index, "mode", cfg.Mode, "max_frame", max)

	go func() {
		buf := make([]byte, max)
		var line []byte
		timer := util.StoppedTimer()
		defer timer.Stop()

		flush := func(now time.Time) {
			if len(line) == 0 {
				return
			}
			w.emit(Event{Index: cfg.Index, Dir: DirRX, Data: append([]byte(nil), line...), TS: now})
			line = line[:0]
		}

		consume := func(p []byte, now time.Time) {
			if !lines {
				w.emit(Event{Index: cfg.Index, Dir: DirRX, Data: append([]byte(nil), p...), TS: now})
				return
			}
			for _, b := range p {
				switch b {
				case '\n':
					flush(now)
				case '\r':
				default:
					if len(line) < max {
						line = append(line, b)
					}
				}
			}
		}

		for {
			if lines && len(line) > 0 && idle > 0 {
				util.ResetTimer(timer, idle)
			} else {
				util.ResetTimer(timer, time.Hour)
			}
			select {
			case <-cctx.Done():
				logx.Debug(logx.ComponentReader, "reader stopped", "index", cfg.Index)
				return
			case <-cfg.Port.Readable():
				// One wake-up may cover more than a buffer's worth.
				for {
					rctx, rcancel := context.WithTimeout(cctx, recvSlice)
					n, _ := cfg.Port.RecvSomeContext(rctx, buf)
					rcancel()
					if n <= 0 {
						break
					}
					consume(buf[:n], time.Now())
					if cfg.Port.Buffered() == 0 {
						break
					}
				}
			case <-timer.C:
				flush(time.Now())
			}
		}
	}()

	return cancel, nil
}

// EmitTX publishes a TX echo of data, split into frames no longer than the
// reader's MaxFrame for that index.
func (w *Worker) EmitTX(index int, data []byte) {
	w.mu.Lock()
	max, ok := w.frames[index]
	w.mu.Unlock()
	if !ok {
		max = maxFrame
	}
	now := time.Now()
	for len(data) > 0 {
		n := min(len(data), max)
		w.emit(Event{Index: index, Dir: DirTX, Data: append([]byte(nil), data[:n]...), TS: now})
		data = data[n:]
	}
}
