//go:build linux

// softuart-sim runs two soft UARTs on a simulated bench, cross-wired
// (uart0.tx GP0 -> uart1.rx GP5, uart1.tx GP4 -> uart0.rx GP1), and reads
// console commands from stdin. With -pty one instance is also exposed as a
// pseudo-terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"softuart-go/services/console"
	"softuart-go/services/hal"
	"softuart-go/services/hal/sim"
	"softuart-go/services/ptybridge"
	"softuart-go/services/softuart"
	"softuart-go/x/logx"
)

// benchPort serialises port writes with the console so only one goroutine
// drives the bench at a time, and delivers the resulting edges.
type benchPort struct {
	hal.UARTPort
	mu    *sync.Mutex
	bench *sim.Bench
}

func (p benchPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.UARTPort.Write(b)
	p.bench.Deliver()
	return n, err
}

func (p benchPort) WriteByte(c byte) error {
	_, err := p.Write([]byte{c})
	return err
}

func main() {
	baud := flag.Float64("baud", 9600, "baud rate of both instances")
	ptyIndex := flag.Int("pty", -1, "expose this instance on a pty (-1 disables)")
	policy := flag.String("overflow", "sticky", "overflow policy: sticky, clear_on_read, clear_on_empty")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		logx.SetLevel(slog.LevelDebug)
	}
	pol, ok := softuart.ParseOverflowPolicy(*policy)
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown overflow policy:", *policy)
		os.Exit(2)
	}

	bench := sim.NewBench(nil)
	bench.LatchEdges = true
	reg := softuart.New(bench, softuart.WithClock(bench.Clock), softuart.WithOverflowPolicy(pol))
	for i, p := range [][2]int{{1, 0}, {5, 4}} {
		if err := reg.Open(i, *baud, p[0], p[1]); err != nil {
			fmt.Fprintln(os.Stderr, "open:", err)
			os.Exit(1)
		}
	}
	bench.Connect(0, 5)
	bench.Connect(4, 1)

	var mu sync.Mutex
	con := &console.Console{
		Reg:     reg,
		Out:     os.Stdout,
		AfterTX: func() { bench.Deliver() },
		Inject: func(pin int, data []byte) error {
			bit := reg.BitPeriod(0)
			if bit == 0 {
				bit = reg.BitPeriod(1)
			}
			if bit == 0 {
				return errors.New("no open instance to take the bit period from")
			}
			bench.Inject(pin, bench.Clock.Now()+bit, bit, data...)
			bench.Deliver()
			return nil
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if port := reg.Port(*ptyIndex); port != nil {
		br, err := ptybridge.Open(benchPort{UARTPort: port, mu: &mu, bench: bench})
		if err != nil {
			fmt.Fprintln(os.Stderr, "pty:", err)
			os.Exit(1)
		}
		defer br.Close()
		br.Start(ctx)
		fmt.Printf("uart%d on %s\n", *ptyIndex, br.SlavePath())
	}

	fmt.Println("type 'help' for commands")
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = l
		}
		mu.Lock()
		err := con.Exec(line)
		mu.Unlock()
		if errors.Is(err, console.ErrQuit) {
			return
		}
		if err != nil {
			fmt.Println("error:", err)
		}
	}
}
