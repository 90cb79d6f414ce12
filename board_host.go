//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"time"

	"softuart-go/services/hal/sim"
	"softuart-go/services/softuart"
	"softuart-go/types"
)

const feedChunk = 16

// A fixed GGA sentence stands in for the GPS module on the bench.
const benchGGA = "$GPGGA,092750.000,5321.6802,N,00630.3372,W,1,8,1.03,61.7,M,55.2,M,,*76\r\n"

func setupBoard() board {
	bench := sim.NewBench(nil)
	bench.LatchEdges = true
	return board{
		name: "host",
		pins: bench,
		clk:  bench.Clock,
		feed: func(ctx context.Context, reg *softuart.Registry, cfg types.Config) {
			feedBench(ctx, bench, reg, cfg)
		},
	}
}

// feedBench drives the RX pins of the configured instances once a second:
// NMEA into the GNSS instance, a greeting into the others.
func feedBench(ctx context.Context, bench *sim.Bench, reg *softuart.Registry, cfg types.Config) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		for _, u := range cfg.SoftUART {
			bit := reg.BitPeriod(u.Index)
			if bit == 0 {
				continue
			}
			msg := "hi\n"
			if cfg.GNSS.Enabled && u.Index == cfg.GNSS.Index {
				msg = benchGGA
			}
			// Chunks smaller than the receive ring, with a pause for the
			// reader goroutine to drain between them.
			for len(msg) > 0 {
				n := min(len(msg), feedChunk)
				bench.Inject(u.RX, bench.Clock.Now()+bit, bit, []byte(msg[:n])...)
				bench.Deliver()
				msg = msg[n:]
				time.Sleep(5 * time.Millisecond)
			}
		}
	}
}
