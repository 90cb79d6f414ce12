//go:build rp2040 || rp2350

package main

import (
	"time"

	"softuart-go/services/hal/rp2"
	"softuart-go/x/timex"
)

func setupBoard() board {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	return board{name: "pico", pins: rp2.NewPinFactory(), clk: timex.NewSystemClock()}
}
