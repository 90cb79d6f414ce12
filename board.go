package main

import (
	"context"

	"softuart-go/services/hal"
	"softuart-go/services/softuart"
	"softuart-go/types"
	"softuart-go/x/timex"
)

// board is what a build target contributes: its config name, its pins and
// clock, and optionally a source of traffic for boards without real peers.
type board struct {
	name string
	pins hal.PinFactory
	clk  timex.Clock
	feed func(ctx context.Context, reg *softuart.Registry, cfg types.Config)
}
