// Package timing derives bit timing for an 8-N-1 software UART.
package timing

import (
	"math"

	"softuart-go/x/mathx"
)

const (
	// DefaultStartupMargin is added to the half-bit centring delay to cover
	// interrupt entry latency (µs).
	DefaultStartupMargin uint32 = 80

	// DefaultSettleBits is how many bit periods the transmitter holds the
	// line idle after each stop bit.
	DefaultSettleBits uint32 = 6

	// MaxBitPeriod keeps whole-frame deadlines well inside half the range of
	// a wrapping 32-bit µs counter.
	MaxBitPeriod uint32 = 1 << 26

	// MaxSettleBits bounds the idle hold so a whole transmitted frame,
	// 10 bits plus settle, stays below 2^31 µs at MaxBitPeriod.
	MaxSettleBits uint32 = 21
)

// Profile is the per-instance timing, all in microseconds.
type Profile struct {
	BitPeriod uint32
	Centering uint32 // edge -> start of the first intra-bit wait
	IntraBit  uint32
	StopBit   uint32
	Settle    uint32 // idle hold after a transmitted stop bit
}

// BitPeriod returns round(1e6 / baud) µs. Callers reject baud <= 0.
func BitPeriod(baud float64) uint32 {
	us := math.Round(1_000_000 / baud)
	if us > float64(math.MaxUint32) {
		return math.MaxUint32
	}
	return uint32(us)
}

// Valid reports whether baud yields a usable, non-zero bit period.
func Valid(baud float64) bool {
	if math.IsNaN(baud) || math.IsInf(baud, 0) || baud <= 0 {
		return false
	}
	return mathx.Between(BitPeriod(baud), 1, MaxBitPeriod)
}

// For computes the profile for baud. The startup margin is clamped to 0.4 of
// a bit so samples keep some slack before the next bit boundary; settleBits
// is clamped to MaxSettleBits.
func For(baud float64, margin, settleBits uint32) Profile {
	bit := BitPeriod(baud)
	margin = mathx.Clamp(margin, 0, mathx.RoundDiv(2*bit, 5))
	settleBits = mathx.Clamp(settleBits, 0, MaxSettleBits)
	return Profile{
		BitPeriod: bit,
		Centering: bit/2 + margin,
		IntraBit:  bit,
		StopBit:   bit,
		Settle:    bit * settleBits,
	}
}

// Sample returns the offset from the start edge of the sample for data bit
// i (0..7).
func (p Profile) Sample(i int) uint32 {
	return p.Centering + p.IntraBit*uint32(i+1)
}

// Rearm returns the offset from the start edge at which the receiver is
// armed again.
func (p Profile) Rearm() uint32 { return p.Sample(7) + p.StopBit }
