//go:build rp2040 || rp2350

// softuart-selftest checks a soft UART against the hardware UART0 peer.
// Jumper GP0 (UART0 TX) to GP3 (soft RX) and GP2 (soft TX) to GP1 (UART0
// RX) before flashing. Results are printed on the USB console.
package main

import (
	"bytes"
	"context"
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"softuart-go/services/hal/rp2"
	"softuart-go/services/softuart"
	"softuart-go/x/conv"
	"softuart-go/x/timex"
)

const (
	baud   = 9600
	softRX = 3
	softTX = 2

	integrityBytes = 1024
	chunk          = 32 // below the soft receive ring's capacity
)

func main() {
	time.Sleep(2 * time.Second)
	println("[selftest] boot")

	hw := uartx.UART0
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.UART_TX_PIN,
		RX:       machine.UART_RX_PIN,
	}); err != nil {
		println("[selftest] FAIL: uart0 configure:", err.Error())
		return
	}

	reg := softuart.New(rp2.NewPinFactory(), softuart.WithClock(timex.NewSystemClock()))
	if err := reg.Open(0, baud, softRX, softTX); err != nil {
		println("[selftest] FAIL: open:", err.Error())
		return
	}
	port := reg.Port(0)
	println("[selftest] soft uart0 bit_us=", reg.BitPeriod(0))

	report("smoke hw->soft", hwToSoft(hw, port, []byte("hello-soft"), 2*time.Second))
	report("smoke soft->hw", softToHW(port, hw, []byte("hello-hw"), 2*time.Second))
	report("integrity hw->soft", integrity(func(p []byte) bool {
		return hwToSoft(hw, port, p, 2*time.Second)
	}))
	report("integrity soft->hw", integrity(func(p []byte) bool {
		return softToHW(port, hw, p, 2*time.Second)
	}))

	st, _ := reg.Stats(0)
	line := []byte("[selftest] frames=")
	line = conv.AppendUint(line, st.Frames)
	line = append(line, " overruns="...)
	line = conv.AppendUint(line, st.Overruns)
	line = append(line, " ignored="...)
	line = conv.AppendUint(line, st.Ignored)
	line = append(line, " sent="...)
	line = conv.AppendUint(line, st.Sent)
	println(string(line))
	_ = reg.Close(0)
	println("[selftest] done")
}

func report(name string, ok bool) {
	if ok {
		println("[selftest]", name, "PASS")
	} else {
		println("[selftest]", name, "FAIL")
	}
}

// hwToSoft writes msg on the hardware UART and waits for the soft receiver
// to produce exactly the same bytes.
func hwToSoft(hw *uartx.UART, port *softuart.Port, msg []byte, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := hw.Write(msg); err != nil {
		return false
	}
	return readExact(ctx, port.RecvSomeContext, msg)
}

// softToHW transmits msg on the soft UART and reads it back from the
// hardware receiver.
func softToHW(port *softuart.Port, hw *uartx.UART, msg []byte, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := port.Write(msg); err != nil {
		return false
	}
	return readExact(ctx, hw.RecvSomeContext, msg)
}

func readExact(ctx context.Context, recv func(context.Context, []byte) (int, error), want []byte) bool {
	got := make([]byte, 0, len(want))
	tmp := make([]byte, chunk)
	for len(got) < len(want) {
		n, err := recv(ctx, tmp)
		if err != nil {
			println("[selftest] short read:", len(got), "of", len(want))
			return false
		}
		got = append(got, tmp[:n]...)
	}
	return bytes.Equal(got[:len(want)], want)
}

// integrity pushes a deterministic pattern through xfer in chunks; each
// chunk must arrive intact.
func integrity(xfer func([]byte) bool) bool {
	seed := byte(0xA5)
	out := make([]byte, chunk)
	for sent := 0; sent < integrityBytes; sent += chunk {
		for i := range out {
			seed = seed*29 + 7
			out[i] = seed
		}
		if !xfer(out) {
			println("[selftest] chunk failed at", sent)
			return false
		}
	}
	return true
}
