package main

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"softuart-go/bus"
	"softuart-go/services/config"
	"softuart-go/services/gnss"
	"softuart-go/services/heartbeat"
	"softuart-go/services/softuart"
	"softuart-go/services/uartio"
	"softuart-go/types"
	"softuart-go/x/conv"
	"softuart-go/x/logx"
)

const pollInterval = 10 * time.Millisecond

func main() {
	bd := setupBoard()
	println("boot", bd.name)

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, bd.name)

	cfg, err := config.Load(bd.name)
	if err != nil {
		println("config:", err.Error())
		return
	}

	b := bus.NewBus(16)
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	opts := append(config.Options(cfg), softuart.WithClock(bd.clk))
	reg := softuart.New(bd.pins, opts...)
	app := b.NewConnection("app")

	var polled []drivers.UART
	var stops []func()
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()
	reader := uartio.New(64)
	for _, u := range cfg.SoftUART {
		if err := reg.Open(u.Index, u.Baud, u.RX, u.TX); err != nil {
			println("open", u.Index, "failed:", err.Error())
			continue
		}
		app.Publish(app.NewMessage(infoTopic(u.Index), info(reg, u), true))
		logx.Info(logx.ComponentApp, "uart open", "index", u.Index, "name", u.Name,
			"baud", u.Baud, "bit_us", reg.BitPeriod(u.Index))

		if cfg.GNSS.Enabled && u.Index == cfg.GNSS.Index {
			stopReader, err := reader.Register(ctx, uartio.ReaderCfg{
				Index:     u.Index,
				Port:      reg.Port(u.Index),
				Mode:      cfg.Reader.Mode,
				MaxFrame:  cfg.Reader.MaxFrame,
				IdleFlush: time.Duration(cfg.Reader.IdleFlushMS) * time.Millisecond,
			})
			if err != nil {
				println("reader", u.Index, "failed:", err.Error())
				continue
			}
			stops = append(stops, stopReader)
			continue
		}
		polled = append(polled, reg.Port(u.Index))
	}
	if cfg.GNSS.Enabled {
		go gnss.Run(ctx, b.NewConnection("gnss"), reader.Events(), cfg.GNSS.Index)
		go printFixes(b.NewConnection("fix"))
	}
	if err := (&heartbeat.Service{Reg: reg}).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		println("heartbeat:", err.Error())
	}
	if bd.feed != nil {
		go bd.feed(ctx, reg, cfg)
	}

	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	line := make([]byte, 0, 32)
	var buf [16]byte
	for range tick.C {
		for _, u := range polled {
			for u.Buffered() > 0 {
				n, err := u.Read(buf[:])
				if err != nil || n == 0 {
					break
				}
				for _, c := range buf[:n] {
					line = conv.RxLine(line[:0], c)
					println(string(line))
				}
			}
		}
	}
}

func infoTopic(index int) bus.Topic {
	return bus.T("softuart", string(conv.AppendUint(nil, uint64(index))), "info")
}

func info(reg *softuart.Registry, u types.SoftUARTConfig) types.SerialInfo {
	return types.SerialInfo{
		Index:  u.Index,
		Name:   u.Name,
		Baud:   u.Baud,
		RX:     u.RX,
		TX:     u.TX,
		BitUS:  reg.BitPeriod(u.Index),
		Format: "8N1",
	}
}

func printFixes(conn *bus.Connection) {
	sub := conn.Subscribe(gnss.TopicFix)
	for m := range sub.Channel() {
		fix, ok := m.Payload.(types.Fix)
		if !ok || !fix.Valid {
			continue
		}
		println("fix", fix.Lat, fix.Lon, "sats", fix.Satellites)
	}
}
