// Package heartbeat periodically publishes the soft UART counters.
package heartbeat

import (
	"context"
	"strconv"
	"time"

	"softuart-go/bus"
	"softuart-go/services/internal/util"
	"softuart-go/services/softuart"
	"softuart-go/types"
	"softuart-go/x/logx"
)

var topicConfigHeartbeat = bus.T("config", "heartbeat")

const defaultInterval = 2 * time.Second

// StatsTopic is where index's counters are published.
func StatsTopic(index int) bus.Topic {
	return bus.T("softuart", strconv.Itoa(index), "stats")
}

type Service struct {
	Reg *softuart.Registry
}

// Snapshot gathers the counters and buffer state of every instance.
func (s *Service) Snapshot() []types.SerialStats {
	out := make([]types.SerialStats, 0, softuart.MaxInstances)
	for i := 0; i < softuart.MaxInstances; i++ {
		st, _ := s.Reg.Stats(i)
		out = append(out, types.SerialStats{
			Index:    i,
			Active:   s.Reg.IsActive(i),
			Buffered: s.Reg.Available(i),
			Overflow: s.Reg.Overflow(i),
			Frames:   st.Frames,
			Overruns: st.Overruns,
			Ignored:  st.Ignored,
			Sent:     st.Sent,
		})
	}
	return out
}

func (s *Service) beat(conn *bus.Connection) {
	for _, st := range s.Snapshot() {
		if !st.Active {
			continue
		}
		conn.Publish(conn.NewMessage(StatsTopic(st.Index), st, false))
		if st.Overflow {
			logx.Warn(logx.ComponentMonitor, "receive overflow", "index", st.Index, "overruns", st.Overruns)
		}
	}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			logx.Debug(logx.ComponentMonitor, "heartbeat stopping")
			return
		case <-tick.C:
			s.beat(conn)
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			var hb types.HeartbeatConfig
			if err := util.DecodeJSON(msg.Payload, &hb); err != nil || hb.Interval <= 0 {
				logx.Warn(logx.ComponentMonitor, "ignoring heartbeat config", "payload", msg.Payload)
				continue
			}
			tick.Reset(time.Duration(hb.Interval) * time.Second)
			logx.Info(logx.ComponentMonitor, "interval set", "seconds", hb.Interval)
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
