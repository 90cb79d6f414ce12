package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"softuart-go/bus"
	"softuart-go/errcode"
	"softuart-go/services/softuart"
	"softuart-go/services/uartio"
	"softuart-go/types"
	"softuart-go/x/logx"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey is the context key carrying the board name.
const CtxDeviceKey ctxKey = "device"

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Boards lists the embedded board names.
func Boards() []string {
	out := make([]string, 0, len(embeddedConfigs))
	for k := range embeddedConfigs {
		out = append(out, k)
	}
	return out
}

// Load resolves, decodes and validates the document for device.
func Load(device string) (types.Config, error) {
	var cfg types.Config
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return cfg, errcode.New(errcode.InvalidParams, serviceName, "no embedded config for device: "+device)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, &errcode.E{C: errcode.InvalidParams, Op: serviceName, Msg: "decode " + device, Err: err}
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks a document before anything is opened: indices in range and
// unique, usable baud rates, rx != tx, and no pin shared between instances.
func Validate(cfg types.Config) error {
	seenIdx := map[int]bool{}
	pinOwner := map[int]int{}
	for _, u := range cfg.SoftUART {
		switch {
		case u.Index < 0 || u.Index >= softuart.MaxInstances:
			return invalid(errcode.InvalidIndex, "softuart[%d]: index out of range", u.Index)
		case seenIdx[u.Index]:
			return invalid(errcode.InvalidIndex, "softuart[%d]: duplicate index", u.Index)
		case !softuart.ValidBaud(u.Baud):
			return invalid(errcode.InvalidBaud, "softuart[%d]: bad baud %v", u.Index, u.Baud)
		case u.RX == u.TX:
			return invalid(errcode.InvalidParams, "softuart[%d]: rx and tx both %d", u.Index, u.RX)
		}
		seenIdx[u.Index] = true
		for _, p := range []int{u.RX, u.TX} {
			if other, ok := pinOwner[p]; ok {
				return invalid(errcode.PinInUse, "softuart[%d]: pin %d used by softuart[%d]", u.Index, p, other)
			}
			pinOwner[p] = u.Index
		}
	}
	switch cfg.Reader.Mode {
	case "", uartio.ModeBytes, uartio.ModeLines:
	default:
		return invalid(errcode.InvalidParams, "reader: unknown mode %q", cfg.Reader.Mode)
	}
	if _, ok := softuart.ParseOverflowPolicy(cfg.Timing.OverflowPolicy); !ok {
		return invalid(errcode.InvalidParams, "timing: unknown overflow policy %q", cfg.Timing.OverflowPolicy)
	}
	if sb := cfg.Timing.SettleBits; sb != nil && *sb > softuart.MaxSettleBits {
		return invalid(errcode.InvalidParams, "timing: settle_bits %d above %d", *sb, softuart.MaxSettleBits)
	}
	if cfg.GNSS.Enabled && !seenIdx[cfg.GNSS.Index] {
		return invalid(errcode.InvalidIndex, "gnss: softuart[%d] not configured", cfg.GNSS.Index)
	}
	return nil
}

func invalid(c errcode.Code, format string, args ...any) error {
	return errcode.New(c, serviceName, fmt.Sprintf(format, args...))
}

// Options maps the timing section onto registry options.
func Options(cfg types.Config) []softuart.Option {
	var opts []softuart.Option
	if cfg.Timing.StartupMarginUS != nil {
		opts = append(opts, softuart.WithStartupMargin(*cfg.Timing.StartupMarginUS))
	}
	if cfg.Timing.SettleBits != nil {
		opts = append(opts, softuart.WithSettleBits(*cfg.Timing.SettleBits))
	}
	if p, ok := softuart.ParseOverflowPolicy(cfg.Timing.OverflowPolicy); ok {
		opts = append(opts, softuart.WithOverflowPolicy(p))
	}
	return opts
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig reads the board config from embedded data and publishes each
// top-level key as a retained message on config/<key>.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}
	cfg, err := Load(device)
	if err != nil {
		return err
	}
	raw, _ := EmbeddedConfigLookup(device)
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), []byte(v), true))
	}
	logx.Info(logx.ComponentConfig, "config published", "device", device,
		"keys", len(m), "uarts", len(cfg.SoftUART))
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			logx.Error(logx.ComponentConfig, "publish failed", "err", err)
		}
	}()
}
