package types

// ------------------------
// Soft UART configuration
// ------------------------

// SoftUARTConfig describes one instance to open at boot.
type SoftUARTConfig struct {
	Name  string  `json:"name,omitempty"`
	Index int     `json:"index"`
	Baud  float64 `json:"baud"`
	RX    int     `json:"rx"`
	TX    int     `json:"tx"`
}

// ReaderConfig selects how received bytes are framed into events.
type ReaderConfig struct {
	Mode        string `json:"mode,omitempty"`      // "bytes" | "lines"
	MaxFrame    int    `json:"max_frame,omitempty"` // bytes
	IdleFlushMS int    `json:"idle_flush_ms,omitempty"`
}

// TimingConfig overrides the engine defaults. Zero values keep them.
type TimingConfig struct {
	StartupMarginUS *uint32 `json:"startup_margin_us,omitempty"`
	SettleBits      *uint32 `json:"settle_bits,omitempty"`
	OverflowPolicy  string  `json:"overflow_policy,omitempty"` // sticky | clear_on_read | clear_on_empty
}

type HeartbeatConfig struct {
	Interval int `json:"interval"` // seconds
}

// GNSSConfig attaches the NMEA parser to a soft UART instance.
type GNSSConfig struct {
	Enabled bool `json:"enabled"`
	Index   int  `json:"index"`
}

// Config is a board's complete document.
type Config struct {
	SoftUART  []SoftUARTConfig `json:"softuart"`
	Reader    ReaderConfig     `json:"reader"`
	Timing    TimingConfig     `json:"timing"`
	Heartbeat HeartbeatConfig  `json:"heartbeat"`
	GNSS      GNSSConfig       `json:"gnss"`
}

// ------------------------
// Status payloads
// ------------------------

// SerialInfo is published retained once an instance opens.
type SerialInfo struct {
	Index  int     `json:"index"`
	Name   string  `json:"name,omitempty"`
	Baud   float64 `json:"baud"`
	RX     int     `json:"rx"`
	TX     int     `json:"tx"`
	BitUS  uint32  `json:"bit_us"`
	Format string  `json:"format"` // always "8N1"
}

// SerialStats mirrors the engine counters.
type SerialStats struct {
	Index    int    `json:"index"`
	Active   bool   `json:"active"`
	Buffered int    `json:"buffered"`
	Overflow bool   `json:"overflow"`
	Frames   uint64 `json:"frames"`
	Overruns uint64 `json:"overruns"`
	Ignored  uint64 `json:"ignored"`
	Sent     uint64 `json:"sent"`
}

// Fix is a decoded GNSS position.
type Fix struct {
	Valid      bool    `json:"valid"`
	TimeUnixMs int64   `json:"time_ms"`
	Lat        float32 `json:"lat"`
	Lon        float32 `json:"lon"`
	AltM       int32   `json:"alt_m"`
	Satellites int16   `json:"sats"`
	SpeedKn    float32 `json:"speed_kn"`
	Heading    float32 `json:"heading"`
}
