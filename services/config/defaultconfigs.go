package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board name (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that board
// -----------------------------------------------------------------------------

// GPS module on GP5 (RX) / GP4 (TX); a 4800 baud auxiliary port on GP3/GP2
// whose bytes the main loop echoes to the console.
const cfgPico = `{
  "softuart": [
    {"name": "gps", "index": 0, "baud": 9600, "rx": 5, "tx": 4},
    {"name": "aux", "index": 1, "baud": 4800, "rx": 3, "tx": 2}
  ],
  "reader": {"mode": "lines", "max_frame": 96, "idle_flush_ms": 200},
  "timing": {"overflow_policy": "sticky"},
  "heartbeat": {"interval": 10},
  "gnss": {"enabled": true, "index": 0}
}`

// Two instances cross-wired on the simulation bench: 0.tx(GP0) -> 1.rx(GP5)
// and 1.tx(GP4) -> 0.rx(GP1).
const cfgHost = `{
  "softuart": [
    {"name": "host", "index": 0, "baud": 9600, "rx": 1, "tx": 0},
    {"name": "gps",  "index": 1, "baud": 9600, "rx": 5, "tx": 4}
  ],
  "reader": {"mode": "lines", "max_frame": 96, "idle_flush_ms": 200},
  "timing": {"overflow_policy": "clear_on_empty"},
  "heartbeat": {"interval": 5},
  "gnss": {"enabled": true, "index": 1}
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"host": []byte(cfgHost),
}
