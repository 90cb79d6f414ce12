// Package gnss decodes NMEA sentences received on a soft UART into position
// fixes and publishes them on the bus.
package gnss

import (
	"context"
	"errors"
	"strings"

	"tinygo.org/x/drivers/gps"

	"softuart-go/bus"
	"softuart-go/errcode"
	"softuart-go/services/uartio"
	"softuart-go/types"
	"softuart-go/x/conv"
	"softuart-go/x/logx"
)

var TopicFix = bus.T("gnss", "fix")

const minSentence = 9 // "$GPxxx*hh"

// Checksum verifies the "$...*hh" framing and XOR checksum of sentence.
func Checksum(sentence string) error {
	n := len(sentence)
	if n < minSentence || sentence[0] != '$' || sentence[n-3] != '*' {
		return errcode.New(errcode.InvalidParams, "nmea", "bad framing")
	}
	var cs byte
	for i := 1; i < n-3; i++ {
		cs ^= sentence[i]
	}
	want := strings.ToUpper(sentence[n-2:])
	got := strings.ToUpper(string(conv.AppendHex8(nil, cs)))
	if got != want {
		return errcode.New(errcode.InvalidParams, "nmea", "checksum "+want+" computed "+got)
	}
	return nil
}

// Counters for the decoder.
type Counters struct {
	Fixes   uint64
	Skipped uint64 // well-formed but not a position sentence
	Bad     uint64 // framing, checksum or field errors
}

// Decoder turns sentences into fixes with the TinyGo GPS parser.
type Decoder struct {
	parser gps.Parser
	last   types.Fix
	c      Counters
}

func NewDecoder() *Decoder { return &Decoder{parser: gps.NewParser()} }

// Decode parses one sentence. ok is false for sentences that carry no
// position (GSV, GSA, ...) and on error.
func (d *Decoder) Decode(sentence string) (fix types.Fix, ok bool, err error) {
	sentence = strings.TrimSpace(sentence)
	if err := Checksum(sentence); err != nil {
		d.c.Bad++
		return fix, false, err
	}
	f, err := d.parser.Parse(sentence)
	if err != nil {
		var ge gps.GPSError
		if errors.As(err, &ge) {
			d.c.Skipped++
			return fix, false, nil
		}
		d.c.Bad++
		return fix, false, err
	}
	fix = types.Fix{
		Valid:      f.Valid,
		Lat:        f.Latitude,
		Lon:        f.Longitude,
		AltM:       f.Altitude,
		Satellites: f.Satellites,
		SpeedKn:    f.Speed,
		Heading:    f.Heading,
	}
	// GGA carries only time of day; RMC adds the date.
	if f.Time.Year() >= 2000 {
		fix.TimeUnixMs = f.Time.UnixMilli()
	}
	d.last = fix
	d.c.Fixes++
	return fix, true, nil
}

func (d *Decoder) Last() types.Fix    { return d.last }
func (d *Decoder) Counters() Counters { return d.c }

// Run consumes line events for index and publishes each decoded fix as a
// retained message on gnss/fix until ctx ends or events closes. Events for
// other indices are ignored.
func Run(ctx context.Context, conn *bus.Connection, events <-chan uartio.Event, index int) *Decoder {
	d := NewDecoder()
	for {
		select {
		case <-ctx.Done():
			return d
		case ev, ok := <-events:
			if !ok {
				return d
			}
			if ev.Index != index || ev.Dir != uartio.DirRX {
				continue
			}
			fix, ok, err := d.Decode(string(ev.Data))
			if err != nil {
				logx.Debug(logx.ComponentGNSS, "sentence rejected", "err", err)
				continue
			}
			if ok {
				conn.Publish(conn.NewMessage(TopicFix, fix, true))
			}
		}
	}
}
