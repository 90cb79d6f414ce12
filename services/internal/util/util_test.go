package util

import (
	"testing"
	"time"
)

func TestDecodeJSON(t *testing.T) {
	type P struct {
		A int    `json:"a"`
		B string `json:"b"`
	}

	for name, in := range map[string]any{
		"bytes":  []byte(`{"a":1,"b":"x"}`),
		"string": `{"a":1,"b":"x"}`,
		"map":    map[string]any{"a": 1, "b": "x"},
		"typed":  P{A: 1, B: "x"},
	} {
		var p P
		if err := DecodeJSON(in, &p); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if p.A != 1 || p.B != "x" {
			t.Fatalf("%s: got %+v", name, p)
		}
	}
	var p P
	if err := DecodeJSON([]byte(`{"a":`), &p); err == nil {
		t.Fatal("truncated JSON accepted")
	}
}

func TestResetTimer(t *testing.T) {
	tm := StoppedTimer()
	select {
	case <-tm.C:
		t.Fatal("stopped timer fired")
	case <-time.After(20 * time.Millisecond):
	}
	ResetTimer(tm, time.Millisecond)
	select {
	case <-tm.C:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire after reset")
	}
}
