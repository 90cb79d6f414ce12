package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"busy":           Busy,
		"invalid_params": InvalidParams,
		"invalid_index":  InvalidIndex,
		"invalid_baud":   InvalidBaud,
		"inactive":       Inactive,
		"unknown_pin":    UnknownPin,
		"pin_in_use":     PinInUse,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestOfAndIs(t *testing.T) {
	if Of(nil) != OK {
		t.Fatalf("Of(nil) = %q", Of(nil))
	}
	if Of(PinInUse) != PinInUse {
		t.Fatalf("bare code not recovered")
	}
	e := New(PinInUse, "open", "rx 3 used by uart 1")
	wrapped := fmt.Errorf("boot: %w", e)
	if Of(e) != PinInUse {
		t.Fatalf("Of(E) = %q", Of(e))
	}
	if !errors.Is(wrapped, PinInUse) {
		t.Fatal("errors.Is through wrap failed")
	}
	if errors.Is(wrapped, Inactive) {
		t.Fatal("errors.Is matched the wrong code")
	}
	if got, want := e.Error(), "open: pin_in_use: rx 3 used by uart 1"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if Of(errors.New("x")) != Error {
		t.Fatal("foreign error should map to Error")
	}
}
