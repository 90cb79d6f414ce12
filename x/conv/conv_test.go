package conv

import "testing"

func TestAppendHelpers(t *testing.T) {
	for _, c := range []struct {
		got  []byte
		want string
	}{
		{AppendHex8(nil, 0x00), "00"},
		{AppendHex8(nil, 0xA5), "a5"},
		{AppendUint(nil, 0), "0"},
		{AppendUint(nil, 4800), "4800"},
		{AppendUint([]byte("n="), 18446744073709551615), "n=18446744073709551615"},
		{AppendPrintable(nil, 'G'), "G"},
		{AppendPrintable(nil, '\n'), "."},
		{RxLine(nil, '$'), "input: $, 0x24"},
		{RxLine(nil, 0xFF), "input: ., 0xff"},
	} {
		if string(c.got) != c.want {
			t.Fatalf("got %q want %q", c.got, c.want)
		}
	}
}
