// Package conv formats small integers for MCU console output without fmt.
package conv

const hexd = "0123456789abcdef"

// AppendHex8 appends b as two lowercase hex digits.
func AppendHex8(dst []byte, b byte) []byte {
	return append(dst, hexd[b>>4], hexd[b&0xF])
}

// AppendUint appends the base-10 representation of n.
func AppendUint(dst []byte, n uint64) []byte {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, buf[i:]...)
}

// AppendPrintable appends b if it is printable ASCII, '.' otherwise.
func AppendPrintable(dst []byte, b byte) []byte {
	if b < 0x20 || b > 0x7E {
		return append(dst, '.')
	}
	return append(dst, b)
}

// RxLine renders one received byte as "input: c, 0xhh".
func RxLine(dst []byte, b byte) []byte {
	dst = append(dst, "input: "...)
	dst = AppendPrintable(dst, b)
	dst = append(dst, ", 0x"...)
	return AppendHex8(dst, b)
}
