package softuart

import "softuart-go/x/timex"

// Put transmits one 8-N-1 frame on index's TX pin and then holds the line
// idle for the settle period. It busy-waits for the whole frame (about
// 16 bit periods with the default settle) and does not disable preemption,
// so bit edges are only as accurate as the caller's scheduling allows.
//
// Edges are placed at absolute offsets from the start edge, so per-bit
// overhead does not accumulate.
func (r *Registry) Put(index int, b byte) error {
	u, l, err := r.active("put", index)
	if err != nil {
		return err
	}
	u.txMu.Lock()
	defer u.txMu.Unlock()

	bit := l.timing.BitPeriod
	start := u.clk.Micros()
	l.tx.Set(false)
	for i := uint32(0); i < 8; i++ {
		timex.SpinUntil(u.clk, start+bit*(i+1))
		l.tx.Set(b&(1<<i) != 0)
	}
	timex.SpinUntil(u.clk, start+bit*9)
	l.tx.Set(true)
	timex.SpinUntil(u.clk, start+bit*10+l.timing.Settle)
	u.stats.sent.Add(1)
	return nil
}

// Puts transmits s byte by byte, stopping at the first failed Put.
func (r *Registry) Puts(index int, s string) error {
	_, err := putEach(s, func(b byte) error { return r.Put(index, b) })
	return err
}

// Write transmits p and returns how many bytes went out.
func (r *Registry) Write(index int, p []byte) (int, error) {
	return putEach(p, func(b byte) error { return r.Put(index, b) })
}

func putEach[S ~string | ~[]byte](s S, put func(byte) error) (int, error) {
	for i := 0; i < len(s); i++ {
		if err := put(s[i]); err != nil {
			return i, err
		}
	}
	return len(s), nil
}
