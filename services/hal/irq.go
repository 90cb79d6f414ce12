package hal

// IRQHandler keeps the handler of an interrupt-capable pin together with
// the platform callback that invokes it. The callback is built on the first
// Bind, which must happen in normal context (Open); later Binds from an
// interrupt handler only swap the handler and never allocate.
type IRQHandler[P any] struct {
	h  func()
	cb func(P)
}

// Bind installs h and returns the callback to hand to the platform.
func (s *IRQHandler[P]) Bind(h func()) func(P) {
	s.h = h
	if s.cb == nil {
		s.cb = func(P) {
			if f := s.h; f != nil {
				f()
			}
		}
	}
	return s.cb
}

// Unbind drops the handler; the cached callback stays for the next Bind.
func (s *IRQHandler[P]) Unbind() { s.h = nil }
