package bus

import (
	"testing"
	"time"
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(T("softuart", "0", "rx"))

	conn.Publish(conn.NewMessage(T("softuart", "0", "rx"), "hello", false))
	expectOneOf(t, sub, "hello")

	conn.Publish(conn.NewMessage(T("softuart", "1", "rx"), "other", false))
	expectNoMessage(t, sub)
}

func TestRetainedReplayAndClear(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("config", "softuart"), "uarts", true))
	c.Publish(b.NewMessage(T("config", "reader"), "reader", true))
	c.Publish(b.NewMessage(T("config", "reader"), nil, true))

	s := c.Subscribe(T("config", Rest))
	got := drainPayloads(t, s, 1)
	if got[0] != "uarts" {
		t.Fatalf("got %v", got)
	}
	expectNoMessage(t, s)
}

func TestWildcards(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sOne := c.Subscribe(T("softuart", One, "rx"))
	sRest := c.Subscribe(T("softuart", Rest))
	sAll := c.Subscribe(T(Rest))
	sExact := c.Subscribe(T("softuart"))

	c.Publish(b.NewMessage(T("softuart", "1", "rx"), "m1", false))
	expectOneOf(t, sOne, "m1")
	expectOneOf(t, sRest, "m1")
	expectOneOf(t, sAll, "m1")
	expectNoMessage(t, sExact)

	c.Publish(b.NewMessage(T("softuart"), "m2", false))
	expectOneOf(t, sRest, "m2")
	expectOneOf(t, sAll, "m2")
	expectOneOf(t, sExact, "m2")
	expectNoMessage(t, sOne)

	c.Publish(b.NewMessage(T("softuart", "1", "stats"), "m3", false))
	expectNoMessage(t, sOne)
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("x"))
	for _, p := range []string{"a", "b", "c"} {
		c.Publish(b.NewMessage(T("x"), p, false))
	}
	got := drainPayloads(t, s, 2)
	if got[0] != "b" || got[1] != "c" {
		t.Fatalf("got %v", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s1 := c.Subscribe(T("x"))
	s2 := c.Subscribe(T("y"))

	s1.Unsubscribe()
	s1.Unsubscribe()
	if _, ok := <-s1.Channel(); ok {
		t.Fatal("channel still open")
	}
	c.Disconnect()
	if _, ok := <-s2.Channel(); ok {
		t.Fatal("disconnect left channel open")
	}
	// Publishing after teardown must not panic on closed channels.
	c.Publish(b.NewMessage(T("x"), "late", false))
}

func TestTopicMatch(t *testing.T) {
	cases := []struct {
		p, t Topic
		want bool
	}{
		{T("a", One, "c"), T("a", "b", "c"), true},
		{T("a", One, "c"), T("a", "c"), false},
		{T("a", Rest), T("a"), true},
		{T("a", "b"), T("a", "b", "c"), false},
		{T(), T(), true},
	}
	for _, c := range cases {
		if got := c.p.Match(c.t); got != c.want {
			t.Fatalf("%v match %v = %v", c.p, c.t, got)
		}
	}
	if T("gnss", "fix").String() != "gnss/fix" {
		t.Fatal("String")
	}
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(30 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(string); ok {
				out = append(out, s)
			} else {
				t.Fatalf("non-string payload in drain: %#v", m.Payload)
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("drainPayloads: expected %d messages, got %d (%v)", n, len(out), out)
	}
	return out
}
