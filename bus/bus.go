// Package bus is a small in-process pub/sub used to fan out configuration,
// received data and status between services.
//
// Topics are slash-free token paths. A subscription pattern may use "+" to
// match exactly one token and a trailing "#" to match the rest. Retained
// messages are stored per concrete topic and replayed to new subscribers.
package bus

import "sync"

const (
	One  = "+"
	Rest = "#"
)

// Topic is a sequence of tokens.
type Topic []string

// T builds a topic.
func T(tokens ...string) Topic { return Topic(tokens) }

func (t Topic) String() string {
	s := ""
	for i, tok := range t {
		if i > 0 {
			s += "/"
		}
		s += tok
	}
	return s
}

// Match reports whether pattern p matches the concrete topic t.
func (p Topic) Match(t Topic) bool {
	for i, tok := range p {
		if tok == Rest {
			return true
		}
		if i >= len(t) {
			return false
		}
		if tok != One && tok != t[i] {
			return false
		}
	}
	return len(p) == len(t)
}

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// Subscription delivers matching messages on a bounded channel. When the
// channel is full the oldest queued message is dropped.
type Subscription struct {
	pattern Topic
	ch      chan *Message
	conn    *Connection
}

func (s *Subscription) Topic() Topic             { return s.pattern }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

type Bus struct {
	mu       sync.Mutex
	subs     []*Subscription
	retained map[string]*Message
	qLen     int
}

// NewBus creates a bus whose subscriptions queue up to queueLen messages.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{retained: make(map[string]*Message), qLen: queueLen}
}

func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

// Publish delivers msg to every matching subscription. A retained message
// with a nil payload clears the retained slot for its topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg.Retained {
		key := msg.Topic.String()
		if msg.Payload == nil {
			delete(b.retained, key)
		} else {
			b.retained[key] = msg
		}
	}
	for _, s := range b.subs {
		if s.pattern.Match(msg.Topic) {
			offer(s.ch, msg)
		}
	}
}

func offer(ch chan *Message, msg *Message) {
	for {
		select {
		case ch <- msg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Connection groups the subscriptions of one service so they can be torn
// down together.
type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) NewMessage(t Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(t, payload, retained)
}

// Subscribe registers pattern and replays matching retained messages.
func (c *Connection) Subscribe(pattern Topic) *Subscription {
	s := &Subscription{
		pattern: append(Topic(nil), pattern...),
		ch:      make(chan *Message, c.bus.qLen),
		conn:    c,
	}
	b := c.bus
	b.mu.Lock()
	b.subs = append(b.subs, s)
	for _, m := range b.retained {
		if s.pattern.Match(m.Topic) {
			offer(s.ch, m)
		}
	}
	b.mu.Unlock()

	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s
}

// Unsubscribe removes s and closes its channel. Calling it twice is a no-op.
func (c *Connection) Unsubscribe(s *Subscription) {
	c.mu.Lock()
	found := false
	for i, x := range c.subs {
		if x == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if found {
		c.bus.remove(s)
	}
}

// Disconnect closes every subscription of the connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		c.bus.remove(s)
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	for i, x := range b.subs {
		if x == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	close(s.ch)
	b.mu.Unlock()
}
