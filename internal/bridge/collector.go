package bridge

import "sync"

// Collector is the ordered per-dispatch event buffer. Events accumulate
// during one dispatch of a message into the engine and are cleared at the
// start of the next dispatch.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Append adds one event to the buffer.
func (c *Collector) Append(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Reset clears the buffer for the next dispatch.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// Events returns a copy of the buffered events in insertion order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
