package events

import "strings"

// Collector is an in-memory Sink. It backs the non-streaming endpoint and
// the relay tests.
type Collector struct {
	Events []Event
	closed bool
}

func (c *Collector) Emit(ev Event) error {
	if c.closed {
		return ErrStreamClosed
	}
	c.Events = append(c.Events, ev)
	if ev.Terminal() {
		c.closed = true
	}
	return nil
}

// Metadata returns the first event when it is a Metadata.
func (c *Collector) Metadata() (Metadata, bool) {
	if len(c.Events) == 0 {
		return Metadata{}, false
	}
	m, ok := c.Events[0].(Metadata)
	return m, ok
}

// Text concatenates all Data fragments.
func (c *Collector) Text() string {
	var b strings.Builder
	for _, ev := range c.Events {
		if d, ok := ev.(Data); ok {
			b.WriteString(d.Fragment)
		}
	}
	return b.String()
}

// Terminal returns the terminal event, if one was emitted.
func (c *Collector) Terminal() Event {
	if !c.closed {
		return nil
	}
	return c.Events[len(c.Events)-1]
}
