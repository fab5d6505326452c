package events

import (
	"fmt"
	"net/http"
)

// Encoder writes events as SSE blocks and flushes after each one so the
// client sees fragments as they are produced. Response headers are sent with
// the first event, which leaves the caller free to answer with a plain HTTP
// error until then.
type Encoder struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	closed  bool
}

func NewEncoder(w http.ResponseWriter) *Encoder {
	return &Encoder{w: w, rc: http.NewResponseController(w)}
}

// Started reports whether any event has been written.
func (e *Encoder) Started() bool { return e.started }

// Closed reports whether a terminal event has been written.
func (e *Encoder) Closed() bool { return e.closed }

func (e *Encoder) Emit(ev Event) error {
	if e.closed {
		return ErrStreamClosed
	}
	data, err := Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.Name(), err)
	}

	if !e.started {
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}

	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Name(), data); err != nil {
		return fmt.Errorf("events: write %s: %w", ev.Name(), err)
	}
	if err := e.rc.Flush(); err != nil {
		return fmt.Errorf("events: flush %s: %w", ev.Name(), err)
	}

	if ev.Terminal() {
		e.closed = true
	}
	return nil
}
