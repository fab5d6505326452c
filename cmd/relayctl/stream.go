package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"codestream-gateway/internal/events"
)

type streamClient struct {
	base string
	http *http.Client
}

func newStreamClient(base string) *streamClient {
	// no client timeout: a generation may stream for minutes
	return &streamClient{base: strings.TrimRight(base, "/"), http: &http.Client{}}
}

func (c *streamClient) get(ctx context.Context, path string, q url.Values, sink events.Sink) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, sink)
}

func (c *streamClient) post(ctx context.Context, path string, body any, sink events.Sink) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, sink)
}

func (c *streamClient) do(req *http.Request, sink events.Sink) error {
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("gateway answered %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("gateway answered %d", resp.StatusCode)
	}
	return consume(resp.Body, sink)
}

// consume decodes events from r into sink until a terminal event. A stream
// that ends without one is an error, and so is an Error event.
func consume(r io.Reader, sink events.Sink) error {
	dec := events.NewDecoder(r)
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return errors.New("stream ended without a terminal event")
		}
		if err != nil {
			return err
		}
		if err := sink.Emit(ev); err != nil {
			return err
		}
		if ev.Terminal() {
			if e, ok := ev.(events.Error); ok {
				return errors.New(e.Message)
			}
			return nil
		}
	}
}

// printer writes fragments as they arrive, or every event as a JSON line.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, json: asJSON}
}

func (p *printer) Emit(ev events.Event) error {
	if p.json {
		data, err := events.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.w, "{\"event\":%q,\"data\":%s}\n", ev.Name(), data)
		return err
	}

	var err error
	switch e := ev.(type) {
	case events.Metadata:
		if e.Title != "" {
			_, err = fmt.Fprintf(p.w, "# %s (%s, cached=%t)\n\n", e.Title, e.Language, e.FromCache)
		}
	case events.Data:
		_, err = io.WriteString(p.w, e.Fragment)
	case events.Complete:
		_, err = fmt.Fprintf(p.w, "\n\n-- done in %dms\n", e.ElapsedMs)
	case events.Error:
		_, err = fmt.Fprintln(p.w)
	}
	return err
}
