// Package frame turns a byte stream of newline-delimited JSON records into
// decoded text fragments, tolerating records split across network chunks.
package frame

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Record is the subset of an upstream NDJSON record the relay cares about.
type Record struct {
	// Fragment is the text under the configured field, if present.
	Fragment string
	// HasFragment is false for progress-only records.
	HasFragment bool
	// Done is set on the final record of a generation.
	Done bool
	// Err carries an error message the upstream embedded in the stream.
	Err string
}

// Result is what one Feed call produced.
type Result struct {
	Records   []Record
	Malformed int
}

// Fragments returns the non-empty fragments of r in order.
func (r Result) Fragments() []string {
	out := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.HasFragment && rec.Fragment != "" {
			out = append(out, rec.Fragment)
		}
	}
	return out
}

// Feed appends chunk to pending, decodes every complete line and returns the
// decoded records plus the unterminated remainder. It never retains pending
// or chunk.
func Feed(pending, chunk []byte, field string) (Result, []byte) {
	buf := make([]byte, 0, len(pending)+len(chunk))
	buf = append(buf, pending...)
	buf = append(buf, chunk...)

	var res Result
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := buf[:i]
		buf = buf[i+1:]
		decodeLine(&res, line, field)
	}

	remaining := make([]byte, len(buf))
	copy(remaining, buf)
	return res, remaining
}

// Flush decodes a trailing record that arrived without a final separator.
// Malformed trailing data is reported in Malformed and otherwise dropped.
func Flush(pending []byte, field string) Result {
	var res Result
	decodeLine(&res, pending, field)
	return res
}

func decodeLine(res *Result, line []byte, field string) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(line, &obj); err != nil {
		res.Malformed++
		return
	}

	var rec Record
	if raw, ok := obj[field]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			rec.Fragment = s
			rec.HasFragment = true
		}
	}
	if raw, ok := obj["done"]; ok {
		_ = json.Unmarshal(raw, &rec.Done)
	}
	if raw, ok := obj["error"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			rec.Err = s
		}
	}
	res.Records = append(res.Records, rec)
}

// Reassembler owns the pending buffer for one stream and accumulates the
// full text. It is not safe for concurrent use; each relay owns one.
type Reassembler struct {
	field     string
	pending   []byte
	text      strings.Builder
	malformed int
}

// New creates a Reassembler that extracts fragments from field.
func New(field string) *Reassembler {
	return &Reassembler{field: field}
}

// Write consumes one raw chunk and returns the records it completed.
func (r *Reassembler) Write(chunk []byte) []Record {
	res, rest := Feed(r.pending, chunk, r.field)
	r.pending = rest
	return r.absorb(res)
}

// Finish decodes whatever is left in the buffer. Call it once at end of stream.
func (r *Reassembler) Finish() []Record {
	res := Flush(r.pending, r.field)
	r.pending = nil
	return r.absorb(res)
}

func (r *Reassembler) absorb(res Result) []Record {
	r.malformed += res.Malformed
	for _, rec := range res.Records {
		if rec.HasFragment {
			r.text.WriteString(rec.Fragment)
		}
	}
	return res.Records
}

// Text returns every fragment seen so far, concatenated.
func (r *Reassembler) Text() string { return r.text.String() }

// Pending reports how many bytes are buffered awaiting a separator.
func (r *Reassembler) Pending() int { return len(r.pending) }

// Malformed reports how many records were dropped because they did not decode.
func (r *Reassembler) Malformed() int { return r.malformed }

// Reset releases the buffer and the accumulated text.
func (r *Reassembler) Reset() {
	r.pending = nil
	r.text.Reset()
	r.malformed = 0
}
