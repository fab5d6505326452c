package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const maxLineSize = 1 << 20

// Decoder reads the SSE blocks written by Encoder.
type Decoder struct {
	sc *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{sc: sc}
}

// Next returns the next event, or io.EOF once the stream ends. Comment lines
// and unknown fields are ignored; multiple data lines are joined with "\n".
func (d *Decoder) Next() (Event, error) {
	var name string
	var data []string

	for d.sc.Scan() {
		line := strings.TrimSuffix(d.sc.Text(), "\r")
		if line == "" {
			if name == "" && len(data) == 0 {
				continue
			}
			return parse(name, strings.Join(data, "\n"))
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := d.sc.Err(); err != nil {
		return nil, err
	}
	if name != "" || len(data) > 0 {
		return parse(name, strings.Join(data, "\n"))
	}
	return nil, io.EOF
}

func parse(name, data string) (Event, error) {
	switch name {
	case NameMetadata:
		var m Metadata
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, fmt.Errorf("events: decode metadata: %w", err)
		}
		return m, nil

	case NameData:
		var fields map[string]string
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return nil, fmt.Errorf("events: decode data: %w", err)
		}
		if len(fields) != 1 {
			return nil, fmt.Errorf("events: data event carries %d fields, want 1", len(fields))
		}
		for field, fragment := range fields {
			return Data{Field: field, Fragment: fragment}, nil
		}

	case NameComplete:
		var c completePayload
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("events: decode complete: %w", err)
		}
		return Complete{ElapsedMs: c.ProcessingTime}, nil

	case NameError:
		var e errorPayload
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("events: decode error: %w", err)
		}
		return Error{Message: e.Error}, nil
	}
	return nil, fmt.Errorf("events: unknown event %q", name)
}
