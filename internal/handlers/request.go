package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// problemIndex accepts a JSON number, a numeric string, or null/"" for none.
// Browser clients send all three.
type problemIndex struct {
	v *int
}

func (p *problemIndex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		p.v = nil
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) || v < 0 {
			return fmt.Errorf("index %v is not a non-negative integer", v)
		}
		i := int(v)
		p.v = &i
	case string:
		i, ok, err := parseIndex(v)
		if err != nil {
			return err
		}
		if ok {
			p.v = &i
		}
	default:
		return fmt.Errorf("index must be a number")
	}
	return nil
}

func parseIndex(s string) (int, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("index %q is not an integer", s)
	}
	if i < 0 {
		return 0, false, fmt.Errorf("index %d is negative", i)
	}
	return i, true, nil
}

func queryIndex(q url.Values) (*int, error) {
	i, ok, err := parseIndex(q.Get("index"))
	if err != nil || !ok {
		return nil, err
	}
	return &i, nil
}

func queryBool(q url.Values, name string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(q.Get(name)))
	return b
}

type explainBody struct {
	Code     string       `json:"code"`
	Language string       `json:"language"`
	Executed bool         `json:"executed"`
	Index    problemIndex `json:"index"`
	Refresh  bool         `json:"refresh"`
}

type correctBody struct {
	Code     string       `json:"code"`
	Language string       `json:"language"`
	Index    problemIndex `json:"index"`
	Refresh  bool         `json:"refresh"`
}

// decodeBody decodes a JSON request body into dst. The body size is already
// capped by the MaxBodySize middleware.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
