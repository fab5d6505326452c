// Package events defines the downstream relay events and their server-sent
// event wire form.
package events

import (
	"encoding/json"
	"errors"
)

// Event names on the wire.
const (
	NameMetadata = "metadata"
	NameData     = "data"
	NameComplete = "complete"
	NameError    = "error"
)

// ErrStreamClosed is returned by sinks once a terminal event was emitted.
var ErrStreamClosed = errors.New("events: stream already terminated")

// Event is one of Metadata, Data, Complete or Error.
type Event interface {
	Name() string
	// Terminal reports whether nothing may follow this event.
	Terminal() bool
	payload() any
}

// Sink receives the events of one relay in order. An Emit error means the
// consumer is gone and the relay must stop.
type Sink interface {
	Emit(Event) error
}

// Metadata opens every stream.
type Metadata struct {
	FromCache bool   `json:"fromCache"`
	Task      string `json:"task"`
	Language  string `json:"language"`
	Title     string `json:"title,omitempty"`
	RelayID   string `json:"relayId,omitempty"`
}

func (Metadata) Name() string   { return NameMetadata }
func (Metadata) Terminal() bool { return false }
func (m Metadata) payload() any { return m }

// Data carries one text fragment under a task specific field name
// (code, explanation or correction).
type Data struct {
	Field    string
	Fragment string
}

func (Data) Name() string   { return NameData }
func (Data) Terminal() bool { return false }
func (d Data) payload() any { return map[string]string{d.Field: d.Fragment} }

// Complete ends a successful stream.
type Complete struct {
	ElapsedMs int64
}

type completePayload struct {
	Complete       bool  `json:"complete"`
	ProcessingTime int64 `json:"processingTime"`
}

func (Complete) Name() string   { return NameComplete }
func (Complete) Terminal() bool { return true }
func (c Complete) payload() any { return completePayload{Complete: true, ProcessingTime: c.ElapsedMs} }

// Error ends a failed stream.
type Error struct {
	Message string
}

type errorPayload struct {
	Error string `json:"error"`
}

func (Error) Name() string   { return NameError }
func (Error) Terminal() bool { return true }
func (e Error) payload() any { return errorPayload{Error: e.Message} }

// Marshal returns the JSON data line of ev.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(ev.payload())
}
