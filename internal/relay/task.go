// Package relay runs one generation task end to end: cache lookup, upstream
// stream, fragment forwarding and finalization.
package relay

import (
	"fmt"
	"strings"
)

type TaskKind string

const (
	TaskGenerate TaskKind = "generate"
	TaskExplain  TaskKind = "explain"
	TaskCorrect  TaskKind = "correct"
)

// ParseTaskKind accepts the lower-case task names.
func ParseTaskKind(s string) (TaskKind, bool) {
	switch k := TaskKind(strings.ToLower(strings.TrimSpace(s))); k {
	case TaskGenerate, TaskExplain, TaskCorrect:
		return k, true
	}
	return "", false
}

// TaskRequest is one caller request. Language is raw input and gets
// normalized by the engine.
type TaskRequest struct {
	Kind       TaskKind
	SourceCode string
	Language   string
	ProblemRef *int
	Refresh    bool
	// ExecutionAttested is the caller's claim that SourceCode ran
	// successfully. It is trusted, not verified.
	ExecutionAttested bool
	// Assistance is optional prior hint text folded into Generate prompts.
	Assistance string
}

// ValidationError rejects a request before any event is emitted.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// placeholderMarker is the stub text editors seed new submissions with.
const placeholderMarker = "Write your function here"

// IsPlaceholder reports whether code is empty or still the editor stub.
func IsPlaceholder(code string) bool {
	code = strings.TrimSpace(code)
	return code == "" || strings.Contains(code, placeholderMarker)
}

func requireCode(req TaskRequest) error {
	if strings.TrimSpace(req.SourceCode) == "" {
		return &ValidationError{Field: "code", Reason: "no code provided"}
	}
	if IsPlaceholder(req.SourceCode) {
		return &ValidationError{Field: "code", Reason: "code is still the placeholder template"}
	}
	return nil
}
