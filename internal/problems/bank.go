package problems

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when an index does not name a problem in the bank.
var ErrNotFound = errors.New("problem not found")

// Problem is one record of the problem bank.
type Problem struct {
	Title        string
	Difficulty   string
	Statement    string
	InputFormat  string
	OutputFormat string
	Constraints  string
	Hint         string
	SampleInput  string
	SampleOutput string
}

// record is the on-disk shape. Older exports put the statement under
// "question" and samples at top level; newer ones use "description" and a
// nested test_cases object. Both are accepted.
type record struct {
	Title        string `json:"title"`
	Difficulty   string `json:"difficulty"`
	Question     string `json:"question"`
	Description  string `json:"description"`
	InputFormat  string `json:"input_format"`
	OutputFormat string `json:"output_format"`
	Constraints  string `json:"constraints"`
	Hint         string `json:"hint"`
	SampleInput  string `json:"sample_input"`
	SampleOutput string `json:"sample_output"`
	TestCases    *struct {
		SampleInput  string `json:"sample_input"`
		SampleOutput string `json:"sample_output"`
	} `json:"test_cases"`
}

func (r record) problem() Problem {
	p := Problem{
		Title:        r.Title,
		Difficulty:   r.Difficulty,
		Statement:    firstNonEmpty(r.Question, r.Description),
		InputFormat:  r.InputFormat,
		OutputFormat: r.OutputFormat,
		Constraints:  r.Constraints,
		Hint:         r.Hint,
		SampleInput:  r.SampleInput,
		SampleOutput: r.SampleOutput,
	}
	if r.TestCases != nil {
		p.SampleInput = firstNonEmpty(p.SampleInput, r.TestCases.SampleInput)
		p.SampleOutput = firstNonEmpty(p.SampleOutput, r.TestCases.SampleOutput)
	}
	return p
}

// Bank is a read-only, index-addressed collection of problems. It is loaded
// once and safe for concurrent use.
type Bank struct {
	items []Problem
}

// NewBank wraps already-decoded problems.
func NewBank(items []Problem) *Bank {
	cp := make([]Problem, len(items))
	copy(cp, items)
	return &Bank{items: cp}
}

// Load reads a JSON array of problem records from path.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("problems: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of problem records.
func Parse(data []byte) (*Bank, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("problems: decode: %w", err)
	}
	items := make([]Problem, 0, len(recs))
	for _, r := range recs {
		items = append(items, r.problem())
	}
	return &Bank{items: items}, nil
}

// Get returns the problem at index.
func (b *Bank) Get(index int) (Problem, error) {
	if b == nil || index < 0 || index >= len(b.items) {
		return Problem{}, fmt.Errorf("%w: index %d", ErrNotFound, index)
	}
	return b.items[index], nil
}

// Len reports the number of problems.
func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
