package problems

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleBank = `[
  {
    "title": "Factorial",
    "difficulty": "Easy",
    "question": "Compute n!",
    "input_format": "A single integer n",
    "output_format": "n!",
    "constraints": "0 <= n <= 12",
    "hint": "Multiply",
    "sample_input": "5",
    "sample_output": "120"
  },
  {
    "title": "Two Sum",
    "difficulty": "Medium",
    "description": "Find two numbers that add to target",
    "test_cases": {"sample_input": "4 9\n2 7 11 15", "sample_output": "0 1"}
  }
]`

func TestParseBothRecordShapes(t *testing.T) {
	bank, err := Parse([]byte(sampleBank))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if bank.Len() != 2 {
		t.Fatalf("expected 2 problems, got %d", bank.Len())
	}

	p, err := bank.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if p.Statement != "Compute n!" || p.SampleOutput != "120" {
		t.Fatalf("unexpected first problem: %#v", p)
	}

	p, err = bank.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if p.Statement != "Find two numbers that add to target" {
		t.Fatalf("description not mapped to statement: %#v", p)
	}
	if p.SampleOutput != "0 1" {
		t.Fatalf("nested sample not mapped: %#v", p)
	}
}

func TestGetOutOfRange(t *testing.T) {
	bank := NewBank([]Problem{{Title: "only"}})

	for _, idx := range []int{-1, 1, 99} {
		if _, err := bank.Get(idx); !errors.Is(err, ErrNotFound) {
			t.Fatalf("index %d: expected ErrNotFound, got %v", idx, err)
		}
	}
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	if err := os.WriteFile(path, []byte(sampleBank), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	bank, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bank.Len() != 2 {
		t.Fatalf("expected 2 problems, got %d", bank.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
