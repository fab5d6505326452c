package relay

import (
	"errors"

	"codestream-gateway/internal/llm"
	"codestream-gateway/internal/problems"
	"codestream-gateway/internal/prompt"
)

// upstreamField is where Ollama puts the text of each NDJSON record.
const upstreamField = "response"

// TaskSpec is everything that differs between tasks. The engine itself is
// task agnostic.
type TaskSpec struct {
	Kind TaskKind
	// Field names the fragment in downstream Data events.
	Field string
	// RecordField names the fragment inside upstream records.
	RecordField string
	Validate    func(TaskRequest) error
	// Context resolves the prompt input and the title shown in Metadata.
	Context func(TaskRequest) (prompt.Context, error)
	Prompt  func(prompt.Context, prompt.Language) (string, error)
	// Options adjusts the configured generation options for this task.
	Options func(llm.Options) llm.Options
	Clean   func(string, prompt.Language) string
}

// DefaultSpecs wires the three tasks to the problem bank.
func DefaultSpecs(bank *problems.Bank) map[TaskKind]TaskSpec {
	return map[TaskKind]TaskSpec{
		TaskGenerate: {
			Kind:        TaskGenerate,
			Field:       "code",
			RecordField: upstreamField,
			Validate: func(req TaskRequest) error {
				if req.ProblemRef == nil {
					return &ValidationError{Field: "index", Reason: "a problem index is required"}
				}
				return nil
			},
			Context: func(req TaskRequest) (prompt.Context, error) {
				p, err := lookupProblem(bank, *req.ProblemRef)
				if err != nil {
					return prompt.Context{}, err
				}
				c := prompt.FromProblem(p)
				c.Assistance = req.Assistance
				return c, nil
			},
			Prompt:  prompt.Generate,
			Options: keepOptions,
			Clean:   Clean,
		},
		TaskExplain: {
			Kind:        TaskExplain,
			Field:       "explanation",
			RecordField: upstreamField,
			Validate: func(req TaskRequest) error {
				if err := requireCode(req); err != nil {
					return err
				}
				if !req.ExecutionAttested {
					return &ValidationError{Field: "executed", Reason: "run the code successfully before asking for an explanation"}
				}
				return nil
			},
			Context: func(req TaskRequest) (prompt.Context, error) {
				c := prompt.Context{Title: "Code Explanation"}
				if req.ProblemRef != nil {
					if p, err := lookupProblem(bank, *req.ProblemRef); err == nil {
						c = prompt.FromProblem(p)
					}
				}
				c.Code = req.SourceCode
				return c, nil
			},
			Prompt:  prompt.Explain,
			Options: keepOptions,
			Clean:   CleanProse,
		},
		TaskCorrect: {
			Kind:        TaskCorrect,
			Field:       "correction",
			RecordField: upstreamField,
			Validate:    requireCode,
			Context: func(req TaskRequest) (prompt.Context, error) {
				c := prompt.DefaultContext()
				if req.ProblemRef != nil {
					// an unknown index degrades to the generic context
					if p, err := lookupProblem(bank, *req.ProblemRef); err == nil {
						c = prompt.FromProblem(p)
					}
				}
				c.Code = req.SourceCode
				return c, nil
			},
			Prompt: prompt.Correct,
			Options: func(o llm.Options) llm.Options {
				t := 0.1
				o.Temperature = &t
				return o
			},
			Clean: Clean,
		},
	}
}

func keepOptions(o llm.Options) llm.Options { return o }

func lookupProblem(bank *problems.Bank, index int) (problems.Problem, error) {
	if bank == nil {
		return problems.Problem{}, &ValidationError{Field: "index", Reason: "no problem bank loaded", Err: problems.ErrNotFound}
	}
	p, err := bank.Get(index)
	if err != nil {
		if errors.Is(err, problems.ErrNotFound) {
			return problems.Problem{}, &ValidationError{Field: "index", Reason: "unknown problem", Err: err}
		}
		return problems.Problem{}, err
	}
	return p, nil
}
