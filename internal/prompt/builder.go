package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"codestream-gateway/internal/problems"
)

// Context is the read-only view of a problem (plus submitted code) that a
// prompt is rendered from.
type Context struct {
	Title        string
	Difficulty   string
	Statement    string
	InputFormat  string
	OutputFormat string
	Constraints  string
	Hint         string
	SampleInput  string
	SampleOutput string

	// Code is the submitted source (Explain, Correct).
	Code string
	// Assistance is optional prior problem-assistance text (Generate).
	Assistance string
}

// FromProblem builds a Context from a problem bank record.
func FromProblem(p problems.Problem) Context {
	return Context{
		Title:        p.Title,
		Difficulty:   p.Difficulty,
		Statement:    p.Statement,
		InputFormat:  p.InputFormat,
		OutputFormat: p.OutputFormat,
		Constraints:  p.Constraints,
		Hint:         p.Hint,
		SampleInput:  p.SampleInput,
		SampleOutput: p.SampleOutput,
	}
}

// DefaultContext is used when a request carries no problem reference.
func DefaultContext() Context {
	return Context{
		Title:        "Code Correction",
		Difficulty:   "Unknown",
		Statement:    "Fix the provided code to work correctly",
		InputFormat:  "Standard input",
		OutputFormat: "Standard output",
		Constraints:  "None specified",
		SampleInput:  "Sample input",
		SampleOutput: "Expected output",
	}
}

// withDefaults fills absent optional fields so templates never render blanks.
func (c Context) withDefaults() Context {
	def := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	def(&c.Title, "Untitled problem")
	def(&c.Difficulty, "Unknown")
	def(&c.Statement, "No problem statement provided.")
	def(&c.InputFormat, "Standard input")
	def(&c.OutputFormat, "Standard output")
	def(&c.Constraints, "None specified")
	def(&c.Hint, "No hint provided.")
	def(&c.SampleInput, "Not provided")
	def(&c.SampleOutput, "Not provided")
	return c
}

type templateData struct {
	Ctx        Context
	Lang       LanguageInfo
	LangID     Language
	IO         string
	Guidelines string
}

var templates = template.Must(template.New("prompts").Parse(promptTemplates))

// Generate renders the solution-generation prompt. When ctx.Assistance is set
// the prompt embeds it as additional guidance.
func Generate(ctx Context, lang Language) (string, error) {
	name := "generate"
	if strings.TrimSpace(ctx.Assistance) != "" {
		name = "generate_assisted"
	}
	return render(name, ctx, lang)
}

// Explain renders the code-explanation prompt.
func Explain(ctx Context, lang Language) (string, error) {
	return render("explain", ctx, lang)
}

// Correct renders the bug-fix prompt.
func Correct(ctx Context, lang Language) (string, error) {
	return render("correct", ctx, lang)
}

func render(name string, ctx Context, lang Language) (string, error) {
	info := lang.Info()
	if _, ok := languages[lang]; !ok {
		lang = DefaultLanguage
	}
	data := templateData{
		Ctx:        ctx.withDefaults(),
		Lang:       info,
		LangID:     lang,
		IO:         ioExample(lang),
		Guidelines: guidelines(lang),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("prompt: render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
