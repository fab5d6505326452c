package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]Language{
		"python":     Python,
		"Python":     Python,
		" C++ ":      Cpp,
		"cpp":        Cpp,
		"JavaScript": JavaScript,
		"js":         JavaScript,
		"Java":       Java,
		"C":          C,
		"":           Python,
		"cobol":      Python,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeLanguage(in), "input %q", in)
	}
}

func TestConnectTimeoutsByLanguage(t *testing.T) {
	assert.Equal(t, 120, int(Python.Info().ConnectTimeout.Seconds()))
	assert.Equal(t, 150, int(Java.Info().ConnectTimeout.Seconds()))
	assert.Equal(t, 150, int(Cpp.Info().ConnectTimeout.Seconds()))
	assert.Equal(t, Python.Info(), Language("cobol").Info())
}

func TestGenerateIsDeterministic(t *testing.T) {
	ctx := Context{
		Title:        "Factorial",
		Difficulty:   "Easy",
		Statement:    "Compute n!",
		SampleInput:  "5",
		SampleOutput: "120",
	}

	a, err := Generate(ctx, Python)
	require.NoError(t, err)
	b, err := Generate(ctx, Python)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Contains(t, a, "Compute n!")
	assert.Contains(t, a, "expert Python developer")
	assert.NotContains(t, a, "PROBLEM ASSISTANCE")
}

func TestMissingOptionalFieldsAreDefaulted(t *testing.T) {
	out, err := Generate(Context{Title: "Bare"}, Cpp)
	require.NoError(t, err)

	assert.Contains(t, out, "No hint provided.")
	assert.Contains(t, out, "None specified")
	assert.NotContains(t, out, "<no value>")
}

func TestGenerateWithAssistance(t *testing.T) {
	out, err := Generate(Context{Title: "Sum", Assistance: "Use a running total."}, JavaScript)
	require.NoError(t, err)

	assert.Contains(t, out, "PROBLEM ASSISTANCE:\nUse a running total.")
}

func TestJavaRuleOnlyForJava(t *testing.T) {
	code := "class Solution {}"

	java, err := Correct(Context{Code: code}, Java)
	require.NoError(t, err)
	assert.Contains(t, java, "Rename the public class to Main")

	py, err := Correct(Context{Code: code}, Python)
	require.NoError(t, err)
	assert.NotContains(t, py, "class to Main")
}

func TestExplainEmbedsCode(t *testing.T) {
	code := "print(sum(map(int, input().split())))"
	out, err := Explain(Context{Code: code}, Python)
	require.NoError(t, err)

	assert.True(t, strings.Contains(out, "```python\n"+code+"\n```"), out)
}

func TestDefaultContext(t *testing.T) {
	out, err := Correct(DefaultContext(), C)
	require.NoError(t, err)
	assert.Contains(t, out, "Fix the provided code to work correctly")
}
