package relay

import (
	"regexp"
	"strings"

	"codestream-gateway/internal/prompt"
)

var (
	fenceOpen  = regexp.MustCompile("(?im)^[ \t]*```[a-z0-9_+#-]*[ \t]*\r?\n")
	fenceClose = regexp.MustCompile("(?m)^[ \t]*```[ \t]*\r?$")
)

// codeStart marks a line that plausibly begins a program.
var codeStart = []string{
	"import ",
	"#include",
	"#define",
	"def ",
	"function ",
	"public class",
	"int main",
	"package ",
	"class ",
	"const ",
	"let ",
	"var ",
	"from ",
	"using namespace",
	"@",
}

// assignment matches a leading `name = ...` or `a, *b = ...` line.
var assignment = regexp.MustCompile(`^[A-Za-z_*][\w.\[\]]*(\s*,\s*[A-Za-z_*][\w.\[\]]*)*\s*[-+*/%]?=[^=]`)

// StripFences removes markdown code fence lines, with or without a language
// tag, and trims the result.
func StripFences(text string) string {
	text = fenceOpen.ReplaceAllString(text, "")
	text = fenceClose.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Clean strips fences and the prose a model tends to wrap code in. A
// complete fenced block is taken whole. Unfenced text starts at the first
// line that looks like code, or is kept from the top when none does. Either
// way trailing comment lines are dropped.
func Clean(text string, _ prompt.Language) string {
	if body, ok := fencedBody(text); ok {
		return trimTrailing(splitLines(strings.TrimSpace(body)))
	}
	text = StripFences(text)
	if text == "" {
		return ""
	}

	lines := splitLines(text)
	for i, line := range lines {
		if looksLikeCode(strings.TrimSpace(line)) {
			return trimTrailing(lines[i:])
		}
	}
	return trimTrailing(lines)
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// trimTrailing drops trailing blank and comment lines.
func trimTrailing(lines []string) string {
	end := len(lines)
	for end > 0 {
		line := strings.TrimSpace(lines[end-1])
		if line != "" && !isCommentLine(line) {
			break
		}
		end--
	}
	return strings.TrimRight(strings.Join(lines[:end], "\n"), " \t\n")
}

// CleanProse is the explanation variant: fences go, prose stays.
func CleanProse(text string, _ prompt.Language) string {
	return StripFences(text)
}

// fencedBody returns the inside of the first complete fenced block.
func fencedBody(text string) (string, bool) {
	open := fenceOpen.FindStringIndex(text)
	if open == nil {
		return "", false
	}
	rest := text[open[1]:]
	end := fenceClose.FindStringIndex(rest)
	if end == nil {
		return "", false
	}
	return rest[:end[0]], true
}

func looksLikeCode(line string) bool {
	for _, kw := range codeStart {
		if strings.HasPrefix(line, kw) {
			return true
		}
	}
	if strings.HasSuffix(line, ";") || strings.HasSuffix(line, "{") {
		return true
	}
	return assignment.MatchString(line)
}

func isCommentLine(line string) bool {
	switch {
	case strings.HasPrefix(line, "#include"), strings.HasPrefix(line, "#define"):
		return false
	case strings.HasPrefix(line, "//"), strings.HasPrefix(line, "#"),
		strings.HasPrefix(line, "/*"):
		return true
	case line == "*", strings.HasPrefix(line, "* "), strings.HasPrefix(line, "*/"):
		// inside or closing a block comment
		return true
	}
	return false
}
