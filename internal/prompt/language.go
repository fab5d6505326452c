package prompt

import (
	"strings"
	"time"
)

// Language is a normalized target language identifier.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	Java       Language = "java"
	Cpp        Language = "cpp"
	C          Language = "c"

	DefaultLanguage = Python
)

// LanguageInfo is static per-language configuration.
type LanguageInfo struct {
	Name string // display name used in prompts
	Tag  string // code fence tag
	// ConnectTimeout bounds upstream connection establishment. Compiled
	// languages get longer because the prompts and answers are larger.
	ConnectTimeout time.Duration
}

var languages = map[Language]LanguageInfo{
	Python:     {Name: "Python", Tag: "python", ConnectTimeout: 120 * time.Second},
	JavaScript: {Name: "JavaScript", Tag: "javascript", ConnectTimeout: 120 * time.Second},
	Java:       {Name: "Java", Tag: "java", ConnectTimeout: 150 * time.Second},
	Cpp:        {Name: "C++", Tag: "cpp", ConnectTimeout: 150 * time.Second},
	C:          {Name: "C", Tag: "c", ConnectTimeout: 150 * time.Second},
}

var aliases = map[string]Language{
	"python":     Python,
	"py":         Python,
	"python3":    Python,
	"javascript": JavaScript,
	"js":         JavaScript,
	"node":       JavaScript,
	"java":       Java,
	"cpp":        Cpp,
	"c++":        Cpp,
	"cxx":        Cpp,
	"c":          C,
}

// SupportedLanguages lists the normalized identifiers in a stable order.
func SupportedLanguages() []Language {
	return []Language{Python, JavaScript, Java, Cpp, C}
}

// NormalizeLanguage maps user input (identifiers, display names, aliases) to a
// supported Language. Unknown or empty input falls back to DefaultLanguage.
func NormalizeLanguage(s string) Language {
	if l, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return DefaultLanguage
}

// Info returns the configuration for l, or for DefaultLanguage if l is unknown.
func (l Language) Info() LanguageInfo {
	if info, ok := languages[l]; ok {
		return info
	}
	return languages[DefaultLanguage]
}

func (l Language) String() string { return string(l) }
