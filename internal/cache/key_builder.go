package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Key identifies one cached relay result.
// Hash is sha256 of the normalized source plus every other key field.
type Key struct {
	Task     string
	Language string
	Problem  string // "-" when the request has no problem reference
	Version  string
	Hash     string
}

// String converts the structured key into the final string used by backends.
func (k Key) String() string {
	// relay:<TASK>:<LANGUAGE>:<PROBLEM>:<VERSION>:<HASH_HEX>
	return fmt.Sprintf("relay:%s:%s:%s:%s:%s", k.Task, k.Language, k.Problem, k.Version, k.Hash)
}

// KeyParams are the inputs of a cache key.
type KeyParams struct {
	Task     string
	Language string
	Problem  *int
	Version  string
	Source   string
}

// BuildKey derives a deterministic key from p. Every field is length-prefixed
// before hashing so that no two distinct parameter sets share a preimage.
func BuildKey(p KeyParams) Key {
	problem := "-"
	if p.Problem != nil {
		problem = strconv.Itoa(*p.Problem)
	}
	task := strings.TrimSpace(p.Task)
	lang := strings.TrimSpace(p.Language)
	version := strings.TrimSpace(p.Version)

	h := sha256.New()
	for _, field := range []string{task, lang, problem, version, NormalizeSource(p.Source)} {
		fmt.Fprintf(h, "%d:%s|", len(field), field)
	}

	return Key{
		Task:     task,
		Language: lang,
		Problem:  problem,
		Version:  version,
		Hash:     hex.EncodeToString(h.Sum(nil)),
	}
}

// NormalizeSource canonicalizes source text for hashing: CRLF becomes LF,
// trailing whitespace is dropped per line and the whole text is trimmed.
// Edits that only touch whitespace at line ends still hit the same entry.
func NormalizeSource(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

type keyParts struct {
	task     string
	language string
	problem  string
	version  string
	hash     string
}

// Expecting: relay:<TASK>:<LANGUAGE>:<PROBLEM>:<VERSION>:<HASH>
func parseKey(key string) (keyParts, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 6 || parts[0] != "relay" {
		return keyParts{}, false
	}
	return keyParts{
		task:     parts[1],
		language: parts[2],
		problem:  parts[3],
		version:  parts[4],
		hash:     parts[5],
	}, true
}
