// Package llmjson normalizes free-form generative model output into typed values.
package llmjson

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("```(?:json|JSON)?")

// StripFences removes markdown code fences and trims surrounding whitespace.
func StripFences(raw string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
}

// FirstBalanced returns the first balanced JSON value in s that opens with one of
// the given delimiters ('{' or '['). Brackets inside string literals are ignored.
func FirstBalanced(s string, opens ...byte) (string, bool) {
	if len(opens) == 0 {
		opens = []byte{'{'}
	}
	start := -1
	for i := 0; i < len(s) && start < 0; i++ {
		for _, o := range opens {
			if s[i] == o {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Result is either Parsed(value) or Unparsed(raw text).
type Result[T any] struct {
	value  T
	raw    string
	parsed bool
}

func Parsed[T any](v T, raw string) Result[T] { return Result[T]{value: v, raw: raw, parsed: true} }
func Unparsed[T any](raw string) Result[T]    { return Result[T]{raw: raw} }

// Value returns the parsed value and true, or the zero value and false.
func (r Result[T]) Value() (T, bool) { return r.value, r.parsed }

// Raw is the fence-stripped model text the result was derived from.
func (r Result[T]) Raw() string { return r.raw }

func (r Result[T]) IsParsed() bool { return r.parsed }

// Parse strips fences, locates the first balanced JSON value opening with one of
// opens and decodes it into T. Any failure yields Unparsed with the stripped text.
func Parse[T any](raw string, opens ...byte) Result[T] {
	clean := StripFences(raw)
	candidate, ok := FirstBalanced(clean, opens...)
	if !ok {
		return Unparsed[T](clean)
	}
	var v T
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return Unparsed[T](clean)
	}
	return Parsed(v, clean)
}

// String coerces a decoded JSON value to a trimmed string.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
}
