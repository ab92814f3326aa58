package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ParseResult is the outcome of salvaging JSON from model output. OK is false
// when no candidate parsed; Err then explains why.
type ParseResult struct {
	OK   bool
	Data json.RawMessage
	// Strategy names the candidate that parsed: "raw", "fenced",
	// "balanced" or "span".
	Strategy string
	Err      error
}

// ErrNoJSON means no JSON object could be recovered from the text.
var ErrNoJSON = errors.New("no JSON object found in response")

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// ParseJSON recovers a JSON object from free-form text. It tries, in order,
// the whole text, each fenced code block, the first balanced {...} span and
// finally everything between the first '{' and the last '}'.
func ParseJSON(text string) ParseResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ParseResult{Err: fmt.Errorf("empty response: %w", ErrNoJSON)}
	}

	if isObject(trimmed) {
		return ok(trimmed, "raw")
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(trimmed, -1) {
		if isObject(m[1]) {
			return ok(m[1], "fenced")
		}
	}

	if span, found := balancedObject(trimmed); found && isObject(span) {
		return ok(span, "balanced")
	}

	first := strings.IndexByte(trimmed, '{')
	last := strings.LastIndexByte(trimmed, '}')
	if first >= 0 && last > first {
		if span := trimmed[first : last+1]; isObject(span) {
			return ok(span, "span")
		}
	}

	return ParseResult{Err: ErrNoJSON}
}

// Decode unmarshals the recovered object into v.
func (r ParseResult) Decode(v any) error {
	if !r.OK {
		if r.Err != nil {
			return r.Err
		}
		return ErrNoJSON
	}
	return json.Unmarshal(r.Data, v)
}

func ok(s, strategy string) ParseResult {
	return ParseResult{OK: true, Data: json.RawMessage(s), Strategy: strategy}
}

func isObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}

// balancedObject returns the first {...} span whose braces balance and which
// is valid JSON. Braces inside string literals are ignored.
func balancedObject(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		end := matchingBrace(s, start)
		if end < 0 {
			continue
		}
		if candidate := s[start : end+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// matchingBrace returns the index of the brace closing s[start], or -1.
func matchingBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
