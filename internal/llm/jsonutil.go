package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/playbooksync/internal/apperr"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// ExtractObject returns the outermost JSON object in a model reply, or "".
// A Markdown code fence is unwrapped only when it opens before the object.
// // comments and trailing commas outside string literals are tolerated.
func ExtractObject(reply string) string {
	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return ""
	}
	if loc := fencePattern.FindStringSubmatchIndex(reply); loc != nil && loc[0] < start {
		if s := span(reply[loc[2]:loc[3]]); s != "" {
			return clean(s)
		}
	}
	if s := span(reply); s != "" {
		return clean(s)
	}
	return ""
}

// Decode reads the JSON object in reply into v. A reply that is already valid
// JSON is decoded as is. Any failure wraps apperr.ErrInvalidResponse.
func Decode(reply string, v any) error {
	raw := strings.TrimSpace(reply)
	if !json.Valid([]byte(raw)) {
		raw = ExtractObject(reply)
	}
	if raw == "" {
		return fmt.Errorf("llm: no JSON object in reply: %w", apperr.ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("llm: decode reply: %v: %w", err, apperr.ErrInvalidResponse)
	}
	return nil
}

func span(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func clean(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripComment(line)
	}
	return stripTrailingCommas(strings.Join(lines, "\n"))
}

// stripTrailingCommas drops commas that directly precede a closing brace or
// bracket outside string literals.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == ',':
			rest := strings.TrimLeft(s[i+1:], " \t\r\n")
			if rest != "" && (rest[0] == '}' || rest[0] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// stripComment drops a trailing // comment that sits outside a string literal.
func stripComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString, escaped := false, false
	for i := 0; i < len(line)-1; i++ {
		switch ch := line[i]; {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
