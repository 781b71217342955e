// Package sidebar registers new documents in the site's navigation index.
package sidebar

import (
	"regexp"
	"strings"

	"github.com/starford/playbooksync/internal/models"
)

// Registrar adds a document id to an index artifact. ok is false when no
// insertion point was found; the index is then returned unchanged.
type Registrar interface {
	Register(index string, module models.Module, docID string) (updated string, ok bool)
}

// Docusaurus edits a Docusaurus-style sidebars.js with pattern matching.
// A module category is located by its label and the new id is appended to
// its items list. If the category cannot be found the id is appended to the
// list holding the last existing entry of the module.
type Docusaurus struct{}

var _ Registrar = Docusaurus{}

var itemsPattern = regexp.MustCompile(`items\s*:\s*\[`)

// Register implements Registrar.
func (Docusaurus) Register(index string, module models.Module, docID string) (string, bool) {
	if strings.Contains(index, "'"+docID+"'") || strings.Contains(index, `"`+docID+`"`) {
		return index, true
	}
	label := module.Label
	if label == "" {
		label = module.ID
	}
	if out, ok := appendToCategory(index, label, docID); ok {
		return out, true
	}
	if out, ok := insertAfterSibling(index, module.ID, docID); ok {
		return out, true
	}
	return index, false
}

func appendToCategory(index, label, docID string) (string, bool) {
	labelRe := regexp.MustCompile(`label\s*:\s*['"]` + regexp.QuoteMeta(label) + `['"]`)
	loc := labelRe.FindStringIndex(index)
	if loc == nil {
		return "", false
	}
	after := index[loc[1]:]
	m := itemsPattern.FindStringIndex(after)
	if m == nil || strings.Contains(after[:m[0]], "label") {
		return "", false
	}
	return appendToList(index, loc[1]+m[1]-1, docID)
}

// appendToList adds docID as the last element of the array opened at open,
// following the list's inline or one-per-line layout.
func appendToList(index string, open int, docID string) (string, bool) {
	closing := matchBracket(index, open)
	if closing < 0 {
		return "", false
	}

	inner := index[open+1 : closing]
	body := strings.TrimRight(inner, " \t\r\n")
	pos := open + 1 + len(body)
	sep := ""
	if strings.TrimSpace(body) != "" && !strings.HasSuffix(body, ",") {
		sep = ","
	}

	var item string
	if strings.Contains(inner, "\n") {
		indent := lastIndent(body)
		if strings.TrimSpace(body) == "" {
			indent = lineIndent(index, open) + "  "
		}
		item = sep + "\n" + indent + "'" + docID + "',"
	} else if strings.TrimSpace(body) == "" {
		item = "'" + docID + "'"
	} else {
		item = sep + " '" + docID + "'"
	}
	return index[:pos] + item + index[pos:], true
}

// insertAfterSibling appends docID to the array holding the last existing
// entry of the module.
func insertAfterSibling(index, moduleID, docID string) (string, bool) {
	if moduleID == "" {
		return "", false
	}
	last := max(strings.LastIndex(index, "'"+moduleID+"/"), strings.LastIndex(index, `"`+moduleID+`/`))
	if last < 0 {
		return "", false
	}
	open := enclosingBracket(index, last)
	if open < 0 {
		return "", false
	}
	return appendToList(index, open, docID)
}

// enclosingBracket returns the index of the innermost '[' still open at pos,
// skipping brackets inside quoted strings. Returns -1 if pos is not inside
// an array.
func enclosingBracket(s string, pos int) int {
	var stack []int
	var quote byte
	for i := 0; i < pos && i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '[':
			stack = append(stack, i)
		case ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return -1
	}
	return stack[len(stack)-1]
}

// matchBracket returns the index of the ']' closing the '[' at open,
// skipping brackets inside quoted strings. Returns -1 if unbalanced.
func matchBracket(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func lastIndent(body string) string {
	lines := strings.Split(body, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			l := lines[i]
			return l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		}
	}
	return ""
}

func lineIndent(s string, pos int) string {
	start := strings.LastIndexByte(s[:pos], '\n') + 1
	line := s[start:pos]
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
