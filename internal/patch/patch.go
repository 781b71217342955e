// Package patch inserts generated content into Markdown documents at an
// anchor that is not guaranteed to appear verbatim.
package patch

import (
	"strings"

	"github.com/starford/playbooksync/internal/models"
)

// DefaultFuzzyThreshold is the minimum Jaccard score a line needs to be
// accepted as the insertion point.
const DefaultFuzzyThreshold = 0.4

// Strategy names how an edit was placed.
type Strategy string

// Placement strategies, in the order they are tried.
const (
	StrategyExact         Strategy = "exact"
	StrategyFuzzyContains Strategy = "fuzzy_contains"
	StrategyFuzzyJaccard  Strategy = "fuzzy_jaccard"
	StrategyAppend        Strategy = "append"
)

// Result is a patched document.
type Result struct {
	Text     string
	Strategy Strategy
	// Line is the 1-based line the content was inserted after, 0 when appended.
	Line int
}

// Patcher applies generated edits.
type Patcher struct {
	FuzzyThreshold float64
}

// Apply patches doc with the default fuzzy threshold.
func Apply(doc string, edit models.GeneratedEdit) Result {
	return Patcher{FuzzyThreshold: DefaultFuzzyThreshold}.Apply(doc, edit)
}

// Apply inserts edit.NewContent after edit.Anchor. The anchor is looked up as
// a literal substring first, then line by line (containment, then word-set
// Jaccard similarity). If no line qualifies the content is appended.
func (p Patcher) Apply(doc string, edit models.GeneratedEdit) Result {
	content := strings.Trim(edit.NewContent, "\n")
	anchor := strings.TrimSpace(edit.Anchor)

	if anchor != "" {
		if i := strings.Index(doc, anchor); i >= 0 {
			end := i + len(anchor)
			return Result{Text: insertAt(doc, end, content), Strategy: StrategyExact, Line: lineNumber(doc, end)}
		}
		if end, strategy, ok := p.fuzzy(doc, anchor); ok {
			return Result{Text: insertAt(doc, end, content), Strategy: strategy, Line: lineNumber(doc, end)}
		}
	}

	return Result{
		Text:     strings.TrimRight(doc, "\n") + "\n\n" + content + "\n",
		Strategy: StrategyAppend,
	}
}

// fuzzy returns the byte offset of the end of the best matching line.
func (p Patcher) fuzzy(doc, anchor string) (int, Strategy, bool) {
	needle := strings.ToLower(anchor)
	needleWords := wordSet(needle)

	bestScore, bestEnd := -1.0, -1
	offset := 0
	for offset <= len(doc) {
		end := lineEnd(doc, offset)
		line := strings.ToLower(strings.TrimSpace(doc[offset:end]))
		if line != "" {
			if strings.Contains(line, needle) || strings.Contains(needle, line) {
				return end, StrategyFuzzyContains, true
			}
			if score := jaccard(needleWords, wordSet(line)); score > bestScore {
				bestScore, bestEnd = score, end
			}
		}
		if end == len(doc) {
			break
		}
		offset = end + 1
	}
	if bestEnd >= 0 && bestScore >= p.FuzzyThreshold {
		return bestEnd, StrategyFuzzyJaccard, true
	}
	return 0, "", false
}

// insertAt places content at end, separated by a blank line on both sides
// when text follows. Text following end on the same line moves below the
// inserted block.
func insertAt(doc string, end int, content string) string {
	head, rest := doc[:end], doc[end:]
	block := "\n\n" + content
	switch {
	case rest == "":
		block += "\n"
	case rest == "\n", strings.HasPrefix(rest, "\n\n"):
	case strings.HasPrefix(rest, "\n"):
		block += "\n"
	default:
		block += "\n\n"
		rest = strings.TrimLeft(rest, " \t")
	}
	return head + block + rest
}

func lineEnd(doc string, from int) int {
	if i := strings.IndexByte(doc[from:], '\n'); i >= 0 {
		return from + i
	}
	return len(doc)
}

func lineNumber(doc string, end int) int {
	return strings.Count(doc[:end], "\n") + 1
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
