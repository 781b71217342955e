package patch

import (
	"strings"
	"testing"

	"github.com/starford/playbooksync/internal/models"
)

func TestApply_ExactAnchor(t *testing.T) {
	doc := "# Subject Lines\n\n## Subject Line Guidance\nKeep it short.\n"
	r := Apply(doc, models.GeneratedEdit{Anchor: "## Subject Line Guidance", NewContent: "- Use two lines."})

	want := "# Subject Lines\n\n## Subject Line Guidance\n\n- Use two lines.\n\nKeep it short.\n"
	if r.Text != want {
		t.Errorf("text =\n%q\nwant\n%q", r.Text, want)
	}
	if r.Strategy != StrategyExact || r.Line != 3 {
		t.Errorf("strategy = %s line = %d", r.Strategy, r.Line)
	}
}

func TestApply_ExactAnchorMidLineInsertsRightAfterAnchor(t *testing.T) {
	doc := "Open with the KEY benefit in one sentence.\nNext\n"
	r := Apply(doc, models.GeneratedEdit{Anchor: "  KEY benefit ", NewContent: "Extra"})
	want := "Open with the KEY benefit\n\nExtra\n\nin one sentence.\nNext\n"
	if r.Text != want {
		t.Errorf("text = %q, want %q", r.Text, want)
	}
	if !strings.HasPrefix(r.Text[strings.Index(r.Text, "KEY benefit")+len("KEY benefit"):], "\n\nExtra") {
		t.Errorf("content does not follow the anchor: %q", r.Text)
	}
	if r.Strategy != StrategyExact || r.Line != 1 {
		t.Errorf("strategy = %s line = %d", r.Strategy, r.Line)
	}
}

func TestApply_ExactAnchorOnLastLine(t *testing.T) {
	r := Apply("# T\n## End", models.GeneratedEdit{Anchor: "## End", NewContent: "tail"})
	if r.Text != "# T\n## End\n\ntail\n" {
		t.Errorf("text = %q", r.Text)
	}
}

func TestApply_CommonMistakesFuzzy(t *testing.T) {
	doc := "# Cold Email\n\n## Common mistakes to avoid\n- Long intros\n\n## Follow-up\nWait three days.\n"
	r := Apply(doc, models.GeneratedEdit{Anchor: "## Common Mistakes", NewContent: "- Generic openers"})

	if r.Strategy == StrategyAppend || r.Strategy == StrategyExact {
		t.Fatalf("strategy = %s, want a fuzzy strategy", r.Strategy)
	}
	if r.Line != 3 {
		t.Errorf("line = %d, want 3", r.Line)
	}
	inserted := strings.Index(r.Text, "- Generic openers")
	if inserted < strings.Index(r.Text, "## Common mistakes to avoid") || inserted > strings.Index(r.Text, "- Long intros") {
		t.Errorf("content not inserted after the matching line:\n%s", r.Text)
	}
}

func TestApply_JaccardExactlyAtThreshold(t *testing.T) {
	// {pricing, objection, handling} vs {pricing, objection, scripts, library}: 2/5 = 0.4
	doc := "# Sales\npricing objection scripts library\nother stuff here\n"
	r := Apply(doc, models.GeneratedEdit{Anchor: "pricing objection handling", NewContent: "NEW"})

	if r.Strategy != StrategyFuzzyJaccard || r.Line != 2 {
		t.Fatalf("strategy = %s line = %d, want fuzzy_jaccard after line 2", r.Strategy, r.Line)
	}
	want := "# Sales\npricing objection scripts library\n\nNEW\n\nother stuff here\n"
	if r.Text != want {
		t.Errorf("text = %q, want %q", r.Text, want)
	}
}

func TestApply_JaccardBelowThresholdAppends(t *testing.T) {
	// {pricing, objection, handling} vs {pricing, scripts, library, notes}: 1/6
	doc := "# Sales\npricing scripts library notes\n\n\n"
	r := Apply(doc, models.GeneratedEdit{Anchor: "pricing objection handling", NewContent: "NEW\n"})

	if r.Strategy != StrategyAppend || r.Line != 0 {
		t.Fatalf("strategy = %s line = %d, want append", r.Strategy, r.Line)
	}
	if r.Text != "# Sales\npricing scripts library notes\n\nNEW\n" {
		t.Errorf("text = %q", r.Text)
	}
}

func TestApply_EmptyAnchorAppends(t *testing.T) {
	r := Apply("# Doc\nbody", models.GeneratedEdit{Anchor: "   ", NewContent: "more"})
	if r.Strategy != StrategyAppend || r.Text != "# Doc\nbody\n\nmore\n" {
		t.Errorf("result = %+v", r)
	}
}

func TestPatcher_CustomThreshold(t *testing.T) {
	doc := "# Sales\npricing objection scripts library\n"
	r := Patcher{FuzzyThreshold: 0.5}.Apply(doc, models.GeneratedEdit{Anchor: "pricing objection handling", NewContent: "NEW"})
	if r.Strategy != StrategyAppend {
		t.Errorf("strategy = %s, want append with a stricter threshold", r.Strategy)
	}
}

func TestApply_TwiceWithDifferentAnchorsDoesNotDuplicate(t *testing.T) {
	doc := "# Doc\n## A\na body\n## B\nb body\n"
	first := Apply(doc, models.GeneratedEdit{Anchor: "## A", NewContent: "X"})
	second := Apply(first.Text, models.GeneratedEdit{Anchor: "## B", NewContent: "Y"})
	if strings.Count(second.Text, "X") != 1 || strings.Count(second.Text, "Y") != 1 {
		t.Errorf("text = %q", second.Text)
	}
	if !strings.Contains(second.Text, "## A\n\nX\n\na body") || !strings.Contains(second.Text, "## B\n\nY\n\nb body") {
		t.Errorf("text = %q", second.Text)
	}
}

func TestJaccard(t *testing.T) {
	if got := jaccard(wordSet("a b c"), wordSet("a b d e")); got != 0.4 {
		t.Errorf("jaccard = %v, want 0.4", got)
	}
	if got := jaccard(wordSet(""), wordSet("")); got != 0 {
		t.Errorf("jaccard of empty sets = %v", got)
	}
}
