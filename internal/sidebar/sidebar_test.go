package sidebar

import (
	"strings"
	"testing"

	"github.com/starford/playbooksync/internal/models"
)

const sidebars = `const sidebars = {
  playbooks: [
    'intro',
    {
      type: 'category',
      label: 'Email Module',
      items: [
        'email-module/subject-lines',
        'email-module/follow-ups',
      ],
    },
    {
      type: 'category',
      label: 'Sales',
      items: ['sales/cold-calls'],
    },
    {
      type: 'category',
      label: "Empty",
      items: [],
    },
  ],
};
module.exports = sidebars;
`

func TestRegister_AppendsToMultilineCategory(t *testing.T) {
	out, ok := Docusaurus{}.Register(sidebars, models.Module{ID: "email-module", Label: "Email Module"}, "email-module/openers")
	if !ok {
		t.Fatal("expected registration")
	}
	want := "        'email-module/follow-ups',\n        'email-module/openers',\n      ],"
	if !strings.Contains(out, want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}
}

func TestRegister_AppendsToInlineCategory(t *testing.T) {
	out, ok := Docusaurus{}.Register(sidebars, models.Module{ID: "sales", Label: "Sales"}, "sales/pricing")
	if !ok || !strings.Contains(out, "items: ['sales/cold-calls', 'sales/pricing'],") {
		t.Errorf("ok = %v output:\n%s", ok, out)
	}
}

func TestRegister_EmptyCategory(t *testing.T) {
	out, ok := Docusaurus{}.Register(sidebars, models.Module{ID: "empty", Label: "Empty"}, "empty/first")
	if !ok || !strings.Contains(out, "items: ['empty/first'],") {
		t.Errorf("ok = %v output:\n%s", ok, out)
	}
}

func TestRegister_FallsBackToSiblingEntry(t *testing.T) {
	index := "module.exports = {\n  docs: [\n    'webinars/intro',\n    'webinars/replays'\n  ],\n};\n"
	out, ok := Docusaurus{}.Register(index, models.Module{ID: "webinars", Label: "Webinars"}, "webinars/follow-up")
	if !ok {
		t.Fatal("expected registration")
	}
	want := "    'webinars/replays',\n    'webinars/follow-up',\n  ],"
	if !strings.Contains(out, want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}
}

func TestRegister_SiblingInInlineListStaysInsideArray(t *testing.T) {
	index := `module.exports = {
  docs: [
    {
      type: 'category',
      label: 'Email Marketing',
      items: ['email/intro', 'email/subject-lines'],
    },
  ],
};
`
	out, ok := Docusaurus{}.Register(index, models.Module{ID: "email", Label: "Email"}, "email/new-doc")
	if !ok {
		t.Fatal("expected registration")
	}
	want := "items: ['email/intro', 'email/subject-lines', 'email/new-doc'],\n    },"
	if !strings.Contains(out, want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}
	if strings.Count(out, "[") != strings.Count(out, "]") {
		t.Errorf("unbalanced brackets:\n%s", out)
	}
}

func TestRegister_SiblingOutsideArray(t *testing.T) {
	index := "module.exports = { home: 'guides/intro' };\n"
	out, ok := Docusaurus{}.Register(index, models.Module{ID: "guides", Label: "Guides"}, "guides/next")
	if ok || out != index {
		t.Errorf("expected unchanged index and ok=false, got ok=%v", ok)
	}
}

func TestEnclosingBracket(t *testing.T) {
	s := `{ a: ['x]', ['y'], 'z'] }`
	if got := enclosingBracket(s, strings.Index(s, "'z'")); got != strings.Index(s, "[") {
		t.Errorf("enclosingBracket = %d, want %d", got, strings.Index(s, "["))
	}
	if got := enclosingBracket(s, 1); got != -1 {
		t.Errorf("enclosingBracket outside array = %d, want -1", got)
	}
}

func TestRegister_NoInsertionPoint(t *testing.T) {
	out, ok := Docusaurus{}.Register(sidebars, models.Module{ID: "partners", Label: "Partners"}, "partners/intro")
	if ok || out != sidebars {
		t.Errorf("expected unchanged index and ok=false, got ok=%v", ok)
	}
}

func TestRegister_AlreadyPresent(t *testing.T) {
	out, ok := Docusaurus{}.Register(sidebars, models.Module{ID: "sales", Label: "Sales"}, "sales/cold-calls")
	if !ok || out != sidebars {
		t.Errorf("expected no-op, got ok=%v", ok)
	}
}

func TestRegister_UnknownModuleUsesIDAsLabel(t *testing.T) {
	index := "module.exports = { s: [{ type: 'category', label: 'onboarding', items: [] }] };"
	out, ok := Docusaurus{}.Register(index, models.Module{ID: "onboarding"}, "onboarding/day-one")
	if !ok || !strings.Contains(out, "items: ['onboarding/day-one']") {
		t.Errorf("ok = %v output: %s", ok, out)
	}
}

func TestMatchBracket_SkipsQuotedBrackets(t *testing.T) {
	s := `[ 'a]b', "c[", [1] ]`
	if got := matchBracket(s, 0); got != len(s)-1 {
		t.Errorf("matchBracket = %d, want %d", got, len(s)-1)
	}
}
