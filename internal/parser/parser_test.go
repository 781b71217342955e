package parser

import (
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Subject Lines\nmodule: email-module\n---\n# Subject Lines\nBody text.\n")
	r, err := Parse("email-module/subject-lines.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Subject Lines" {
		t.Errorf("title = %q, want %q", r.Title, "Subject Lines")
	}
	if r.Module != "email-module" {
		t.Errorf("module = %q, want email-module", r.Module)
	}
	if r.Body != "# Subject Lines\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse("funnels/intro.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
	if r.Module != "funnels" {
		t.Errorf("module = %q, want funnels (path fallback)", r.Module)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse("x.md", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestDeriveTitle_StemFallback(t *testing.T) {
	title := deriveTitle(nil, "no heading here", "sales/cold-calls.md")
	if title != "cold-calls" {
		t.Errorf("title = %q, want cold-calls", title)
	}
}

func TestDeriveModule_RootDocument(t *testing.T) {
	if m := deriveModule(nil, "readme.md"); m != "" {
		t.Errorf("module = %q, want empty", m)
	}
}

func TestExtractHeadings_SkipsCodeFences(t *testing.T) {
	body := "# Title\n## Common mistakes\n```\n# not a heading\n```\n### Deep\n#nospace\n"
	got := extractHeadings(body)
	want := []string{"Title", "Common mistakes", "Deep"}
	if len(got) != len(want) {
		t.Fatalf("headings = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("headings[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStem(t *testing.T) {
	if s := Stem("a/b/07-intro.md"); s != "07-intro" {
		t.Errorf("stem = %q", s)
	}
}
