package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/testutil"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParse_EntriesKey(t *testing.T) {
	data := []byte(`
entries:
  - id: e1
    category: Tip
    content: Subject lines under 40 characters get more opens
    tags: [email]
    created_at: 2026-02-27T10:00:00Z
  - id: e2
    category: objection
    content: Prospects push back on annual billing
    context: mid-market deals
`)
	entries, err := Parse(data, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Category != models.CategoryTip || len(entries[0].Tags) != 1 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if !entries[1].CreatedAt.Equal(now) || entries[1].Context != "mid-market deals" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestParse_JSONList(t *testing.T) {
	data := []byte(`[{"id":"e1","category":"metric","content":"Reply rate is 12%"}]`)
	entries, err := Parse(data, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Category != models.CategoryMetric {
		t.Errorf("entries = %+v", entries)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown category": "- {id: e1, category: gossip, content: x}",
		"missing content":  "- {id: e1, category: tip}",
		"missing id":       "- {category: tip, content: x}",
		"duplicate id":     "- {id: e1, category: tip, content: x}\n- {id: e1, category: tip, content: y}",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data), now); !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestImport(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()
	entries := []models.KnowledgeEntry{
		{ID: "e1", Category: models.CategoryTip, Content: "a", CreatedAt: now},
		{ID: "e2", Category: models.CategoryTip, Content: "b", CreatedAt: now},
	}
	n, err := Import(ctx, db, entries)
	if err != nil || n != 2 {
		t.Fatalf("Import = %d, %v", n, err)
	}
	if _, err := Import(ctx, db, entries); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	got, err := db.ListEntriesCreatedAfter(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("stored %d entries, want 2", len(got))
	}
}
