// Package importer loads knowledge entries from YAML or JSON files into the
// knowledge store.
package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/models"
)

// EntryWriter stores knowledge entries.
type EntryWriter interface {
	InsertEntry(ctx context.Context, e models.KnowledgeEntry) error
}

type file struct {
	Entries []models.KnowledgeEntry `yaml:"entries"`
}

// Parse decodes a document holding either a top-level list of entries or an
// "entries" list. Entries without created_at get now. Every entry is
// validated; the first invalid one fails the whole file.
func Parse(data []byte, now time.Time) ([]models.KnowledgeEntry, error) {
	var entries []models.KnowledgeEntry
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "[") {
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("importer: decode: %w", err)
		}
	} else {
		var f file
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("importer: decode: %w", err)
		}
		entries = f.Entries
	}

	seen := make(map[string]bool, len(entries))
	for i := range entries {
		e := &entries[i]
		e.Category = models.Category(strings.ToLower(strings.TrimSpace(string(e.Category))))
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.CreatedAt = e.CreatedAt.UTC()
		if err := validate(e); err != nil {
			return nil, fmt.Errorf("importer: entry %d: %v: %w", i, err, apperr.ErrInvalidInput)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("importer: entry %d: duplicate id %q: %w", i, e.ID, apperr.ErrInvalidInput)
		}
		seen[e.ID] = true
	}
	return entries, nil
}

func validate(e *models.KnowledgeEntry) error {
	categories := make([]any, len(models.Categories))
	for i, c := range models.Categories {
		categories[i] = c
	}
	return validation.ValidateStruct(e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Category, validation.Required, validation.In(categories...)),
		validation.Field(&e.Content, validation.Required),
	)
}

// Import stores entries and returns how many were written. Entries already
// present are skipped by the store.
func Import(ctx context.Context, w EntryWriter, entries []models.KnowledgeEntry) (int, error) {
	for i, e := range entries {
		if err := w.InsertEntry(ctx, e); err != nil {
			return i, fmt.Errorf("importer: %w", err)
		}
	}
	return len(entries), nil
}
