// Package history is the read-only view over sync runs, their match records
// and the current document cache. The HTTP API and the MCP server share it.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/store"
)

// Pagination limits.
const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// DocumentLister exposes the cached documents.
type DocumentLister interface {
	Documents() []models.Document
}

// RunListItem is a lightweight run in a list response.
type RunListItem struct {
	ID                string           `json:"id"`
	Status            models.RunStatus `json:"status"`
	StartedAt         time.Time        `json:"started_at"`
	FinishedAt        *time.Time       `json:"finished_at,omitempty"`
	WindowStart       time.Time        `json:"window_start"`
	Counts            models.RunCounts `json:"counts"`
	DocumentsEnriched int              `json:"documents_enriched"`
	DocumentsCreated  int              `json:"documents_created"`
	Errors            int              `json:"errors"`
	CommitRef         string           `json:"commit_ref,omitempty"`
}

// DocumentItem is a cached document without its content.
type DocumentItem struct {
	Path     string `json:"path"`
	ID       string `json:"id"`
	Module   string `json:"module"`
	Title    string `json:"title"`
	Checksum string `json:"checksum"`
	Embedded bool   `json:"embedded"`
}

// Service answers run history queries.
type Service struct {
	ledger  store.RunLedger
	matches store.MatchStore
	docs    DocumentLister
}

// NewService creates a Service. docs may be nil when no document cache runs
// in the process.
func NewService(ledger store.RunLedger, matches store.MatchStore, docs DocumentLister) *Service {
	return &Service{ledger: ledger, matches: matches, docs: docs}
}

// ListRuns returns runs newest first and the total run count.
func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]RunListItem, int, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	offset = max(offset, 0)

	runs, total, err := s.ledger.ListRuns(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]RunListItem, len(runs))
	for i, r := range runs {
		items[i] = RunListItem{
			ID:                r.ID,
			Status:            r.Status,
			StartedAt:         r.StartedAt,
			FinishedAt:        r.FinishedAt,
			WindowStart:       r.WindowStart,
			Counts:            r.Counts,
			DocumentsEnriched: len(r.DocumentsEnriched),
			DocumentsCreated:  len(r.DocumentsCreated),
			Errors:            len(r.Errors),
			CommitRef:         r.CommitRef,
		}
	}
	return items, total, nil
}

// GetRun returns one run or apperr.ErrNotFound.
func (s *Service) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	return s.ledger.GetRun(ctx, id)
}

// ListMatches returns a run's match records, optionally filtered by action.
func (s *Service) ListMatches(ctx context.Context, runID, action string) ([]models.MatchRecord, error) {
	if action != "" && !validAction(models.Action(action)) {
		return nil, fmt.Errorf("history: unknown action %q: %w", action, apperr.ErrInvalidInput)
	}
	if _, err := s.ledger.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	recs, err := s.matches.ListMatches(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]models.MatchRecord, 0, len(recs))
	for _, r := range recs {
		if action == "" || r.Action == models.Action(action) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListDocuments returns the cached documents, optionally limited to one module.
func (s *Service) ListDocuments(_ context.Context, module string) []DocumentItem {
	out := []DocumentItem{}
	if s.docs == nil {
		return out
	}
	for _, d := range s.docs.Documents() {
		if module != "" && d.Module != module {
			continue
		}
		out = append(out, DocumentItem{
			Path:     d.Path,
			ID:       d.ID,
			Module:   d.Module,
			Title:    d.Title,
			Checksum: d.Checksum,
			Embedded: len(d.Embedding) > 0,
		})
	}
	return out
}

func validAction(a models.Action) bool {
	switch a {
	case models.ActionEnrich, models.ActionRedundant, models.ActionTangential,
		models.ActionOrphaned, models.ActionNewDoc:
		return true
	}
	return false
}
