package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/models"
)

// Epoch is the window lower bound before any run completed.
var Epoch = time.Unix(0, 0).UTC()

// ResolveWindow returns the start time of the latest success or partial run,
// or Epoch when there is none. Failed and running runs never move the window.
func (o *Orchestrator) ResolveWindow(ctx context.Context) (time.Time, error) {
	run, err := o.deps.Ledger.LatestCompletedRun(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return Epoch, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("syncer: resolve window: %w", err)
	}
	return run.StartedAt.UTC(), nil
}

// SelectEntries returns entries created strictly after since followed by
// entries whose latest match record is orphaned, without duplicates.
func (o *Orchestrator) SelectEntries(ctx context.Context, since time.Time) ([]models.KnowledgeEntry, error) {
	fresh, err := o.deps.Entries.ListEntriesCreatedAfter(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("syncer: list new entries: %w", err)
	}
	orphans, err := o.deps.Entries.ListEntriesWithLatestAction(ctx, models.ActionOrphaned)
	if err != nil {
		return nil, fmt.Errorf("syncer: list orphaned entries: %w", err)
	}

	seen := make(map[string]bool, len(fresh)+len(orphans))
	out := make([]models.KnowledgeEntry, 0, len(fresh)+len(orphans))
	for _, group := range [][]models.KnowledgeEntry{fresh, orphans} {
		for _, e := range group {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// ResolveStatus maps a finished run's outcome to its status.
func ResolveStatus(errorCount, enriched, created int) models.RunStatus {
	switch {
	case errorCount == 0:
		return models.RunSuccess
	case enriched+created > 0:
		return models.RunPartial
	default:
		return models.RunFailed
	}
}
