package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/playbooksync/internal/models"
)

type enrichmentGroup struct {
	doc      models.Document
	entries  []models.KnowledgeEntry
	sections []string
}

// matchEntries evaluates entries one at a time, in order, and records one
// match record per entry.
func (o *Orchestrator) matchEntries(ctx context.Context, st *runState, entries []models.KnowledgeEntry) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("syncer: match entries: %w", err)
		}
		if err := o.matchEntry(ctx, st, entry); err != nil {
			return err
		}
	}
	st.logger.Info("entries matched",
		slog.Int("processed", st.run.Counts.Processed),
		slog.Int("enriched", st.run.Counts.Enriched),
		slog.Int("redundant", st.run.Counts.Redundant),
		slog.Int("orphaned", st.run.Counts.Orphaned),
		slog.Int("tangential", st.run.Counts.Tangential),
		slog.Int("documents", len(st.groups)))
	return nil
}

func (o *Orchestrator) matchEntry(ctx context.Context, st *runState, entry models.KnowledgeEntry) error {
	rec := models.MatchRecord{EntryID: entry.ID, RunID: st.run.ID, CreatedAt: o.deps.Clock().UTC()}

	vecs, err := o.deps.Embedder.Embed(ctx, []string{entry.EmbeddingText()})
	if err == nil && len(vecs) != 1 {
		err = fmt.Errorf("expected 1 vector, got %d", len(vecs))
	}
	if err != nil {
		o.itemError(st, "embed_entry", fmt.Errorf("entry %s: %w", entry.ID, err))
		rec.Action = models.ActionOrphaned
		rec.Rationale = "embedding failed: " + err.Error()
		return o.record(ctx, rec)
	}
	st.run.Counts.Processed++

	best, score, found := o.deps.Documents.Nearest(vecs[0])
	if found {
		rec.DocumentPath = best.Path
		rec.Similarity = score
	}

	if !found || score < o.cfg.SimilarityThreshold {
		rec.Action = models.ActionOrphaned
		rec.Rationale = fmt.Sprintf("best similarity %.3f below threshold %.2f", score, o.cfg.SimilarityThreshold)
		st.run.Counts.Orphaned++
		st.orphans = append(st.orphans, entry)
		return o.record(ctx, rec)
	}

	cls, err := o.deps.Assistant.Classify(ctx, entry, best.Content, best.Title)
	if err != nil {
		o.itemError(st, "classify", fmt.Errorf("entry %s: %w", entry.ID, err))
		cls = models.Classification{Action: models.ActionTangential, Rationale: "classification failed: " + err.Error()}
	}
	rec.Action = cls.Action
	rec.Rationale = cls.Rationale
	rec.TargetSection = cls.TargetSection
	if err := o.record(ctx, rec); err != nil {
		return err
	}

	switch cls.Action {
	case models.ActionEnrich:
		st.run.Counts.Enriched++
		g, ok := st.byPath[best.Path]
		if !ok {
			g = &enrichmentGroup{doc: best}
			st.byPath[best.Path] = g
			st.groups = append(st.groups, g)
		}
		g.entries = append(g.entries, entry)
		g.sections = append(g.sections, cls.TargetSection)
	case models.ActionRedundant:
		st.run.Counts.Redundant++
	case models.ActionTangential:
		st.run.Counts.Tangential++
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, rec models.MatchRecord) error {
	if _, err := o.deps.Matches.InsertMatch(ctx, rec); err != nil {
		return fmt.Errorf("syncer: record match: %w", err)
	}
	o.deps.Metrics.EntryRecorded(string(rec.Action))
	return nil
}
