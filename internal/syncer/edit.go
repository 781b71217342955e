package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/playbooksync/internal/publish"
)

// synthesizeEdits produces and applies one edit per enriched document, in
// the order documents were first matched.
func (o *Orchestrator) synthesizeEdits(ctx context.Context, st *runState) error {
	for _, g := range st.groups {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("syncer: synthesize edits: %w", err)
		}
		section := majoritySection(g.sections)
		edit, err := o.deps.Assistant.SynthesizeEdit(ctx, g.entries, g.doc.Content, g.doc.Title, section)
		if err != nil {
			o.itemError(st, "synthesize_edit", fmt.Errorf("document %s: %w", g.doc.Path, err))
			continue
		}

		res := o.patcher.Apply(g.doc.Content, edit)
		st.changes.Put(g.doc.Path, []byte(res.Text))
		st.run.DocumentsEnriched = append(st.run.DocumentsEnriched, g.doc.Path)
		st.enriched = append(st.enriched, publish.Note{Path: g.doc.Path, Summary: edit.Summary})
		o.deps.Metrics.PatchApplied(string(res.Strategy))
		o.deps.Notifier.DocumentPatched(st.run.ID, g.doc.Path, string(res.Strategy))
		st.logger.Info("document patched",
			slog.String("path", g.doc.Path),
			slog.String("section", section),
			slog.String("strategy", string(res.Strategy)),
			slog.Int("line", res.Line),
			slog.Int("entries", len(g.entries)))
	}
	return nil
}

// majoritySection returns the most frequent non-empty section. Ties go to the
// section seen first.
func majoritySection(sections []string) string {
	counts := make(map[string]int)
	var order []string
	for _, s := range sections {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if counts[s] == 0 {
			order = append(order, s)
		}
		counts[s]++
	}
	best := ""
	for _, s := range order {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}
