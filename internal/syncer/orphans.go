package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/publish"
	"github.com/starford/playbooksync/internal/storage"
)

// createDocuments clusters this run's orphans and drafts one new document per
// cluster once enough orphans accumulated.
func (o *Orchestrator) createDocuments(ctx context.Context, st *runState) error {
	if len(st.orphans) < o.cfg.MinClusterTrigger {
		if len(st.orphans) > 0 {
			st.logger.Info("orphans below cluster trigger",
				slog.Int("orphans", len(st.orphans)),
				slog.Int("trigger", o.cfg.MinClusterTrigger))
		}
		return nil
	}

	clusters, err := o.deps.Assistant.Cluster(ctx, st.orphans, o.cfg.Modules)
	if err != nil {
		o.itemError(st, "cluster", err)
		return nil
	}
	st.logger.Info("orphans clustered", slog.Int("orphans", len(st.orphans)), slog.Int("clusters", len(clusters)))

	docs := o.deps.Documents.Documents()
	known := make(map[string]bool, len(docs))
	knownIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		known[d.Path] = true
		knownIDs = append(knownIDs, d.ID)
	}
	counter := maxNumericID(knownIDs) + 1

	idx := &indexFile{path: o.cfg.IndexFile}
	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("syncer: create documents: %w", err)
		}
		draft, err := o.deps.Assistant.DraftDocument(ctx, cluster, knownIDs, counter)
		if err != nil {
			o.itemError(st, "draft_document", fmt.Errorf("cluster %q: %w", cluster.Title, err))
			continue
		}

		rel := resolveDraftPath(draft.Path, cluster.Module, draft.Title)
		taken := func(rel string) bool {
			p := storage.RepoPath(o.cfg.DocsDir, rel)
			return known[p] || st.changes.Has(p)
		}
		if taken(rel) {
			base := strings.TrimSuffix(rel, ".md")
			for {
				rel = fmt.Sprintf("%s-%d.md", base, counter)
				counter++
				if !taken(rel) {
					break
				}
			}
		}
		repoPath := storage.RepoPath(o.cfg.DocsDir, rel)
		docID := strings.TrimSuffix(rel, ".md")

		st.changes.Put(repoPath, []byte(draft.Content))
		ids := make([]string, 0, len(cluster.Entries))
		for _, e := range cluster.Entries {
			ids = append(ids, e.ID)
		}
		st.rewrites = append(st.rewrites, rewrite{entryIDs: ids, path: repoPath})
		knownIDs = append(knownIDs, docID)

		o.register(ctx, st, idx, o.module(cluster.Module), docID)

		st.run.DocumentsCreated = append(st.run.DocumentsCreated, repoPath)
		st.created = append(st.created, publish.Note{Path: repoPath, Summary: draft.Title})
		o.deps.Notifier.DocumentCreated(st.run.ID, repoPath)
		st.logger.Info("document drafted",
			slog.String("path", repoPath),
			slog.String("title", draft.Title),
			slog.String("module", cluster.Module),
			slog.Int("entries", len(ids)))
	}

	if idx.changed {
		st.changes.Put(idx.path, []byte(idx.content))
	}
	return nil
}

type indexFile struct {
	path    string
	content string
	loaded  bool
	missing bool
	changed bool
}

func (o *Orchestrator) register(ctx context.Context, st *runState, idx *indexFile, module models.Module, docID string) {
	if !idx.loaded {
		idx.loaded = true
		data, err := o.deps.Repo.ReadFile(ctx, idx.path)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			idx.missing = true
			st.logger.Warn("index file not found", slog.String("path", idx.path))
		case err != nil:
			idx.missing = true
			st.logger.Warn("read index file", slog.String("path", idx.path), slog.String("error", err.Error()))
		default:
			idx.content = string(data)
		}
	}
	if idx.missing {
		return
	}
	updated, ok := o.deps.Registrar.Register(idx.content, module, docID)
	if !ok {
		st.logger.Warn("no index insertion point", slog.String("doc_id", docID), slog.String("module", module.ID))
		return
	}
	if updated != idx.content {
		idx.content = updated
		idx.changed = true
	}
}

func (o *Orchestrator) module(id string) models.Module {
	for _, m := range o.cfg.Modules {
		if m.ID == id {
			return m
		}
	}
	return models.Module{ID: id}
}

// resolveDraftPath returns a docs-relative path for a draft. The proposed
// path is used only when it is a relative .md path inside the module.
func resolveDraftPath(proposed, module, title string) string {
	p := strings.TrimSpace(proposed)
	if strings.HasSuffix(p, ".md") && !strings.Contains(p, "..") && !path.IsAbs(p) &&
		strings.HasPrefix(path.Clean(p), module+"/") && !strings.Contains(p, "\\") {
		return path.Clean(p)
	}
	s := slug(title)
	if s == "" {
		s = "untitled"
	}
	return module + "/" + s + ".md"
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

var digits = regexp.MustCompile(`[0-9]+`)

// maxNumericID returns the largest number appearing in any document stem.
func maxNumericID(ids []string) int {
	hi := 0
	for _, id := range ids {
		for _, m := range digits.FindAllString(path.Base(id), -1) {
			if n, err := strconv.Atoi(m); err == nil && n > hi {
				hi = n
			}
		}
	}
	return hi
}
