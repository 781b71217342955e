// Package doccache keeps the current documents and their embeddings, backed
// by a persistent embedding cache so unchanged documents are never re-embedded.
package doccache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/playbooksync/internal/checksum"
	"github.com/starford/playbooksync/internal/embedding"
	"github.com/starford/playbooksync/internal/metrics"
	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/parser"
	"github.com/starford/playbooksync/internal/storage"
	"github.com/starford/playbooksync/internal/store"
)

// Defaults for batching document embeddings.
const (
	DefaultBatchSize   = 16
	DefaultConcurrency = 4
)

// Options tune a Cache.
type Options struct {
	DocsDir     string
	BatchSize   int
	Concurrency int
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Cache is the similarity-searchable set of current documents.
type Cache struct {
	repo     storage.Repository
	rows     store.EmbeddingCache
	embedder embedding.Provider
	opts     Options

	mu   sync.RWMutex
	docs map[string]models.Document
}

// RefreshResult summarises one Refresh.
type RefreshResult struct {
	Documents int
	Reused    int
	Embedded  int
	Pruned    int
	// Errors holds one entry per document batch that failed to embed.
	Errors []error
}

// New creates an empty Cache.
func New(repo storage.Repository, rows store.EmbeddingCache, embedder embedding.Provider, opts Options) *Cache {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Cache{repo: repo, rows: rows, embedder: embedder, opts: opts, docs: make(map[string]models.Document)}
}

// Refresh reloads every document from the repository. Documents whose content
// hash and model match their cached row reuse the stored vector; the rest are
// embedded in parallel batches. A failed batch leaves its documents without a
// vector and is reported in RefreshResult.Errors. Rows for documents that no
// longer exist are pruned. Listing and cache storage failures are returned.
func (c *Cache) Refresh(ctx context.Context) (RefreshResult, error) {
	files, err := c.repo.ListDocuments(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("doccache: list documents: %w", err)
	}
	cached, err := c.rows.CachedEmbeddings(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("doccache: load cache: %w", err)
	}

	res := RefreshResult{Documents: len(files)}
	docs := make(map[string]models.Document, len(files))
	var pending []models.Document
	for _, f := range files {
		doc := c.buildDocument(f.Path, f.Content)
		if row, ok := cached[doc.Path]; ok && row.Checksum == doc.Checksum && row.Model == c.embedder.Model() && len(row.Vector) > 0 {
			doc.Embedding = row.Vector
			res.Reused++
		} else {
			pending = append(pending, doc)
		}
		docs[doc.Path] = doc
	}
	c.opts.Metrics.CacheLookups(res.Reused, len(pending))

	vectors, batchErrs := c.embedBatches(ctx, pending)
	res.Errors = batchErrs
	for i, doc := range pending {
		if vectors[i] == nil {
			continue
		}
		doc.Embedding = vectors[i]
		docs[doc.Path] = doc
		if err := c.rows.PutEmbedding(ctx, store.CachedEmbedding{
			Path: doc.Path, Checksum: doc.Checksum, Model: c.embedder.Model(), Vector: doc.Embedding,
		}); err != nil {
			return res, fmt.Errorf("doccache: store embedding: %w", err)
		}
		res.Embedded++
	}

	for p := range cached {
		if _, ok := docs[p]; ok {
			continue
		}
		if err := c.rows.DeleteEmbedding(ctx, p); err != nil {
			return res, fmt.Errorf("doccache: prune: %w", err)
		}
		res.Pruned++
	}

	c.mu.Lock()
	c.docs = docs
	c.mu.Unlock()

	c.opts.Logger.Info("doccache: refreshed",
		slog.Int("documents", res.Documents),
		slog.Int("reused", res.Reused),
		slog.Int("embedded", res.Embedded),
		slog.Int("pruned", res.Pruned),
		slog.Int("failed_batches", len(res.Errors)))
	return res, nil
}

// embedBatches embeds docs in batches with bounded parallelism. The result
// is index-aligned with docs; entries of failed batches are nil.
func (c *Cache) embedBatches(ctx context.Context, docs []models.Document) ([][]float32, []error) {
	vectors := make([][]float32, len(docs))
	if len(docs) == 0 {
		return vectors, nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for start := 0; start < len(docs); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(docs))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, d := range docs[start:end] {
				texts = append(texts, embeddingText(d))
			}
			vecs, err := c.embedder.Embed(gctx, texts)
			if err == nil && len(vecs) != len(texts) {
				err = fmt.Errorf("expected %d vectors, got %d", len(texts), len(vecs))
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("doccache: embed %s..%s: %w", docs[start].Path, docs[end-1].Path, err))
				mu.Unlock()
				return nil
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	_ = g.Wait()
	return vectors, errs
}

func (c *Cache) buildDocument(path string, content []byte) models.Document {
	id := storage.DocID(c.opts.DocsDir, path)
	doc := models.Document{
		Path:     path,
		ID:       id,
		Content:  string(content),
		Checksum: checksum.Sum(content),
		Title:    parser.Stem(path),
	}
	if r, err := parser.Parse(id+".md", content); err == nil {
		doc.Title = r.Title
		doc.Module = r.Module
	}
	return doc
}

func embeddingText(d models.Document) string {
	return d.Title + "\n\n" + d.Content
}

// Documents returns every current document sorted by path.
func (c *Cache) Documents() []models.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Document, 0, len(c.docs))
	for _, d := range c.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Get returns the document at path.
func (c *Cache) Get(path string) (models.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[path]
	return d, ok
}

// Nearest returns the embedded document most similar to vec. Ties keep the
// lexicographically smaller path. ok is false when no document has a vector.
func (c *Cache) Nearest(vec []float32) (doc models.Document, score float64, ok bool) {
	for _, d := range c.Documents() {
		if len(d.Embedding) == 0 {
			continue
		}
		s := embedding.Cosine(vec, d.Embedding)
		if !ok || s > score {
			doc, score, ok = d, s, true
		}
	}
	return doc, score, ok
}

// upsert embeds a single document and stores it. Used by the watcher.
func (c *Cache) upsert(ctx context.Context, path string, content []byte) error {
	doc := c.buildDocument(path, content)
	if cur, ok := c.Get(path); ok && cur.Checksum == doc.Checksum && len(cur.Embedding) > 0 {
		return nil
	}
	vecs, err := c.embedder.Embed(ctx, []string{embeddingText(doc)})
	if err != nil {
		return fmt.Errorf("doccache: embed %s: %w", path, err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("doccache: embed %s: expected 1 vector, got %d", path, len(vecs))
	}
	doc.Embedding = vecs[0]
	if err := c.rows.PutEmbedding(ctx, store.CachedEmbedding{
		Path: path, Checksum: doc.Checksum, Model: c.embedder.Model(), Vector: doc.Embedding,
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.docs[path] = doc
	c.mu.Unlock()
	return nil
}

// remove drops a document from memory and from the embedding cache.
func (c *Cache) remove(ctx context.Context, path string) error {
	c.mu.Lock()
	delete(c.docs, path)
	c.mu.Unlock()
	return c.rows.DeleteEmbedding(ctx, path)
}
