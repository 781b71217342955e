// Package testutil provides shared test helpers: temporary databases and
// repositories, and in-memory fakes for the embedding and repository ports.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/storage"
	"github.com/starford/playbooksync/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "playbooksync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRepo creates a temporary local repository.
func TestRepo(t *testing.T, docsDir string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	repo, err := storage.NewFS(dir, docsDir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, repo
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Embedder is a fake embedding.Provider driven by Fn.
type Embedder struct {
	Fn func(text string) ([]float32, error)

	mu    sync.Mutex
	calls int
	texts []string
}

// Model implements embedding.Provider.
func (e *Embedder) Model() string { return "fake-embed" }

// Embed implements embedding.Provider. Any per-text error fails the batch.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts = append(e.texts, texts...)
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Fn(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Calls returns the number of Embed calls.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Texts returns every text embedded so far.
func (e *Embedder) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

// Keywords returns an embedding function with one dimension per keyword,
// set to 1 when the lowercased text contains it.
func Keywords(vocab ...string) func(string) ([]float32, error) {
	return func(text string) ([]float32, error) {
		text = strings.ToLower(text)
		v := make([]float32, len(vocab))
		for i, w := range vocab {
			if strings.Contains(text, w) {
				v[i] = 1
			}
		}
		return v, nil
	}
}

// MemRepo is an in-memory storage.Repository. FailCommits makes the next n
// commits fail.
type MemRepo struct {
	mu          sync.Mutex
	files       map[string][]byte
	commits     []Commit
	FailCommits int
	ListErr     error
}

// Commit is a recorded MemRepo commit.
type Commit struct {
	Message string
	Changes []models.FileChange
}

// NewMemRepo creates a MemRepo holding files.
func NewMemRepo(files map[string]string) *MemRepo {
	r := &MemRepo{files: make(map[string][]byte)}
	for p, c := range files {
		r.files[p] = []byte(c)
	}
	return r
}

var _ storage.Repository = (*MemRepo)(nil)

// ListDocuments implements storage.Repository.
func (r *MemRepo) ListDocuments(context.Context) ([]models.DocumentFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	var out []models.DocumentFile
	for p, c := range r.files {
		if strings.HasSuffix(p, ".md") {
			out = append(out, models.DocumentFile{Path: p, Content: c})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ReadFile implements storage.Repository.
func (r *MemRepo) ReadFile(_ context.Context, path string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("memrepo: %s: %w", path, apperr.ErrNotFound)
	}
	return c, nil
}

// Commit implements storage.Repository.
func (r *MemRepo) Commit(_ context.Context, changes []models.FileChange, message string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(changes) == 0 {
		return "", apperr.ErrEmptyChangeSet
	}
	if r.FailCommits > 0 {
		r.FailCommits--
		return "", fmt.Errorf("memrepo: commit rejected")
	}
	for _, c := range changes {
		r.files[c.Path] = c.Content
	}
	r.commits = append(r.commits, Commit{Message: message, Changes: changes})
	return fmt.Sprintf("commit-%d", len(r.commits)), nil
}

// Commits returns the recorded commits.
func (r *MemRepo) Commits() []Commit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Commit(nil), r.commits...)
}

// File returns the current content of path.
func (r *MemRepo) File(path string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.files[path])
}
