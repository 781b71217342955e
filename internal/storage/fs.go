package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/checksum"
	"github.com/starford/playbooksync/internal/models"
)

// FS implements Repository backed by a local directory.
type FS struct {
	root    string // absolute path to repository directory
	docsDir string // docs directory relative to root, "" for root
}

// NewFS creates a new FS repository rooted at the given directory.
// The directory must already exist.
func NewFS(root, docsDir string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, docsDir: strings.Trim(filepath.ToSlash(docsDir), "/")}, nil
}

// Root returns the absolute repository directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes repository root: %s", rel)
	}
	return abs, nil
}

// ListDocuments walks the docs directory and returns every .md file.
func (f *FS) ListDocuments(ctx context.Context) ([]models.DocumentFile, error) {
	base, err := f.safePath(f.docsDir)
	if err != nil {
		return nil, err
	}
	var out []models.DocumentFile
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, models.DocumentFile{Path: filepath.ToSlash(rel), Content: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ReadFile returns the raw bytes of a repository file.
func (f *FS) ReadFile(_ context.Context, path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

type stagedFile struct {
	tmp    string
	target string
}

// Commit stages every change as a synced temp file next to its target and only
// then renames them all into place. A failure while staging leaves the
// repository untouched. The returned reference is a digest of the change set.
func (f *FS) Commit(ctx context.Context, changes []models.FileChange, message string) (string, error) {
	if len(changes) == 0 {
		return "", apperr.ErrEmptyChangeSet
	}
	staged := make([]stagedFile, 0, len(changes))
	committed := false
	defer func() {
		if committed {
			return
		}
		for _, s := range staged {
			_ = os.Remove(s.tmp)
		}
	}()

	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		abs, err := f.safePath(c.Path)
		if err != nil {
			return "", err
		}
		tmp, err := writeTemp(filepath.Dir(abs), c.Content)
		if err != nil {
			return "", fmt.Errorf("storage: stage %s: %w", c.Path, err)
		}
		staged = append(staged, stagedFile{tmp: tmp, target: abs})
	}

	for _, s := range staged {
		if err := os.Rename(s.tmp, s.target); err != nil {
			return "", fmt.Errorf("storage: rename: %w", err)
		}
	}
	committed = true
	return changeSetRef(changes, message), nil
}

// writeTemp writes content to a synced temp file in dir: tmp file → fsync → close.
func writeTemp(dir string, content []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".playbooksync-tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close temp: %w", err)
	}
	return name, nil
}

func changeSetRef(changes []models.FileChange, message string) string {
	sorted := make([]models.FileChange, len(changes))
	copy(sorted, changes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	var b strings.Builder
	b.WriteString(message)
	for _, c := range sorted {
		b.WriteString("\x00")
		b.WriteString(c.Path)
		b.WriteString("\x00")
		b.WriteString(checksum.Sum(c.Content))
	}
	return checksum.SumString(b.String())[:12]
}
