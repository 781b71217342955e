// Package storage defines the document repository abstraction.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/starford/playbooksync/internal/models"
)

// Repository is the versioned store of procedural documents.
// All paths are relative to the repository root and use forward slashes.
type Repository interface {
	// ListDocuments returns every .md file under the docs directory.
	ListDocuments(ctx context.Context) ([]models.DocumentFile, error)
	// ReadFile returns the raw bytes of a file, or apperr.ErrNotFound.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Commit writes every change as one unit and returns a commit reference.
	Commit(ctx context.Context, changes []models.FileChange, message string) (string, error)
}

// DocID returns the document id for a repository path: the path relative to
// docsDir with the .md extension removed.
func DocID(docsDir, p string) string {
	p = strings.TrimPrefix(path.Clean(p), "/")
	if dir := strings.Trim(docsDir, "/"); dir != "" && dir != "." {
		p = strings.TrimPrefix(p, dir+"/")
	}
	return strings.TrimSuffix(p, ".md")
}

// RepoPath joins a docs-relative path onto docsDir.
func RepoPath(docsDir, rel string) string {
	dir := strings.Trim(docsDir, "/")
	if dir == "" || dir == "." {
		return path.Clean(rel)
	}
	return path.Join(dir, rel)
}

func underDocs(docsDir, p string) bool {
	dir := strings.Trim(docsDir, "/")
	if dir == "" || dir == "." {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}
