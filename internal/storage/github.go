package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v60/github"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/models"
)

// GitHubConfig identifies the branch a GitHub repository reads and commits to.
type GitHubConfig struct {
	Owner       string
	Repo        string
	Branch      string
	DocsDir     string
	AuthorName  string
	AuthorEmail string
}

// GitHub implements Repository over the GitHub Git Data API. Commits are
// built as one tree on top of the branch head and published with a
// non-forced ref update, so a concurrent push makes the commit fail instead
// of overwriting it.
type GitHub struct {
	client *github.Client
	cfg    GitHubConfig
}

// NewGitHub creates a GitHub repository. A nil client is replaced with an
// unauthenticated default; callers normally pass one built with WithAuthToken.
func NewGitHub(client *github.Client, cfg GitHubConfig) (*GitHub, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("storage: github owner and repo are required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	cfg.DocsDir = strings.Trim(cfg.DocsDir, "/")
	if client == nil {
		client = github.NewClient(nil)
	}
	return &GitHub{client: client, cfg: cfg}, nil
}

// NewGitHubClient returns a go-github client authenticated with token.
func NewGitHubClient(token string) *github.Client {
	c := github.NewClient(nil)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	return c
}

func (g *GitHub) headRef() string { return "heads/" + g.cfg.Branch }

// head returns the branch head commit SHA and its tree SHA.
func (g *GitHub) head(ctx context.Context) (string, string, error) {
	ref, _, err := g.client.Git.GetRef(ctx, g.cfg.Owner, g.cfg.Repo, g.headRef())
	if err != nil {
		return "", "", fmt.Errorf("storage: github get ref: %w", err)
	}
	commitSHA := ref.GetObject().GetSHA()
	commit, _, err := g.client.Git.GetCommit(ctx, g.cfg.Owner, g.cfg.Repo, commitSHA)
	if err != nil {
		return "", "", fmt.Errorf("storage: github get commit: %w", err)
	}
	return commitSHA, commit.GetTree().GetSHA(), nil
}

func (g *GitHub) blobs(ctx context.Context) (map[string]string, error) {
	_, treeSHA, err := g.head(ctx)
	if err != nil {
		return nil, err
	}
	tree, _, err := g.client.Git.GetTree(ctx, g.cfg.Owner, g.cfg.Repo, treeSHA, true)
	if err != nil {
		return nil, fmt.Errorf("storage: github get tree: %w", err)
	}
	out := make(map[string]string, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.GetType() == "blob" {
			out[e.GetPath()] = e.GetSHA()
		}
	}
	return out, nil
}

// ListDocuments returns every .md blob under the docs directory at the branch head.
func (g *GitHub) ListDocuments(ctx context.Context) ([]models.DocumentFile, error) {
	blobs, err := g.blobs(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(blobs))
	for p := range blobs {
		if strings.HasSuffix(p, ".md") && underDocs(g.cfg.DocsDir, p) && !hiddenPath(p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	out := make([]models.DocumentFile, 0, len(paths))
	for _, p := range paths {
		data, _, err := g.client.Git.GetBlobRaw(ctx, g.cfg.Owner, g.cfg.Repo, blobs[p])
		if err != nil {
			return nil, fmt.Errorf("storage: github get blob %s: %w", p, err)
		}
		out = append(out, models.DocumentFile{Path: p, Content: data})
	}
	return out, nil
}

// ReadFile returns the content of path at the branch head.
func (g *GitHub) ReadFile(ctx context.Context, p string) ([]byte, error) {
	blobs, err := g.blobs(ctx)
	if err != nil {
		return nil, err
	}
	sha, ok := blobs[path.Clean(p)]
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", p, apperr.ErrNotFound)
	}
	data, _, err := g.client.Git.GetBlobRaw(ctx, g.cfg.Owner, g.cfg.Repo, sha)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("storage: read %s: %w", p, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: github get blob %s: %w", p, err)
	}
	return data, nil
}

// Commit creates one tree containing every change, a commit on top of the
// branch head, and fast-forwards the branch to it. Returns the commit SHA.
func (g *GitHub) Commit(ctx context.Context, changes []models.FileChange, message string) (string, error) {
	if len(changes) == 0 {
		return "", apperr.ErrEmptyChangeSet
	}
	parentSHA, baseTree, err := g.head(ctx)
	if err != nil {
		return "", err
	}

	entries := make([]*github.TreeEntry, 0, len(changes))
	for _, c := range changes {
		p := path.Clean(c.Path)
		if strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") || p == ".." {
			return "", fmt.Errorf("storage: path escapes repository root: %s", c.Path)
		}
		entries = append(entries, &github.TreeEntry{
			Path:    github.String(p),
			Mode:    github.String("100644"),
			Type:    github.String("blob"),
			Content: github.String(string(c.Content)),
		})
	}
	tree, _, err := g.client.Git.CreateTree(ctx, g.cfg.Owner, g.cfg.Repo, baseTree, entries)
	if err != nil {
		return "", fmt.Errorf("storage: github create tree: %w", err)
	}

	commit := &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: tree.SHA},
		Parents: []*github.Commit{{SHA: github.String(parentSHA)}},
	}
	if g.cfg.AuthorName != "" {
		commit.Author = &github.CommitAuthor{
			Name:  github.String(g.cfg.AuthorName),
			Email: github.String(g.cfg.AuthorEmail),
			Date:  &github.Timestamp{Time: time.Now().UTC()},
		}
	}
	created, _, err := g.client.Git.CreateCommit(ctx, g.cfg.Owner, g.cfg.Repo, commit, nil)
	if err != nil {
		return "", fmt.Errorf("storage: github create commit: %w", err)
	}

	ref := &github.Reference{
		Ref:    github.String("refs/" + g.headRef()),
		Object: &github.GitObject{SHA: created.SHA},
	}
	if _, _, err := g.client.Git.UpdateRef(ctx, g.cfg.Owner, g.cfg.Repo, ref, false); err != nil {
		return "", fmt.Errorf("storage: github update ref: %w", err)
	}
	return created.GetSHA(), nil
}

func hiddenPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
