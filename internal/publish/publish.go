// Package publish commits a run's file changes to the document repository.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/storage"
)

// DefaultRetryDelay is the pause before the single commit retry.
const DefaultRetryDelay = 2 * time.Second

// Publisher writes a change set as one commit, retrying once.
type Publisher struct {
	repo       storage.Repository
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a Publisher. A negative retryDelay is treated as zero.
func New(repo storage.Repository, retryDelay time.Duration, logger *slog.Logger) *Publisher {
	if retryDelay < 0 {
		retryDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{repo: repo, retryDelay: retryDelay, logger: logger}
}

// Publish commits changes and returns the commit reference. An empty change
// set makes no commit and returns "". A failed commit is retried exactly once.
func (p *Publisher) Publish(ctx context.Context, changes []models.FileChange, message string) (string, error) {
	if len(changes) == 0 {
		return "", nil
	}
	ref, err := p.repo.Commit(ctx, changes, message)
	if err == nil {
		return ref, nil
	}
	p.logger.Warn("commit failed, retrying",
		slog.Int("files", len(changes)),
		slog.Duration("delay", p.retryDelay),
		slog.String("error", err.Error()))

	timer := time.NewTimer(p.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("publish: retry aborted: %w", ctx.Err())
	case <-timer.C:
	}

	ref, err = p.repo.Commit(ctx, changes, message)
	if err != nil {
		return "", fmt.Errorf("publish: commit failed after retry: %w", err)
	}
	return ref, nil
}

// ChangeSet accumulates file contents by path, keeping first-seen order.
// Writing a path again replaces its content.
type ChangeSet struct {
	order []string
	files map[string][]byte
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{files: make(map[string][]byte)}
}

// Put records content for path.
func (c *ChangeSet) Put(path string, content []byte) {
	if _, ok := c.files[path]; !ok {
		c.order = append(c.order, path)
	}
	c.files[path] = content
}

// Has reports whether path is part of the change set.
func (c *ChangeSet) Has(path string) bool {
	_, ok := c.files[path]
	return ok
}

// Len returns the number of files.
func (c *ChangeSet) Len() int { return len(c.order) }

// Changes returns the files in first-seen order.
func (c *ChangeSet) Changes() []models.FileChange {
	out := make([]models.FileChange, 0, len(c.order))
	for _, p := range c.order {
		out = append(out, models.FileChange{Path: p, Content: c.files[p]})
	}
	return out
}

// Note is one line of a commit message body.
type Note struct {
	Path    string
	Summary string
}

// CommitMessage builds the message for a run's commit.
func CommitMessage(runID string, enriched, created []Note) string {
	var b strings.Builder
	fmt.Fprintf(&b, "playbook sync: %d enriched, %d created\n", len(enriched), len(created))
	writeSection(&b, "Enriched", enriched)
	writeSection(&b, "Created", created)
	fmt.Fprintf(&b, "\nRun: %s\n", runID)
	return b.String()
}

func writeSection(b *strings.Builder, title string, notes []Note) {
	if len(notes) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, n := range notes {
		if n.Summary == "" {
			fmt.Fprintf(b, "- %s\n", n.Path)
			continue
		}
		fmt.Fprintf(b, "- %s: %s\n", n.Path, strings.Join(strings.Fields(n.Summary), " "))
	}
}
