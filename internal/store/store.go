package store

import (
	"context"
	"time"

	"github.com/starford/playbooksync/internal/models"
)

// EntryStore reads knowledge entries produced by the upstream extraction process.
type EntryStore interface {
	ListEntriesCreatedAfter(ctx context.Context, t time.Time) ([]models.KnowledgeEntry, error)
	ListEntriesWithLatestAction(ctx context.Context, action models.Action) ([]models.KnowledgeEntry, error)
}

// MatchStore persists match records.
type MatchStore interface {
	InsertMatch(ctx context.Context, rec models.MatchRecord) (int64, error)
	RewriteMatches(ctx context.Context, runID string, entryIDs []string, action models.Action, docPath string) error
	ListMatches(ctx context.Context, runID string) ([]models.MatchRecord, error)
}

// RunLedger persists one record per sync run.
type RunLedger interface {
	CreateRun(ctx context.Context, run models.SyncRun) error
	FinalizeRun(ctx context.Context, run models.SyncRun) error
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]models.SyncRun, int, error)
	LatestCompletedRun(ctx context.Context) (*models.SyncRun, error)
}

// EmbeddingCache stores document embeddings keyed by path and content hash.
type EmbeddingCache interface {
	CachedEmbeddings(ctx context.Context) (map[string]CachedEmbedding, error)
	PutEmbedding(ctx context.Context, e CachedEmbedding) error
	DeleteEmbedding(ctx context.Context, path string) error
}

// Verify *DB satisfies every store interface at compile time.
var (
	_ EntryStore     = (*DB)(nil)
	_ MatchStore     = (*DB)(nil)
	_ RunLedger      = (*DB)(nil)
	_ EmbeddingCache = (*DB)(nil)
)
