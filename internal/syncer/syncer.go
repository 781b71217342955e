// Package syncer runs the knowledge-to-document synchronization: it selects
// new and re-candidate knowledge entries, matches them against the current
// documents, folds enrichments into those documents, turns accumulated
// orphans into new documents and publishes everything as one commit.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/playbooksync/internal/doccache"
	"github.com/starford/playbooksync/internal/embedding"
	"github.com/starford/playbooksync/internal/metrics"
	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/patch"
	"github.com/starford/playbooksync/internal/publish"
	"github.com/starford/playbooksync/internal/sidebar"
	"github.com/starford/playbooksync/internal/storage"
	"github.com/starford/playbooksync/internal/store"
)

// ErrAlreadyRunning is returned when Run is called while a run is in progress.
var ErrAlreadyRunning = errors.New("syncer: run already in progress")

// Defaults.
const (
	DefaultSimilarityThreshold = 0.75
	DefaultMinClusterTrigger   = 3
	DefaultMaxDuration         = 2 * time.Hour
	DefaultIndexFile           = "sidebars.js"
)

// DocumentIndex is the similarity-searchable view of the current documents.
type DocumentIndex interface {
	Refresh(ctx context.Context) (doccache.RefreshResult, error)
	Documents() []models.Document
	Nearest(vec []float32) (models.Document, float64, bool)
}

// Assistant performs the language-model decisions of a run.
type Assistant interface {
	Classify(ctx context.Context, entry models.KnowledgeEntry, docText, docTitle string) (models.Classification, error)
	SynthesizeEdit(ctx context.Context, entries []models.KnowledgeEntry, docText, docTitle, section string) (models.GeneratedEdit, error)
	Cluster(ctx context.Context, entries []models.KnowledgeEntry, modules []models.Module) ([]models.OrphanCluster, error)
	DraftDocument(ctx context.Context, cluster models.OrphanCluster, knownIDs []string, seed int) (models.DraftDocument, error)
}

// Publisher commits a change set.
type Publisher interface {
	Publish(ctx context.Context, changes []models.FileChange, message string) (string, error)
}

// Config holds the tunables of a run.
type Config struct {
	SimilarityThreshold float64
	FuzzyThreshold      float64
	MinClusterTrigger   int
	Modules             []models.Module
	DocsDir             string
	IndexFile           string
	MaxDuration         time.Duration
}

func (c Config) withDefaults() Config {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = patch.DefaultFuzzyThreshold
	}
	if c.MinClusterTrigger <= 0 {
		c.MinClusterTrigger = DefaultMinClusterTrigger
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.IndexFile == "" {
		c.IndexFile = DefaultIndexFile
	}
	return c
}

// Deps are the collaborators of an Orchestrator. Notifier, Metrics, Logger
// and Clock are optional.
type Deps struct {
	Entries   store.EntryStore
	Matches   store.MatchStore
	Ledger    store.RunLedger
	Documents DocumentIndex
	Embedder  embedding.Provider
	Assistant Assistant
	Repo      storage.Repository
	Publisher Publisher
	Registrar sidebar.Registrar
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Orchestrator sequences the stages of a sync run.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	patcher patch.Patcher
	running atomic.Bool
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	cfg = cfg.withDefaults()
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Registrar == nil {
		deps.Registrar = sidebar.Docusaurus{}
	}
	return &Orchestrator{cfg: cfg, deps: deps, patcher: patch.Patcher{FuzzyThreshold: cfg.FuzzyThreshold}}
}

// runState is the in-memory state of one run.
type runState struct {
	run      models.SyncRun
	logger   *slog.Logger
	orphans  []models.KnowledgeEntry
	groups   []*enrichmentGroup
	byPath   map[string]*enrichmentGroup
	changes  *publish.ChangeSet
	enriched []publish.Note
	created  []publish.Note
	rewrites []rewrite
}

type rewrite struct {
	entryIDs []string
	path     string
}

// Run executes one sync run and returns its finalized record. Item-level
// failures are collected on the run; a fatal failure finalizes the run as
// failed and is returned. A panic finalizes the run as failed and re-panics.
func (o *Orchestrator) Run(ctx context.Context) (*models.SyncRun, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaxDuration)
	defer cancel()

	window, err := o.ResolveWindow(ctx)
	if err != nil {
		return nil, err
	}
	st := &runState{
		run: models.SyncRun{
			ID:                uuid.NewString(),
			StartedAt:         o.deps.Clock().UTC(),
			WindowStart:       window,
			Status:            models.RunRunning,
			DocumentsEnriched: []string{},
			DocumentsCreated:  []string{},
			Errors:            []string{},
		},
		byPath:  make(map[string]*enrichmentGroup),
		changes: publish.NewChangeSet(),
	}
	st.logger = o.deps.Logger.With(slog.String("run_id", st.run.ID))

	if err := o.deps.Ledger.CreateRun(ctx, st.run); err != nil {
		return nil, fmt.Errorf("syncer: create run: %w", err)
	}
	st.logger.Info("sync run started", slog.Time("window_start", window))
	o.deps.Notifier.RunStarted(st.run)

	defer func() {
		if r := recover(); r != nil {
			o.finalizeFailed(st, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	if err := o.execute(ctx, st); err != nil {
		o.finalizeFailed(st, err)
		return &st.run, err
	}
	if err := o.finalize(ctx, st); err != nil {
		return &st.run, err
	}
	return &st.run, nil
}

func (o *Orchestrator) execute(ctx context.Context, st *runState) error {
	entries, err := o.SelectEntries(ctx, st.run.WindowStart)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		st.logger.Info("no entries to process")
		return nil
	}
	st.logger.Info("entries selected", slog.Int("count", len(entries)))

	res, err := o.deps.Documents.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("syncer: refresh documents: %w", err)
	}
	for _, e := range res.Errors {
		o.itemError(st, "embed_documents", e)
	}

	if err := o.matchEntries(ctx, st, entries); err != nil {
		return err
	}
	if err := o.synthesizeEdits(ctx, st); err != nil {
		return err
	}
	if err := o.createDocuments(ctx, st); err != nil {
		return err
	}
	return o.publish(ctx, st)
}

func (o *Orchestrator) publish(ctx context.Context, st *runState) error {
	if st.changes.Len() == 0 {
		return nil
	}
	msg := publish.CommitMessage(st.run.ID, st.enriched, st.created)
	ref, err := o.deps.Publisher.Publish(ctx, st.changes.Changes(), msg)
	if err != nil {
		o.itemError(st, "publish", err)
		return nil
	}
	st.run.CommitRef = ref
	st.logger.Info("changes published", slog.String("commit", ref), slog.Int("files", st.changes.Len()))

	// Absorbed orphans only leave the candidate pool once their document landed.
	for _, rw := range st.rewrites {
		if err := o.deps.Matches.RewriteMatches(ctx, st.run.ID, rw.entryIDs, models.ActionNewDoc, rw.path); err != nil {
			return fmt.Errorf("syncer: rewrite matches: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, st *runState) error {
	now := o.deps.Clock().UTC()
	st.run.FinishedAt = &now
	st.run.Status = ResolveStatus(len(st.run.Errors), st.run.Counts.Enriched, len(st.run.DocumentsCreated))
	if err := o.deps.Ledger.FinalizeRun(ctx, st.run); err != nil {
		err = fmt.Errorf("syncer: finalize run: %w", err)
		o.finalizeFailed(st, err)
		return err
	}
	o.finished(st)
	return nil
}

// finalizeFailed records a fatal failure. It uses its own context so a run
// that hit its deadline is still written to the ledger.
func (o *Orchestrator) finalizeFailed(st *runState, cause error) {
	now := o.deps.Clock().UTC()
	st.run.FinishedAt = &now
	st.run.Status = models.RunFailed
	st.run.Errors = append(st.run.Errors, cause.Error())
	st.logger.Error("sync run failed", slog.String("error", cause.Error()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.deps.Ledger.FinalizeRun(ctx, st.run); err != nil {
		st.logger.Error("finalize failed run", slog.String("error", err.Error()))
	}
	o.finished(st)
}

func (o *Orchestrator) finished(st *runState) {
	d := st.run.FinishedAt.Sub(st.run.StartedAt)
	o.deps.Metrics.RunFinished(string(st.run.Status), d)
	o.deps.Notifier.RunFinished(st.run)
	st.logger.Info("sync run finished",
		slog.String("status", string(st.run.Status)),
		slog.Int("processed", st.run.Counts.Processed),
		slog.Int("enriched", st.run.Counts.Enriched),
		slog.Int("redundant", st.run.Counts.Redundant),
		slog.Int("orphaned", st.run.Counts.Orphaned),
		slog.Int("tangential", st.run.Counts.Tangential),
		slog.Int("documents_enriched", len(st.run.DocumentsEnriched)),
		slog.Int("documents_created", len(st.run.DocumentsCreated)),
		slog.Int("errors", len(st.run.Errors)),
		slog.Duration("duration", d))
}

// itemError records a recoverable failure on the run.
func (o *Orchestrator) itemError(st *runState, stage string, err error) {
	st.run.Errors = append(st.run.Errors, fmt.Sprintf("%s: %v", stage, err))
	o.deps.Metrics.ItemError(stage)
	st.logger.Warn("item failed", slog.String("stage", stage), slog.String("error", err.Error()))
}
