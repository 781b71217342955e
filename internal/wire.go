package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/playbooksync/internal/assist"
	"github.com/starford/playbooksync/internal/doccache"
	"github.com/starford/playbooksync/internal/embedding"
	"github.com/starford/playbooksync/internal/llm"
	"github.com/starford/playbooksync/internal/metrics"
	"github.com/starford/playbooksync/internal/publish"
	"github.com/starford/playbooksync/internal/sidebar"
	"github.com/starford/playbooksync/internal/storage"
	"github.com/starford/playbooksync/internal/store"
	"github.com/starford/playbooksync/internal/syncer"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger initializes the structured JSON logger.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// components is the wired sync engine.
type components struct {
	db      *store.DB
	repo    storage.Repository
	cache   *doccache.Cache
	metrics *metrics.Metrics
	orch    *syncer.Orchestrator
}

func (c *components) Close() {
	if c.db != nil {
		_ = c.db.Close()
	}
}

func build(cfg *Config, logger *slog.Logger, notifier syncer.Notifier) (*components, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	c := &components{db: db, metrics: metrics.New()}

	if c.repo, err = newRepository(cfg); err != nil {
		c.Close()
		return nil, fmt.Errorf("init repository: %w", err)
	}
	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	client, err := newLLM(cfg.LLM)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init llm: %w", err)
	}

	c.cache = doccache.New(c.repo, db, embedder, doccache.Options{
		DocsDir:     cfg.Repository.DocsRoot,
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		Metrics:     c.metrics,
		Logger:      logger,
	})

	c.orch = syncer.New(syncer.Config{
		SimilarityThreshold: cfg.Thresholds.Similarity,
		FuzzyThreshold:      cfg.Thresholds.FuzzyMatch,
		MinClusterTrigger:   cfg.Orphans.MinClusterTrigger,
		Modules:             cfg.Modules,
		DocsDir:             cfg.Repository.DocsRoot,
		IndexFile:           cfg.Repository.IndexFile,
		MaxDuration:         cfg.Run.MaxDuration,
	}, syncer.Deps{
		Entries:   db,
		Matches:   db,
		Ledger:    db,
		Documents: c.cache,
		Embedder:  embedder,
		Assistant: assist.New(client),
		Repo:      c.repo,
		Publisher: publish.New(c.repo, cfg.Publish.RetryDelay, logger),
		Registrar: sidebar.Docusaurus{},
		Notifier:  notifier,
		Metrics:   c.metrics,
		Logger:    logger,
	})
	return c, nil
}

func newRepository(cfg *Config) (storage.Repository, error) {
	rc := cfg.Repository
	switch rc.Driver {
	case DriverFS:
		return storage.NewFS(rc.FS.Path, rc.DocsRoot)
	case DriverGitHub:
		return storage.NewGitHub(storage.NewGitHubClient(rc.GitHub.Token), storage.GitHubConfig{
			Owner:       rc.GitHub.Owner,
			Repo:        rc.GitHub.Repo,
			Branch:      rc.GitHub.Branch,
			DocsDir:     rc.DocsRoot,
			AuthorName:  cfg.Publish.AuthorName,
			AuthorEmail: cfg.Publish.AuthorEmail,
		})
	default:
		return nil, fmt.Errorf("unknown repository driver %q", rc.Driver)
	}
}

func newEmbedder(ec EmbeddingConfig) (embedding.Provider, error) {
	switch ec.Provider {
	case ProviderOpenAI:
		opts := []embedding.OpenAIOption{embedding.WithOpenAIMaxChars(ec.MaxChars)}
		if ec.APIKey != "" {
			opts = append(opts, embedding.WithOpenAIKey(ec.APIKey))
		}
		if ec.BaseURL != "" {
			opts = append(opts, embedding.WithOpenAIBaseURL(ec.BaseURL))
		}
		return embedding.NewOpenAI(ec.Model, opts...), nil
	case ProviderOllama:
		return embedding.NewOllama(ec.BaseURL, ec.Model, ec.MaxChars)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
}

func newLLM(lc LLMConfig) (llm.Client, error) {
	switch lc.Provider {
	case ProviderOpenAI:
		return llm.NewOpenAI(lc.APIKey, lc.BaseURL, lc.Model, lc.Temperature), nil
	case ProviderOllama:
		return llm.NewOllama(lc.BaseURL, lc.Model, lc.Temperature)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", lc.Provider)
	}
}
