package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/playbooksync/internal/embedding"
	"github.com/starford/playbooksync/internal/llm"
	"github.com/starford/playbooksync/internal/storage"
	"github.com/starford/playbooksync/internal/testutil"
)

func TestNewRepository(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Repository.FS.Path = t.TempDir()
	repo, err := newRepository(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.(*storage.FS); !ok {
		t.Errorf("fs driver built %T", repo)
	}

	cfg.Repository.Driver = DriverGitHub
	cfg.Repository.GitHub = GitHubConfig{Owner: "acme", Repo: "playbook", Branch: "main", Token: "t"}
	repo, err = newRepository(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.(*storage.GitHub); !ok {
		t.Errorf("github driver built %T", repo)
	}
}

func TestNewProviders(t *testing.T) {
	e, err := newEmbedder(EmbeddingConfig{Provider: ProviderOllama, Model: "nomic-embed-text", BaseURL: "http://localhost:11434"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*embedding.Ollama); !ok || e.Model() != "nomic-embed-text" {
		t.Errorf("embedder = %T %s", e, e.Model())
	}
	e, err = newEmbedder(EmbeddingConfig{Provider: ProviderOpenAI, Model: "text-embedding-3-small", APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*embedding.OpenAI); !ok {
		t.Errorf("embedder = %T", e)
	}
	if _, err := newEmbedder(EmbeddingConfig{Provider: "cohere"}); err == nil {
		t.Error("unknown embedding provider should fail")
	}

	c, err := newLLM(LLMConfig{Provider: ProviderOllama, Model: "llama3", BaseURL: "http://localhost:11434"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*llm.Ollama); !ok {
		t.Errorf("llm = %T", c)
	}
	if _, err := newLLM(LLMConfig{Provider: "bard"}); err == nil {
		t.Error("unknown llm provider should fail")
	}
}

func TestReadyHandler(t *testing.T) {
	db := testutil.TestDB(t)
	w := httptest.NewRecorder()
	readyHandler(db)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	_ = db.Close()
	w = httptest.NewRecorder()
	readyHandler(db)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("closed db status = %d, want 503", w.Code)
	}
}

func TestImportEntries(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "entries.yaml")
	data := "entries:\n  - id: e1\n    category: tip\n    content: Lead with the outcome\n"
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(dir, "test.db")

	n, err := ImportEntries(context.Background(), file, WithConfig(cfg), WithLogOutput(os.Stderr))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("imported %d entries, want 1", n)
	}
	if _, err := ImportEntries(context.Background(), file); err == nil {
		t.Error("missing config should fail")
	}
}
