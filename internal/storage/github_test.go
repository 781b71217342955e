package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/google/go-github/v60/github"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/models"
)

type fakeGitHub struct {
	mu         sync.Mutex
	treeBody   map[string]any
	createTree map[string]any
	commitBody map[string]any
	refUpdate  map[string]any
}

func newGitHubServer(t *testing.T) (*GitHub, *fakeGitHub) {
	t.Helper()
	f := &fakeGitHub{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/playbooks/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSONBody(w, map[string]any{"ref": "refs/heads/main", "object": map[string]any{"sha": "c1", "type": "commit"}})
	})
	mux.HandleFunc("GET /repos/acme/playbooks/git/commits/c1", func(w http.ResponseWriter, r *http.Request) {
		writeJSONBody(w, map[string]any{"sha": "c1", "tree": map[string]any{"sha": "t1"}})
	})
	mux.HandleFunc("GET /repos/acme/playbooks/git/trees/t1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") == "" {
			t.Errorf("tree fetched without recursive flag")
		}
		writeJSONBody(w, map[string]any{"sha": "t1", "tree": []map[string]any{
			{"path": "docs", "type": "tree", "sha": "d0"},
			{"path": "docs/email-module/subject-lines.md", "type": "blob", "sha": "b1"},
			{"path": "docs/.drafts/wip.md", "type": "blob", "sha": "b2"},
			{"path": "README.md", "type": "blob", "sha": "b3"},
			{"path": "sidebars.js", "type": "blob", "sha": "b4"},
		}})
	})
	blobs := map[string]string{"b1": "# Subject Lines\n", "b2": "draft", "b3": "readme", "b4": "module.exports = {};\n"}
	mux.HandleFunc("GET /repos/acme/playbooks/git/blobs/{sha}", func(w http.ResponseWriter, r *http.Request) {
		body, ok := blobs[r.PathValue("sha")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("POST /repos/acme/playbooks/git/trees", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.createTree)
		f.mu.Unlock()
		writeJSONBody(w, map[string]any{"sha": "t2"})
	})
	mux.HandleFunc("POST /repos/acme/playbooks/git/commits", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.commitBody)
		f.mu.Unlock()
		writeJSONBody(w, map[string]any{"sha": "c2"})
	})
	mux.HandleFunc("PATCH /repos/acme/playbooks/git/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.refUpdate)
		f.mu.Unlock()
		writeJSONBody(w, map[string]any{"ref": "refs/heads/main", "object": map[string]any{"sha": "c2"}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(srv.Client())
	base, _ := url.Parse(srv.URL + "/")
	client.BaseURL = base

	g, err := NewGitHub(client, GitHubConfig{Owner: "acme", Repo: "playbooks", DocsDir: "docs", AuthorName: "sync-bot", AuthorEmail: "bot@example.com"})
	if err != nil {
		t.Fatalf("NewGitHub: %v", err)
	}
	return g, f
}

func writeJSONBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestGitHub_ListDocuments(t *testing.T) {
	g, _ := newGitHubServer(t)
	docs, err := g.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].Path != "docs/email-module/subject-lines.md" {
		t.Fatalf("docs = %+v", docs)
	}
	if string(docs[0].Content) != "# Subject Lines\n" {
		t.Errorf("content = %q", docs[0].Content)
	}
}

func TestGitHub_ReadFile(t *testing.T) {
	g, _ := newGitHubServer(t)
	data, err := g.ReadFile(context.Background(), "sidebars.js")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "module.exports = {};\n" {
		t.Errorf("data = %q", data)
	}
	if _, err := g.ReadFile(context.Background(), "missing.js"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGitHub_Commit(t *testing.T) {
	g, f := newGitHubServer(t)
	sha, err := g.Commit(context.Background(), []models.FileChange{
		{Path: "docs/email-module/subject-lines.md", Content: []byte("# Subject Lines\nnew\n")},
	}, "playbook sync")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if sha != "c2" {
		t.Errorf("sha = %q, want c2", sha)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createTree["base_tree"] != "t1" {
		t.Errorf("base_tree = %v", f.createTree["base_tree"])
	}
	entries, _ := f.createTree["tree"].([]any)
	if len(entries) != 1 {
		t.Fatalf("tree entries = %v", f.createTree["tree"])
	}
	if f.commitBody["message"] != "playbook sync" {
		t.Errorf("message = %v", f.commitBody["message"])
	}
	parents, _ := f.commitBody["parents"].([]any)
	if len(parents) != 1 || parents[0] != "c1" {
		t.Errorf("parents = %v", f.commitBody["parents"])
	}
	if f.refUpdate["sha"] != "c2" || f.refUpdate["force"] != false {
		t.Errorf("ref update = %v", f.refUpdate)
	}
}

func TestGitHub_CommitEmpty(t *testing.T) {
	g, _ := newGitHubServer(t)
	if _, err := g.Commit(context.Background(), nil, "noop"); !errors.Is(err, apperr.ErrEmptyChangeSet) {
		t.Errorf("err = %v, want ErrEmptyChangeSet", err)
	}
}

func TestNewGitHub_RequiresRepo(t *testing.T) {
	if _, err := NewGitHub(nil, GitHubConfig{Owner: "acme"}); err == nil {
		t.Error("expected error without repo")
	}
}
