package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/playbooksync/internal/models"
	"github.com/starford/playbooksync/internal/syncer"
)

var _ syncer.Notifier = (*Broker)(nil)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsubscribe")
	}
}

func TestRunEvents(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	run := models.SyncRun{
		ID:                "run-1",
		Status:            models.RunPartial,
		Counts:            models.RunCounts{Processed: 4, Enriched: 2},
		DocumentsEnriched: []string{"docs/a.md"},
		Errors:            []string{"classify: timeout"},
		CommitRef:         "abc123",
	}
	b.RunStarted(run)
	b.DocumentPatched("run-1", "docs/a.md", "exact")
	b.DocumentCreated("run-1", "docs/b.md")
	b.RunFinished(run)

	msgs := drain(ch)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4: %q", len(msgs), msgs)
	}
	wants := []string{"event: run.started", "event: document.patched", "event: document.created", "event: run.finished"}
	for i, want := range wants {
		if !strings.HasPrefix(msgs[i], want) {
			t.Errorf("message %d = %q, want prefix %q", i, msgs[i], want)
		}
	}
	if !strings.Contains(msgs[1], `"strategy":"exact"`) {
		t.Errorf("patched payload = %q", msgs[1])
	}
	if !strings.Contains(msgs[3], `"status":"partial"`) || !strings.Contains(msgs[3], `"errors":1`) {
		t.Errorf("finished payload = %q", msgs[3])
	}
}

func TestPublishDocumentEvent_Throttle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent("updated", "docs/a.md")
	b.PublishDocumentEvent("deleted", "docs/b.md")
	b.PublishDocumentEvent("renamed", "docs/c.md")

	changed, docs := 0, 0
	for _, m := range drain(ch) {
		if strings.HasPrefix(m, "event: documents.changed") {
			changed++
		} else {
			docs++
		}
	}
	if docs != 2 {
		t.Errorf("document events = %d, want 2", docs)
	}
	if changed != 1 {
		t.Errorf("documents.changed events = %d, want 1", changed)
	}
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &lockedRecorder{rec: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	b.DocumentCreated("run-1", "docs/new.md")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if body := w.body(); !strings.Contains(body, "event: document.created") {
		t.Errorf("stream = %q", body)
	}
	if ct := w.rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func TestPublishDoesNotBlockOnSlowClient(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close")
	}
	if b.ClientCount() != 0 {
		t.Error("expected 0 clients after close")
	}
	b.RunStarted(models.SyncRun{ID: "x"})
	b.PublishDocumentEvent("updated", "docs/x.md")
}

// lockedRecorder serializes access to the recorder between the handler
// goroutine and the test.
type lockedRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func (l *lockedRecorder) Header() http.Header { return l.rec.Header() }

func (l *lockedRecorder) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec.Write(p)
}

func (l *lockedRecorder) WriteHeader(code int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rec.WriteHeader(code)
}

func (l *lockedRecorder) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rec.Flush()
}

func (l *lockedRecorder) body() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec.Body.String()
}
