// Package sse streams sync run progress and document changes to dashboards
// over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/playbooksync/internal/models"
)

// Event types.
const (
	EventRunStarted       = "run.started"
	EventRunFinished      = "run.finished"
	EventDocumentPatched  = "document.patched"
	EventDocumentCreated  = "document.created"
	EventDocumentUpdated  = "document.updated"
	EventDocumentDeleted  = "document.deleted"
	EventDocumentsChanged = "documents.changed"
)

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type documentEvent struct {
	kind string
	path string
}

// Broker fans events out to connected clients.
//
// A single loop goroutine owns the client set and the throttle timestamp;
// public methods talk to it over channels.
type Broker struct {
	changedMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	documentCh    chan documentEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. documents.changed is emitted at most once per
// throttle interval for watcher events.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		changedMin:    throttle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		documentCh:    make(chan documentEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastChanged time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// slow client, drop
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.documentCh:
			data := map[string]string{"path": ev.path}
			switch ev.kind {
			case "updated":
				broadcast(Event{Type: EventDocumentUpdated, Data: data})
			case "deleted":
				broadcast(Event{Type: EventDocumentDeleted, Data: data})
			default:
				continue
			}
			if now := time.Now(); now.Sub(lastChanged) >= b.changedMin {
				lastChanged = now
				broadcast(Event{Type: EventDocumentsChanged, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to every client. It never blocks on slow clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishDocumentEvent forwards a document cache change ("updated" or
// "deleted") from the repository watcher.
func (b *Broker) PublishDocumentEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.documentCh <- documentEvent{kind: kind, path: path}:
	case <-b.stopped:
	}
}

type runSummary struct {
	RunID       string           `json:"run_id"`
	Status      models.RunStatus `json:"status"`
	WindowStart time.Time        `json:"window_start"`
	Counts      models.RunCounts `json:"counts"`
	Enriched    int              `json:"documents_enriched"`
	Created     int              `json:"documents_created"`
	Errors      int              `json:"errors"`
	CommitRef   string           `json:"commit_ref,omitempty"`
}

func summarize(run models.SyncRun) runSummary {
	return runSummary{
		RunID:       run.ID,
		Status:      run.Status,
		WindowStart: run.WindowStart,
		Counts:      run.Counts,
		Enriched:    len(run.DocumentsEnriched),
		Created:     len(run.DocumentsCreated),
		Errors:      len(run.Errors),
		CommitRef:   run.CommitRef,
	}
}

// RunStarted publishes run.started.
func (b *Broker) RunStarted(run models.SyncRun) {
	b.Publish(Event{Type: EventRunStarted, Data: summarize(run)})
}

// RunFinished publishes run.finished.
func (b *Broker) RunFinished(run models.SyncRun) {
	b.Publish(Event{Type: EventRunFinished, Data: summarize(run)})
}

// DocumentPatched publishes document.patched.
func (b *Broker) DocumentPatched(runID, path, strategy string) {
	b.Publish(Event{Type: EventDocumentPatched, Data: map[string]string{
		"run_id": runID, "path": path, "strategy": strategy,
	}})
}

// DocumentCreated publishes document.created.
func (b *Broker) DocumentCreated(runID, path string) {
	b.Publish(Event{Type: EventDocumentCreated, Data: map[string]string{"run_id": runID, "path": path}})
}

// ServeHTTP is the SSE endpoint (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
