// Package models defines the domain types for the playbook sync engine.
package models

import "time"

// Category classifies a knowledge entry.
type Category string

// Knowledge entry categories.
const (
	CategoryTip       Category = "tip"
	CategoryInsight   Category = "insight"
	CategoryObjection Category = "objection"
	CategoryProcess   Category = "process"
	CategoryMetric    Category = "metric"
	CategoryQuote     Category = "quote"
	CategoryOther     Category = "other"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryTip, CategoryInsight, CategoryObjection, CategoryProcess,
	CategoryMetric, CategoryQuote, CategoryOther,
}

// KnowledgeEntry is an atomic captured fact. Entries are immutable once created.
type KnowledgeEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Category  Category  `json:"category" yaml:"category"`
	Content   string    `json:"content" yaml:"content"`
	Context   string    `json:"context,omitempty" yaml:"context,omitempty"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// EmbeddingText returns the text used to embed the entry.
func (e KnowledgeEntry) EmbeddingText() string {
	s := string(e.Category) + ": " + e.Content
	if e.Context != "" {
		s += "\nContext: " + e.Context
	}
	return s
}

// Document is a procedural document (playbook) as stored in the repository.
// Path is repository-relative; ID is the path relative to the docs directory
// without the .md extension.
type Document struct {
	Path      string    `json:"path"`
	ID        string    `json:"id"`
	Module    string    `json:"module"`
	Title     string    `json:"title"`
	Content   string    `json:"-"`
	Checksum  string    `json:"checksum"`
	Embedding []float32 `json:"-"`
}

// DocumentFile is a raw file returned by a document repository.
type DocumentFile struct {
	Path    string
	Content []byte
}

// FileChange is one file in a commit change set.
type FileChange struct {
	Path    string
	Content []byte
}

// Action is the decision recorded for an entry.
type Action string

// Match actions.
const (
	ActionEnrich     Action = "enrich"
	ActionRedundant  Action = "redundant"
	ActionTangential Action = "tangential"
	ActionOrphaned   Action = "orphaned"
	ActionNewDoc     Action = "new_doc"
)

// MatchRecord is one row per (entry, run).
type MatchRecord struct {
	ID            int64     `json:"id"`
	EntryID       string    `json:"entry_id"`
	RunID         string    `json:"run_id"`
	DocumentPath  string    `json:"document_path,omitempty"`
	Similarity    float64   `json:"similarity"`
	Action        Action    `json:"action"`
	Rationale     string    `json:"rationale"`
	TargetSection string    `json:"target_section,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

// Run statuses.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// RunCounts holds per-run entry counters.
type RunCounts struct {
	Processed  int `json:"processed"`
	Enriched   int `json:"enriched"`
	Redundant  int `json:"redundant"`
	Orphaned   int `json:"orphaned"`
	Tangential int `json:"tangential"`
}

// SyncRun is one record per execution.
type SyncRun struct {
	ID                string     `json:"id"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	WindowStart       time.Time  `json:"window_start"`
	Status            RunStatus  `json:"status"`
	Counts            RunCounts  `json:"counts"`
	DocumentsEnriched []string   `json:"documents_enriched"`
	DocumentsCreated  []string   `json:"documents_created"`
	CommitRef         string     `json:"commit_ref,omitempty"`
	Errors            []string   `json:"errors"`
}

// GeneratedEdit is untrusted model output describing one insertion.
type GeneratedEdit struct {
	Anchor     string `json:"anchor"`
	NewContent string `json:"new_content"`
	Summary    string `json:"summary"`
}

// Classification is the classifier's verdict for one entry.
type Classification struct {
	Action        Action `json:"action"`
	Rationale     string `json:"rationale"`
	TargetSection string `json:"target_section,omitempty"`
}

// OrphanCluster groups orphaned entries sharing a theme.
type OrphanCluster struct {
	Title   string
	Module  string
	Entries []KnowledgeEntry
}

// DraftDocument is a newly drafted document ready to commit.
type DraftDocument struct {
	Path       string `json:"path"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Module     string `json:"module"`
	IndexEntry string `json:"index_entry"`
}

// Module is a known document module.
type Module struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}
