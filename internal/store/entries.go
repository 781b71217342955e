package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/playbooksync/internal/models"
)

const entryColumns = `e.id, e.category, e.content, e.context, e.tags, e.created_at`

// InsertEntry stores a knowledge entry. Existing ids are left untouched since
// entries are immutable once created.
func (db *DB) InsertEntry(ctx context.Context, e models.KnowledgeEntry) error {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO knowledge_entries (id, category, content, context, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, string(e.Category), e.Content, e.Context, string(tagsJSON), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert entry %s: %w", e.ID, err)
	}
	return nil
}

// ListEntriesCreatedAfter returns entries created strictly after t, oldest first.
func (db *DB) ListEntriesCreatedAfter(ctx context.Context, t time.Time) ([]models.KnowledgeEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM knowledge_entries e
		WHERE e.created_at > ?
		ORDER BY e.created_at, e.id
	`, formatTime(t))
	if err != nil {
		return nil, fmt.Errorf("store: list entries after: %w", err)
	}
	return scanEntries(rows)
}

// ListEntriesWithLatestAction returns entries whose most recent match record has the given action.
func (db *DB) ListEntriesWithLatestAction(ctx context.Context, action models.Action) ([]models.KnowledgeEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM knowledge_entries e
		JOIN match_records m ON m.entry_id = e.id
		WHERE m.id = (SELECT MAX(id) FROM match_records WHERE entry_id = e.id)
		  AND m.action = ?
		ORDER BY e.created_at, e.id
	`, string(action))
	if err != nil {
		return nil, fmt.Errorf("store: list entries by latest action: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]models.KnowledgeEntry, error) {
	defer rows.Close()
	var out []models.KnowledgeEntry
	for rows.Next() {
		var (
			e         models.KnowledgeEntry
			category  string
			tagsJSON  string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &category, &e.Content, &e.Context, &tagsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan entry: %w", err)
		}
		e.Category = models.Category(category)
		_ = json.Unmarshal([]byte(tagsJSON), &e.Tags)
		ts, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		e.CreatedAt = ts
		out = append(out, e)
	}
	return out, rows.Err()
}
