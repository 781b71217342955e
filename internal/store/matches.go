package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/starford/playbooksync/internal/models"
)

// InsertMatch appends a match record and returns its id.
func (db *DB) InsertMatch(ctx context.Context, rec models.MatchRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO match_records
			(entry_id, run_id, document_path, similarity, action, rationale, target_section, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.EntryID, rec.RunID, nullString(rec.DocumentPath), rec.Similarity,
		string(rec.Action), rec.Rationale, rec.TargetSection, formatTime(rec.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("store: insert match for %s: %w", rec.EntryID, err)
	}
	return res.LastInsertId()
}

// RewriteMatches updates the action and document path of a run's records for the
// given entries. It is the only mutation ever applied to match records.
func (db *DB) RewriteMatches(ctx context.Context, runID string, entryIDs []string, action models.Action, docPath string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(entryIDs)), ",")
	args := make([]any, 0, len(entryIDs)+3)
	args = append(args, string(action), nullString(docPath), runID)
	for _, id := range entryIDs {
		args = append(args, id)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE match_records
		SET action = ?, document_path = ?
		WHERE run_id = ? AND entry_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("store: rewrite matches: %w", err)
	}
	return tx.Commit()
}

// ListMatches returns a run's match records in insertion order.
func (db *DB) ListMatches(ctx context.Context, runID string) ([]models.MatchRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, entry_id, run_id, document_path, similarity, action, rationale, target_section, created_at
		FROM match_records
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list matches: %w", err)
	}
	defer rows.Close()

	var out []models.MatchRecord
	for rows.Next() {
		var (
			m         models.MatchRecord
			docPath   sql.NullString
			action    string
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.EntryID, &m.RunID, &docPath, &m.Similarity, &action,
			&m.Rationale, &m.TargetSection, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan match: %w", err)
		}
		m.DocumentPath = docPath.String
		m.Action = models.Action(action)
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
