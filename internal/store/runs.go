package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/playbooksync/internal/apperr"
	"github.com/starford/playbooksync/internal/models"
)

const runColumns = `id, started_at, finished_at, window_start, status,
	processed, enriched, redundant, orphaned, tangential,
	documents_enriched, documents_created, commit_ref, errors`

// CreateRun inserts a new run row, normally in the running state.
func (db *DB) CreateRun(ctx context.Context, run models.SyncRun) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_runs (id, started_at, window_start, status)
		VALUES (?, ?, ?, ?)
	`, run.ID, formatTime(run.StartedAt), formatTime(run.WindowStart), string(run.Status))
	if err != nil {
		return fmt.Errorf("store: create run %s: %w", run.ID, err)
	}
	return nil
}

// FinalizeRun writes the terminal state of a run. Only a running row is updated,
// so a run can be finalized exactly once.
func (db *DB) FinalizeRun(ctx context.Context, run models.SyncRun) error {
	if run.FinishedAt == nil {
		return fmt.Errorf("store: finalize run %s: finished_at is required", run.ID)
	}
	enriched, _ := json.Marshal(nonNil(run.DocumentsEnriched))
	created, _ := json.Marshal(nonNil(run.DocumentsCreated))
	errs, _ := json.Marshal(nonNil(run.Errors))

	res, err := db.conn.ExecContext(ctx, `
		UPDATE sync_runs SET
			finished_at        = ?,
			status             = ?,
			processed          = ?,
			enriched           = ?,
			redundant          = ?,
			orphaned           = ?,
			tangential         = ?,
			documents_enriched = ?,
			documents_created  = ?,
			commit_ref         = ?,
			errors             = ?
		WHERE id = ? AND status = ?
	`, formatTime(*run.FinishedAt), string(run.Status),
		run.Counts.Processed, run.Counts.Enriched, run.Counts.Redundant, run.Counts.Orphaned, run.Counts.Tangential,
		string(enriched), string(created), nullString(run.CommitRef), string(errs),
		run.ID, string(models.RunRunning))
	if err != nil {
		return fmt.Errorf("store: finalize run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: finalize run %s: %w", run.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("store: finalize run %s: %w", run.ID, apperr.ErrNotFound)
	}
	return nil
}

// GetRun returns a run by id.
func (db *DB) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return run, err
}

// ListRuns returns runs newest first together with the total count.
func (db *DB) ListRuns(ctx context.Context, limit, offset int) ([]models.SyncRun, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM sync_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count runs: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *run)
	}
	return out, total, rows.Err()
}

// LatestCompletedRun returns the most recent run with status success or partial,
// or apperr.ErrNotFound if there is none. Failed and running runs never qualify.
func (db *DB) LatestCompletedRun(ctx context.Context) (*models.SyncRun, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM sync_runs
		WHERE status IN (?, ?)
		ORDER BY started_at DESC
		LIMIT 1
	`, string(models.RunSuccess), string(models.RunPartial))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.SyncRun, error) {
	var (
		run                     models.SyncRun
		startedAt, windowStart  string
		finishedAt, commitRef   sql.NullString
		status                  string
		enriched, created, errs string
	)
	err := row.Scan(&run.ID, &startedAt, &finishedAt, &windowStart, &status,
		&run.Counts.Processed, &run.Counts.Enriched, &run.Counts.Redundant, &run.Counts.Orphaned, &run.Counts.Tangential,
		&enriched, &created, &commitRef, &errs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan run: %w", err)
	}
	run.Status = models.RunStatus(status)
	run.CommitRef = commitRef.String
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.WindowStart, err = parseTime(windowStart); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		ts, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &ts
	}
	_ = json.Unmarshal([]byte(enriched), &run.DocumentsEnriched)
	_ = json.Unmarshal([]byte(created), &run.DocumentsCreated)
	_ = json.Unmarshal([]byte(errs), &run.Errors)
	run.DocumentsEnriched = nonNil(run.DocumentsEnriched)
	run.DocumentsCreated = nonNil(run.DocumentsCreated)
	run.Errors = nonNil(run.Errors)
	return &run, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
