package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// CachedEmbedding is a stored document embedding.
type CachedEmbedding struct {
	Path      string
	Checksum  string
	Model     string
	Vector    []float32
	UpdatedAt time.Time
}

// CachedEmbeddings returns every cached document embedding keyed by path.
func (db *DB) CachedEmbeddings(ctx context.Context) (map[string]CachedEmbedding, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, checksum, model, embedding, updated_at FROM doc_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("store: cached embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]CachedEmbedding)
	for rows.Next() {
		var (
			c         CachedEmbedding
			blob      []byte
			updatedAt string
		)
		if err := rows.Scan(&c.Path, &c.Checksum, &c.Model, &blob, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scan embedding: %w", err)
		}
		c.Vector = unpackEmbedding(blob)
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out[c.Path] = c
	}
	return out, rows.Err()
}

// PutEmbedding inserts or replaces the cached embedding for a path.
func (db *DB) PutEmbedding(ctx context.Context, e CachedEmbedding) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO doc_embeddings (path, checksum, model, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			model      = excluded.model,
			embedding  = excluded.embedding,
			updated_at = excluded.updated_at
	`, e.Path, e.Checksum, e.Model, packEmbedding(e.Vector), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: put embedding %s: %w", e.Path, err)
	}
	return nil
}

// DeleteEmbedding removes the cached embedding for a path.
func (db *DB) DeleteEmbedding(ctx context.Context, path string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM doc_embeddings WHERE path = ?`, path); err != nil {
		return fmt.Errorf("store: delete embedding %s: %w", path, err)
	}
	return nil
}

func packEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackEmbedding(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
