package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore records scans in PostgreSQL with pgvector signatures.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// HistoryMatch is a previously recorded image returned by a lookup.
type HistoryMatch struct {
	Path      string
	Root      string
	ScannedAt time.Time
	Distance  float64
}

// NewPostgresStore connects to the history database and ensures the schema
// exists.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS scans (
            id UUID PRIMARY KEY,
            root TEXT NOT NULL,
            threshold DOUBLE PRECISION NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS scan_groups (
            id SERIAL PRIMARY KEY,
            scan_id UUID REFERENCES scans(id) ON DELETE CASCADE,
            ordinal INTEGER NOT NULL,
            UNIQUE(scan_id, ordinal)
        );

        CREATE TABLE IF NOT EXISTS scan_images (
            id SERIAL PRIMARY KEY,
            group_id INTEGER REFERENCES scan_groups(id) ON DELETE CASCADE,
            path TEXT NOT NULL,
            signature vector(4)
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_scan_groups_scan_id ON scan_groups(scan_id);
        CREATE INDEX IF NOT EXISTS idx_scan_images_group_id ON scan_images(group_id);
        CREATE INDEX IF NOT EXISTS idx_scan_images_path ON scan_images(path);
    `)
	if err != nil {
		return fmt.Errorf("failed to create history indexes: %w", err)
	}
	return nil
}

// RecordScan writes the scan, its groups and their images in one
// transaction.
func (s *PostgresStore) RecordScan(ctx context.Context, scan Scan) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO scans (id, root, threshold, created_at) VALUES ($1, $2, $3, $4)",
		scan.ID, scan.Root, scan.Threshold, scan.ScannedAt)
	if err != nil {
		return fmt.Errorf("failed to store scan: %w", err)
	}

	for _, group := range scan.Groups {
		var groupID int
		err = tx.QueryRow(ctx,
			"INSERT INTO scan_groups (scan_id, ordinal) VALUES ($1, $2) RETURNING id",
			scan.ID, group.Ordinal).Scan(&groupID)
		if err != nil {
			return fmt.Errorf("failed to store group %d: %w", group.Ordinal, err)
		}

		for _, img := range group.Images {
			if len(img.Signature) == 0 {
				_, err = tx.Exec(ctx,
					"INSERT INTO scan_images (group_id, path) VALUES ($1, $2)",
					groupID, img.Path)
			} else {
				_, err = tx.Exec(ctx,
					"INSERT INTO scan_images (group_id, path, signature) VALUES ($1, $2, $3)",
					groupID, img.Path, pgvector.NewVector(img.Signature))
			}
			if err != nil {
				return fmt.Errorf("failed to store image %s: %w", img.Path, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// PathHistory returns prior scans that recorded the exact path, newest
// first.
func (s *PostgresStore) PathHistory(ctx context.Context, path string, limit int) ([]HistoryMatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT i.path, s.root, s.created_at
        FROM scan_images i
        JOIN scan_groups g ON i.group_id = g.id
        JOIN scans s ON g.scan_id = s.id
        WHERE i.path = $1
        ORDER BY s.created_at DESC
        LIMIT $2`,
		path, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query path history: %w", err)
	}
	defer rows.Close()

	var matches []HistoryMatch
	for rows.Next() {
		var m HistoryMatch
		if err := rows.Scan(&m.Path, &m.Root, &m.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// SimilarImages returns the recorded images whose signature is nearest to
// the given one.
func (s *PostgresStore) SimilarImages(ctx context.Context, signature []float32, limit int) ([]HistoryMatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT i.path, s.root, s.created_at, i.signature <=> $1 AS distance
        FROM scan_images i
        JOIN scan_groups g ON i.group_id = g.id
        JOIN scans s ON g.scan_id = s.id
        WHERE i.signature IS NOT NULL
        ORDER BY i.signature <=> $1
        LIMIT $2`,
		pgvector.NewVector(signature), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar images: %w", err)
	}
	defer rows.Close()

	var matches []HistoryMatch
	for rows.Next() {
		var m HistoryMatch
		if err := rows.Scan(&m.Path, &m.Root, &m.ScannedAt, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
