package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema is applied by EnsureSchema. project_id is '' for global documents so
// the natural key can be a plain unique index.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	contractor TEXT NOT NULL DEFAULT '',
	index_entry_id TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	scope TEXT NOT NULL,
	project_id TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	document_number TEXT NOT NULL DEFAULT '',
	tags TEXT[] NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	error TEXT,
	index_entry_id TEXT,
	previous_entry_id TEXT,
	blob_ref TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL DEFAULT '',
	attempt TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_natural_key ON documents(scope, project_id, filename);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status, updated_at);
CREATE INDEX IF NOT EXISTS idx_documents_index_entry ON documents(index_entry_id);
ALTER TABLE documents ADD COLUMN IF NOT EXISTS previous_entry_id TEXT;
CREATE INDEX IF NOT EXISTS idx_documents_previous_entry ON documents(previous_entry_id);

CREATE TABLE IF NOT EXISTS uploads (
	id TEXT PRIMARY KEY,
	blob_ref TEXT NOT NULL,
	filename TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL,
	scope TEXT NOT NULL,
	project_id TEXT NOT NULL DEFAULT '',
	document_id TEXT NOT NULL DEFAULT '',
	document_number TEXT NOT NULL DEFAULT '',
	tags TEXT[] NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads(status, created_at);`

// EnsureSchema creates the tables and indexes if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
