// Package postgres keeps the content key index in a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/qrlink/pkg/qrlink"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema creates the index table.
const Schema = `
CREATE TABLE IF NOT EXISTS content_key_index (
	content_key  TEXT PRIMARY KEY,
	pathname     TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	size_bytes   BIGINT NOT NULL DEFAULT 0,
	content_type TEXT NOT NULL DEFAULT '',
	uploaded_at  TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Index implements qrlink.Index using PostgreSQL
type Index struct {
	db DBTX
}

// New creates an index over db
func New(db DBTX) *Index {
	return &Index{db: db}
}

// Connect opens a pool for databaseURL, verifies it and ensures the schema.
func Connect(ctx context.Context, databaseURL string) (*Index, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	idx := New(pool)
	if err := idx.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return idx, pool, nil
}

// EnsureSchema creates the index table if needed.
func (i *Index) EnsureSchema(ctx context.Context) error {
	if _, err := i.db.Exec(ctx, Schema); err != nil {
		return handlePostgresError("ensure schema", err)
	}
	return nil
}

func (i *Index) Put(ctx context.Context, contentKey string, object qrlink.StorageObject) error {
	query := `
		INSERT INTO content_key_index (content_key, pathname, url, size_bytes, content_type, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (content_key) DO UPDATE SET
			pathname = EXCLUDED.pathname,
			url = EXCLUDED.url,
			size_bytes = EXCLUDED.size_bytes,
			content_type = EXCLUDED.content_type,
			uploaded_at = EXCLUDED.uploaded_at`

	var uploadedAt *time.Time
	if !object.UploadedAt.IsZero() {
		uploadedAt = &object.UploadedAt
	}

	_, err := i.db.Exec(ctx, query,
		contentKey, object.Pathname, object.URL, object.Size, object.ContentType, uploadedAt)
	if err != nil {
		return handlePostgresError("put index entry", err)
	}
	return nil
}

func (i *Index) Get(ctx context.Context, contentKey string) (*qrlink.StorageObject, error) {
	query := `
		SELECT pathname, url, size_bytes, content_type, uploaded_at
		FROM content_key_index WHERE content_key = $1`

	var object qrlink.StorageObject
	var uploadedAt *time.Time
	err := i.db.QueryRow(ctx, query, contentKey).Scan(
		&object.Pathname, &object.URL, &object.Size, &object.ContentType, &uploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, qrlink.ErrNotFound
		}
		return nil, handlePostgresError("get index entry", err)
	}
	if uploadedAt != nil {
		object.UploadedAt = *uploadedAt
	}
	return &object, nil
}

func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - run EnsureSchema: %w", err)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}
