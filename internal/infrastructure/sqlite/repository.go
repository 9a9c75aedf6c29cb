package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"chainsync/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

const createSyncState = `CREATE TABLE IF NOT EXISTS sync_state (
	chain TEXT PRIMARY KEY,
	last_synced_block INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Repository keeps checkpoints in a local SQLite file for single-node runs.
type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createSyncState); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) LastSyncedBlock(ctx context.Context, chain domain.Chain) (uint64, bool, error) {
	ctx, span := startSpan(ctx, "sqlite.LastSyncedBlock", chain)
	defer span.End()

	var block int64
	err := r.db.QueryRowContext(ctx, `SELECT last_synced_block FROM sync_state WHERE chain = ?`, chain.String()).Scan(&block)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		span.RecordError(err)
		return 0, false, err
	}
	return uint64(block), true, nil
}

func (r *Repository) SetLastSyncedBlock(ctx context.Context, chain domain.Chain, block uint64) error {
	ctx, span := startSpan(ctx, "sqlite.SetLastSyncedBlock", chain)
	defer span.End()

	_, err := r.db.ExecContext(ctx, `INSERT INTO sync_state (chain, last_synced_block, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(chain) DO UPDATE SET last_synced_block = excluded.last_synced_block, updated_at = excluded.updated_at`,
		chain.String(), int64(block), time.Now().UnixMilli())
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func startSpan(ctx context.Context, name string, chain domain.Chain) (context.Context, trace.Span) {
	return otel.Tracer("chainsync/sqlite").Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("chain", chain.String()),
	))
}
