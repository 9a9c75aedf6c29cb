package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chainsync/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const createSyncState = `CREATE TABLE IF NOT EXISTS sync_state (
	chain VARCHAR(16) NOT NULL,
	last_synced_block BIGINT UNSIGNED NOT NULL,
	updated_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	PRIMARY KEY (chain)
)`

// Repository stores one checkpoint row per chain, overwritten on every advance.
type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createSyncState); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) LastSyncedBlock(ctx context.Context, chain domain.Chain) (uint64, bool, error) {
	ctx, span := startDBSpan(ctx, "mysql.LastSyncedBlock", attribute.String("chain", chain.String()))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var block uint64
	err := r.db.QueryRowContext(ctx, `SELECT last_synced_block FROM sync_state WHERE chain = ?`, chain.String()).Scan(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, endSpan(span, err)
	}
	return block, true, nil
}

func (r *Repository) SetLastSyncedBlock(ctx context.Context, chain domain.Chain, block uint64) error {
	ctx, span := startDBSpan(ctx, "mysql.SetLastSyncedBlock",
		attribute.String("chain", chain.String()),
		attribute.Int64("block.number", int64(block)),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO sync_state (chain, last_synced_block) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE last_synced_block = VALUES(last_synced_block)`, chain.String(), block)
	return endSpan(span, err)
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("chainsync/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
