package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"chainsync/internal/domain"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const writeTimeout = 10 * time.Second

// Repository stores classified rows and checkpoints in ClickHouse. Tables use
// ReplacingMergeTree so re-processing a block collapses onto the same keys.
type Repository struct {
	db   *sql.DB
	conn clickhouse.Conn
}

func NewRepository(dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("clickhouse dsn is required")
	}
	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, err
	}
	db := clickhouse.OpenDB(options)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	return &Repository{db: db, conn: conn}, nil
}

func createSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) Close() error {
	if err := r.conn.Close(); err != nil {
		return err
	}
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.conn.Ping(ctx)
}

func (r *Repository) SaveTransaction(ctx context.Context, record domain.TransactionRecord) error {
	ctx, span := startDBSpan(ctx, "clickhouse.SaveTransaction",
		attribute.String("chain", record.Chain.String()),
		attribute.String("tx.hash", record.Hash),
	)
	defer span.End()
	return endSpan(span, r.insert(ctx, insertTransaction, [][]any{transactionRow(record, time.Now().UTC())}))
}

func (r *Repository) SaveTokenTransfers(ctx context.Context, transfers []domain.TokenTransfer) error {
	if len(transfers) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "clickhouse.SaveTokenTransfers", attribute.Int("transfer.count", len(transfers)))
	defer span.End()
	rows := make([][]any, 0, len(transfers))
	for _, transfer := range transfers {
		rows = append(rows, tokenTransferRow(transfer))
	}
	return endSpan(span, r.insert(ctx, insertTokenTransfer, rows))
}

func (r *Repository) SaveContractCall(ctx context.Context, call domain.ContractCall) error {
	ctx, span := startDBSpan(ctx, "clickhouse.SaveContractCall", attribute.String("tx.hash", call.TxHash))
	defer span.End()
	return endSpan(span, r.insert(ctx, insertContractCall, [][]any{contractCallRow(call)}))
}

func (r *Repository) SaveMoneyFlows(ctx context.Context, flows []domain.MoneyFlow) error {
	if len(flows) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "clickhouse.SaveMoneyFlows", attribute.Int("flow.count", len(flows)))
	defer span.End()
	rows := make([][]any, 0, len(flows))
	for _, flow := range flows {
		rows = append(rows, moneyFlowRow(flow))
	}
	return endSpan(span, r.insert(ctx, insertMoneyFlow, rows))
}

func (r *Repository) SaveWallet(ctx context.Context, wallet domain.Wallet) error {
	ctx, span := startDBSpan(ctx, "clickhouse.SaveWallet", attribute.String("address", wallet.Address))
	defer span.End()
	return endSpan(span, r.insert(ctx, insertWallet, [][]any{walletRow(wallet, time.Now().UTC())}))
}

func (r *Repository) SaveOwner(ctx context.Context, owner domain.Owner) error {
	ctx, span := startDBSpan(ctx, "clickhouse.SaveOwner", attribute.String("address", owner.Address))
	defer span.End()
	return endSpan(span, r.insert(ctx, insertOwner, [][]any{ownerRow(owner, time.Now().UTC())}))
}

func (r *Repository) SaveTokenMetadata(ctx context.Context, metadata domain.TokenMetadata) error {
	ctx, span := startDBSpan(ctx, "clickhouse.SaveTokenMetadata", attribute.String("token.address", metadata.TokenAddress))
	defer span.End()
	return endSpan(span, r.insert(ctx, insertTokenMetadata, [][]any{tokenMetadataRow(metadata, time.Now().UTC())}))
}

func (r *Repository) TokenMetadataExists(ctx context.Context, chain domain.Chain, address string) (bool, error) {
	var count uint64
	err := r.queryRow(ctx, `SELECT count() FROM token_metadata WHERE chain = ? AND token_address = ?`,
		[]any{chain.String(), strings.ToLower(address)}, &count)
	return count > 0, err
}

func (r *Repository) SetLastSyncedBlock(ctx context.Context, chain domain.Chain, block uint64) error {
	ctx, span := startDBSpan(ctx, "clickhouse.SetLastSyncedBlock",
		attribute.String("chain", chain.String()),
		attribute.Int64("block.number", int64(block)),
	)
	defer span.End()
	row := []any{chain.String(), block, time.Now().UTC()}
	return endSpan(span, r.insert(ctx, insertSyncState, [][]any{row}))
}

// LastSyncedBlock reads the most recently written checkpoint. Older rows may
// linger until a merge, so the latest update wins rather than any row.
func (r *Repository) LastSyncedBlock(ctx context.Context, chain domain.Chain) (uint64, bool, error) {
	var (
		count uint64
		block uint64
	)
	err := r.queryRow(ctx, `SELECT count(), argMax(last_synced_block, updated_at) FROM sync_state WHERE chain = ?`,
		[]any{chain.String()}, &count, &block)
	if err != nil {
		return 0, false, err
	}
	return block, count > 0, nil
}

func (r *Repository) IsKnownExchange(ctx context.Context, chain domain.Chain, address string) (bool, error) {
	var count uint64
	err := r.queryRow(ctx, `SELECT count() FROM address_tags WHERE chain = ? AND address = ? AND tag = ?`,
		[]any{chain.String(), strings.ToLower(address), TagExchange}, &count)
	return count > 0, err
}

func (r *Repository) DistinctSenders(ctx context.Context, chain domain.Chain, address string, limit uint64) (uint64, error) {
	var count uint64
	err := r.queryRow(ctx, distinctSendersQuery, []any{chain.String(), address, limit}, &count)
	return count, err
}

func (r *Repository) PersonID(ctx context.Context, chain domain.Chain, address string) (string, bool, error) {
	var id string
	err := r.queryRow(ctx, `SELECT argMax(person_id, updated_at) FROM owner_info WHERE chain = ? AND address = ? AND person_id != ''`,
		[]any{chain.String(), address}, &id)
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// TagExchange marks an address as exchange-owned in address_tags.
const TagExchange = "EXCHANGE"

// TagAddress records an address tag such as TagExchange.
func (r *Repository) TagAddress(ctx context.Context, chain domain.Chain, address, tag string) error {
	ctx, span := startDBSpan(ctx, "clickhouse.TagAddress", attribute.String("address", address))
	defer span.End()
	row := []any{chain.String(), strings.ToLower(address), tag, time.Now().UTC()}
	return endSpan(span, r.insert(ctx, insertAddressTag, [][]any{row}))
}

func (r *Repository) insert(ctx context.Context, query string, rows [][]any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

func (r *Repository) queryRow(ctx context.Context, query string, args []any, dest ...any) error {
	ctx, span := startDBSpan(ctx, "clickhouse.query")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return endSpan(span, r.conn.QueryRow(ctx, query, args...).Scan(dest...))
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "clickhouse"))
	return otel.Tracer("chainsync/clickhouse").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
