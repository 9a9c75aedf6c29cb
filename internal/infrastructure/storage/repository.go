package storage

import (
	"context"
	"errors"
	"log/slog"

	"chainsync/internal/application"
	"chainsync/internal/domain"
)

// RowStore is the analytical store that receives every classified row.
type RowStore interface {
	application.Sink
	application.TokenStore
	application.WalletDirectory
	Ping(ctx context.Context) error
}

// CheckpointStore is the durable home of per-chain checkpoints.
type CheckpointStore interface {
	application.ProgressStore
	Ping(ctx context.Context) error
}

// Publisher streams classified transactions and checkpoint advances.
type Publisher interface {
	PublishTransaction(ctx context.Context, record domain.TransactionRecord) error
	PublishCheckpoint(ctx context.Context, chain domain.Chain, block uint64) error
}

// Repository fans writes out to the row store, the checkpoint store and an
// optional stream.
type Repository struct {
	rows        RowStore
	checkpoints CheckpointStore
	publisher   Publisher
	logger      *slog.Logger
}

func NewRepository(rows RowStore, checkpoints CheckpointStore, publisher Publisher, logger *slog.Logger) (*Repository, error) {
	if rows == nil {
		return nil, errors.New("row store is required")
	}
	if checkpoints == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{rows: rows, checkpoints: checkpoints, publisher: publisher, logger: logger.With("component", "storage")}, nil
}

func (r *Repository) SaveTransaction(ctx context.Context, record domain.TransactionRecord) error {
	if err := r.rows.SaveTransaction(ctx, record); err != nil {
		return err
	}
	if r.publisher != nil {
		return r.publisher.PublishTransaction(ctx, record)
	}
	return nil
}

func (r *Repository) SaveTokenTransfers(ctx context.Context, transfers []domain.TokenTransfer) error {
	return r.rows.SaveTokenTransfers(ctx, transfers)
}

func (r *Repository) SaveContractCall(ctx context.Context, call domain.ContractCall) error {
	return r.rows.SaveContractCall(ctx, call)
}

func (r *Repository) SaveMoneyFlows(ctx context.Context, flows []domain.MoneyFlow) error {
	return r.rows.SaveMoneyFlows(ctx, flows)
}

func (r *Repository) SaveWallet(ctx context.Context, wallet domain.Wallet) error {
	return r.rows.SaveWallet(ctx, wallet)
}

func (r *Repository) SaveOwner(ctx context.Context, owner domain.Owner) error {
	return r.rows.SaveOwner(ctx, owner)
}

func (r *Repository) TokenMetadataExists(ctx context.Context, chain domain.Chain, address string) (bool, error) {
	return r.rows.TokenMetadataExists(ctx, chain, address)
}

func (r *Repository) SaveTokenMetadata(ctx context.Context, metadata domain.TokenMetadata) error {
	return r.rows.SaveTokenMetadata(ctx, metadata)
}

func (r *Repository) IsKnownExchange(ctx context.Context, chain domain.Chain, address string) (bool, error) {
	return r.rows.IsKnownExchange(ctx, chain, address)
}

func (r *Repository) DistinctSenders(ctx context.Context, chain domain.Chain, address string, limit uint64) (uint64, error) {
	return r.rows.DistinctSenders(ctx, chain, address, limit)
}

func (r *Repository) PersonID(ctx context.Context, chain domain.Chain, address string) (string, bool, error) {
	return r.rows.PersonID(ctx, chain, address)
}

func (r *Repository) LastSyncedBlock(ctx context.Context, chain domain.Chain) (uint64, bool, error) {
	return r.checkpoints.LastSyncedBlock(ctx, chain)
}

// SetLastSyncedBlock persists the checkpoint before announcing it. A failed
// announcement is logged; the durable checkpoint already moved.
func (r *Repository) SetLastSyncedBlock(ctx context.Context, chain domain.Chain, block uint64) error {
	if err := r.checkpoints.SetLastSyncedBlock(ctx, chain, block); err != nil {
		return err
	}
	if r.publisher != nil {
		if err := r.publisher.PublishCheckpoint(ctx, chain, block); err != nil {
			r.logger.Warn("checkpoint publish failed", "chain", chain.String(), "block", block, "error", err)
		}
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.rows.Ping(ctx); err != nil {
		return err
	}
	return r.checkpoints.Ping(ctx)
}
