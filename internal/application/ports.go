package application

import (
	"context"
	"math/big"

	"chainsync/internal/domain"
)

// ErrBlockNotFound is returned by a ChainClient for a height the node does not serve.
var ErrBlockNotFound = domain.ErrBlockNotFound

type ChainClient interface {
	Chain() domain.Chain
	LatestHeight(ctx context.Context) (uint64, error)
	Block(ctx context.Context, height uint64) (domain.Block, error)
	Receipt(ctx context.Context, tx domain.Transaction) (domain.Receipt, error)
	Account(ctx context.Context, address string) (domain.Account, error)
}

type TokenReader interface {
	TokenName(ctx context.Context, address string) (string, error)
	TokenSymbol(ctx context.Context, address string) (string, error)
	TokenDecimals(ctx context.Context, address string) (uint8, error)
	TokenTotalSupply(ctx context.Context, address string) (*big.Int, error)
}

type Sink interface {
	SaveTransaction(ctx context.Context, record domain.TransactionRecord) error
	SaveTokenTransfers(ctx context.Context, transfers []domain.TokenTransfer) error
	SaveContractCall(ctx context.Context, call domain.ContractCall) error
	SaveMoneyFlows(ctx context.Context, flows []domain.MoneyFlow) error
	SaveWallet(ctx context.Context, wallet domain.Wallet) error
	SaveOwner(ctx context.Context, owner domain.Owner) error
}

type TokenStore interface {
	TokenMetadataExists(ctx context.Context, chain domain.Chain, address string) (bool, error)
	SaveTokenMetadata(ctx context.Context, metadata domain.TokenMetadata) error
}

type ProgressStore interface {
	LastSyncedBlock(ctx context.Context, chain domain.Chain) (uint64, bool, error)
	SetLastSyncedBlock(ctx context.Context, chain domain.Chain, block uint64) error
}

type WalletDirectory interface {
	IsKnownExchange(ctx context.Context, chain domain.Chain, address string) (bool, error)
	// DistinctSenders counts distinct senders to address, stopping once limit
	// is reached.
	DistinctSenders(ctx context.Context, chain domain.Chain, address string, limit uint64) (uint64, error)
	PersonID(ctx context.Context, chain domain.Chain, address string) (string, bool, error)
}

type FetchObserver interface {
	OnLatestBlock(chain domain.Chain, block uint64)
	OnTransactionClassified(chain domain.Chain, kind domain.Kind)
	OnBlockProcessed(chain domain.Chain, block uint64, txCount int)
	OnCheckpoint(chain domain.Chain, block uint64)
	OnRunFinished(chain domain.Chain, result RunResult, err error)
}

type GateObserver interface {
	OnGateInFlight(inFlight int64)
}
