package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chainsync/internal/classify"
	"chainsync/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type FetcherConfig struct {
	Mode       SyncMode
	StartBlock uint64
	// MaxTransactions caps the transactions one run processes. Zero means no cap.
	MaxTransactions uint64
}

// RunResult describes where a run ended.
type RunResult struct {
	Chain      domain.Chain
	StartBlock uint64
	Tip        uint64
	Checkpoint Checkpoint
	Processed  uint64
	StoppedAt  uint64
	Partial    bool
}

type Fetcher struct {
	client    ChainClient
	sink      Sink
	progress  ProgressStore
	discovery *TokenDiscovery
	wallets   *WalletRecorder
	gate      *Gate
	observer  FetchObserver
	logger    *slog.Logger
	tracer    trace.Tracer
	cfg       FetcherConfig
}

// NewFetcher wires a fetch loop for one chain. discovery may be nil for chains
// without token contracts.
func NewFetcher(client ChainClient, sink Sink, progress ProgressStore, discovery *TokenDiscovery, wallets *WalletRecorder, gate *Gate, observer FetchObserver, logger *slog.Logger, cfg FetcherConfig) (*Fetcher, error) {
	if client == nil || sink == nil || progress == nil || wallets == nil || gate == nil {
		return nil, errors.New("fetcher dependencies must not be nil")
	}
	if cfg.Mode == "" {
		cfg.Mode = SyncAuto
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    client,
		sink:      sink,
		progress:  progress,
		discovery: discovery,
		wallets:   wallets,
		gate:      gate,
		observer:  observer,
		logger:    logger.With("component", "fetcher", "chain", client.Chain().String()),
		tracer:    otel.Tracer("chainsync/application"),
		cfg:       cfg,
	}, nil
}

func (f *Fetcher) Run(ctx context.Context) (result RunResult, err error) {
	chain := f.client.Chain()
	result.Chain = chain
	defer func() {
		if f.observer != nil {
			f.observer.OnRunFinished(chain, result, err)
		}
	}()

	last, ok, err := f.progress.LastSyncedBlock(ctx, chain)
	if err != nil {
		return result, fmt.Errorf("load checkpoint: %w", err)
	}
	result.Checkpoint = Checkpoint{Block: last, Valid: ok}

	tip, err := f.client.LatestHeight(ctx)
	if err != nil {
		return result, fmt.Errorf("latest height: %w", err)
	}
	result.Tip = tip
	if f.observer != nil {
		f.observer.OnLatestBlock(chain, tip)
	}

	current := ResolveStart(f.cfg.Mode, chain, tip, f.cfg.StartBlock, result.Checkpoint)
	result.StartBlock = current
	result.StoppedAt = current
	f.logger.Info("sync started", "mode", string(f.cfg.Mode), "start", current, "tip", tip, "budget", f.cfg.MaxTransactions)

	for current <= tip {
		if f.exhausted(result.Processed) {
			f.logger.Info("transaction budget exhausted", "processed", result.Processed, "height", current)
			break
		}
		result.StoppedAt = current

		complete, err := f.processHeight(ctx, current, &result)
		if err != nil {
			return result, fmt.Errorf("block %d: %w", current, err)
		}
		if !complete {
			result.Partial = true
			f.logger.Info("block partially processed, checkpoint not advanced", "height", current, "processed", result.Processed)
			break
		}
		current++
		result.StoppedAt = current
	}

	f.logger.Info("sync finished", "checkpoint", result.Checkpoint.Block, "has_checkpoint", result.Checkpoint.Valid, "processed", result.Processed, "partial", result.Partial)
	return result, nil
}

// processHeight runs one block through spawn, join and checkpoint. It reports
// false when the budget cut the block short.
func (f *Fetcher) processHeight(ctx context.Context, height uint64, result *RunResult) (complete bool, err error) {
	chain := f.client.Chain()
	ctx, span := f.tracer.Start(ctx, "fetcher.block", trace.WithAttributes(
		attribute.String("chain", chain.String()),
		attribute.Int64("block.number", int64(height)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	block, err := Gated(ctx, f.gate, func(ctx context.Context) (domain.Block, error) {
		return f.client.Block(ctx, height)
	})
	if errors.Is(err, ErrBlockNotFound) {
		f.logger.Warn("block not found, skipping", "height", height)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	units := make([]domain.Transaction, 0, len(block.Transactions))
	complete = true
	for _, tx := range block.Transactions {
		if f.exhausted(result.Processed) {
			complete = false
			break
		}
		result.Processed++
		units = append(units, tx)
	}

	discovered := make([][]string, len(units))
	var group errgroup.Group
	for i, tx := range units {
		group.Go(func() error {
			tokens, err := f.processTransaction(ctx, tx)
			if err != nil {
				return fmt.Errorf("transaction %s: %w", tx.Hash, err)
			}
			discovered[i] = tokens
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Int("block.transactions", len(units)))
	if f.observer != nil {
		f.observer.OnBlockProcessed(chain, height, len(units))
	}

	if f.discovery != nil {
		set := NewTokenSet()
		for _, tokens := range discovered {
			set.Add(tokens...)
		}
		if _, err := f.discovery.Discover(ctx, set); err != nil {
			return false, fmt.Errorf("token discovery: %w", err)
		}
	}

	if !complete {
		return false, nil
	}
	if err := f.progress.SetLastSyncedBlock(ctx, chain, height); err != nil {
		return false, fmt.Errorf("save checkpoint: %w", err)
	}
	result.Checkpoint = Checkpoint{Block: height, Valid: true}
	if f.observer != nil {
		f.observer.OnCheckpoint(chain, height)
	}
	return true, nil
}

func (f *Fetcher) processTransaction(ctx context.Context, tx domain.Transaction) (tokens []string, err error) {
	chain := f.client.Chain()
	ctx, span := f.tracer.Start(ctx, "fetcher.transaction", trace.WithAttributes(
		attribute.String("chain", chain.String()),
		attribute.String("tx.hash", tx.Hash),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	receipt, err := Gated(ctx, f.gate, func(ctx context.Context) (domain.Receipt, error) {
		return f.client.Receipt(ctx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("receipt: %w", err)
	}

	category := classify.Classify(tx, receipt)
	span.SetAttributes(attribute.String("tx.category", string(category.Kind())))
	if f.observer != nil {
		f.observer.OnTransactionClassified(chain, category.Kind())
	}

	details, err := classify.Details(category)
	if err != nil {
		return nil, fmt.Errorf("encode category: %w", err)
	}
	value := "0"
	if tx.Value != nil {
		value = tx.Value.String()
	}
	record := domain.TransactionRecord{
		Chain:       chain,
		Hash:        tx.Hash,
		BlockNumber: tx.BlockNumber,
		From:        tx.From,
		To:          tx.To,
		Value:       value,
		Sensitivity: domain.ScoreSensitivity(chain, tx.Value),
		Category:    category.Kind(),
		Details:     details,
	}
	if err := f.sink.SaveTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	if transfers := classify.TokenTransfers(tx, receipt); len(transfers) > 0 {
		if err := f.sink.SaveTokenTransfers(ctx, transfers); err != nil {
			return nil, fmt.Errorf("save token transfers: %w", err)
		}
	}
	if call, ok := classify.ContractCall(tx, category); ok {
		if err := f.sink.SaveContractCall(ctx, call); err != nil {
			return nil, fmt.Errorf("save contract call: %w", err)
		}
	}
	if flows := classify.MoneyFlows(tx, category); len(flows) > 0 {
		if err := f.sink.SaveMoneyFlows(ctx, flows); err != nil {
			return nil, fmt.Errorf("save money flows: %w", err)
		}
	}

	for _, address := range []string{tx.From, tx.To} {
		if err := f.wallets.Record(ctx, address); err != nil {
			return nil, fmt.Errorf("wallet %s: %w", address, err)
		}
	}

	return classify.TokenAddresses(receipt), nil
}

func (f *Fetcher) exhausted(processed uint64) bool {
	return f.cfg.MaxTransactions > 0 && processed >= f.cfg.MaxTransactions
}
