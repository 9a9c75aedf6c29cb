package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainsync/internal/application"
	"chainsync/internal/config"
	"chainsync/internal/domain"
	"chainsync/internal/infrastructure/clickhouse"
	"chainsync/internal/infrastructure/esplora"
	"chainsync/internal/infrastructure/ethrpc"
	"chainsync/internal/infrastructure/kafka"
	"chainsync/internal/infrastructure/logging"
	"chainsync/internal/infrastructure/mysql"
	"chainsync/internal/infrastructure/sqlite"
	"chainsync/internal/infrastructure/storage"
	"chainsync/internal/infrastructure/telemetry"
	"chainsync/internal/infrastructure/tronapi"
	"chainsync/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

type closer interface {
	Close() error
}

func main() {
	if err := run(); err != nil {
		slog.Error("chainsync failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, logFile, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Service:    "chainsync",
		Chain:      cfg.Chain.String(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracer(ctx, "chainsync-"+cfg.Chain.String(), version, cfg.OtelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
	} else {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Warn("tracing shutdown failed", "err", err)
			}
		}()
	}

	client, tokens, err := newChainClient(cfg)
	if err != nil {
		return fmt.Errorf("chain client: %w", err)
	}

	rows, err := clickhouse.NewRepository(cfg.ClickhouseDSN)
	if err != nil {
		return fmt.Errorf("clickhouse: %w", err)
	}
	defer rows.Close()

	checkpoints, err := newCheckpointStore(cfg, rows)
	if err != nil {
		return fmt.Errorf("checkpoint store: %w", err)
	}
	if c, ok := checkpoints.(closer); ok && cfg.CheckpointStore != config.CheckpointClickhouse {
		defer c.Close()
	}

	var publisher storage.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer producer.Close()
		publisher = producer
	}

	base, err := storage.NewRepository(rows, checkpoints, publisher, logger)
	if err != nil {
		return err
	}
	repo, err := storage.NewCachedRepository(base, storage.CacheConfig{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("redis cache disabled", "err", err)
		repo, _ = storage.NewCachedRepository(base, storage.CacheConfig{})
	}
	defer repo.Close()

	registry, err := config.LoadExchangeRegistry(cfg.ExchangeRegistryFile)
	if err != nil {
		return err
	}
	exchanges := registry.Addresses(cfg.Chain)
	if err := seedExchangeTags(ctx, rows, cfg.Chain, exchanges); err != nil {
		logger.Warn("exchange tags not persisted", "err", err)
	}

	metrics := httpapi.NewMetrics()
	gate, err := application.NewGate(cfg.MaxConcurrency, metrics)
	if err != nil {
		return err
	}
	tagger, err := application.NewWalletTagger(repo, exchanges)
	if err != nil {
		return err
	}
	wallets, err := application.NewWalletRecorder(client, gate, tagger, repo)
	if err != nil {
		return err
	}
	var discovery *application.TokenDiscovery
	if tokens != nil {
		discovery, err = application.NewTokenDiscovery(cfg.Chain, tokens, repo, gate, logger)
		if err != nil {
			return err
		}
	}
	fetcher, err := application.NewFetcher(client, repo, repo, discovery, wallets, gate, metrics, logger, application.FetcherConfig{
		Mode:            cfg.SyncMode,
		StartBlock:      cfg.StartBlock,
		MaxTransactions: cfg.MaxTransactions,
	})
	if err != nil {
		return err
	}

	if cfg.HTTPAddr != "" {
		server, err := httpapi.NewServer(repo, client, metrics, httpapi.BuildInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
		})
		if err != nil {
			return err
		}
		go func() {
			logger.Info("http server listening", "addr", cfg.HTTPAddr)
			if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				logger.Error("http server stopped", "err", err)
			}
		}()
	}

	logger.Info("sync starting", "mode", cfg.SyncMode, "max_transactions", cfg.MaxTransactions, "concurrency", cfg.MaxConcurrency)
	result, err := fetcher.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("sync interrupted", "checkpoint", result.Checkpoint.Block, "processed", result.Processed)
			return nil
		}
		return err
	}
	logger.Info("sync finished",
		"start", result.StartBlock,
		"tip", result.Tip,
		"processed", result.Processed,
		"checkpoint", result.Checkpoint.Block,
		"partial", result.Partial,
		"stopped_at", result.StoppedAt,
	)
	return nil
}

func newChainClient(cfg config.Config) (application.ChainClient, application.TokenReader, error) {
	switch cfg.Chain {
	case domain.ChainEthereum, domain.ChainBSC:
		client, err := ethrpc.NewClient(ethrpc.Config{URL: cfg.NodeURL, Chain: cfg.Chain, Timeout: cfg.RPCTimeout, Retry: cfg.Retry})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	case domain.ChainBitcoin:
		client, err := esplora.NewClient(esplora.Config{BaseURL: cfg.NodeURL, Timeout: cfg.RPCTimeout, Retry: cfg.Retry})
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case domain.ChainTron:
		client, err := tronapi.NewClient(tronapi.Config{BaseURL: cfg.NodeURL, APIKey: cfg.TronAPIKey, Timeout: cfg.RPCTimeout, Retry: cfg.Retry})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unsupported chain %q", cfg.Chain)
	}
}

func newCheckpointStore(cfg config.Config, rows *clickhouse.Repository) (storage.CheckpointStore, error) {
	switch cfg.CheckpointStore {
	case config.CheckpointMySQL:
		store, err := mysql.NewRepository(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.CheckpointSQLite:
		store, err := sqlite.NewRepository(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return rows, nil
	}
}

func seedExchangeTags(ctx context.Context, rows *clickhouse.Repository, chain domain.Chain, addresses []string) error {
	for _, address := range addresses {
		if err := rows.TagAddress(ctx, chain, address, clickhouse.TagExchange); err != nil {
			return err
		}
	}
	return nil
}
