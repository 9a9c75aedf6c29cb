package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chainsync/internal/config"
	"chainsync/internal/infrastructure/kafka"
	"chainsync/internal/infrastructure/logging"
	"chainsync/internal/streaming"
)

// chainsync-tail follows one chain's stream and prints every message as a
// JSON line on stdout. Logs go to stderr.
func main() {
	if err := run(); err != nil {
		slog.Error("chainsync-tail failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadTailFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, _, err := logging.Init(logging.Config{
		Level:   cfg.LogLevel,
		Service: "chainsync-tail",
		Chain:   cfg.Chain.String(),
		Stdout:  os.Stderr,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaGroupID,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Chain:       cfg.Chain,
	}, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	encoder := json.NewEncoder(os.Stdout)
	var transactions, checkpoints uint64
	logger.Info("tailing stream", "group", cfg.KafkaGroupID)
	err = consumer.Run(ctx, func(ctx context.Context, msg streaming.Message) error {
		switch msg.Type {
		case streaming.MessageTypeTransaction:
			transactions++
		case streaming.MessageTypeCheckpoint:
			checkpoints++
			logger.InfoContext(ctx, "checkpoint advanced", "block", msg.BlockNumber, "transactions_seen", transactions)
		}
		return encoder.Encode(msg)
	})
	logger.Info("tail stopped", "transactions", transactions, "checkpoints", checkpoints)
	return err
}
