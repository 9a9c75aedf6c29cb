package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chainsync/internal/domain"
	"chainsync/internal/infrastructure/telemetry"
	"chainsync/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler receives one decoded stream message. Returning an error leaves the
// message uncommitted so it is redelivered.
type Handler func(ctx context.Context, msg streaming.Message) error

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	TopicPrefix string
	Chain       domain.Chain
}

// Consumer reads the per-chain topic written by Producer.
type Consumer struct {
	reader  messageReader
	chain   domain.Chain
	logger  *slog.Logger
	backoff time.Duration
}

func NewConsumer(cfg ConsumerConfig, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka group id is required")
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "chainsync"
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    prefix + "-" + cfg.Chain.String(),
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, cfg.Chain, logger), nil
}

func newConsumer(reader messageReader, chain domain.Chain, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader:  reader,
		chain:   chain,
		logger:  logger.With("component", "consumer", "chain", chain.String()),
		backoff: 500 * time.Millisecond,
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run consumes until ctx is cancelled. Undecodable messages are committed
// and skipped.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	tracer := otel.Tracer("chainsync/kafka")
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("kafka fetch failed", "err", err)
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}

		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			c.logger.Warn("dropping undecodable message", "offset", message.Offset, "err", err)
			if err := c.reader.CommitMessages(ctx, message); err != nil {
				c.logger.Warn("kafka commit failed", "err", err)
			}
			continue
		}
		if decoded.Chain != c.chain.String() {
			c.logger.Warn("message for unexpected chain", "message_chain", decoded.Chain)
		}

		msgCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
		msgCtx, span := tracer.Start(msgCtx, "kafka.consume", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(
			attribute.String("message.type", string(decoded.Type)),
			attribute.String("chain", decoded.Chain),
			attribute.Int64("block.number", int64(decoded.BlockNumber)),
		)
		if err := handle(msgCtx, decoded); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			c.logger.Warn("message handler failed", "offset", message.Offset, "err", err)
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}
		span.End()

		if err := c.reader.CommitMessages(ctx, message); err != nil && ctx.Err() == nil {
			c.logger.Warn("kafka commit failed", "err", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
