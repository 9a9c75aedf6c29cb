package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes classified transactions and checkpoint advances to
// one topic per chain.
type Producer struct {
	writer messageWriter
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           500 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.TopicPrefix), nil
}

func newProducer(writer messageWriter, prefix string) *Producer {
	if strings.TrimSpace(prefix) == "" {
		prefix = "chainsync"
	}
	return &Producer{writer: writer, prefix: prefix}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) PublishTransaction(ctx context.Context, record domain.TransactionRecord) error {
	ctx, span := otel.Tracer("chainsync/kafka").Start(ctx, "kafka.publish_transaction", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("chain", record.Chain.String()),
		attribute.Int64("block.number", int64(record.BlockNumber)),
		attribute.String("tx.hash", record.Hash),
		attribute.String("tx.category", string(record.Category)),
	)

	err := p.publish(ctx, record.Chain, []byte(record.Hash), streaming.Message{
		Type:        streaming.MessageTypeTransaction,
		Chain:       record.Chain.String(),
		TraceID:     traceID(span),
		BlockNumber: record.BlockNumber,
		TxHash:      record.Hash,
		From:        record.From,
		To:          record.To,
		Value:       record.Value,
		Sensitivity: uint8(record.Sensitivity),
		Category:    string(record.Category),
		Details:     record.Details,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Producer) PublishCheckpoint(ctx context.Context, chain domain.Chain, block uint64) error {
	ctx, span := otel.Tracer("chainsync/kafka").Start(ctx, "kafka.publish_checkpoint", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("chain", chain.String()),
		attribute.Int64("block.number", int64(block)),
	)

	err := p.publish(ctx, chain, []byte(fmt.Sprintf("checkpoint:%s", chain)), streaming.Message{
		Type:        streaming.MessageTypeCheckpoint,
		Chain:       chain.String(),
		TraceID:     traceID(span),
		BlockNumber: block,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Producer) publish(ctx context.Context, chain domain.Chain, key []byte, msg streaming.Message) error {
	payload, err := streaming.Encode(msg)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topicForChain(chain),
		Key:     key,
		Value:   payload,
		Headers: telemetry.InjectKafkaHeaders(ctx, nil),
	})
}

func (p *Producer) topicForChain(chain domain.Chain) string {
	return fmt.Sprintf("%s-%s", p.prefix, chain)
}

func traceID(span trace.Span) string {
	spanCtx := span.SpanContext()
	if !spanCtx.HasTraceID() {
		return ""
	}
	return spanCtx.TraceID().String()
}
