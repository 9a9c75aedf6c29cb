package telemetry

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// headerCarrier adapts Kafka record headers to the propagation.TextMapCarrier
// interface. Header keys compare case-insensitively.
type headerCarrier []kafka.Header

func (c *headerCarrier) index(key string) int {
	for i, header := range *c {
		if strings.EqualFold(header.Key, key) {
			return i
		}
	}
	return -1
}

func (c *headerCarrier) Get(key string) string {
	if i := c.index(key); i >= 0 {
		return string((*c)[i].Value)
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	if i := c.index(key); i >= 0 {
		(*c)[i].Value = []byte(value)
		return
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c))
	for i, header := range *c {
		keys[i] = header.Key
	}
	return keys
}

// InjectKafkaHeaders returns headers extended with the trace context of ctx.
func InjectKafkaHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := headerCarrier(headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	return carrier
}

// ExtractKafkaHeaders returns ctx carrying the remote span found in headers.
func ExtractKafkaHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := headerCarrier(headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}
