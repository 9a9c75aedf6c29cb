package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	Level      string
	Format     string
	Service    string
	Chain      string
	File       string
	MaxSizeMB  int
	MaxBackups int

	// Stdout overrides the console sink; nil means os.Stdout.
	Stdout io.Writer
}

// Init installs the process-wide slog logger and routes the standard log
// package through it. The returned writer is nil when no log file is set and
// must be closed by the caller otherwise.
func Init(cfg Config) (*slog.Logger, *RotatingWriter, error) {
	level := parseLevel(cfg.Level)
	console := cfg.Stdout
	if console == nil {
		console = os.Stdout
	}
	writers := []io.Writer{console}

	var rotating *RotatingWriter
	if path := strings.TrimSpace(cfg.File); path != "" {
		writer, err := NewRotatingWriter(path, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		rotating = writer
		writers = append(writers, writer)
	}

	opts := &slog.HandlerOptions{Level: level}
	out := io.MultiWriter(writers...)
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	handler = traceHandler{Handler: handler}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	if cfg.Chain != "" {
		logger = logger.With("chain", cfg.Chain)
	}
	slog.SetDefault(logger)

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(logger.Handler(), level).Writer())

	return logger, rotating, nil
}

// traceHandler stamps records logged with a span-carrying context.
type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, record)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
