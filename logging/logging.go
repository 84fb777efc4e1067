// Package logging provides a tiny abstraction over slog so the orchestration
// packages depend on a minimal interface (Logger) while applications plug in
// any structured logger. A NoOpLogger keeps library defaults silent.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is the minimal structured logging interface used across ShopQuery.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards all log messages. It is the default for library
// construction paths so embedding ShopQuery never forces log output.
type NoOpLogger struct{}

// Debug discards the message.
func (NoOpLogger) Debug(string, ...any) {}

// Info discards the message.
func (NoOpLogger) Info(string, ...any) {}

// Warn discards the message.
func (NoOpLogger) Warn(string, ...any) {}

// Error discards the message.
func (NoOpLogger) Error(string, ...any) {}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter { return &SlogAdapter{Logger: logger} }

// Config controls construction of the default JSON/text logger.
type Config struct {
	Level     slog.Leveler
	Format    string // "json" (default) or "text"
	Output    io.Writer
	AddSource bool
}

// New builds a Logger writing structured records per cfg. Zero-value fields
// fall back to info level JSON on stdout.
func New(cfg Config) *SlogAdapter {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &SlogAdapter{Logger: slog.New(handler)}
}

// WithTurn returns a logger carrying conversation and trace identifiers on
// every record, used by the engine while driving a turn.
func WithTurn(l Logger, conversationID, traceID string) Logger {
	if sa, ok := l.(*SlogAdapter); ok {
		return &SlogAdapter{Logger: sa.Logger.With("conversation_id", conversationID, "trace_id", traceID)}
	}
	return &prefixLogger{inner: l, args: []any{"conversation_id", conversationID, "trace_id", traceID}}
}

// prefixLogger appends fixed key/value pairs for Logger implementations that
// are not slog-backed.
type prefixLogger struct {
	inner Logger
	args  []any
}

func (p *prefixLogger) Debug(msg string, args ...any) { p.inner.Debug(msg, append(args, p.args...)...) }
func (p *prefixLogger) Info(msg string, args ...any)  { p.inner.Info(msg, append(args, p.args...)...) }
func (p *prefixLogger) Warn(msg string, args ...any)  { p.inner.Warn(msg, append(args, p.args...)...) }
func (p *prefixLogger) Error(msg string, args ...any) { p.inner.Error(msg, append(args, p.args...)...) }

// LogToolCall records one tool invocation outcome with its latency.
func LogToolCall(l Logger, tool string, attempts int, dur time.Duration, err error) {
	if err != nil {
		l.Error("tool.call.failed", "tool", tool, "attempts", attempts, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	l.Info("tool.call.success", "tool", tool, "attempts", attempts, "duration_ms", dur.Milliseconds())
}
