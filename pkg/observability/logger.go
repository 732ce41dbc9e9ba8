// Package observability provides structured logging, metrics and health
// checks for PathLab.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// ServiceName is attached to every log entry.
const ServiceName = "pathlab"

// LogConfig configures NewLogger. The zero value logs text at info level
// to stderr.
type LogConfig struct {
	Level     slog.Level
	Format    LogFormat
	Output    io.Writer
	AddSource bool
	// Component tells the CLI and the worker apart in a shared stream.
	Component      string
	ServiceVersion string
}

// ParseLevel reads a LOG_LEVEL value such as "debug" or "WARN".
// Anything unrecognised is info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogConfigFor builds a config from the APP_ENV, LOG_LEVEL and LOG_FORMAT
// settings. Production logs JSON with source locations to stdout unless a
// format is given.
func LogConfigFor(appEnv, level, format string) LogConfig {
	cfg := LogConfig{
		Level:          ParseLevel(level),
		Format:         LogFormatText,
		Output:         os.Stderr,
		ServiceVersion: "dev",
	}
	if strings.EqualFold(appEnv, "production") {
		cfg.Format = LogFormatJSON
		cfg.Output = os.Stdout
		cfg.AddSource = true
	}
	if format != "" {
		cfg.Format = LogFormat(strings.ToLower(format))
	}
	return cfg
}

// NewLogger creates a structured logger. Records carry the service
// attributes plus whichever of the correlation, request and lab IDs their
// context holds.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: utcTime,
	}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	}

	attrs := []slog.Attr{slog.String("service", ServiceName)}
	if cfg.Component != "" {
		attrs = append(attrs, slog.String("component", cfg.Component))
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", cfg.ServiceVersion))
	}
	return slog.New(contextHandler{next: handler.WithAttrs(attrs)})
}

// utcTime renders record timestamps in UTC so the CLI and worker agree
// with the database.
func utcTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.TimeValue(a.Value.Time().UTC().Truncate(time.Millisecond))
	}
	return a
}

// contextFields are the IDs contextHandler lifts from a record's context.
var contextFields = []struct {
	key string
	get func(context.Context) string
}{
	{CorrelationIDKey, CorrelationIDFromContext},
	{RequestIDKey, RequestIDFromContext},
	{LabIDKey, LabIDFromContext},
}

type contextHandler struct {
	next slog.Handler
}

func (h contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, f := range contextFields {
		if v := f.get(ctx); v != "" {
			r.AddAttrs(slog.String(f.key, v))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(name)}
}
