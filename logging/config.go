package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/giygas/medcheck-api/config"
)

// Options configures the global logger
type Options struct {
	Dir            string // empty logs to the console only
	Env            config.Environment
	Level          string // LOG_LEVEL, overrides the environment default outside tests
	RetentionWeeks int
	MaxFileSize    int64
	Verbose        bool // keeps info logs on the console under ENV=test
}

// parseLogLevel maps LOG_LEVEL values to slog levels, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// GetConsoleLogLevel picks the console level. Tests stay quiet unless verbose, production
// defaults to warn, and an explicit LOG_LEVEL wins everywhere except tests.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if level != "" {
		return parseLogLevel(level)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel is debug: the JSON file keeps everything for later analysis
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// newLogger builds the console+file logger. The returned RotatingLogger is nil when
// logging to the console only.
func newLogger(opts Options) (*slog.Logger, *RotatingLogger) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	if opts.Dir == "" {
		return slog.New(console), nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		logger := slog.New(console)
		logger.Error("Failed to create logs directory, logging to console only", "dir", opts.Dir, "error", err)
		return logger, nil
	}

	retention := opts.RetentionWeeks
	if retention <= 0 {
		retention = 4
	}
	size := opts.MaxFileSize
	if size <= 0 {
		size = defaultMaxFileSize
	}

	rotating := NewRotatingLoggerWithSizeLimit(opts.Dir, retention, size)
	if err := rotating.Open(); err != nil {
		logger := slog.New(console)
		logger.Error("Failed to initialize rotating logger, logging to console only", "error", err)
		return logger, nil
	}
	rotating.StartCleanup()

	file := slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: GetFileLogLevel()})

	return slog.New(&multiHandler{handlers: []slog.Handler{console, file}}), rotating
}

// multiHandler fans records out to every handler that accepts their level
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
