package logging

import (
	"log/slog"
	"os"
	"sync"

	"github.com/giygas/medcheck-api/config"
)

type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	serviceMu             sync.RWMutex
)

// InitLogger initializes the global logger with development defaults. An empty logDir
// logs to the console only.
func InitLogger(logDir string) {
	InitLoggerWithOptions(Options{Dir: logDir, Env: config.EnvDevelopment})
}

// InitLoggerWithRetentionAndSize initializes the global logger with file limits
func InitLoggerWithRetentionAndSize(logDir string, retentionWeeks int, maxFileSize int64) {
	InitLoggerWithOptions(Options{
		Dir:            logDir,
		Env:            config.EnvDevelopment,
		RetentionWeeks: retentionWeeks,
		MaxFileSize:    maxFileSize,
	})
}

// InitLoggerWithOptions replaces the global logger, closing the previous log file
func InitLoggerWithOptions(opts Options) {
	logger, rotating := newLogger(opts)

	serviceMu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, rotating: rotating}
	serviceMu.Unlock()

	slog.SetDefault(logger)

	if previous != nil && previous.rotating != nil {
		_ = previous.rotating.Close()
	}
}

// Close flushes and closes the log file, if any
func Close() error {
	serviceMu.Lock()
	defer serviceMu.Unlock()

	if DefaultLoggingService == nil || DefaultLoggingService.rotating == nil {
		return nil
	}
	err := DefaultLoggingService.rotating.Close()
	DefaultLoggingService.rotating = nil
	return err
}

func current() *slog.Logger {
	serviceMu.RLock()
	defer serviceMu.RUnlock()
	if s := DefaultLoggingService; s != nil && s.Logger != nil {
		return s.Logger
	}
	return nil
}

// fallback is used before InitLogger runs
var fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

// Logger returns the active logger, or the stderr fallback before init
func Logger() *slog.Logger {
	if l := current(); l != nil {
		return l
	}
	return fallback
}

func Info(msg string, args ...any) {
	if l := current(); l != nil {
		l.Info(msg, args...)
		return
	}
	fallback.Info(msg, args...)
}

func Error(msg string, args ...any) {
	if l := current(); l != nil {
		l.Error(msg, args...)
		return
	}
	fallback.Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if l := current(); l != nil {
		l.Warn(msg, args...)
		return
	}
	fallback.Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if l := current(); l != nil {
		l.Debug(msg, args...)
		return
	}
	fallback.Debug(msg, args...)
}
