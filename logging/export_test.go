package logging

import (
	"testing"

	"github.com/giygas/medcheck-api/config"
)

// ResetForTest installs a logger for one test and closes its file when the test ends
func ResetForTest(t testing.TB, logDir string, env config.Environment, level string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	InitLoggerWithOptions(Options{
		Dir:            logDir,
		Env:            env,
		Level:          level,
		RetentionWeeks: retentionWeeks,
		MaxFileSize:    maxFileSize,
	})
	t.Cleanup(func() { _ = Close() })
}
