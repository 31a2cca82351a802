package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func countLogFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read log directory: %v", err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), filePrefix) && strings.HasSuffix(entry.Name(), fileSuffix) {
			n++
		}
	}
	return n
}

func TestRotatingLogger(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)

	if err := rl.Open(); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}

	expected := filepath.Join(tempDir, "medcheck-"+getWeekKey(time.Now())+".log")
	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("Expected log file %s: %v", expected, err)
	}

	if _, err := rl.Write([]byte("Test log message")); err != nil {
		t.Fatalf("Failed to write to log: %v", err)
	}
	content, err := os.ReadFile(expected)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "Test log message") {
		t.Errorf("Log file does not contain test message: %s", content)
	}

	if err := rl.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}
	// Close is idempotent
	if err := rl.Close(); err != nil {
		t.Errorf("Second close: %v", err)
	}
}

func TestRotatingLoggerOpensLazily(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)
	defer func() { _ = rl.Close() }()

	if _, err := rl.Write([]byte("first write")); err != nil {
		t.Fatalf("Write without Open: %v", err)
	}
	if countLogFiles(t, tempDir) != 1 {
		t.Errorf("expected one log file")
	}
}

func TestGetWeekKey(t *testing.T) {
	tests := []struct {
		when time.Time
		want string
	}{
		{time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC), "2025-W41"},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "2026-W01"},
		{time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), "2026-W53"},
	}
	for _, tt := range tests {
		if got := getWeekKey(tt.when); got != tt.want {
			t.Errorf("getWeekKey(%s) = %s, want %s", tt.when.Format(time.DateOnly), got, tt.want)
		}
	}
}

func TestRotatingLoggerWeekChange(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)
	defer func() { _ = rl.Close() }()

	rl.mu.Lock()
	err := rl.doRotate("2025-W40")
	rl.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to rotate to week 40: %v", err)
	}

	// The current week differs from W40, so Write moves to this week's file
	if _, err := rl.Write([]byte("now")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, week := range []string{"2025-W40", getWeekKey(time.Now())} {
		if _, err := os.Stat(filepath.Join(tempDir, weekFileName(week))); err != nil {
			t.Errorf("expected file for %s: %v", week, err)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)

	oldFile := filepath.Join(tempDir, "medcheck-2025-W30.log")
	newFile := filepath.Join(tempDir, weekFileName(getWeekKey(time.Now())))
	otherFile := filepath.Join(tempDir, "notes.txt")

	for _, f := range []string{oldFile, newFile, otherFile} {
		if err := os.WriteFile(f, []byte("content"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	threeWeeksAgo := time.Now().AddDate(0, 0, -21)
	for _, f := range []string{oldFile, otherFile} {
		if err := os.Chtimes(f, threeWeeksAgo, threeWeeksAgo); err != nil {
			t.Fatal(err)
		}
	}

	if err := rl.cleanupOldLogs(); err != nil {
		t.Fatalf("Failed to cleanup old logs: %v", err)
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Errorf("Old log file %s was not deleted", oldFile)
	}
	for _, f := range []string{newFile, otherFile} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("%s was incorrectly deleted", f)
		}
	}
}

func TestRotatingLoggerWithSizeLimit(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 100)
	defer func() { _ = rl.Close() }()

	if _, err := rl.Write([]byte("Small message")); err != nil {
		t.Fatalf("Failed to write small message: %v", err)
	}

	large := strings.Repeat("This line pushes the file over its size cap. ", 5)
	if _, err := rl.Write([]byte(large)); err != nil {
		t.Fatalf("Failed to write large message: %v", err)
	}

	if n := countLogFiles(t, tempDir); n < 2 {
		t.Errorf("Expected at least 2 log files due to size rotation, got %d", n)
	}

	numbered := filepath.Join(tempDir, numberedFileName(getWeekKey(time.Now()), 1))
	if _, err := os.Stat(numbered); err != nil {
		t.Errorf("expected numbered file %s: %v", numbered, err)
	}
}

func TestRotatingLoggerExistingFiles(t *testing.T) {
	week := getWeekKey(time.Now())

	tests := []struct {
		name         string
		existingSize int
		wantFile     string
		wantSize     int64
	}{
		{"below limit reuses base", 512, weekFileName(week), 512},
		{"at limit starts numbered", 2048, numberedFileName(week, 1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			base := filepath.Join(tempDir, weekFileName(week))
			if err := os.WriteFile(base, []byte(strings.Repeat("x", tt.existingSize)), 0o666); err != nil {
				t.Fatal(err)
			}

			rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 1024)
			defer func() { _ = rl.Close() }()
			if err := rl.Open(); err != nil {
				t.Fatalf("Open: %v", err)
			}

			if got := filepath.Base(rl.currentFile.Name()); got != tt.wantFile {
				t.Errorf("current file = %s, want %s", got, tt.wantFile)
			}
			if got := rl.currentSize.Load(); got != tt.wantSize {
				t.Errorf("currentSize = %d, want %d", got, tt.wantSize)
			}
		})
	}
}

func TestRotatingLoggerResumesNumberedFile(t *testing.T) {
	tempDir := t.TempDir()
	week := getWeekKey(time.Now())

	_ = os.WriteFile(filepath.Join(tempDir, weekFileName(week)), []byte(strings.Repeat("x", 2048)), 0o666)
	_ = os.WriteFile(filepath.Join(tempDir, numberedFileName(week, 1)), []byte(strings.Repeat("x", 2048)), 0o666)
	_ = os.WriteFile(filepath.Join(tempDir, numberedFileName(week, 2)), []byte("x"), 0o666)

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 1024)
	defer func() { _ = rl.Close() }()
	if err := rl.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if got := filepath.Base(rl.currentFile.Name()); got != numberedFileName(week, 2) {
		t.Errorf("expected to resume _02, got %s", got)
	}
}

func TestRotatingLoggerInvalidDirectory(t *testing.T) {
	rl := NewRotatingLogger("/invalid/directory/that/does/not/exist", 1)

	if err := rl.Open(); err == nil {
		t.Error("Expected error when opening in an invalid directory")
	}
	if _, err := rl.Write([]byte("test message")); err == nil {
		t.Error("Expected error when writing in an invalid directory")
	}
	if err := rl.Close(); err != nil {
		t.Errorf("Unexpected error when closing: %v", err)
	}
}

func TestRotatingLoggerConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 4096)
	defer func() { _ = rl.Close() }()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				if _, err := fmt.Fprintf(rl, "goroutine %d line %d\n", g, i); err != nil {
					t.Errorf("write: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	var total int
	entries, _ := os.ReadDir(tempDir)
	for _, entry := range entries {
		content, err := os.ReadFile(filepath.Join(tempDir, entry.Name()))
		if err != nil {
			t.Fatal(err)
		}
		total += strings.Count(string(content), "\n")
	}
	if total != 400 {
		t.Errorf("expected 400 lines across files, got %d", total)
	}
}

func TestStartCleanupStopsOnClose(t *testing.T) {
	rl := NewRotatingLogger(t.TempDir(), 1)
	rl.StartCleanup()
	rl.StartCleanup()

	done := make(chan struct{})
	go func() {
		_ = rl.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the cleanup goroutine")
	}
}

func TestMultiHandler(t *testing.T) {
	var quiet, verbose strings.Builder
	multi := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(&verbose, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	if !multi.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected Enabled() when any handler accepts the level")
	}

	logger := slog.New(multi).With("component", "test").WithGroup("req")
	logger.Info("hello", "id", 7)

	if quiet.Len() != 0 {
		t.Errorf("error-level handler should skip info: %s", quiet.String())
	}
	if !strings.Contains(verbose.String(), `"component":"test"`) || !strings.Contains(verbose.String(), `"req":{"id":7}`) {
		t.Errorf("attrs/group not propagated: %s", verbose.String())
	}
}
