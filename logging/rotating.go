package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	filePrefix = "medcheck-"
	fileSuffix = ".log"

	defaultMaxFileSize = 100 * 1024 * 1024
	cleanupInterval    = 24 * time.Hour
)

var numberedFileRegex = regexp.MustCompile(`^` + filePrefix + `\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingLogger writes to one file per ISO week, splitting a week into numbered files
// (medcheck-2026-W42_01.log) once maxFileSize is reached. Files older than the retention
// period are removed by a daily cleanup goroutine started with StartCleanup.
type RotatingLogger struct {
	logDir      string
	currentFile *os.File
	currentWeek string
	retention   time.Duration
	maxFileSize int64
	currentSize atomic.Int64
	mu          sync.Mutex

	cleanupStarted atomic.Bool
	ctx            context.Context
	cancel         context.CancelFunc
	cleanupDone    chan struct{}
}

// NewRotatingLogger creates a rotating logger with the default 100MB size cap
func NewRotatingLogger(logDir string, retentionWeeks int) *RotatingLogger {
	return NewRotatingLoggerWithSizeLimit(logDir, retentionWeeks, defaultMaxFileSize)
}

// NewRotatingLoggerWithSizeLimit creates a rotating logger. maxFileSize 0 disables size rotation.
func NewRotatingLoggerWithSizeLimit(logDir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}
}

// getWeekKey returns the ISO week in YYYY-Www form
func getWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func weekFileName(week string) string {
	return filePrefix + week + fileSuffix
}

func numberedFileName(week string, n int) string {
	return fmt.Sprintf("%s%s_%02d%s", filePrefix, week, n, fileSuffix)
}

// Open selects the file for the current week. Write also opens lazily.
func (rl *RotatingLogger) Open() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.doRotate(getWeekKey(time.Now()))
}

// doRotate switches to the file for week. Caller holds mu.
func (rl *RotatingLogger) doRotate(week string) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file during rotation: %v\n", err)
		}
		rl.currentFile = nil
	}

	sizeRotation := rl.maxFileSize > 0 && rl.currentSize.Load() >= rl.maxFileSize
	name, fresh := rl.pickFile(week, sizeRotation)

	path := filepath.Join(rl.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rl.currentFile = file
	rl.currentWeek = week

	rl.currentSize.Store(0)
	if !fresh {
		if info, err := os.Stat(path); err == nil {
			rl.currentSize.Store(info.Size())
		}
	}
	return nil
}

// pickFile returns the file to append to and whether it is a new numbered file
func (rl *RotatingLogger) pickFile(week string, sizeRotation bool) (string, bool) {
	base := weekFileName(week)

	if !sizeRotation {
		info, err := os.Stat(filepath.Join(rl.logDir, base))
		if err != nil || rl.maxFileSize == 0 || info.Size() < rl.maxFileSize {
			return base, false
		}
	}

	highest, lastSize := rl.highestNumberedFile(week)
	if highest > 0 && lastSize < rl.maxFileSize {
		return numberedFileName(week, highest), false
	}
	return numberedFileName(week, highest+1), true
}

// highestNumberedFile returns the largest sequence number used this week and that file's size
func (rl *RotatingLogger) highestNumberedFile(week string) (int, int64) {
	matches, _ := filepath.Glob(filepath.Join(rl.logDir, filePrefix+week+"_??"+fileSuffix))

	highest := 0
	var size int64
	for _, match := range matches {
		m := numberedFileRegex.FindStringSubmatch(filepath.Base(match))
		if len(m) < 2 {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		if n <= highest {
			continue
		}
		highest = n
		size = 0
		if info, err := os.Stat(match); err == nil {
			size = info.Size()
		}
	}
	return highest, size
}

// Write implements io.Writer, rotating on week change or when p would overflow the size cap
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := getWeekKey(time.Now())
	rotate := rl.currentFile == nil || rl.currentWeek != week
	if !rotate && rl.maxFileSize > 0 {
		if size := rl.currentSize.Load(); size+int64(len(p)) > rl.maxFileSize {
			rotate = true
			rl.currentSize.Store(rl.maxFileSize)
		}
	}

	if rotate {
		if err := rl.doRotate(week); err != nil {
			return 0, err
		}
	}

	n, err := rl.currentFile.Write(p)
	rl.currentSize.Add(int64(n))
	return n, err
}

// cleanupOldLogs removes log files whose modification time is past the retention period
func (rl *RotatingLogger) cleanupOldLogs() error {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)
	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(rl.logDir, name)); err == nil {
			deleted++
		}
	}

	if deleted > 0 {
		// Written to stderr, logging here would recurse into Write
		fmt.Fprintf(os.Stderr, "cleaned up %d old log files\n", deleted)
	}
	return nil
}

// StartCleanup runs cleanupOldLogs once a day until Close
func (rl *RotatingLogger) StartCleanup() {
	if !rl.cleanupStarted.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(rl.cleanupDone)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rl.ctx.Done():
				return
			case <-ticker.C:
				if err := rl.cleanupOldLogs(); err != nil {
					fmt.Fprintf(os.Stderr, "failed to cleanup old logs: %v\n", err)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and closes the current file
func (rl *RotatingLogger) Close() error {
	rl.cancel()
	if rl.cleanupStarted.Load() {
		select {
		case <-rl.cleanupDone:
		case <-time.After(5 * time.Second):
			fmt.Fprintln(os.Stderr, "log cleanup goroutine did not stop in time")
		}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.currentFile == nil {
		return nil
	}
	err := rl.currentFile.Close()
	rl.currentFile = nil
	return err
}
