// Package scheduler loads the reference catalog at startup and reloads it at the configured
// times of day, logging a warning when the loaded catalog goes stale.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/giygas/medcheck-api/catalogparser"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
	"github.com/giygas/medcheck-api/metrics"
	"github.com/giygas/medcheck-api/validation"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

const (
	reloadTimeout   = 2 * time.Minute
	staleAfter      = 25 * time.Hour
	monitorInterval = time.Hour
)

// Reload outcomes, used as the catalog_reload_total status label
const (
	statusSuccess   = "success"
	statusFailure   = "failure"
	statusSkipped   = "skipped"
	statusUnchanged = "unchanged"
	statusFallback  = "fallback"
)

// Scheduler handles catalog reloads and staleness monitoring
type Scheduler struct {
	store        interfaces.CatalogStore
	parser       interfaces.CatalogParser
	validator    interfaces.DataValidator
	refreshTimes []string
	scheduler    *gocron.Scheduler

	stop     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler reloading at each "HH:MM" of refreshTimes
func NewScheduler(store interfaces.CatalogStore, parser interfaces.CatalogParser, refreshTimes []string) *Scheduler {
	return &Scheduler{
		store:        store,
		parser:       parser,
		validator:    validation.NewDataValidator(),
		refreshTimes: refreshTimes,
		scheduler:    gocron.NewScheduler(time.Local),
		stop:         make(chan struct{}),
	}
}

// Start performs the initial load, then schedules the daily reloads
func (s *Scheduler) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	err := s.Reload(ctx)
	cancel()

	if err != nil {
		if s.store.Counts().Ingredients > 0 {
			logging.Warn("Initial catalog reload failed, serving the stored catalog", "error", err, "version", s.store.Version())
		} else if fallbackErr := s.loadEmbedded(); fallbackErr != nil {
			logging.Error("Failed to perform initial catalog load", "error", err, "fallback_error", fallbackErr)
			return fmt.Errorf("initial catalog load failed: %w", err)
		}
	}

	_, err = s.scheduler.Every(1).Days().At(strings.Join(s.refreshTimes, ";")).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		if err := s.Reload(ctx); err != nil {
			logging.Error("Scheduled catalog reload failed", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule catalog reloads", "error", err)
		return fmt.Errorf("failed to schedule catalog reloads: %w", err)
	}

	s.scheduler.StartAsync()
	s.startHealthMonitoring()

	logging.Info("Catalog reloads scheduled", "times", s.refreshTimes)
	return nil
}

// Stop stops scheduled reloads and the monitor. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.scheduler.Stop()
		close(s.stop)
	})
}

// Reload parses the catalog and swaps it into the store. A reload already in progress
// makes this call a no-op.
func (s *Scheduler) Reload(ctx context.Context) error {
	if !s.store.BeginUpdate() {
		logging.Info("Catalog reload already in progress, skipping")
		metrics.CatalogReloadTotal.WithLabelValues(statusSkipped).Inc()
		return nil
	}
	defer s.store.EndUpdate()

	logging.Info("Starting catalog reload", "at", time.Now().Format(time.RFC3339))
	start := time.Now()

	snapshot, err := s.parser.ParseCatalog(ctx)
	if err != nil {
		metrics.CatalogReloadTotal.WithLabelValues(statusFailure).Inc()
		return fmt.Errorf("failed to parse catalog: %w", err)
	}

	if snapshot.Version != "" && snapshot.Version == s.store.Version() {
		if err := s.store.MarkChecked(ctx); err != nil {
			metrics.CatalogReloadTotal.WithLabelValues(statusFailure).Inc()
			return fmt.Errorf("failed to record catalog check: %w", err)
		}
		logging.Info("Catalog unchanged", "version", snapshot.Version)
		metrics.CatalogReloadTotal.WithLabelValues(statusUnchanged).Inc()
		return nil
	}

	validation.LogCatalogQuality(s.validator.ReportCatalogQuality(snapshot))

	if err := s.store.ReplaceCatalog(ctx, snapshot); err != nil {
		metrics.CatalogReloadTotal.WithLabelValues(statusFailure).Inc()
		return fmt.Errorf("failed to store catalog: %w", err)
	}

	metrics.CatalogReloadTotal.WithLabelValues(statusSuccess).Inc()
	counts := s.store.Counts()
	logging.Info("Catalog reload completed",
		"duration", time.Since(start).String(),
		"version", snapshot.Version,
		"ingredients", counts.Ingredients,
		"aliases", counts.Aliases,
		"rules", counts.Rules,
	)
	return nil
}

// loadEmbedded installs the seed catalog compiled into the binary
func (s *Scheduler) loadEmbedded() error {
	snapshot, err := catalogparser.ParseEmbedded()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	if err := s.store.ReplaceCatalog(ctx, snapshot); err != nil {
		return err
	}

	metrics.CatalogReloadTotal.WithLabelValues(statusFallback).Inc()
	logging.Warn("Loaded the embedded seed catalog", "version", snapshot.Version)
	return nil
}

// startHealthMonitoring warns once an hour while the catalog is stale
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(monitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if age := time.Since(s.store.GetLastUpdated()); age > staleAfter {
					logging.Warn("Catalog hasn't been reloaded in over 25 hours", "age", age.Round(time.Minute).String())
				}
			}
		}
	}()
}
