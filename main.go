package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giygas/medcheck-api/cache"
	"github.com/giygas/medcheck-api/catalogparser"
	"github.com/giygas/medcheck-api/config"
	"github.com/giygas/medcheck-api/data"
	"github.com/giygas/medcheck-api/extraction"
	"github.com/giygas/medcheck-api/handlers"
	"github.com/giygas/medcheck-api/health"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
	"github.com/giygas/medcheck-api/ocr"
	"github.com/giygas/medcheck-api/postgres"
	"github.com/giygas/medcheck-api/risk"
	"github.com/giygas/medcheck-api/scheduler"
	"github.com/giygas/medcheck-api/server"
	"github.com/giygas/medcheck-api/validation"
	"github.com/joho/godotenv"
	_ "net/http/pprof"
)

const shutdownTimeout = 30 * time.Second

// stores groups the catalog and user backends selected by CATALOG_SOURCE
type stores struct {
	catalog interfaces.CatalogStore
	users   interfaces.UserStore
	closers []io.Closer
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.InitLoggerWithOptions(logging.Options{
		Dir:            "logs",
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})

	if err := run(cfg); err != nil {
		logging.Error("Server exited with error", "error", err)
		_ = logging.Close()
		os.Exit(1)
	}
	_ = logging.Close()
}

func run(cfg *config.Config) error {
	ctx := context.Background()
	startTime := time.Now()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	searchCache := openCache(cfg)
	if closer, ok := searchCache.(io.Closer); ok {
		st.closers = append(st.closers, closer)
	}

	recognizer, err := ocr.New(ctx, ocr.Config{
		Provider:      cfg.OCRProvider,
		TesseractPath: cfg.TesseractPath,
		TesseractLang: cfg.TesseractLang,
	})
	if err != nil {
		logging.Warn("Image recognition disabled", "provider", cfg.OCRProvider, "error", err)
		recognizer = ocr.Disabled{}
	}
	if closer, ok := recognizer.(io.Closer); ok {
		st.closers = append(st.closers, closer)
	}
	logging.Info("Recognizer ready", "provider", recognizer.Name())

	sched := scheduler.NewScheduler(st.catalog, catalogparser.NewCatalogParser(cfg.CatalogURL), cfg.CatalogRefresh)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to load the catalog: %w", err)
	}
	defer sched.Stop()

	pipeline := extraction.NewPipeline(st.catalog, recognizer, searchCache, cfg.MatchWorkers)
	service := risk.NewService(risk.NewEngine(st.catalog), st.users, cfg.AnalyzeTimeout)

	handler := handlers.NewHTTPHandler(handlers.Deps{
		Pipeline:      pipeline,
		Service:       service,
		Catalog:       st.catalog,
		Users:         st.users,
		Validator:     validation.NewDataValidator(),
		HealthChecker: health.NewHealthChecker(st.catalog, cfg.CatalogRefresh),
		MaxImageBody:  cfg.MaxImageBody,
	})

	if setter, ok := st.catalog.(interface{ SetServerStartTime(time.Time) }); ok {
		setter.SetServerStartTime(startTime)
	}

	srv := server.NewServer(cfg, handler)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logging.Info("Received signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// openStores selects the in-memory or PostgreSQL backends
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.CatalogSource {
	case config.CatalogSourcePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := db.LoadMeta(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		logging.Info("Using PostgreSQL catalog and user store")
		return &stores{catalog: db, users: db, closers: []io.Closer{db}}, nil

	default:
		users := data.NewUserRepository()
		if err := users.SeedDemoUser(ctx); err != nil {
			return nil, fmt.Errorf("failed to seed demo user: %w", err)
		}
		logging.Info("Using in-memory catalog and user store", "demo_user", data.DemoUserID)
		return &stores{catalog: data.NewCatalogContainer(), users: users}, nil
	}
}

// openCache returns a Redis search cache when configured and reachable, a no-op cache otherwise
func openCache(cfg *config.Config) interfaces.SearchCache {
	if cfg.RedisAddr == "" {
		return cache.Noop{}
	}

	rc, err := cache.NewRedis(cfg.RedisAddr, cfg.SearchCacheTTL)
	if err != nil {
		logging.Warn("Search cache disabled", "addr", cfg.RedisAddr, "error", err)
		return cache.Noop{}
	}
	logging.Info("Search cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.SearchCacheTTL.String())
	return rc
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			logging.Warn("Close failed", "error", err)
		}
	}
}
