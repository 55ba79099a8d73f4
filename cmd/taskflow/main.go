package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/config"
	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	"git.sr.ht/~jakintosh/taskflow/internal/logging"
	"git.sr.ht/~jakintosh/taskflow/internal/service"
	"git.sr.ht/~jakintosh/taskflow/internal/store"
	"git.sr.ht/~jakintosh/taskflow/internal/web"
	"github.com/charmbracelet/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "taskflow:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(nil, args)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if cfg.ConfigFile != "" {
		logger.Info("loaded config", "file", cfg.ConfigFile)
	}

	// Initialize Store
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	tasks := service.NewTaskService(st, logger)
	categories := service.NewCategoryService(st, tasks, logger)

	if !cfg.NoSeed {
		if err := seed(ctx, cfg, st, tasks, categories, logger); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	// Background reports
	reporter := service.NewReporter(tasks, categories, logger)
	scheduler := service.NewScheduler(time.Local, logger)
	if cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, func() { reporter.LogSummary(ctx) }); err != nil {
			return fmt.Errorf("schedule summary: %w", err)
		}
	}
	if cfg.DigestTime != "" {
		hour, minute, err := config.ParseClock(cfg.DigestTime)
		if err != nil {
			return fmt.Errorf("digest time: %w", err)
		}
		if _, err := scheduler.ScheduleDaily(hour, minute, func() { reporter.LogDigest(ctx) }); err != nil {
			return fmt.Errorf("schedule digest: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize Web Server
	handler, err := web.NewServer(tasks, categories, web.Options{
		Logger:    logger,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (domain.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return store.NewSQLiteStore(cfg.DatabasePath)
	default:
		return store.NewInMemoryStore(), nil
	}
}

// seed loads sample data into an empty store.
func seed(ctx context.Context, cfg *config.Config, st domain.Store, tasks *service.TaskService, categories *service.CategoryService, logger *log.Logger) error {
	existing, err := st.ListTasks(ctx)
	if err != nil {
		return err
	}
	existingCats, err := st.ListCategories(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 || len(existingCats) > 0 {
		logger.Debug("store not empty, skipping seed", "tasks", len(existing), "categories", len(existingCats))
		return nil
	}

	data := store.DefaultSeed()
	if cfg.SeedPath != "" {
		if data, err = os.ReadFile(cfg.SeedPath); err != nil {
			return err
		}
	}
	parsed, err := store.ParseSeed(data)
	if err != nil {
		return err
	}

	cats, seeded := parsed.Build(tasks.Now())
	// Pinned ids go in before recurring instances start allocating.
	sort.SliceStable(seeded, func(i, j int) bool {
		return seeded[i].ID > 0 && seeded[j].ID == 0
	})
	for _, c := range cats {
		if _, err := categories.Import(ctx, c); err != nil {
			return err
		}
	}
	for _, t := range seeded {
		if _, err := tasks.Import(ctx, t); err != nil {
			return err
		}
	}
	logger.Info("seeded store", "categories", len(cats), "tasks", len(seeded))
	return nil
}
