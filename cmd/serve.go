package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bookscrape/catalog-crawler/internal/api"
	"github.com/bookscrape/catalog-crawler/internal/catalog"
	"github.com/bookscrape/catalog-crawler/internal/clock/system"
	"github.com/bookscrape/catalog-crawler/internal/config"
	"github.com/bookscrape/catalog-crawler/internal/crawler"
	collyfetcher "github.com/bookscrape/catalog-crawler/internal/fetcher/colly"
	"github.com/bookscrape/catalog-crawler/internal/id/uuid"
	"github.com/bookscrape/catalog-crawler/internal/metrics"
	"github.com/bookscrape/catalog-crawler/internal/orchestrator"
	"github.com/bookscrape/catalog-crawler/internal/progress"
	"github.com/bookscrape/catalog-crawler/internal/progress/sinks"
	"github.com/bookscrape/catalog-crawler/internal/sink"
	memorystorage "github.com/bookscrape/catalog-crawler/internal/storage/memory"
	"github.com/bookscrape/catalog-crawler/internal/storage/postgres"
)

// newServeCmd creates the 'serve' subcommand, which runs the HTTP service
// exposing the trigger and status endpoints.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the scraping HTTP service",
		Long: `Runs the HTTP service. Scraping runs are triggered via
POST /api/v1/scraping/trigger and observed via
GET /api/v1/scraping/status/{request_id}. At most one crawl runs at a time.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	jobStore, closeStore, err := buildJobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("progress metrics init: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("events")),
		promSink,
	)

	catalogCrawler, fileSink := buildCrawlPipeline(cfg, logger, hub)

	orch := orchestrator.New(
		jobStore,
		catalogCrawler,
		fileSink,
		uuid.New(),
		system.New(),
		logger.Named("orchestrator"),
		hub,
	)

	apiServer := api.NewServer(orch, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	// An in-flight crawl has no cancellation; wait for it so the job record
	// reaches a terminal state before the store goes away.
	orch.Wait()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("progress hub close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// buildJobStore selects the configured job store backend. The returned
// closer is a no-op for the in-memory store.
func buildJobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (catalog.JobStore, func(), error) {
	if cfg.DB.Provider == "postgres" {
		pgStore, err := postgres.NewJobStore(ctx, postgres.JobStoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
			MinConns: int32(cfg.DB.MinOpenConns),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres job store init: %w", err)
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			pgStore.Close()
			return nil, nil, fmt.Errorf("postgres schema init: %w", err)
		}
		logger.Info("using postgres job store")
		return pgStore, pgStore.Close, nil
	}
	logger.Info("using in-memory job store")
	return memorystorage.NewJobStore(), func() {}, nil
}

// buildCrawlPipeline wires the fetcher, crawler, and file sink from config.
func buildCrawlPipeline(cfg config.Config, logger *zap.Logger, emitter progress.Emitter) (*crawler.Crawler, *sink.FileSink) {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.HTTP.Timeout(),
	})
	catalogCrawler := crawler.New(fetcher, crawler.Config{
		BaseURL:     cfg.Scraper.BaseURL,
		Concurrency: cfg.Scraper.Concurrency,
	}, logger.Named("crawler"), emitter)
	fileSink := sink.NewFileSink(cfg.Output.CSVPath, cfg.Output.JSONPath, logger.Named("sink"))
	return catalogCrawler, fileSink
}
