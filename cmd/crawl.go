package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand, which performs a single crawl
// without starting the HTTP service.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one catalog crawl and writes the output files",
		Long: `Walks the whole catalog once, extracts every book's detail fields, and
writes the CSV and JSON output files configured under 'output'. Exits
non-zero if a listing page cannot be fetched or the output cannot be
written.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	catalogCrawler, fileSink := buildCrawlPipeline(cfg, logger, nil)

	result, err := catalogCrawler.Crawl(cmd.Context())
	if err != nil {
		return fmt.Errorf("crawl catalog: %w", err)
	}
	if err := fileSink.Persist(cmd.Context(), result.Items); err != nil {
		return fmt.Errorf("persist items: %w", err)
	}

	logger.Info("crawl finished",
		zap.Int("items", len(result.Items)),
		zap.Int("skipped", result.Skipped),
		zap.Int("pages", result.Pages),
		zap.String("csv", cfg.Output.CSVPath),
		zap.String("json", cfg.Output.JSONPath),
	)
	return nil
}
