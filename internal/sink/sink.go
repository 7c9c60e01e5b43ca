// Package sink persists the final item collection to durable output formats:
// a semicolon-delimited CSV table and a line-delimited JSON file. Writes are
// best-effort snapshots; a crash mid-write can leave a partial file.
package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
)

// Columns is the fixed CSV column order.
var Columns = []string{
	"book_id",
	"title",
	"description",
	"review_rating",
	"category",
	"product_upc",
	"currency",
	"price_including_tax",
	"price_excluding_tax",
	"tax",
	"number_available",
	"created_at",
	"image_url",
	"url",
}

// CreatedAtLayout is how item timestamps are rendered in the CSV output.
const CreatedAtLayout = "2006-01-02 15:04:05"

// FileSink writes the item collection to a CSV and a JSONL file on disk.
type FileSink struct {
	csvPath  string
	jsonPath string
	logger   *zap.Logger
}

// NewFileSink returns a sink writing to the two given paths.
func NewFileSink(csvPath, jsonPath string, logger *zap.Logger) *FileSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{
		csvPath:  csvPath,
		jsonPath: jsonPath,
		logger:   logger,
	}
}

// Persist writes both output artifacts. Output directories are created on
// demand. The CSV write happens first; a JSONL failure leaves the CSV behind.
func (s *FileSink) Persist(ctx context.Context, items []catalog.Item) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if err := s.writeCSV(items); err != nil {
		return err
	}
	if err := s.writeJSONL(items); err != nil {
		return err
	}
	s.logger.Info("items persisted",
		zap.Int("count", len(items)),
		zap.String("csv", s.csvPath),
		zap.String("jsonl", s.jsonPath),
	)
	return nil
}

func (s *FileSink) writeCSV(items []catalog.Item) error {
	f, err := s.create(s.csvPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			s.logger.Warn("close csv output", zap.Error(closeErr))
		}
	}()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range items {
		if err := w.Write(csvRecord(item)); err != nil {
			return fmt.Errorf("write csv row for %d: %w", item.BookID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv %s: %w", s.csvPath, err)
	}
	return nil
}

func (s *FileSink) writeJSONL(items []catalog.Item) error {
	f, err := s.create(s.jsonPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			s.logger.Warn("close jsonl output", zap.Error(closeErr))
		}
	}()

	enc := json.NewEncoder(f)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("write jsonl row for %d: %w", item.BookID, err)
		}
	}
	return nil
}

func (s *FileSink) create(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file %s: %w", path, err)
	}
	return f, nil
}

func csvRecord(item catalog.Item) []string {
	description := ""
	if item.Description != nil {
		description = *item.Description
	}
	rating := ""
	if item.ReviewRating != nil {
		rating = strconv.Itoa(*item.ReviewRating)
	}
	return []string{
		strconv.Itoa(item.BookID),
		item.Title,
		description,
		rating,
		item.Category,
		item.ProductUPC,
		item.Currency,
		formatPrice(item.PriceIncludingTax),
		formatPrice(item.PriceExcludingTax),
		formatPrice(item.Tax),
		strconv.Itoa(item.NumberAvailable),
		item.CreatedAt.Format(CreatedAtLayout),
		item.ImageURL,
		item.URL,
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
