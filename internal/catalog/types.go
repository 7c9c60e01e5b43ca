// Package catalog defines core types shared across subsystems.
package catalog

import (
	"time"
)

// JobStatus represents the lifecycle state of a scraping job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Terminal reports whether the status is final. Terminal jobs are never
// transitioned again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// Job represents the metadata persisted for each triggered scraping run.
type Job struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TriggeredBy string    `json:"trigger_by_user"`
}

// Currency codes recorded on scraped items.
const (
	CurrencyGBP     = "GBP"
	CurrencyUnknown = "UNKNOWN"
)

// Item is one scraped book record. Pointer fields are absent when the
// source page carries no value for them.
type Item struct {
	BookID            int       `json:"book_id"`
	Title             string    `json:"title"`
	Description       *string   `json:"description"`
	ReviewRating      *int      `json:"review_rating"`
	Category          string    `json:"category"`
	ProductUPC        string    `json:"product_upc"`
	Currency          string    `json:"currency"`
	PriceIncludingTax float64   `json:"price_including_tax"`
	PriceExcludingTax float64   `json:"price_excluding_tax"`
	Tax               float64   `json:"tax"`
	NumberAvailable   int       `json:"number_available"`
	CreatedAt         time.Time `json:"created_at"`
	ImageURL          string    `json:"image_url"`
	URL               string    `json:"url"`
}

// CrawlResult aggregates one full catalog traversal.
type CrawlResult struct {
	// Items holds successfully extracted records in page-then-link order.
	Items []Item
	// Skipped counts detail pages that failed fetch or extraction and were
	// dropped from Items.
	Skipped int
	// Pages is the number of listing pages visited.
	Pages int
}
