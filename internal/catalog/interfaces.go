package catalog

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// JobStore persists scraping job records.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, message string) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Fetcher retrieves one page and parses it into a document tree.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Crawler performs one full traversal of the paginated catalog.
type Crawler interface {
	Crawl(ctx context.Context) (CrawlResult, error)
}

// Sink persists the final item collection to durable output.
type Sink interface {
	Persist(ctx context.Context, items []Item) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
