// Package crawler drives the paginated catalog traversal. Listing pages are
// walked serially (each page's next link is only known after fetching it);
// detail pages within a listing are fetched on a bounded worker pool with
// results collected in submission order.
package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
	"github.com/bookscrape/catalog-crawler/internal/extract"
	"github.com/bookscrape/catalog-crawler/internal/progress"
)

const defaultConcurrency = 20

// Config holds the settings for a crawl session.
type Config struct {
	// BaseURL is the site root, e.g. "http://books.toscrape.com".
	BaseURL string
	// Concurrency bounds the detail-fetch worker pool per listing page.
	Concurrency int
}

// Crawler walks the catalog and extracts every book detail page.
type Crawler struct {
	fetcher catalog.Fetcher
	cfg     Config
	logger  *zap.Logger
	emitter progress.Emitter
}

// New constructs a Crawler. The emitter may be nil.
func New(fetcher catalog.Fetcher, cfg Config, logger *zap.Logger, emitter progress.Emitter) *Crawler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		emitter: emitter,
	}
}

// Crawl traverses the catalog from the first listing page until no next link
// remains. A listing-page fetch failure aborts the whole crawl; a single
// detail page failing fetch or extraction only drops that item.
func (c *Crawler) Crawl(ctx context.Context) (catalog.CrawlResult, error) {
	var result catalog.CrawlResult
	pageURL := c.catalogueURL("page-1.html")

	for {
		start := time.Now()
		c.logger.Info("fetching listing page", zap.String("url", pageURL))
		doc, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return catalog.CrawlResult{}, fmt.Errorf("fetch listing %s: %w", pageURL, err)
		}

		links := c.detailLinks(doc)
		items, skipped := c.fetchDetails(ctx, links)
		result.Items = append(result.Items, items...)
		result.Skipped += skipped
		result.Pages++

		c.emit(progress.Event{
			Stage: progress.StagePageDone,
			URL:   pageURL,
			Items: int64(len(items)),
			Dur:   time.Since(start),
		})

		next, ok := nextPage(doc)
		if !ok {
			return result, nil
		}
		pageURL = c.catalogueURL(next)
	}
}

// detailLinks collects the ordered detail-page URLs present on a listing page.
func (c *Crawler) detailLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("article.product_pod div.image_container a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		links = append(links, c.catalogueURL(href))
	})
	return links
}

// fetchDetails fans the page's links out over the worker pool. results is
// indexed by submission position so the output order matches link order
// regardless of which worker finished first.
func (c *Crawler) fetchDetails(ctx context.Context, links []string) ([]catalog.Item, int) {
	type outcome struct {
		item catalog.Item
		err  error
	}
	results := make([]outcome, len(links))

	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, link := range links {
		wg.Add(1)
		go func(idx int, url string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			item, err := c.fetchDetail(ctx, url)
			results[idx] = outcome{item: item, err: err}
		}(i, link)
	}
	wg.Wait()

	items := make([]catalog.Item, 0, len(links))
	skipped := 0
	for i, res := range results {
		if res.err != nil {
			skipped++
			c.logger.Warn("detail page skipped",
				zap.String("url", links[i]),
				zap.Error(res.err),
			)
			c.emit(progress.Event{Stage: progress.StageItemError, URL: links[i], Note: res.err.Error()})
			continue
		}
		items = append(items, res.item)
		c.emit(progress.Event{Stage: progress.StageItemDone, URL: links[i], Items: 1})
	}
	return items, skipped
}

func (c *Crawler) fetchDetail(ctx context.Context, url string) (catalog.Item, error) {
	doc, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return catalog.Item{}, err
	}
	return extract.Extract(doc, url, c.cfg.BaseURL)
}

func (c *Crawler) catalogueURL(suffix string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/catalogue/" + strings.TrimPrefix(suffix, "/")
}

func (c *Crawler) emit(evt progress.Event) {
	if c.emitter == nil {
		return
	}
	evt.TS = time.Now().UTC()
	c.emitter.Emit(evt)
}

func nextPage(doc *goquery.Document) (string, bool) {
	href, ok := doc.Find("li.next > a").First().Attr("href")
	if !ok || href == "" {
		return "", false
	}
	return href, true
}
