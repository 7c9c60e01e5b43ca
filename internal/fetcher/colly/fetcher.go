// Package collyfetcher implements catalog.Fetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher performs single-page GETs through a Colly collector and parses the
// body into a goquery document. The body is decoded as UTF-8 regardless of
// response headers.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher with a pooled HTTP transport.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes one HTTP GET and returns the parsed document. Any transport
// failure or non-2xx status yields a *catalog.FetchError. There is no retry;
// callers decide whether a failure is item-fatal or crawl-fatal.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	var (
		body       []byte
		statusCode int
		fetchErr   error
	)

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := f.visit(ctx, collector, url); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Visit may still be running; statusCode is not safe to read here.
			return nil, &catalog.FetchError{URL: url, Err: err}
		}
		// Visit itself fails on non-2xx responses, so the status captured by
		// OnError has to travel with the error.
		return nil, &catalog.FetchError{URL: url, StatusCode: statusCode, Err: err}
	}
	if fetchErr != nil {
		return nil, &catalog.FetchError{URL: url, StatusCode: statusCode, Err: fetchErr}
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, &catalog.FetchError{URL: url, StatusCode: statusCode}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &catalog.FetchError{URL: url, Err: fmt.Errorf("parse body: %w", err)}
	}
	return doc, nil
}

// visit runs the collector in a goroutine so the caller's context can
// interrupt the wait even though Colly's Visit is synchronous.
func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   25,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
