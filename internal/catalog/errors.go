package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced at the API boundary.
var (
	// ErrAlreadyRunning is returned by Trigger while another crawl holds the
	// exclusive lock.
	ErrAlreadyRunning = errors.New("a scraping run is already in progress")
	// ErrJobNotFound is returned by status lookups for unknown job ids.
	ErrJobNotFound = errors.New("scraping job not found")
)

// FetchError reports an HTTP transport failure or non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports missing structure or a malformed value on a detail page.
type ParseError struct {
	URL   string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s field %q: %v", e.URL, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
