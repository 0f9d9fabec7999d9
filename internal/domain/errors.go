package domain

import (
	"errors"
	"fmt"
)

// ErrRateLimited is the internal retry signal for an HTTP 429 from the
// catalog. It only reaches a caller wrapped in ScrapeFatalError, after the
// retry budget is spent.
var ErrRateLimited = errors.New("catalog rate limited")

// UpstreamFetchError means the category tree could not be retrieved, so
// resolution is impossible for this session.
type UpstreamFetchError struct {
	Err error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("failed to fetch category tree: %v", e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// ScrapeFatalError aborts the page loop: a non-retryable page fetch failure,
// or rate limiting that survived every retry.
type ScrapeFatalError struct {
	Page       int
	StatusCode int
	Body       string
	Err        error
}

func (e *ScrapeFatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("page %d fetch failed: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("page %d fetch failed: status %d: %s", e.Page, e.StatusCode, e.Body)
}

func (e *ScrapeFatalError) Unwrap() error { return e.Err }

// EnrichmentError means the keyword clustering service failed for every
// attempt of one batch.
type EnrichmentError struct {
	Attempts int
	Err      error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("keyword clustering failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }
