package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"wb/parser/internal/client"
	"wb/parser/internal/config"
	"wb/parser/internal/domain"
	"wb/parser/internal/notify"
	"wb/parser/internal/queue"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// Scraper fetches one product page per call through the shared task queue,
// absorbing upstream rate limiting with a bounded retry budget.
type Scraper interface {
	// ScrapePage returns the page's product names. An empty result is the
	// normal end-of-category signal. The error is always a
	// *domain.ScrapeFatalError once the retry budget is spent.
	ScrapePage(ctx context.Context, userID int64, category *domain.ResolvedCategory, page int) (*domain.PageResult, error)
}

type pageScraper struct {
	client   client.CatalogClient
	queue    *queue.TaskQueue
	progress notify.ProgressSink
	cfg      config.ScraperConfig
	clk      clock.Clock
}

func NewPageScraper(
	catalogClient client.CatalogClient,
	taskQueue *queue.TaskQueue,
	progress notify.ProgressSink,
	cfg config.ScraperConfig,
	clk clock.Clock,
) Scraper {
	return &pageScraper{
		client:   catalogClient,
		queue:    taskQueue,
		progress: progress,
		cfg:      cfg,
		clk:      clk,
	}
}

func (s *pageScraper) ScrapePage(ctx context.Context, userID int64, category *domain.ResolvedCategory, page int) (*domain.PageResult, error) {
	names, err := s.fetchWithRetry(ctx, userID, category, page)
	if err != nil {
		return nil, err
	}

	result := &domain.PageResult{PageNumber: page, ProductNames: names}
	if len(names) == 0 {
		log.Infof("Page %d of category %q is empty, end of category", page, category.Name)
		return result, nil
	}

	// Pace before the caller may ask for the next page; every Nth page
	// takes the long pause to ease sustained load. This is on top of the
	// queue's admission spacing, which only bounds start times.
	delay := s.cfg.PageDelay()
	if s.cfg.LongDelayEvery > 0 && page%s.cfg.LongDelayEvery == 0 {
		delay = s.cfg.LongPageDelay()
	}
	s.clk.Sleep(delay)

	return result, nil
}

func (s *pageScraper) fetchWithRetry(ctx context.Context, userID int64, category *domain.ResolvedCategory, page int) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		names, err := queue.Do(ctx, s.queue, func(ctx context.Context) ([]string, error) {
			return s.client.FetchProductsPage(ctx, category, page)
		})
		if err == nil {
			return names, nil
		}
		if !errors.Is(err, domain.ErrRateLimited) {
			// Non-429 failures are fatal immediately, no retry.
			return nil, err
		}
		lastErr = err

		if attempt == s.cfg.MaxAttempts {
			break
		}

		log.Warnf("🚫 Rate limited on page %d (attempt %d/%d), waiting %s", page, attempt, s.cfg.MaxAttempts, s.cfg.RateLimitWait())
		s.progress.Notify(userID, fmt.Sprintf("⏳ Rate limited on page %d, waiting %s before retry %d/%d",
			page, s.cfg.RateLimitWait(), attempt+1, s.cfg.MaxAttempts))
		s.clk.Sleep(s.cfg.RateLimitWait())
		s.progress.Notify(userID, fmt.Sprintf("🔄 Retrying page %d", page))
	}

	return nil, &domain.ScrapeFatalError{
		Page:       page,
		StatusCode: http.StatusTooManyRequests,
		Err:        lastErr,
	}
}
