package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wb/parser/internal/client"
	"wb/parser/internal/domain"
	"wb/parser/internal/notify"
	"wb/parser/internal/report"
	"wb/parser/internal/resolver"
	"wb/parser/internal/scraper"
	"wb/parser/internal/state"

	log "github.com/sirupsen/logrus"
)

// Service orchestrates one parsing session per request: resolve the
// category, walk its pages, enrich each page's product names and hand the
// accumulated rows to the exporter.
type Service struct {
	registry    state.SessionRegistry
	newResolver resolver.Factory
	scraper     scraper.Scraper
	enricher    client.Enricher
	exporter    report.Exporter
	deliverer   report.Deliverer
	progress    notify.ProgressSink
	messages    notify.MessageSink
	maxPages    int
}

func NewService(
	registry state.SessionRegistry,
	newResolver resolver.Factory,
	pageScraper scraper.Scraper,
	enricher client.Enricher,
	exporter report.Exporter,
	deliverer report.Deliverer,
	progress notify.ProgressSink,
	messages notify.MessageSink,
	maxPages int,
) *Service {
	return &Service{
		registry:    registry,
		newResolver: newResolver,
		scraper:     pageScraper,
		enricher:    enricher,
		exporter:    exporter,
		deliverer:   deliverer,
		progress:    progress,
		messages:    messages,
		maxPages:    maxPages,
	}
}

// Start runs one full parsing session for userID. It returns true when the
// run reached reporting with a resolved category (a zero-frequency result
// included), false for category-not-found, a duplicate run, or a failure
// before the page loop. The user's active marker is cleared on every exit
// path.
func (s *Service) Start(ctx context.Context, userID int64, rawURL string) bool {
	if !s.registry.TryAcquire(userID) {
		log.Warnf("User %d already has an active session", userID)
		s.messages.NotifyUser(userID, "A report is already being built for you, please wait for it to finish.", true)
		return false
	}
	defer s.registry.Release(userID)
	defer s.progress.Clear(userID)

	log.Infof("🔄 Starting session for user %d: %s", userID, rawURL)

	// A fresh resolver per session: the tree is fetched once per run and
	// never carried over, so catalog changes show up on the next request.
	category, err := s.newResolver().Resolve(ctx, rawURL)
	if err != nil {
		log.Errorf("❌ Category resolution failed for user %d: %v", userID, err)
		var fetchErr *domain.UpstreamFetchError
		if errors.As(err, &fetchErr) {
			s.messages.NotifyUser(userID, fmt.Sprintf("Could not load the category catalog: %v", err), true)
		} else {
			s.messages.NotifyUser(userID, "Could not read that link, send a full category URL.", true)
		}
		return false
	}
	if category == nil {
		log.Infof("No category matches %q", rawURL)
		s.messages.NotifyUser(userID, "Category not found, check the link and try again.", true)
		return false
	}

	s.progress.Notify(userID, fmt.Sprintf("📂 Category: %s", category.Name))

	rows := s.collectRows(ctx, userID, category)

	if len(rows) == 0 {
		log.Infof("Session for user %d finished with no usable rows", userID)
		s.messages.NotifyUser(userID, "Products were found, but none of them have a nonzero search frequency.", false)
		return true
	}

	name := fmt.Sprintf("%s %s", category.Name, time.Now().Format("2006-01-02 15-04-05"))
	location, err := s.exporter.Export(rows, name)
	if err != nil {
		log.Errorf("❌ Failed to export report for user %d: %v", userID, err)
		s.messages.NotifyUser(userID, fmt.Sprintf("Failed to export the report: %v", err), true)
		return true
	}

	s.messages.NotifyUser(userID, fmt.Sprintf("✅ Done: %d keywords.\n%s", len(rows), report.Preview(rows, 10)), false)
	if err := s.deliverer.Deliver(location, userID); err != nil {
		log.Errorf("❌ Failed to deliver report for user %d: %v", userID, err)
		s.messages.NotifyUser(userID, fmt.Sprintf("Failed to deliver the report: %v", err), true)
	}

	log.Infof("✅ Session for user %d finished: %d rows", userID, len(rows))
	return true
}

// collectRows drives the page loop in strict page order. A scrape or
// enrichment failure aborts the loop but keeps the rows already collected,
// so the user still gets a partial report.
func (s *Service) collectRows(ctx context.Context, userID int64, category *domain.ResolvedCategory) []domain.ReportRow {
	var rows []domain.ReportRow

	for page := 1; page <= s.maxPages; page++ {
		result, err := s.scraper.ScrapePage(ctx, userID, category, page)
		if err != nil {
			s.abortLoop(userID, page, err)
			break
		}
		if len(result.ProductNames) == 0 {
			log.Infof("Category %q ran out of products on page %d", category.Name, page)
			break
		}

		pageRows, err := s.enricher.Enrich(ctx, result.ProductNames)
		if err != nil {
			s.abortLoop(userID, page, err)
			break
		}
		if pageRows == nil {
			// Nothing usable on this page ends the whole scrape, matching
			// the source system's behavior.
			log.Infof("No usable keywords on page %d of %q, stopping", page, category.Name)
			break
		}

		rows = append(rows, pageRows...)
		s.progress.Notify(userID, fmt.Sprintf("📄 Page %d: %d products, %d keywords (total %d)",
			page, len(result.ProductNames), len(pageRows), len(rows)))
	}

	return rows
}

func (s *Service) abortLoop(userID int64, page int, err error) {
	log.Errorf("❌ Page loop aborted on page %d for user %d: %v", page, userID, err)
	s.messages.NotifyUser(userID, fmt.Sprintf(
		"Stopped on page %d: %v. The report will contain the pages collected so far.", page, err), true)
}
