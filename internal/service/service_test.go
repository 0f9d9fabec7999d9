package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"wb/parser/internal/domain"
	"wb/parser/internal/resolver"
	"wb/parser/internal/state"

	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	category *domain.ResolvedCategory
	err      error
	calls    int
}

func (f *fakeResolver) Resolve(ctx context.Context, rawURL string) (*domain.ResolvedCategory, error) {
	f.calls++
	return f.category, f.err
}

// fakeScraper serves pages[i] for page i+1; pages beyond the script are
// empty. A non-nil pageErrs entry fails that page.
type fakeScraper struct {
	pages    [][]string
	pageErrs map[int]error
	calls    int
}

func (f *fakeScraper) ScrapePage(ctx context.Context, userID int64, category *domain.ResolvedCategory, page int) (*domain.PageResult, error) {
	f.calls++
	if err, ok := f.pageErrs[page]; ok {
		return nil, err
	}
	if page > len(f.pages) {
		return &domain.PageResult{PageNumber: page}, nil
	}
	return &domain.PageResult{PageNumber: page, ProductNames: f.pages[page-1]}, nil
}

// fakeEnricher maps every product name to one row with fixed stats.
// alwaysNil makes every call return the no-rows sentinel; nilAfter (when
// positive) only does so for calls past that count.
type fakeEnricher struct {
	err       error
	alwaysNil bool
	nilAfter  int
	calls     int
}

func (f *fakeEnricher) Enrich(ctx context.Context, keywords []string) ([]domain.ReportRow, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.alwaysNil || (f.nilAfter > 0 && f.calls > f.nilAfter) {
		return nil, nil
	}
	rows := make([]domain.ReportRow, 0, len(keywords))
	for _, kw := range keywords {
		rows = append(rows, domain.ReportRow{Term: kw, ProductCount: 1, MonthlyFrequency: 1})
	}
	return rows, nil
}

type fakeExporter struct {
	rows []domain.ReportRow
	name string
	err  error
}

func (f *fakeExporter) Export(rows []domain.ReportRow, name string) (string, error) {
	f.rows = rows
	f.name = name
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/" + name + ".xlsx", nil
}

type fakeDeliverer struct {
	locations []string
}

func (f *fakeDeliverer) Deliver(location string, userID int64) error {
	f.locations = append(f.locations, location)
	return nil
}

type memorySink struct {
	mu       sync.Mutex
	progress []string
	messages []string
	errors   []string
	cleared  int
}

func (m *memorySink) Notify(userID int64, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, line)
}

func (m *memorySink) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
}

func (m *memorySink) NotifyUser(userID int64, text string, isError bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isError {
		m.errors = append(m.errors, text)
		return
	}
	m.messages = append(m.messages, text)
}

type fixture struct {
	svc          *Service
	registry     state.SessionRegistry
	resolver     *fakeResolver
	factoryCalls int
	scraper      *fakeScraper
	enricher     *fakeEnricher
	exporter     *fakeExporter
	deliverer    *fakeDeliverer
	sink         *memorySink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry: state.NewSessionRegistry(),
		resolver: &fakeResolver{category: &domain.ResolvedCategory{
			CategoryNode: domain.CategoryNode{Name: "Vannaya", Shard: "dom", Query: "sort=popular"},
		}},
		scraper:   &fakeScraper{},
		enricher:  &fakeEnricher{},
		exporter:  &fakeExporter{},
		deliverer: &fakeDeliverer{},
		sink:      &memorySink{},
	}
	factory := func() resolver.Resolver {
		f.factoryCalls++
		return f.resolver
	}
	f.svc = NewService(f.registry, factory, f.scraper, f.enricher, f.exporter, f.deliverer, f.sink, f.sink, 50)
	return f
}

func TestStartRejectsDuplicateSession(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.registry.TryAcquire(1))

	require.False(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom/vannaya"))
	require.Zero(t, f.resolver.calls)
	// The pre-acquired marker must survive the rejected call.
	require.True(t, f.registry.Active(1))
}

func TestActiveFlagClearedOnResolutionFailure(t *testing.T) {
	f := newFixture(t)
	f.resolver.category = nil
	f.resolver.err = &domain.UpstreamFetchError{Err: errors.New("connection refused")}

	require.False(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom"))
	require.False(t, f.registry.Active(1))

	// A second run for the same user must reach the resolver again.
	require.False(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom"))
	require.Equal(t, 2, f.resolver.calls)
	require.Equal(t, 2, f.sink.cleared)
}

func TestFreshResolverPerSession(t *testing.T) {
	f := newFixture(t)
	f.scraper.pages = [][]string{{"a"}}

	require.True(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom/vannaya"))
	require.True(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom/vannaya"))

	// Each run builds its own resolver, so no run serves a tree cached by
	// an earlier one.
	require.Equal(t, 2, f.factoryCalls)
}

func TestInvalidLinkGetsItsOwnMessage(t *testing.T) {
	f := newFixture(t)
	f.resolver.category = nil
	f.resolver.err = errors.New(`invalid category URL "://x": missing protocol scheme`)

	require.False(t, f.svc.Start(context.Background(), 1, "://x"))
	require.Len(t, f.sink.errors, 1)
	require.Contains(t, f.sink.errors[0], "Could not read that link")
	require.Zero(t, f.scraper.calls)
}

func TestCategoryNotFound(t *testing.T) {
	f := newFixture(t)
	f.resolver.category = nil

	require.False(t, f.svc.Start(context.Background(), 1, "https://x/catalog/unknown"))
	require.Len(t, f.sink.errors, 1)
	require.Contains(t, f.sink.errors[0], "not found")
	require.Zero(t, f.scraper.calls)
}

func TestFullRunExportsAndDelivers(t *testing.T) {
	f := newFixture(t)
	f.scraper.pages = [][]string{{"a", "b"}, {"c"}}

	require.True(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom/vannaya"))

	// Pages 1 and 2 had products, page 3 was empty and stopped the loop.
	require.Equal(t, 3, f.scraper.calls)
	require.Equal(t, 2, f.enricher.calls)
	require.Len(t, f.exporter.rows, 3)
	require.Equal(t, "a", f.exporter.rows[0].Term)
	require.Contains(t, f.exporter.name, "Vannaya")
	require.Len(t, f.deliverer.locations, 1)
	require.False(t, f.registry.Active(1))
}

func TestEmptyEnrichmentStopsPagination(t *testing.T) {
	f := newFixture(t)
	f.scraper.pages = [][]string{{"a"}, {"b"}, {"c"}}
	f.enricher.nilAfter = 1

	require.True(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom/vannaya"))

	// Page 2's empty enrichment ends the scrape; page 3 is never fetched.
	require.Equal(t, 2, f.scraper.calls)
	require.Len(t, f.exporter.rows, 1)
}

func TestScrapeErrorKeepsCollectedRows(t *testing.T) {
	f := newFixture(t)
	f.scraper.pages = [][]string{{"a"}, {"b"}}
	f.scraper.pageErrs = map[int]error{2: &domain.ScrapeFatalError{Page: 2, StatusCode: 500}}

	require.True(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom/vannaya"))

	require.Len(t, f.exporter.rows, 1)
	require.Len(t, f.deliverer.locations, 1)
	require.NotEmpty(t, f.sink.errors)
}

func TestZeroFrequencyOutcome(t *testing.T) {
	f := newFixture(t)
	f.scraper.pages = [][]string{{"a"}}
	f.enricher.alwaysNil = true

	require.True(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom/vannaya"))
	require.Empty(t, f.exporter.rows)
	require.Len(t, f.sink.messages, 1)
	require.Contains(t, f.sink.messages[0], "nonzero search frequency")
}

func TestEnrichmentErrorAbortsLoop(t *testing.T) {
	f := newFixture(t)
	f.scraper.pages = [][]string{{"a"}}
	f.enricher.err = &domain.EnrichmentError{Attempts: 3, Err: fmt.Errorf("timeout")}

	require.True(t, f.svc.Start(context.Background(), 1, "https://x/catalog/dom/vannaya"))
	require.Empty(t, f.exporter.rows)
	require.NotEmpty(t, f.sink.errors)
	require.False(t, f.registry.Active(1))
}
