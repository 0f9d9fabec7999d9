package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"wb/parser/internal/client"
	"wb/parser/internal/domain"

	log "github.com/sirupsen/logrus"
)

// filterKeys is the fixed merge order for the recognized listing filters.
// sort always comes last and defaults to popular.
var filterKeys = []string{"priceU", "xsubject", "fbrand", "fsupplier"}

const defaultSort = "popular"

// Factory builds a fresh Resolver for one parsing session. Each session
// fetches the category tree at most once and never reuses another
// session's, so a long-running process keeps seeing catalog changes.
type Factory func() Resolver

// Resolver matches a user-supplied URL to a catalog category.
type Resolver interface {
	// Resolve returns the matched category with the URL's filters merged
	// into its query. A nil category with a nil error means no category
	// matches the path; that is a normal outcome, not a failure.
	Resolve(ctx context.Context, rawURL string) (*domain.ResolvedCategory, error)
}

type categoryResolver struct {
	client client.CatalogClient

	mu   sync.Mutex
	flat []domain.CategoryNode
}

func NewCategoryResolver(client client.CatalogClient) Resolver {
	return &categoryResolver{client: client}
}

func (r *categoryResolver) Resolve(ctx context.Context, rawURL string) (*domain.ResolvedCategory, error) {
	// Reject a bad URL before spending a round-trip on the tree.
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid category URL %q: %w", rawURL, err)
	}

	flat, err := r.flattened(ctx)
	if err != nil {
		return nil, &domain.UpstreamFetchError{Err: err}
	}

	want := normalizePath(parsed.Path)
	for _, node := range flat {
		if normalizePath(node.URL) != want {
			continue
		}
		resolved := &domain.ResolvedCategory{CategoryNode: node}
		resolved.Query = mergeFilters(node.Query, parsed.Query())
		log.Infof("Resolved %q to category %q (shard %q)", rawURL, node.Name, node.Shard)
		return resolved, nil
	}

	log.Infof("No category matches path %q", want)
	return nil, nil
}

// flattened fetches and flattens the tree on first use and keeps it for the
// resolver's lifetime. A failed fetch is not cached.
func (r *categoryResolver) flattened(ctx context.Context) ([]domain.CategoryNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.flat != nil {
		return r.flat, nil
	}

	nodes, err := r.client.FetchCategoryTree(ctx)
	if err != nil {
		return nil, err
	}

	r.flat = flatten(nodes)
	log.Debugf("Flattened category tree into %d nodes", len(r.flat))
	return r.flat, nil
}

// flatten walks the tree depth-first and emits every node that carries both
// a name and a url, preserving traversal order.
func flatten(nodes []domain.TreeNode) []domain.CategoryNode {
	out := make([]domain.CategoryNode, 0, len(nodes))

	var walk func(ns []domain.TreeNode)
	walk = func(ns []domain.TreeNode) {
		for _, n := range ns {
			if n.Name != "" && n.URL != "" {
				out = append(out, domain.CategoryNode{
					Name:  n.Name,
					Shard: n.Shard,
					URL:   n.URL,
					Query: n.Query,
				})
			}
			if len(n.Childs) > 0 {
				walk(n.Childs)
			}
		}
	}
	walk(nodes)

	return out
}

func normalizePath(p string) string {
	return strings.ToLower(strings.TrimRight(p, "/"))
}

// mergeFilters appends recognized filter parameters to the category's base
// query in fixed order, defaulting sort to popular.
func mergeFilters(base string, params url.Values) string {
	query := base

	appendParam := func(key, value string) {
		if query == "" {
			query = key + "=" + value
			return
		}
		query += "&" + key + "=" + value
	}

	for _, key := range filterKeys {
		if v := params.Get(key); v != "" {
			appendParam(key, v)
		}
	}

	sortValue := params.Get("sort")
	if sortValue == "" {
		sortValue = defaultSort
	}
	appendParam("sort", sortValue)

	return query
}
