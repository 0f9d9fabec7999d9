package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"wb/parser/internal/config"
	"wb/parser/internal/domain"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// CatalogClient talks to the catalog upstream: the category tree, fetched
// once per session, and the per-category product listings.
type CatalogClient interface {
	FetchCategoryTree(ctx context.Context) ([]domain.TreeNode, error)
	FetchProductsPage(ctx context.Context, category *domain.ResolvedCategory, page int) ([]string, error)
}

type catalogClient struct {
	cfg        config.CatalogConfig
	httpClient *resty.Client
}

func NewCatalogClient(cfg config.CatalogConfig) CatalogClient {
	httpClient := resty.New().
		SetTimeout(cfg.RequestTimeout()).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &catalogClient{
		cfg:        cfg,
		httpClient: httpClient,
	}
}

func (c *catalogClient) FetchCategoryTree(ctx context.Context) ([]domain.TreeNode, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(c.cfg.TreeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch category tree: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("category tree request failed: %d %s", resp.StatusCode(), resp.Status())
	}

	nodes, err := parseTree([]byte(resp.String()))
	if err != nil {
		return nil, err
	}

	log.Debugf("Fetched category tree with %d top-level nodes", len(nodes))
	return nodes, nil
}

// parseTree accepts both tree shapes the upstream serves: a list of nodes
// or a single root node.
func parseTree(data []byte) ([]domain.TreeNode, error) {
	var nodes []domain.TreeNode
	if err := json.Unmarshal(data, &nodes); err == nil {
		return nodes, nil
	}

	var node domain.TreeNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to decode category tree: %w", err)
	}
	return []domain.TreeNode{node}, nil
}

type productsResponse struct {
	Data struct {
		Products []struct {
			Name string `json:"name"`
		} `json:"products"`
	} `json:"data"`
}

func (c *catalogClient) FetchProductsPage(ctx context.Context, category *domain.ResolvedCategory, page int) ([]string, error) {
	url := fmt.Sprintf("%s/catalog/%s/catalog?appType=1&curr=rub&locale=ru&spp=0&page=%d&%s",
		strings.TrimRight(c.cfg.ProductsURL, "/"),
		category.Shard, page, category.Query)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, &domain.ScrapeFatalError{Page: page, Err: err}
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, fmt.Errorf("page %d: %w", page, domain.ErrRateLimited)
	}
	if resp.IsError() {
		return nil, &domain.ScrapeFatalError{
			Page:       page,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}

	var payload productsResponse
	if err := json.Unmarshal([]byte(resp.String()), &payload); err != nil {
		return nil, &domain.ScrapeFatalError{Page: page, Err: fmt.Errorf("failed to decode products page: %w", err)}
	}

	names := make([]string, 0, len(payload.Data.Products))
	for _, product := range payload.Data.Products {
		names = append(names, product.Name)
	}

	log.Debugf("Fetched page %d with %d products for category %q", page, len(names), category.Name)
	return names, nil
}
