package client

import (
	"context"
	"encoding/json"
	"fmt"

	"wb/parser/internal/config"
	"wb/parser/internal/domain"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Enricher sends one page worth of product names to the keyword-clustering
// service and turns the response into report rows.
type Enricher interface {
	// Enrich returns the rows that survive cluster filtering, in request
	// keyword order. A nil slice with a nil error means the service
	// answered but nothing usable came back; callers treat that as an
	// end-of-data signal.
	Enrich(ctx context.Context, keywords []string) ([]domain.ReportRow, error)
}

type enrichmentClient struct {
	cfg        config.EnrichmentConfig
	httpClient *resty.Client
	clk        clock.Clock
}

func NewEnrichmentClient(cfg config.EnrichmentConfig, clk clock.Clock) Enricher {
	httpClient := resty.New().
		SetTimeout(cfg.RequestTimeout()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &enrichmentClient{
		cfg:        cfg,
		httpClient: httpClient,
		clk:        clk,
	}
}

type enrichmentRequest struct {
	Keywords []string `json:"keywords"`
	An       bool     `json:"an"`
}

type clusterInfo struct {
	ProductCount int `json:"product_count"`
	FreqSyn      struct {
		Monthly int `json:"monthly"`
	} `json:"freq_syn"`
}

type enrichmentResponse struct {
	Data struct {
		Keywords map[string]struct {
			Cluster *clusterInfo `json:"cluster"`
		} `json:"keywords"`
	} `json:"data"`
}

func (c *enrichmentClient) Enrich(ctx context.Context, keywords []string) ([]domain.ReportRow, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			log.Warnf("🔄 Retrying keyword clustering (attempt %d/%d): %v", attempt, c.cfg.MaxAttempts, lastErr)
			c.clk.Sleep(c.cfg.RetryDelay())
		}

		rows, err := c.enrichOnce(ctx, keywords)
		if err == nil {
			return rows, nil
		}
		lastErr = err
	}

	return nil, &domain.EnrichmentError{Attempts: c.cfg.MaxAttempts, Err: lastErr}
}

func (c *enrichmentClient) enrichOnce(ctx context.Context, keywords []string) ([]domain.ReportRow, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(enrichmentRequest{Keywords: keywords, An: false}).
		Post(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("clustering request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("clustering request failed: %d %s", resp.StatusCode(), resp.Status())
	}

	var payload enrichmentResponse
	if err := json.Unmarshal([]byte(resp.String()), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode clustering response: %w", err)
	}

	// Iterate in request order so the report stays deterministic; the
	// response map has no order of its own.
	rows := make([]domain.ReportRow, 0, len(keywords))
	for _, kw := range keywords {
		entry, ok := payload.Data.Keywords[kw]
		if !ok || entry.Cluster == nil {
			continue
		}
		if entry.Cluster.ProductCount <= 0 || entry.Cluster.FreqSyn.Monthly <= 0 {
			continue
		}
		rows = append(rows, domain.ReportRow{
			Term:             kw,
			ProductCount:     entry.Cluster.ProductCount,
			MonthlyFrequency: entry.Cluster.FreqSyn.Monthly,
		})
	}

	log.Debugf("Clustered %d keywords, %d usable", len(keywords), len(rows))
	if len(rows) == 0 {
		return nil, nil
	}
	return rows, nil
}
