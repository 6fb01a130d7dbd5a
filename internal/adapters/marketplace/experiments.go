package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

const (
	experimentsPath = "/experiments"
	catalogPath     = "/catalog/items"
)

// Create registra el experimento en el provider y devuelve su id remoto.
func (c *Client) Create(ctx context.Context, req domain.ProvisionRequest) (string, error) {
	body, err := mapCreateRequest(req)
	if err != nil {
		return "", fmt.Errorf("marketplace.Create: %w", err)
	}

	var resp createExperimentResponse
	if err := c.post(ctx, c.experimentsLimiter, c.baseURL+experimentsPath, body, &resp); err != nil {
		return "", fmt.Errorf("marketplace.Create: %w", err)
	}

	slog.Debug("remote experiment created",
		"experiment_id", req.ExperimentID,
		"remote_id", resp.ExperimentID,
		"status", resp.Status,
	)
	return resp.ExperimentID, nil
}

// Start lanza el experimento remoto.
func (c *Client) Start(ctx context.Context, remoteID string) error {
	u := fmt.Sprintf("%s%s/%s/start", c.baseURL, experimentsPath, url.PathEscape(remoteID))
	if err := c.post(ctx, c.experimentsLimiter, u, struct{}{}, nil); err != nil {
		return fmt.Errorf("marketplace.Start %s: %w", remoteID, err)
	}
	return nil
}

// Stop termina el experimento remoto.
func (c *Client) Stop(ctx context.Context, remoteID, reason string) error {
	u := fmt.Sprintf("%s%s/%s/stop", c.baseURL, experimentsPath, url.PathEscape(remoteID))
	if err := c.post(ctx, c.experimentsLimiter, u, stopExperimentRequest{Reason: reason}, nil); err != nil {
		return fmt.Errorf("marketplace.Stop %s: %w", remoteID, err)
	}
	return nil
}

// FetchMetrics devuelve los contadores acumulados por variante entre from y to.
func (c *Client) FetchMetrics(ctx context.Context, remoteID string, from, to time.Time) ([]domain.VariantMetrics, error) {
	q := url.Values{}
	q.Set("start", from.UTC().Format(time.RFC3339))
	q.Set("end", to.UTC().Format(time.RFC3339))
	u := fmt.Sprintf("%s%s/%s/metrics?%s", c.baseURL, experimentsPath, url.PathEscape(remoteID), q.Encode())

	var resp metricsResponse
	if err := c.get(ctx, c.metricsLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("marketplace.FetchMetrics %s: %w", remoteID, err)
	}
	return mapMetrics(resp.Treatments), nil
}

// ResolveProductReference busca el product id (ASIN) de un SKU del seller.
// Un SKU desconocido devuelve domain.ErrNotFound.
func (c *Client) ResolveProductReference(ctx context.Context, sku, marketplace string) (string, error) {
	q := url.Values{}
	q.Set("sku", sku)
	q.Set("marketplace_id", marketplace)
	u := fmt.Sprintf("%s%s?%s", c.baseURL, catalogPath, q.Encode())

	var resp catalogSearchResponse
	if err := c.get(ctx, c.catalogLimiter, u, &resp); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("marketplace.ResolveProductReference %s: %w", sku, domain.ErrNotFound)
		}
		return "", fmt.Errorf("marketplace.ResolveProductReference %s: %w", sku, err)
	}

	for _, item := range resp.Items {
		if item.ASIN != "" {
			return item.ASIN, nil
		}
	}
	return "", fmt.Errorf("marketplace.ResolveProductReference %s: %w", sku, domain.ErrNotFound)
}
