// Package marketplace es el adapter HTTP de las APIs de experimentos y
// listings del marketplace. Implementa ports.ExperimentProvider y
// ports.ListingPublisher. El rate limiting y los retries viven aquí; el
// engine nunca reintenta.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://sellingpartnerapi-na.amazon.com"

	// Por familia de endpoints, muy por debajo de las cuotas documentadas.
	experimentsRatePerSec = 2
	metricsRatePerSec     = 5
	listingsRatePerSec    = 5
	catalogRatePerSec     = 2

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client del marketplace con rate limiting y retries.
type Client struct {
	http    *http.Client
	baseURL string
	token   string

	experimentsLimiter *rate.Limiter
	metricsLimiter     *rate.Limiter
	listingsLimiter    *rate.Limiter
	catalogLimiter     *rate.Limiter

	retryWait time.Duration
}

// NewClient crea un Client. Un baseURL vacío usa el endpoint de producción.
// token se envía como bearer token si no está vacío.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:               &http.Client{Timeout: 15 * time.Second},
		baseURL:            strings.TrimRight(baseURL, "/"),
		token:              token,
		experimentsLimiter: rate.NewLimiter(experimentsRatePerSec, 2),
		metricsLimiter:     rate.NewLimiter(metricsRatePerSec, 5),
		listingsLimiter:    rate.NewLimiter(listingsRatePerSec, 5),
		catalogLimiter:     rate.NewLimiter(catalogRatePerSec, 2),
		retryWait:          baseRetryWait,
	}
}

// SetRetryWait cambia el backoff base entre retries.
func (c *Client) SetRetryWait(d time.Duration) {
	c.retryWait = d
}

// apiError es una respuesta 4xx que no se reintenta.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.StatusCode, e.Body)
}

func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.send(ctx, limiter, http.MethodGet, url, nil, out)
}

func (c *Client) post(ctx context.Context, limiter *rate.Limiter, url string, body, out any) error {
	return c.send(ctx, limiter, http.MethodPost, url, body, out)
}

func (c *Client) patch(ctx context.Context, limiter *rate.Limiter, url string, body, out any) error {
	return c.send(ctx, limiter, http.MethodPatch, url, body, out)
}

// send construye la request en cada intento para poder repetir el body.
func (c *Client) send(ctx context.Context, limiter *rate.Limiter, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		payload = b
	}

	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, r)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta fn con backoff exponencial ante errores de transporte, 429 y 5xx.
// Con out nil se descarta el body de la respuesta.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by marketplace API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &apiError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		defer resp.Body.Close()
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial respetando ctx.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
