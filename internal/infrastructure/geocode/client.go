package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"EventScanner/internal/config"
	"EventScanner/internal/domain"
	"EventScanner/internal/infrastructure/httpx"
	"EventScanner/internal/metrics"
	"EventScanner/internal/ports"
)

const serviceName = "geocoding"

// Client talks to an OpenRouteService-compatible geocoding search endpoint.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	metrics  *metrics.Metrics
}

var _ ports.Geocoder = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.GeocodingConfig, client *http.Client, m *metrics.Metrics) *Client {
	if client == nil {
		client = httpx.NewClient(cfg.Timeout)
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     client,
		metrics:  m,
	}
}

type searchResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves query to its best match. A 429 answer surfaces as an error
// matching domain.ErrRateLimited.
func (c *Client) Geocode(ctx context.Context, query string) (domain.Coordinates, bool, error) {
	var resp searchResponse
	if err := c.get(ctx, query, &resp); err != nil {
		return domain.Coordinates{}, false, err
	}

	if len(resp.Features) == 0 {
		return domain.Coordinates{}, false, nil
	}
	coords := resp.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return domain.Coordinates{}, false, fmt.Errorf("geometry has %d coordinates: %w", len(coords), domain.ErrMalformedResponse)
	}

	return domain.Coordinates{Longitude: coords[0], Latitude: coords[1]}, true, nil
}

func (c *Client) get(ctx context.Context, query string, v any) error {
	target, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid geocoding url %s: %w", c.endpoint, err)
	}
	params := target.Query()
	params.Set("text", query)
	params.Set("size", "1")
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Request(serviceName, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("do request: %w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	c.metrics.Request(serviceName, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &domain.StatusError{Service: serviceName, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w: %v", domain.ErrMalformedResponse, err)
	}

	return nil
}
