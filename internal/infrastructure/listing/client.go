package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"EventScanner/internal/config"
	"EventScanner/internal/domain"
	"EventScanner/internal/infrastructure/httpx"
	"EventScanner/internal/metrics"
	"EventScanner/internal/ports"
)

const serviceName = "listing"

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Client queries the paginated upcoming-events endpoint.
type Client struct {
	cfg     config.SourceConfig
	loc     *time.Location
	client  *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ ports.ListingSource = (*Client)(nil)

// NewClient wires an HTTP client; nil arguments fall back to defaults.
func NewClient(cfg config.SourceConfig, loc *time.Location, client *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if client == nil {
		client = httpx.NewClient(cfg.Timeout)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, loc: loc, client: client, metrics: m, logger: logger}
}

type wireResponse struct {
	Events *[]wireEvent `json:"events"`
}

type wireEvent struct {
	ArtistName   string       `json:"artistName"`
	Title        string       `json:"title"`
	StartsAt     string       `json:"startsAt"`
	EndsAt       *string      `json:"endsAt"`
	VenueName    string       `json:"venueName"`
	LocationText string       `json:"locationText"`
	EventURL     string       `json:"eventUrl"`
	RSVPCount    *json.Number `json:"rsvpCountInt"`
}

// FetchPage returns the events of one page. A 2xx body without an events array
// is treated as an empty page.
func (c *Client) FetchPage(ctx context.Context, window domain.Window, page int) ([]domain.Event, error) {
	pageURL, err := c.buildPageURL(window, page)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.Request(serviceName, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request page %d: %w: %v", page, domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	c.metrics.Request(serviceName, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &domain.StatusError{Service: serviceName, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("undecodable listing body, treating as empty page", "day", window.Day(), "page", page, "error", err)
		return nil, nil
	}
	if payload.Events == nil {
		return nil, nil
	}

	events := make([]domain.Event, 0, len(*payload.Events))
	for _, raw := range *payload.Events {
		events = append(events, c.toEvent(raw))
	}
	return events, nil
}

func (c *Client) buildPageURL(window domain.Window, page int) (string, error) {
	parsed, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", c.cfg.BaseURL, err)
	}

	query := parsed.Query()
	query.Set("city_id", c.cfg.CityID)
	query.Set("date", window.Start.Format(domain.WireTimeLayout)+","+window.End.Format(domain.WireTimeLayout))
	query.Set("page", strconv.Itoa(page))
	query.Set("longitude", strconv.FormatFloat(c.cfg.Longitude, 'f', -1, 64))
	query.Set("latitude", strconv.FormatFloat(c.cfg.Latitude, 'f', -1, 64))
	query.Set("genre_query", c.cfg.GenreQuery)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) toEvent(raw wireEvent) domain.Event {
	event := domain.Event{
		ID:           strings.TrimSpace(raw.EventURL),
		Title:        cleanText(raw.Title),
		ArtistName:   cleanText(raw.ArtistName),
		VenueName:    cleanText(raw.VenueName),
		LocationText: cleanText(raw.LocationText),
		StartsAtRaw:  raw.StartsAt,
		StartsAt:     parseTimestamp(raw.StartsAt, c.loc),
	}
	if raw.EndsAt != nil {
		event.EndsAt = parseTimestamp(*raw.EndsAt, c.loc)
	}
	if raw.RSVPCount != nil {
		event.RSVPCount = parseCount(*raw.RSVPCount)
	}
	return event
}

func parseTimestamp(value string, loc *time.Location) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &parsed
		}
	}
	return nil
}

func parseCount(n json.Number) *int {
	if v, err := n.Int64(); err == nil {
		count := int(v)
		return &count
	}
	if f, err := n.Float64(); err == nil {
		count := int(f)
		return &count
	}
	return nil
}

// cleanText strips markup and decodes entities that some listings carry in text fields.
func cleanText(value string) string {
	value = strings.TrimSpace(value)
	if !strings.ContainsAny(value, "<&") {
		return value
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
