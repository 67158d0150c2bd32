package dawarich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nir0k/mediageo/internal/location"
	"golang.org/x/time/rate"
)

const (
	pointsPath     = "/api/v1/points"
	defaultPerPage = 500
	// defaultMaxPages caps pagination in case the server keeps reporting more pages.
	defaultMaxPages = 200
)

// Options configures the point API client.
type Options struct {
	BaseURL string
	APIKey  string
	PerPage int
	// RateLimit is the allowed number of requests per second. Zero disables limiting.
	RateLimit  float64
	Timeout    time.Duration
	Schema     Schema
	HTTPClient *http.Client
}

// Client queries recorded points from a Dawarich server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	perPage    int
	maxPages   int
	limiter    *rate.Limiter
	schema     Schema
}

// New returns a configured client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("dawarich base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid dawarich URL: %w", err)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("dawarich API key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    base,
		apiKey:     strings.TrimSpace(opts.APIKey),
		perPage:    perPage,
		maxPages:   defaultMaxPages,
		schema:     opts.Schema.withDefaults(),
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c, nil
}

// QueryRange implements location.Source.
func (c *Client) QueryRange(ctx context.Context, start, end time.Time) ([]location.Candidate, error) {
	var all []location.Candidate

	for page := 1; ; page++ {
		candidates, totalPages, err := c.fetchPage(ctx, start, end, page)
		if err != nil {
			return nil, err
		}
		all = append(all, candidates...)
		if page >= totalPages || len(candidates) == 0 {
			return all, nil
		}
		if page >= c.maxPages {
			return nil, fmt.Errorf("dawarich returned more than %d pages for %s .. %s (server reports %d); narrow the range or raise the page size",
				c.maxPages, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), totalPages)
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, start, end time.Time, page int) ([]location.Candidate, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, location.LimiterError(ctx, "dawarich rate limit", err)
		}
	}

	q := url.Values{}
	q.Set("start_at", start.UTC().Format(time.RFC3339))
	q.Set("end_at", end.UTC().Format(time.RFC3339))
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("order", "asc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pointsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build dawarich request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	op := fmt.Sprintf("dawarich points page %d", page)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &location.TransportError{Op: op, Err: c.redact(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, &location.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(snippet))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &location.TransportError{Op: op, Err: err}
	}

	candidates, err := c.schema.decode(body)
	if err != nil {
		return nil, 0, fmt.Errorf("decode dawarich response: %w", err)
	}

	totalPages := 1
	if v := resp.Header.Get("X-Total-Pages"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			totalPages = n
		}
	}
	return candidates, totalPages, nil
}

// redact strips the query string from request errors before they reach logs.
func (c *Client) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: c.baseURL + pointsPath, Err: ue.Err}
	}
	return err
}

// Schema names the JSON fields of a point record.
type Schema struct {
	Latitude    string
	Longitude   string
	Altitude    string
	Timestamp   string
	Country     string
	City        string
	CountryCode string
}

// DefaultSchema matches the flat point array returned by Dawarich.
func DefaultSchema() Schema {
	return Schema{
		Latitude:    "latitude",
		Longitude:   "longitude",
		Altitude:    "altitude",
		Timestamp:   "timestamp",
		Country:     "country",
		City:        "city",
		CountryCode: "country_code",
	}
}

func (s Schema) withDefaults() Schema {
	def := DefaultSchema()
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return strings.TrimSpace(v)
	}
	return Schema{
		Latitude:    pick(s.Latitude, def.Latitude),
		Longitude:   pick(s.Longitude, def.Longitude),
		Altitude:    pick(s.Altitude, def.Altitude),
		Timestamp:   pick(s.Timestamp, def.Timestamp),
		Country:     pick(s.Country, def.Country),
		City:        pick(s.City, def.City),
		CountryCode: pick(s.CountryCode, def.CountryCode),
	}
}

func (s Schema) decode(body []byte) ([]location.Candidate, error) {
	var records []map[string]json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, err
	}

	out := make([]location.Candidate, 0, len(records))
	for _, rec := range records {
		var c location.Candidate

		lat, latOK := number(rec[s.Latitude])
		lon, lonOK := number(rec[s.Longitude])
		if latOK && lonOK {
			coord := location.Coordinate{Latitude: lat, Longitude: lon}
			if alt, ok := number(rec[s.Altitude]); ok {
				coord.Altitude = &alt
			}
			c.Coord = &coord
		}

		if raw, ok := rec[s.Timestamp]; ok {
			// An undecodable timestamp leaves the field missing; selection drops it.
			_ = json.Unmarshal(raw, &c.Time)
		}

		c.Place = location.Place{
			Country:     text(rec[s.Country]),
			City:        text(rec[s.City]),
			CountryCode: strings.ToUpper(text(rec[s.CountryCode])),
		}
		out = append(out, c)
	}
	return out, nil
}

// number accepts JSON numbers and numeric strings.
func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func text(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
