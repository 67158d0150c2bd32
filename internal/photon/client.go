package photon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nir0k/mediageo/internal/location"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://photon.komoot.io"
	userAgent      = "mediageo"
)

// Options configures the reverse geocoder.
type Options struct {
	BaseURL string
	Lang    string
	// RateLimit is requests per second; defaults to 1 for the public instance.
	RateLimit  float64
	Timeout    time.Duration
	Properties Properties
	HTTPClient *http.Client
}

// Properties names the keys read from features[0].properties.
type Properties struct {
	Country     string
	City        string
	CountryCode string
}

// Client performs reverse geocoding against a Photon instance with caching
// and rate limiting.
type Client struct {
	httpClient *http.Client
	baseURL    string
	lang       string
	props      Properties
	limiter    *rate.Limiter

	cacheMutex sync.RWMutex
	cache      map[string]location.Place
}

// New returns a configured client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid photon URL: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limit := opts.RateLimit
	if limit <= 0 {
		limit = 1
	}

	props := opts.Properties
	if props.Country == "" {
		props.Country = "country"
	}
	if props.City == "" {
		props.City = "city"
	}
	if props.CountryCode == "" {
		props.CountryCode = "countrycode"
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		lang:       strings.TrimSpace(opts.Lang),
		props:      props,
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		cache:      make(map[string]location.Place),
	}, nil
}

// Reverse implements location.Geocoder.
func (c *Client) Reverse(ctx context.Context, coord location.Coordinate) (location.Place, error) {
	// Rounded to avoid cache fragmentation (~11m).
	key := fmt.Sprintf("%.4f,%.4f", coord.Latitude, coord.Longitude)

	c.cacheMutex.RLock()
	if cached, ok := c.cache[key]; ok {
		c.cacheMutex.RUnlock()
		return cached, nil
	}
	c.cacheMutex.RUnlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return location.Place{}, location.LimiterError(ctx, "photon rate limit", err)
	}

	place, err := c.fetch(ctx, coord)
	if err != nil {
		return location.Place{}, err
	}

	c.cacheMutex.Lock()
	c.cache[key] = place
	c.cacheMutex.Unlock()
	return place, nil
}

type featureCollection struct {
	Features []struct {
		Properties map[string]json.RawMessage `json:"properties"`
	} `json:"features"`
}

func (c *Client) fetch(ctx context.Context, coord location.Coordinate) (location.Place, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	q.Set("limit", "1")
	if c.lang != "" {
		q.Set("lang", c.lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return location.Place{}, fmt.Errorf("build photon request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	const op = "photon reverse"
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return location.Place{}, &location.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return location.Place{}, &location.TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return location.Place{}, &location.TransportError{Op: op, Err: err}
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return location.Place{}, fmt.Errorf("decode photon response: %w", err)
	}
	if len(fc.Features) == 0 {
		return location.Place{}, nil
	}
	return c.extractPlace(fc.Features[0].Properties), nil
}

// extractPlace picks the most specific settlement name available.
func (c *Client) extractPlace(props map[string]json.RawMessage) location.Place {
	city := firstNonEmpty(
		str(props[c.props.City]),
		str(props["town"]),
		str(props["village"]),
		str(props["locality"]),
	)
	return location.Place{
		Country:     str(props[c.props.Country]),
		City:        city,
		CountryCode: strings.ToUpper(str(props[c.props.CountryCode])),
	}
}

func str(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// Returns the first non-empty string in the list.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
