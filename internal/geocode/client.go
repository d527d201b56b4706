// Package geocode resolves free-text place names to coordinates using a
// Nominatim-compatible search API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/solaradvisor/solaradvisor/internal/metrics"
	"github.com/solaradvisor/solaradvisor/pkg/recommend"
)

// HTTPClient allows mocking http.Client in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cache stores resolved coordinates by normalized location.
type Cache interface {
	Get(key string, out any) bool
	Put(key string, v any)
}

// Client is a Nominatim search client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient HTTPClient
	cache      Cache
	log        logr.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(hc HTTPClient) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache enables result caching.
func WithCache(cache Cache) ClientOption {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a Client for the search API at baseURL. Nominatim's
// usage policy requires an identifying userAgent.
func NewClient(baseURL, userAgent string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// normalize folds case and whitespace so equivalent queries share a cache entry.
func normalize(location string) string {
	return strings.ToLower(strings.Join(strings.Fields(location), " "))
}

// Resolve returns the coordinates of the best match for location, or
// recommend.ErrLocationNotFound when the search has no results.
func (c *Client) Resolve(ctx context.Context, location string) (recommend.Coordinates, error) {
	key := normalize(location)
	if key == "" {
		return recommend.Coordinates{}, recommend.ErrLocationNotFound
	}

	if c.cache != nil {
		var cached recommend.Coordinates
		if c.cache.Get(key, &cached) {
			metrics.UpstreamCacheHits.WithLabelValues("geocoder").Inc()
			c.log.V(2).Info("Using cached coordinates", "location", key)
			return cached, nil
		}
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return recommend.Coordinates{}, fmt.Errorf("creating geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return recommend.Coordinates{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return recommend.Coordinates{}, fmt.Errorf("geocoder rate limit exceeded")
	default:
		return recommend.Coordinates{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return recommend.Coordinates{}, fmt.Errorf("decoding geocode response: %w", err)
	}
	if len(results) == 0 {
		return recommend.Coordinates{}, fmt.Errorf("%w: %q", recommend.ErrLocationNotFound, location)
	}

	coords, err := parseCoordinates(results[0])
	if err != nil {
		return recommend.Coordinates{}, err
	}

	c.log.V(1).Info("Resolved location", "location", location, "match", results[0].DisplayName,
		"lat", coords.Latitude, "lon", coords.Longitude)
	if c.cache != nil {
		c.cache.Put(key, coords)
	}
	return coords, nil
}

func parseCoordinates(r searchResult) (recommend.Coordinates, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return recommend.Coordinates{}, fmt.Errorf("invalid latitude %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return recommend.Coordinates{}, fmt.Errorf("invalid longitude %q: %w", r.Lon, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return recommend.Coordinates{}, fmt.Errorf("coordinates out of range: %v, %v", lat, lon)
	}
	return recommend.Coordinates{Latitude: lat, Longitude: lon}, nil
}
