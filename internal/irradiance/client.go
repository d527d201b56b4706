// Package irradiance fetches average daily solar irradiance for a location.
package irradiance

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/solaradvisor/solaradvisor/internal/metrics"
	"github.com/solaradvisor/solaradvisor/pkg/recommend"
)

// HTTPClient allows mocking http.Client in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cache stores irradiance readings by provider and rounded coordinates.
type Cache interface {
	Get(key string, out any) bool
	Put(key string, v any)
}

const (
	DefaultRetryDelay = 500 * time.Millisecond
	maxBackoff        = 10 * time.Second
)

// base holds what every provider shares: transport, cache and retry policy.
type base struct {
	provider   string
	baseURL    string
	httpClient HTTPClient
	cache      Cache
	maxRetries int
	retryDelay time.Duration
	log        logr.Logger
}

// Option customizes a provider client.
type Option func(*base)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(b *base) { b.httpClient = hc }
}

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(b *base) { b.cache = c }
}

// WithRetries sets the retry count and initial backoff.
func WithRetries(maxRetries int, delay time.Duration) Option {
	return func(b *base) {
		if maxRetries < 0 {
			maxRetries = 0
		}
		b.maxRetries = maxRetries
		if delay > 0 {
			b.retryDelay = delay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(b *base) { b.log = l }
}

func newBase(provider, baseURL string, hc HTTPClient, opts []Option) base {
	b := base{
		provider:   provider,
		baseURL:    baseURL,
		httpClient: hc,
		maxRetries: 2,
		retryDelay: DefaultRetryDelay,
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.WithValues("provider", provider)
	return b
}

func (b *base) cacheKey(loc recommend.Location) string {
	return fmt.Sprintf("%s:%.2f,%.2f", b.provider, loc.Coordinates.Latitude, loc.Coordinates.Longitude)
}

// average serves loc from cache or calls fetch with retries.
func (b *base) average(ctx context.Context, loc recommend.Location, fetch func(context.Context, recommend.Coordinates) (float64, error)) (float64, error) {
	key := b.cacheKey(loc)
	if b.cache != nil {
		var v float64
		if b.cache.Get(key, &v) {
			metrics.UpstreamCacheHits.WithLabelValues("irradiance").Inc()
			b.log.V(2).Info("Using cached irradiance", "key", key, "kwhPerM2", v)
			return v, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		v, err := fetch(ctx, loc.Coordinates)
		if err == nil {
			if b.cache != nil {
				b.cache.Put(key, v)
			}
			return v, nil
		}
		lastErr = err
		if !retryable(err) || attempt == b.maxRetries {
			break
		}
		b.log.V(1).Info("Irradiance request failed, retrying",
			"attempt", attempt+1, "maxRetries", b.maxRetries, "error", err.Error())

		timer := time.NewTimer(b.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return 0, lastErr
}

// backoff is exponential with ±20% jitter, capped at maxBackoff.
func (b *base) backoff(attempt int) time.Duration {
	d := b.retryDelay * time.Duration(1<<uint(attempt))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := float64(d) * 0.2 * (rand.Float64()*2 - 1)
	return d + time.Duration(jitter)
}

// StatusError is a non-200 response from a provider.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Code)
}

// retryable reports whether err is worth another attempt: server errors,
// rate limiting and transport failures are; client errors, empty data and
// cancellation are not.
func retryable(err error) bool {
	if errors.Is(err, recommend.ErrNoIrradianceData) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var de *decodeError
	return !errors.As(err, &de)
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decoding response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }
