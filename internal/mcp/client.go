package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the advisor API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// APIClient calls the solar advisor REST API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new APIClient targeting the given base URL.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var eb struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &eb) == nil && eb.Error.Code != "" {
			apiErr.Code = eb.Error.Code
			apiErr.Message = eb.Error.Message
		}
		return nil, apiErr
	}
	return json.RawMessage(data), nil
}

// RecommendArgs mirrors the recommend request body.
type RecommendArgs struct {
	Location    string   `json:"location"`
	MonthlyKWh  *float64 `json:"electricity_kwh_per_month,omitempty"`
	UsagePrompt *string  `json:"usage_prompt,omitempty"`
}

// Recommend calls POST /api/v1/recommend.
func (c *APIClient) Recommend(ctx context.Context, args RecommendArgs) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/recommend", args)
}

// Size calls POST /api/v1/sizing.
func (c *APIClient) Size(ctx context.Context, dailyKWh, irradiance float64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/sizing", map[string]float64{
		"daily_kwh":        dailyKWh,
		"solar_irradiance": irradiance,
	})
}

// Tariff calls GET /api/v1/tariff.
func (c *APIClient) Tariff(ctx context.Context, units float64) (json.RawMessage, error) {
	q := url.Values{"units": {strconv.FormatFloat(units, 'f', -1, 64)}}
	return c.do(ctx, http.MethodGet, "/api/v1/tariff?"+q.Encode(), nil)
}

// ListRecommendations calls GET /api/v1/recommendations.
func (c *APIClient) ListRecommendations(ctx context.Context, limit int) (json.RawMessage, error) {
	path := "/api/v1/recommendations"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

// GetRecommendation calls GET /api/v1/recommendations/{id}.
func (c *APIClient) GetRecommendation(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/recommendations/"+url.PathEscape(id), nil)
}

// GetConfig calls GET /api/v1/config.
func (c *APIClient) GetConfig(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/config", nil)
}
