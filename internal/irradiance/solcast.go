package irradiance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
)

// Solcast reads global horizontal irradiance forecasts from the Solcast
// world radiation API using bearer-token auth.
type Solcast struct {
	base
	hours int
}

// NewSolcast creates a Solcast client authenticating with apiKey.
func NewSolcast(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Solcast {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}))
	return &Solcast{
		base:  newBase("solcast", strings.TrimRight(baseURL, "/"), hc, opts),
		hours: 168,
	}
}

type solcastResponse struct {
	Forecasts []struct {
		PeriodEnd string  `json:"period_end"`
		Period    string  `json:"period"`
		GHI       float64 `json:"ghi"` // W/m², mean over the period
	} `json:"forecasts"`
}

// AverageDailyIrradiance returns mean GHI over the forecast horizon
// converted to kWh/m²/day, rounded to two places.
func (c *Solcast) AverageDailyIrradiance(ctx context.Context, loc recommend.Location) (float64, error) {
	return c.average(ctx, loc, c.fetch)
}

func (c *Solcast) fetch(ctx context.Context, coords recommend.Coordinates) (float64, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(coords.Latitude, 'f', 6, 64))
	q.Set("longitude", strconv.FormatFloat(coords.Longitude, 'f', 6, 64))
	q.Set("hours", strconv.Itoa(c.hours))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/world_radiation/forecasts?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating solcast request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("solcast request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{Provider: c.provider, Code: resp.StatusCode}
	}

	var data solcastResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, &decodeError{err}
	}
	if len(data.Forecasts) == 0 {
		return 0, fmt.Errorf("%w: solcast returned no forecasts", recommend.ErrNoIrradianceData)
	}

	sum := 0.0
	for _, f := range data.Forecasts {
		sum += f.GHI
	}
	// Mean power (W/m²) over whole days times 24h is daily energy.
	avg := sizing.Round(sum/float64(len(data.Forecasts))*24/1000, 2)
	c.log.V(1).Info("Fetched irradiance", "periods", len(data.Forecasts), "kwhPerM2", avg)
	return avg, nil
}
