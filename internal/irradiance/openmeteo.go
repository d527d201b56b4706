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

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
)

// MJPerKWh converts MJ/m² to kWh/m².
const MJPerKWh = 3.6

// OpenMeteo reads daily shortwave radiation sums from the Open-Meteo
// forecast API. No API key is required.
type OpenMeteo struct {
	base
}

// NewOpenMeteo creates an Open-Meteo client.
func NewOpenMeteo(baseURL string, timeout time.Duration, opts ...Option) *OpenMeteo {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenMeteo{base: newBase("openmeteo", strings.TrimRight(baseURL, "/"), &http.Client{Timeout: timeout}, opts)}
}

type openMeteoResponse struct {
	Daily struct {
		Time                  []string   `json:"time"`
		ShortwaveRadiationSum []*float64 `json:"shortwave_radiation_sum"` // MJ/m², null for missing days
	} `json:"daily"`
}

// AverageDailyIrradiance returns the mean of the forecast's daily radiation
// sums in kWh/m²/day, rounded to two places. Null days are skipped.
func (c *OpenMeteo) AverageDailyIrradiance(ctx context.Context, loc recommend.Location) (float64, error) {
	return c.average(ctx, loc, c.fetch)
}

func (c *OpenMeteo) fetch(ctx context.Context, coords recommend.Coordinates) (float64, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(coords.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(coords.Longitude, 'f', 4, 64))
	q.Set("daily", "shortwave_radiation_sum")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating open-meteo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("open-meteo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{Provider: c.provider, Code: resp.StatusCode}
	}

	var data openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, &decodeError{err}
	}

	sum, n := 0.0, 0
	for _, v := range data.Daily.ShortwaveRadiationSum {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: open-meteo returned no daily radiation", recommend.ErrNoIrradianceData)
	}
	avg := sizing.Round(sum/float64(n)/MJPerKWh, 2)
	c.log.V(1).Info("Fetched irradiance", "days", n, "kwhPerM2", avg)
	return avg, nil
}
