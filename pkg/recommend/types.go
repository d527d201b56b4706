package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/solaradvisor/solaradvisor/pkg/sizing"
)

// Query is one recommendation request. MonthlyKWh and UsagePrompt are
// optional but at least one must be set.
type Query struct {
	Location    string   `json:"location"`
	MonthlyKWh  *float64 `json:"electricity_kwh_per_month,omitempty"`
	UsagePrompt *string  `json:"usage_prompt,omitempty"`
}

// Kind tags which variant a Recommendation carries.
type Kind string

const (
	// KindSizing carries computed system metrics.
	KindSizing Kind = "sizing"
	// KindNarrative carries a single free-text suggestion, produced when
	// consumption could not be determined numerically.
	KindNarrative Kind = "narrative"
)

// ConsumptionSource records how daily consumption was obtained.
type ConsumptionSource string

const (
	SourceMonthlyFigure ConsumptionSource = "monthly_figure"
	SourceLLMEstimate   ConsumptionSource = "llm_estimate"
)

// Metric is one named value in a recommendation.
type Metric struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       any    `json:"value"`
	Unit        string `json:"unit"`
}

// Recommendation is the assembled response. Exactly one of Sizing or
// Narrative is populated, according to Kind. Metrics is always present so
// clients that only read summary/metrics handle both variants.
type Recommendation struct {
	ID        string    `json:"id,omitempty"`
	Kind      Kind      `json:"kind"`
	Location  string    `json:"location"`
	Summary   string    `json:"summary"`
	Metrics   []Metric  `json:"metrics"`
	CreatedAt time.Time `json:"created_at"`

	Sizing    *SizingDetail `json:"sizing,omitempty"`
	Narrative string        `json:"narrative,omitempty"`
}

// SizingDetail is the structured form of a sizing recommendation.
type SizingDetail struct {
	Coordinates       Coordinates       `json:"coordinates"`
	ConsumptionSource ConsumptionSource `json:"consumption_source"`
	DailyKWh          float64           `json:"daily_kwh"`
	IrradianceKWhM2   float64           `json:"irradiance_kwh_m2_day"`
	System            sizing.Result     `json:"system"`
	Payback           *Payback          `json:"payback,omitempty"`
}

// Metric looks up a metric by name.
func (r *Recommendation) Metric(name string) (Metric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a resolved place.
type Location struct {
	Name        string
	Coordinates Coordinates
}

// ErrLocationNotFound is returned by a Geocoder when the name has no match.
var ErrLocationNotFound = errors.New("location not found")

// ErrNoIrradianceData is returned by an IrradianceSource that answered but
// had nothing usable for the location.
var ErrNoIrradianceData = errors.New("no irradiance data")

// ErrNoEstimate is returned by a LanguageModel when the text contains no
// usable consumption figure.
var ErrNoEstimate = errors.New("no consumption estimate")

// Geocoder resolves a free-text location to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, location string) (Coordinates, error)
}

// IrradianceSource returns average daily irradiance in kWh/m²/day.
type IrradianceSource interface {
	AverageDailyIrradiance(ctx context.Context, loc Location) (float64, error)
}

// NarrativeRequest is the context handed to the language model when no
// numeric consumption is available.
type NarrativeRequest struct {
	Location    string
	UsagePrompt string
}

// LanguageModel is the text service used for extraction and narrative fallback.
type LanguageModel interface {
	ExtractDailyConsumption(ctx context.Context, text string) (float64, error)
	GenerateNarrative(ctx context.Context, req NarrativeRequest) (string, error)
}
