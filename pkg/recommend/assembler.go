package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/solaradvisor/solaradvisor/pkg/sizing"
	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

const (
	DefaultDaysPerMonth    = 30
	DefaultSystemType      = "On-Grid with Battery Backup"
	DefaultPanelTechnology = "Monocrystalline"
	DefaultCurrency        = "PKR"
	DefaultCostPerKW       = 180000.0
)

// Options wires an Assembler to its calculators and collaborators.
type Options struct {
	Calculator *sizing.Calculator
	Tariff     *tariff.Schedule

	CostPerKW       float64
	Currency        string
	SystemType      string
	PanelTechnology string
	DaysPerMonth    float64
	Limits          Limits

	Geocoder   Geocoder
	Irradiance IrradianceSource
	LLM        LanguageModel

	Logger logr.Logger
	Now    func() time.Time
}

// Assembler turns a Query into a Recommendation.
type Assembler struct {
	opts Options
	log  logr.Logger
}

// NewAssembler validates opts and fills defaults for unset presentation fields.
func NewAssembler(opts Options) (*Assembler, error) {
	if opts.Calculator == nil {
		return nil, fmt.Errorf("sizing calculator is required")
	}
	if opts.Tariff == nil {
		return nil, fmt.Errorf("tariff schedule is required")
	}
	if opts.Geocoder == nil || opts.Irradiance == nil || opts.LLM == nil {
		return nil, fmt.Errorf("geocoder, irradiance source and language model are required")
	}
	if opts.DaysPerMonth <= 0 {
		opts.DaysPerMonth = DefaultDaysPerMonth
	}
	if opts.SystemType == "" {
		opts.SystemType = DefaultSystemType
	}
	if opts.PanelTechnology == "" {
		opts.PanelTechnology = DefaultPanelTechnology
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{opts: opts, log: opts.Logger.WithName("assembler")}, nil
}

// Recommend validates q, resolves its location and consumption, and returns
// either a sizing or a narrative recommendation.
func (a *Assembler) Recommend(ctx context.Context, q Query) (*Recommendation, error) {
	if err := a.opts.Limits.Validate(&q); err != nil {
		return nil, err
	}
	log := a.log.WithValues("location", q.Location)

	coords, err := a.opts.Geocoder.Resolve(ctx, q.Location)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return nil, newError(CodeLocationResolution, "location lookup failed", err)
		}
		return nil, newError(CodeLocationResolution, "location lookup failed: geocoder unavailable", err)
	}
	loc := Location{Name: q.Location, Coordinates: coords}

	daily, source, ok := a.resolveConsumption(ctx, log, q)
	if !ok {
		return a.narrative(ctx, q)
	}

	irradiance, err := a.opts.Irradiance.AverageDailyIrradiance(ctx, loc)
	if err != nil {
		return nil, newError(CodeDataSourceUnavailable, "solar data unavailable", err)
	}
	if !(irradiance > 0) {
		return nil, newError(CodeDataSourceUnavailable, "solar data unavailable",
			fmt.Errorf("%w: irradiance %v", ErrNoIrradianceData, irradiance))
	}

	daily = sizing.Round(daily, 2)
	irradiance = sizing.Round(irradiance, 2)
	if daily <= 0 {
		return nil, InvalidInput("daily consumption rounds to zero")
	}
	if irradiance <= 0 {
		return nil, newError(CodeDataSourceUnavailable, "solar data unavailable", ErrNoIrradianceData)
	}

	system, err := a.opts.Calculator.Calculate(daily, irradiance)
	if err != nil {
		return nil, newError(CodeInternal, "sizing failed", err)
	}

	monthlyBasis := daily * a.opts.DaysPerMonth
	if q.MonthlyKWh != nil {
		monthlyBasis = *q.MonthlyKWh
	}
	payback := ComputePayback(a.opts.Tariff, monthlyBasis, daily, system.SystemKW, a.opts.CostPerKW, a.opts.Currency)

	log.V(1).Info("Sized system",
		"source", source,
		"dailyKWh", daily,
		"irradiance", irradiance,
		"systemKW", system.SystemKW,
		"panels", system.PanelCount,
	)

	return &Recommendation{
		Kind:      KindSizing,
		Location:  q.Location,
		Summary:   fmt.Sprintf("%gkW Solar System Recommendation", system.SystemKW),
		Metrics:   a.sizingMetrics(daily, irradiance, system, payback),
		CreatedAt: a.opts.Now().UTC(),
		Sizing: &SizingDetail{
			Coordinates:       coords,
			ConsumptionSource: source,
			DailyKWh:          daily,
			IrradianceKWhM2:   irradiance,
			System:            system,
			Payback:           payback,
		},
	}, nil
}

// resolveConsumption applies the first usable source: the monthly figure,
// then LLM extraction from the usage prompt. ok is false when neither works.
func (a *Assembler) resolveConsumption(ctx context.Context, log logr.Logger, q Query) (float64, ConsumptionSource, bool) {
	if q.MonthlyKWh != nil && *q.MonthlyKWh > 0 {
		return *q.MonthlyKWh / a.opts.DaysPerMonth, SourceMonthlyFigure, true
	}
	if q.UsagePrompt == nil {
		return 0, "", false
	}
	est, err := a.opts.LLM.ExtractDailyConsumption(ctx, *q.UsagePrompt)
	if err != nil {
		log.Info("Consumption extraction failed, falling back to narrative", "reason", err.Error())
		return 0, "", false
	}
	if !(est > 0) {
		log.Info("Consumption extraction returned no usable figure, falling back to narrative", "estimate", est)
		return 0, "", false
	}
	return est, SourceLLMEstimate, true
}

func (a *Assembler) narrative(ctx context.Context, q Query) (*Recommendation, error) {
	prompt := ""
	if q.UsagePrompt != nil {
		prompt = *q.UsagePrompt
	}
	text, err := a.opts.LLM.GenerateNarrative(ctx, NarrativeRequest{
		Location:    q.Location,
		UsagePrompt: prompt,
	})
	if err != nil {
		return nil, newError(CodeDownstreamFailed, "LLM failed", err)
	}
	return &Recommendation{
		Kind:     KindNarrative,
		Location: q.Location,
		Summary:  "AI-based Solar Suggestion",
		Metrics: []Metric{{
			Name:        "llm_summary",
			Description: "AI-generated system recommendation",
			Value:       text,
			Unit:        "",
		}},
		CreatedAt: a.opts.Now().UTC(),
		Narrative: text,
	}, nil
}

func (a *Assembler) sizingMetrics(daily, irradiance float64, system sizing.Result, payback *Payback) []Metric {
	params := a.opts.Calculator.Params()
	metrics := []Metric{
		{"daily_consumption", "Estimated daily electricity usage", daily, "kWh"},
		{"solar_hours", "Average daily peak sun hours", irradiance, "hours"},
		{"system_size", "Recommended solar system size", system.SystemKW, "kW"},
		{"solar_panels", fmt.Sprintf("%gW panels required", params.PanelWattage), system.PanelCount, "panels"},
		{"inverter_size", "Recommended inverter capacity", system.InverterKW, "kW"},
		{"battery_storage", "Recommended battery backup", system.BatteryKWh, "kWh"},
		{"system_type", "Suggested solar system configuration", a.opts.SystemType, ""},
		{"panel_type", "Recommended solar panel type", fmt.Sprintf("%gW %s", params.PanelWattage, a.opts.PanelTechnology), ""},
		{"backup_hours", "Battery backup duration", params.BackupHours, "hours"},
	}
	if payback == nil {
		return metrics
	}
	metrics = append(metrics,
		Metric{"estimated_cost", "Estimated installed system cost", payback.SystemCost, payback.Currency},
		Metric{"daily_savings", "Estimated daily bill savings", payback.DailySavings, payback.Currency},
	)
	if payback.Years != nil {
		metrics = append(metrics, Metric{"payback_period", "Estimated return on investment duration", *payback.Years, "years"})
	}
	return metrics
}
