package sizing

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultPanelWattage     = 400.0 // W per panel
	DefaultSystemEfficiency = 0.75
	DefaultBackupHours      = 4.0
	DefaultInverterRatio    = 1.15
	DefaultCacheSize        = 128
)

var (
	ErrInvalidIrradiance  = errors.New("solar irradiance must be positive")
	ErrInvalidConsumption = errors.New("daily consumption must be positive")
)

// Params are the engineering constants used by the calculator.
type Params struct {
	PanelWattage     float64 // W
	SystemEfficiency float64 // 0-1, combined derate for inverter, wiring, soiling, temperature
	BackupHours      float64 // hours of daily consumption held in the battery
	InverterRatio    float64 // inverter kW per array kW
	CacheSize        int
}

// DefaultParams returns the residential defaults.
func DefaultParams() Params {
	return Params{
		PanelWattage:     DefaultPanelWattage,
		SystemEfficiency: DefaultSystemEfficiency,
		BackupHours:      DefaultBackupHours,
		InverterRatio:    DefaultInverterRatio,
		CacheSize:        DefaultCacheSize,
	}
}

// Validate checks that params describe a physically meaningful system.
func (p Params) Validate() error {
	if p.PanelWattage <= 0 {
		return fmt.Errorf("panelWattage must be > 0, got %v", p.PanelWattage)
	}
	if p.SystemEfficiency <= 0 || p.SystemEfficiency > 1 {
		return fmt.Errorf("systemEfficiency must be in (0, 1], got %v", p.SystemEfficiency)
	}
	if p.BackupHours < 0 {
		return fmt.Errorf("backupHours must be >= 0, got %v", p.BackupHours)
	}
	if p.InverterRatio < 1 {
		return fmt.Errorf("inverterRatio must be >= 1, got %v", p.InverterRatio)
	}
	return nil
}

// Result is the recommended system for one (consumption, irradiance) pair.
type Result struct {
	SystemKW           float64 `json:"system_kw"`
	PanelCount         int     `json:"panels"`
	InverterKW         float64 `json:"inverter_kw"`
	BatteryKWh         float64 `json:"battery_kwh"`
	DailyGenerationKWh float64 `json:"daily_generation_kwh"`
}

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// compute is the uncached sizing formula.
func compute(p Params, dailyKWh, irradiance float64) Result {
	systemKW := dailyKWh / (irradiance * p.SystemEfficiency)
	// Floor rather than round: never promise more panels than the array needs.
	panels := int(math.Floor(systemKW * 1000 / p.PanelWattage))
	return Result{
		SystemKW:           Round(systemKW, 2),
		PanelCount:         panels,
		InverterKW:         Round(systemKW*p.InverterRatio, 2),
		BatteryKWh:         Round(dailyKWh*p.BackupHours, 1),
		DailyGenerationKWh: Round(systemKW*irradiance*p.SystemEfficiency, 2),
	}
}

// Calculator sizes systems and memoizes results by exact input pair.
// Callers should round inputs (see Round) before calling so equal requests
// share cache entries. Safe for concurrent use.
type Calculator struct {
	params Params
	cache  *lru
}

// NewCalculator creates a Calculator. A non-positive CacheSize falls back to
// DefaultCacheSize.
func NewCalculator(p Params) (*Calculator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	size := p.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Calculator{params: p, cache: newLRU(size)}, nil
}

// Params returns the calculator's constants.
func (c *Calculator) Params() Params {
	return c.params
}

// Calculate returns the system sizing for dailyKWh of consumption at the given
// daily irradiance (kWh/m²/day, i.e. peak sun hours).
func (c *Calculator) Calculate(dailyKWh, irradiance float64) (Result, error) {
	if !(irradiance > 0) || math.IsInf(irradiance, 0) {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidIrradiance, irradiance)
	}
	if !(dailyKWh > 0) || math.IsInf(dailyKWh, 0) {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidConsumption, dailyKWh)
	}

	key := cacheKey{dailyKWh: dailyKWh, irradiance: irradiance}
	if r, ok := c.cache.get(key); ok {
		return r, nil
	}
	r := compute(c.params, dailyKWh, irradiance)
	c.cache.put(key, r)
	return r, nil
}

// Stats returns cache counters.
func (c *Calculator) Stats() CacheStats {
	return c.cache.stats()
}
