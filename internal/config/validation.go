package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

// ValidationError collects multiple validation errors.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Add(msg string) {
	e.Errors = append(e.Errors, msg)
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateDetailed performs comprehensive config validation, reporting every
// problem rather than the first.
func ValidateDetailed(cfg *Config) *ValidationError {
	ve := &ValidationError{}

	// API server
	if cfg.APIServer.Port < 1 || cfg.APIServer.Port > 65535 {
		ve.Add("apiServer.port must be between 1 and 65535")
	}
	if cfg.APIServer.RequestTimeout > 0 && cfg.APIServer.RequestTimeout < time.Second {
		ve.Add("apiServer.requestTimeout must be >= 1s when set")
	}

	// Sizing
	if err := cfg.Sizing.Params().Validate(); err != nil {
		ve.Add("sizing: " + err.Error())
	}
	if cfg.Sizing.CacheSize < 0 {
		ve.Add("sizing.cacheSize must be >= 0")
	}

	// Tariff
	if err := tariff.ValidateSlabs(cfg.Tariff.Slabs); err != nil {
		ve.Add("tariff: " + err.Error())
	}
	if cfg.Tariff.CostPerKW < 0 {
		ve.Add("tariff.costPerKW must be >= 0")
	}
	if cfg.Tariff.Currency == "" {
		ve.Add("tariff.currency is required")
	}

	// Assumptions
	if cfg.Assumptions.DaysPerMonth <= 0 || cfg.Assumptions.DaysPerMonth > 31 {
		ve.Add("assumptions.daysPerMonth must be between 0 and 31")
	}

	// Validation limits
	v := cfg.Validation
	if v.MinLocationLength < 1 {
		ve.Add("validation.minLocationLength must be >= 1")
	}
	if v.MinMonthlyKWh <= 0 || v.MaxMonthlyKWh < v.MinMonthlyKWh {
		ve.Add("validation.minMonthlyKWh must be > 0 and <= maxMonthlyKWh")
	}
	if v.MinUsagePromptLength < 1 {
		ve.Add("validation.minUsagePromptLength must be >= 1")
	}

	// Upstreams
	if cfg.Geocoder.BaseURL == "" {
		ve.Add("geocoder.baseURL is required")
	}
	if cfg.Geocoder.UserAgent == "" {
		ve.Add("geocoder.userAgent is required by the Nominatim usage policy")
	}
	switch cfg.Irradiance.Provider {
	case "openmeteo", "solcast":
	default:
		ve.Add(fmt.Sprintf("invalid irradiance provider %q", cfg.Irradiance.Provider))
	}
	if cfg.Irradiance.MaxRetries < 0 {
		ve.Add("irradiance.maxRetries must be >= 0")
	}
	if cfg.LLM.MaxTokens < 1 {
		ve.Add("llm.maxTokens must be >= 1")
	}

	// Breaker
	if cfg.Breaker.Enabled {
		if cfg.Breaker.Threshold <= 0 || cfg.Breaker.Threshold > 1 {
			ve.Add("breaker.threshold must be between 0 and 1")
		}
		if cfg.Breaker.Window <= 0 {
			ve.Add("breaker.window must be > 0")
		}
	}

	// Database
	if cfg.Database.RetentionDays < 0 {
		ve.Add("database.retentionDays must be >= 0")
	}

	// Maintenance
	if cfg.Maintenance.Enabled {
		if _, err := cron.ParseStandard(cfg.Maintenance.Schedule); err != nil {
			ve.Add(fmt.Sprintf("maintenance.schedule %q is invalid: %v", cfg.Maintenance.Schedule, err))
		}
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}
