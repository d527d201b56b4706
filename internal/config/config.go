package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

// Config is the top-level configuration for the solar advisor service.
type Config struct {
	APIServer   APIServerConfig   `yaml:"apiServer"`
	Sizing      SizingConfig      `yaml:"sizing"`
	Tariff      TariffConfig      `yaml:"tariff"`
	Assumptions AssumptionsConfig `yaml:"assumptions"`
	Validation  recommend.Limits  `yaml:"validation"`
	Geocoder    GeocoderConfig    `yaml:"geocoder"`
	Irradiance  IrradianceConfig  `yaml:"irradiance"`
	LLM         LLMConfig         `yaml:"llm"`
	Database    DatabaseConfig    `yaml:"database"`
	Breaker     BreakerConfig     `yaml:"breaker"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

type APIServerConfig struct {
	Address         string        `yaml:"address"`
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

type SizingConfig struct {
	PanelWattage     float64 `yaml:"panelWattage"`     // W
	SystemEfficiency float64 `yaml:"systemEfficiency"` // 0-1
	BackupHours      float64 `yaml:"backupHours"`
	InverterRatio    float64 `yaml:"inverterRatio"`
	CacheSize        int     `yaml:"cacheSize"`
}

// Params converts the section to calculator params.
func (s SizingConfig) Params() sizing.Params {
	return sizing.Params{
		PanelWattage:     s.PanelWattage,
		SystemEfficiency: s.SystemEfficiency,
		BackupHours:      s.BackupHours,
		InverterRatio:    s.InverterRatio,
		CacheSize:        s.CacheSize,
	}
}

type TariffConfig struct {
	Slabs     []tariff.Slab `yaml:"slabs"`
	CostPerKW float64       `yaml:"costPerKW"` // installed cost per kW of array
	Currency  string        `yaml:"currency"`
}

type AssumptionsConfig struct {
	DaysPerMonth    float64 `yaml:"daysPerMonth"`
	SystemType      string  `yaml:"systemType"`
	PanelTechnology string  `yaml:"panelTechnology"`
}

type GeocoderConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	UserAgent string        `yaml:"userAgent"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
}

type IrradianceConfig struct {
	Provider      string        `yaml:"provider"` // "openmeteo" or "solcast"
	OpenMeteoURL  string        `yaml:"openMeteoURL"`
	SolcastURL    string        `yaml:"solcastURL"`
	SolcastAPIKey string        `yaml:"solcastAPIKey"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
}

type LLMConfig struct {
	APIKey    string        `yaml:"apiKey"`
	BaseURL   string        `yaml:"baseURL"` // empty uses the Anthropic default
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"maxTokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	Path           string `yaml:"path"`
	RetentionDays  int    `yaml:"retentionDays"`
	WriterCapacity int    `yaml:"writerCapacity"`
}

type BreakerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Threshold float64       `yaml:"threshold"` // failure rate (0.0-1.0) that trips a service
	Window    time.Duration `yaml:"window"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

type MaintenanceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression
}

// DefaultConfig returns a Config with sensible defaults.
// API keys and the database path can be set via environment variables.
func DefaultConfig() *Config {
	cfg := &Config{
		APIServer: APIServerConfig{
			Address:         "0.0.0.0",
			Port:            8000,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Sizing: SizingConfig{
			PanelWattage:     sizing.DefaultPanelWattage,
			SystemEfficiency: sizing.DefaultSystemEfficiency,
			BackupHours:      sizing.DefaultBackupHours,
			InverterRatio:    sizing.DefaultInverterRatio,
			CacheSize:        sizing.DefaultCacheSize,
		},
		Tariff: TariffConfig{
			Slabs:     tariff.DefaultSlabs(),
			CostPerKW: recommend.DefaultCostPerKW,
			Currency:  recommend.DefaultCurrency,
		},
		Assumptions: AssumptionsConfig{
			DaysPerMonth:    recommend.DefaultDaysPerMonth,
			SystemType:      recommend.DefaultSystemType,
			PanelTechnology: recommend.DefaultPanelTechnology,
		},
		Validation: recommend.DefaultLimits(),
		Geocoder: GeocoderConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "solaradvisor/1.0",
			Timeout:   10 * time.Second,
			CacheTTL:  30 * 24 * time.Hour,
		},
		Irradiance: IrradianceConfig{
			Provider:     "openmeteo",
			OpenMeteoURL: "https://api.open-meteo.com",
			SolcastURL:   "https://api.solcast.com.au",
			Timeout:      15 * time.Second,
			MaxRetries:   2,
			CacheTTL:     6 * time.Hour,
		},
		LLM: LLMConfig{
			Model:     "claude-sonnet-4-6",
			MaxTokens: 512,
			Timeout:   20 * time.Second,
		},
		Database: DatabaseConfig{
			Path:           "/data/solaradvisor.db",
			RetentionDays:  90,
			WriterCapacity: 256,
		},
		Breaker: BreakerConfig{
			Enabled:   true,
			Threshold: 0.5,
			Window:    2 * time.Minute,
			Cooldown:  30 * time.Second,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "@hourly",
		},
	}
	cfg.applyEnvOverrides()
	return cfg
}

// LoadFromFile loads config from a YAML file, overlaying on defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides fills in secrets and deployment settings from the
// environment. Empty values in the file never clear a set variable.
func (c *Config) applyEnvOverrides() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Irradiance.SolcastAPIKey == "" {
		c.Irradiance.SolcastAPIKey = os.Getenv("SOLCAST_API_KEY")
	}
	if v := os.Getenv("SOLAR_ADVISOR_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIServer.Port = port
		}
	}
}

// Validate checks the config for errors, returning the first one found.
func (c *Config) Validate() error {
	if c.APIServer.Port < 1 || c.APIServer.Port > 65535 {
		return fmt.Errorf("apiServer.port must be between 1 and 65535, got %d", c.APIServer.Port)
	}
	if err := c.Sizing.Params().Validate(); err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	if err := tariff.ValidateSlabs(c.Tariff.Slabs); err != nil {
		return fmt.Errorf("tariff: %w", err)
	}
	if c.Tariff.CostPerKW < 0 {
		return fmt.Errorf("tariff.costPerKW must be >= 0, got %.2f", c.Tariff.CostPerKW)
	}
	if c.Assumptions.DaysPerMonth <= 0 {
		return fmt.Errorf("assumptions.daysPerMonth must be > 0, got %.1f", c.Assumptions.DaysPerMonth)
	}
	switch c.Irradiance.Provider {
	case "openmeteo":
	case "solcast":
		if c.Irradiance.SolcastAPIKey == "" {
			return fmt.Errorf("irradiance.solcastAPIKey is required for the solcast provider: set in config file or SOLCAST_API_KEY env var")
		}
	default:
		return fmt.Errorf("invalid irradiance provider %q: must be openmeteo or solcast", c.Irradiance.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.apiKey is required: set in config file or ANTHROPIC_API_KEY env var")
	}
	return nil
}
