package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/solaradvisor/solaradvisor/internal/apiserver"
	"github.com/solaradvisor/solaradvisor/internal/config"
	"github.com/solaradvisor/solaradvisor/internal/geocode"
	"github.com/solaradvisor/solaradvisor/internal/irradiance"
	"github.com/solaradvisor/solaradvisor/internal/llm"
	"github.com/solaradvisor/solaradvisor/internal/maintenance"
	"github.com/solaradvisor/solaradvisor/internal/store"
	"github.com/solaradvisor/solaradvisor/internal/upstream"
	"github.com/solaradvisor/solaradvisor/pkg/recommend"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

func main() {
	var configFile string
	var devel bool

	flag.StringVar(&configFile, "config", "/etc/solaradvisor/config.yaml", "Path to config file")
	flag.BoolVar(&devel, "zap-devel", false, "Use development logging (console encoder, debug level)")
	flag.Parse()

	zl, err := newZap(devel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()
	setupLog := zapr.NewLogger(zl).WithName("setup")

	if err := run(configFile, zapr.NewLogger(zl), setupLog); err != nil {
		setupLog.Error(err, "Exiting")
		zl.Sync()
		os.Exit(1)
	}
}

func newZap(devel bool) (*zap.Logger, error) {
	if devel {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(configFile string, log, setupLog logr.Logger) error {
	// Load configuration
	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		setupLog.Error(err, "Failed to load config file, falling back to defaults/env", "path", configFile)
		cfg = config.DefaultConfig()
	}
	if verr := config.ValidateDetailed(cfg); verr.HasErrors() {
		return fmt.Errorf("invalid configuration: %w", verr)
	}

	setupLog.Info("Starting solar advisor",
		"port", cfg.APIServer.Port,
		"irradianceProvider", cfg.Irradiance.Provider,
		"model", cfg.LLM.Model,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open SQLite database, falling back to a private in-memory one so
	// caches and history still work for the life of the process.
	db, err := store.Open(store.Config{Path: cfg.Database.Path, RetentionDays: cfg.Database.RetentionDays})
	if err != nil {
		setupLog.Info("Database open failed, continuing with in-memory database", "path", cfg.Database.Path, "error", err.Error())
		db, err = store.Open(store.Config{Path: ":memory:", RetentionDays: cfg.Database.RetentionDays})
		if err != nil {
			return fmt.Errorf("opening in-memory database: %w", err)
		}
	} else {
		setupLog.Info("Database opened", "path", cfg.Database.Path)
	}
	defer db.Close()

	// The writer outlives the signal context so requests finishing during
	// shutdown still persist; Drain stops it before the DB closes.
	writer := store.NewWriter(db, cfg.Database.WriterCapacity).WithLogger(log.WithName("writer"))
	writer.Run(context.Background())
	defer writer.Drain()

	history := store.NewHistory(db, writer).WithLogger(log.WithName("history"))
	geoCache := store.NewCache(db, "geocode", cfg.Geocoder.CacheTTL)
	irrCache := store.NewCache(db, "irradiance", cfg.Irradiance.CacheTTL)

	// Upstream clients
	geocoder := geocode.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout,
		geocode.WithCache(geoCache),
		geocode.WithLogger(log.WithName("geocode")),
	)
	source := newIrradianceSource(cfg, irrCache, log.WithName("irradiance"))
	advisor, err := llm.NewAdvisor(llm.Config{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	}, llm.WithLogger(log.WithName("llm")))
	if err != nil {
		return fmt.Errorf("creating LLM advisor: %w", err)
	}

	var breaker *upstream.Breaker
	if cfg.Breaker.Enabled {
		breaker = upstream.NewBreaker(cfg.Breaker.Threshold, cfg.Breaker.Window, cfg.Breaker.Cooldown)
	}

	// Calculators
	calc, err := sizing.NewCalculator(cfg.Sizing.Params())
	if err != nil {
		return fmt.Errorf("creating sizing calculator: %w", err)
	}
	schedule, err := tariff.NewSchedule(cfg.Tariff.Slabs)
	if err != nil {
		return fmt.Errorf("creating tariff schedule: %w", err)
	}

	assembler, err := recommend.NewAssembler(recommend.Options{
		Calculator:      calc,
		Tariff:          schedule,
		CostPerKW:       cfg.Tariff.CostPerKW,
		Currency:        cfg.Tariff.Currency,
		SystemType:      cfg.Assumptions.SystemType,
		PanelTechnology: cfg.Assumptions.PanelTechnology,
		DaysPerMonth:    cfg.Assumptions.DaysPerMonth,
		Limits:          cfg.Validation,
		Geocoder:        &upstream.Geocoder{Next: geocoder, Breaker: breaker},
		Irradiance:      &upstream.Irradiance{Next: source, Breaker: breaker},
		LLM:             &upstream.LanguageModel{Next: advisor, Breaker: breaker},
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("creating assembler: %w", err)
	}

	// Scheduled maintenance
	maint := &maintenance.Runner{
		History: db,
		Caches: map[string]maintenance.Purger{
			"geocode":    geoCache,
			"irradiance": irrCache,
		},
		Sizing: calc,
		Writer: writer,
		Log:    log.WithName("maintenance"),
	}
	if cfg.Maintenance.Enabled {
		if err := maint.Start(ctx, cfg.Maintenance.Schedule); err != nil {
			return err
		}
	}

	// Start REST API server
	deps := apiserver.Deps{
		Config:      cfg,
		Recommender: assembler,
		History:     history,
		Calculator:  calc,
		Tariff:      schedule,
		DB:          db,
		Logger:      log,
	}
	if breaker != nil {
		deps.Breaker = breaker
	}
	srv := apiserver.NewServer(deps)

	errCh := make(chan error, 1)
	go func() {
		setupLog.Info("Starting API server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		setupLog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.APIServer.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		setupLog.Error(err, "API server shutdown incomplete")
	}
	return nil
}

func newIrradianceSource(cfg *config.Config, cache irradiance.Cache, log logr.Logger) recommend.IrradianceSource {
	opts := []irradiance.Option{
		irradiance.WithCache(cache),
		irradiance.WithRetries(cfg.Irradiance.MaxRetries, irradiance.DefaultRetryDelay),
		irradiance.WithLogger(log),
	}
	if cfg.Irradiance.Provider == "solcast" {
		return irradiance.NewSolcast(cfg.Irradiance.SolcastURL, cfg.Irradiance.SolcastAPIKey, cfg.Irradiance.Timeout, opts...)
	}
	return irradiance.NewOpenMeteo(cfg.Irradiance.OpenMeteoURL, cfg.Irradiance.Timeout, opts...)
}
