package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solaradvisor/solaradvisor/internal/apiserver/handler"
	"github.com/solaradvisor/solaradvisor/internal/config"
	"github.com/solaradvisor/solaradvisor/internal/report"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

// Deps are the collaborators the API serves. History, DB and Breaker may
// be nil.
type Deps struct {
	Config      *config.Config
	Recommender handler.Recommender
	History     handler.HistoryStore
	Calculator  *sizing.Calculator
	Tariff      *tariff.Schedule
	DB          handler.Pinger
	Breaker     handler.BreakerStatus
	Logger      logr.Logger
}

// NewRouter creates the API router with all endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(d.Config.APIServer.AllowedOrigins))
	r.Use(instrument)

	recHandler := handler.NewRecommendationHandler(d.Recommender, d.History, report.NewRenderer(d.Tariff),
		d.Config.APIServer.RequestTimeout, d.Logger)
	calcHandler := handler.NewCalculatorHandler(d.Calculator, d.Tariff, d.Config.Tariff.Currency)
	configHandler := handler.NewConfigHandler(d.Config)
	healthHandler := handler.NewHealthHandler(d.DB, d.Breaker)

	r.Get("/healthz", healthHandler.Get)
	r.Handle("/metrics", promhttp.Handler())

	// Path served by the first release of the API.
	r.Post("/recommend", recHandler.Create)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommend", recHandler.Create)

		// History (literal routes before parameterized)
		r.Get("/recommendations", recHandler.List)
		r.Get("/recommendations/{id}", recHandler.Get)
		r.Get("/recommendations/{id}/report", recHandler.Report)

		// Calculators
		r.Post("/sizing", calcHandler.Sizing)
		r.Get("/tariff", calcHandler.Tariff)

		// Config
		r.Get("/config", configHandler.Get)
	})

	return r
}
