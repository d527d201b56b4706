package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

// CalculatorHandler exposes the sizing and tariff calculators without any
// upstream lookups.
type CalculatorHandler struct {
	calc     *sizing.Calculator
	schedule *tariff.Schedule
	currency string
}

func NewCalculatorHandler(calc *sizing.Calculator, schedule *tariff.Schedule, currency string) *CalculatorHandler {
	return &CalculatorHandler{calc: calc, schedule: schedule, currency: currency}
}

type sizingRequest struct {
	DailyKWh   float64 `json:"daily_kwh"`
	Irradiance float64 `json:"solar_irradiance"`
}

// Sizing handles POST /api/v1/sizing.
func (h *CalculatorHandler) Sizing(w http.ResponseWriter, r *http.Request) {
	var req sizingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, recommend.CodeInvalidInput, "request body must be a JSON object")
		return
	}

	res, err := h.calc.Calculate(sizing.Round(req.DailyKWh, 2), sizing.Round(req.Irradiance, 2))
	if errors.Is(err, sizing.ErrInvalidConsumption) || errors.Is(err, sizing.ErrInvalidIrradiance) {
		writeError(w, http.StatusBadRequest, recommend.CodeInvalidInput, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, recommend.CodeInternal, "sizing failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Tariff handles GET /api/v1/tariff?units=N.
func (h *CalculatorHandler) Tariff(w http.ResponseWriter, r *http.Request) {
	units, err := strconv.ParseFloat(r.URL.Query().Get("units"), 64)
	if err != nil || units < 0 || math.IsNaN(units) || math.IsInf(units, 0) {
		writeError(w, http.StatusBadRequest, recommend.CodeInvalidInput, "units must be a non-negative number")
		return
	}

	breakdown := h.schedule.Itemize(units)
	if breakdown == nil {
		breakdown = []tariff.Breakdown{}
	}
	resp := map[string]interface{}{
		"units":     units,
		"cost":      sizing.Round(h.schedule.Cost(units), 2),
		"currency":  h.currency,
		"breakdown": breakdown,
	}
	if avg, ok := h.schedule.AverageRate(units); ok {
		resp["average_rate"] = sizing.Round(avg, 2)
	}
	writeJSON(w, http.StatusOK, resp)
}
