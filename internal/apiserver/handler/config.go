package handler

import (
	"net/http"

	"github.com/solaradvisor/solaradvisor/internal/config"
)

type ConfigHandler struct {
	config *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{config: cfg}
}

// Get returns the public calculation parameters. Credentials and
// deployment settings are never included.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	c := h.config
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sizing": map[string]interface{}{
			"panelWattage":     c.Sizing.PanelWattage,
			"systemEfficiency": c.Sizing.SystemEfficiency,
			"backupHours":      c.Sizing.BackupHours,
			"inverterRatio":    c.Sizing.InverterRatio,
		},
		"tariff": map[string]interface{}{
			"slabs":     c.Tariff.Slabs,
			"costPerKW": c.Tariff.CostPerKW,
			"currency":  c.Tariff.Currency,
		},
		"assumptions": map[string]interface{}{
			"daysPerMonth":    c.Assumptions.DaysPerMonth,
			"systemType":      c.Assumptions.SystemType,
			"panelTechnology": c.Assumptions.PanelTechnology,
		},
		"validation": map[string]interface{}{
			"minLocationLength":    c.Validation.MinLocationLength,
			"minMonthlyKWh":        c.Validation.MinMonthlyKWh,
			"maxMonthlyKWh":        c.Validation.MaxMonthlyKWh,
			"minUsagePromptLength": c.Validation.MinUsagePromptLength,
		},
		"irradianceProvider": c.Irradiance.Provider,
		"llmModel":           c.LLM.Model,
	})
}
