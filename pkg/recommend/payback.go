package recommend

import (
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

// DaysPerYear is used to annualize daily savings.
const DaysPerYear = 365

// Payback is the financial side of a sizing recommendation. Years is nil
// when savings are zero and no payback period exists.
type Payback struct {
	MonthlyBasisKWh float64  `json:"monthly_basis_kwh"`
	AverageRate     float64  `json:"average_rate"`
	DailySavings    float64  `json:"daily_savings"`
	SystemCost      float64  `json:"system_cost"`
	Currency        string   `json:"currency"`
	Years           *float64 `json:"years,omitempty"`
}

// ComputePayback derives the average tariff for monthlyKWh, the daily
// savings of offsetting dailyKWh and the simple payback of a systemKW array
// at costPerKW. It returns nil when monthlyKWh is not positive, since no
// average rate is defined.
func ComputePayback(schedule *tariff.Schedule, monthlyKWh, dailyKWh, systemKW, costPerKW float64, currency string) *Payback {
	rate, ok := schedule.AverageRate(monthlyKWh)
	if !ok {
		return nil
	}
	p := &Payback{
		MonthlyBasisKWh: monthlyKWh,
		AverageRate:     sizing.Round(rate, 2),
		DailySavings:    sizing.Round(dailyKWh*rate, 2),
		SystemCost:      sizing.Round(systemKW*costPerKW, 0),
		Currency:        currency,
	}
	if p.DailySavings > 0 {
		years := sizing.Round(p.SystemCost/(p.DailySavings*DaysPerYear), 1)
		p.Years = &years
	}
	return p
}
