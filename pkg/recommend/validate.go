package recommend

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Limits bounds the accepted query fields.
type Limits struct {
	MinLocationLength    int     `yaml:"minLocationLength"`
	MinMonthlyKWh        float64 `yaml:"minMonthlyKWh"`
	MaxMonthlyKWh        float64 `yaml:"maxMonthlyKWh"`
	MinUsagePromptLength int     `yaml:"minUsagePromptLength"`
}

// DefaultLimits returns the limits of the public API.
func DefaultLimits() Limits {
	return Limits{
		MinLocationLength:    3,
		MinMonthlyKWh:        100,
		MaxMonthlyKWh:        5000,
		MinUsagePromptLength: 10,
	}
}

// Validate normalizes q in place (trimming text fields, dropping blank
// prompts) and checks it against the limits.
func (l Limits) Validate(q *Query) error {
	q.Location = strings.TrimSpace(q.Location)
	if q.UsagePrompt != nil {
		p := strings.TrimSpace(*q.UsagePrompt)
		if p == "" {
			q.UsagePrompt = nil
		} else {
			q.UsagePrompt = &p
		}
	}

	if q.MonthlyKWh == nil && q.UsagePrompt == nil {
		return InvalidInput("provide either a monthly consumption figure or a usage description")
	}
	if utf8.RuneCountInString(q.Location) < l.MinLocationLength {
		return InvalidInput(fmt.Sprintf("location must be at least %d characters", l.MinLocationLength))
	}
	if q.MonthlyKWh != nil {
		m := *q.MonthlyKWh
		if math.IsNaN(m) || m < l.MinMonthlyKWh || m > l.MaxMonthlyKWh {
			return InvalidInput(fmt.Sprintf("electricity_kwh_per_month must be between %g and %g", l.MinMonthlyKWh, l.MaxMonthlyKWh))
		}
	}
	if q.UsagePrompt != nil && utf8.RuneCountInString(*q.UsagePrompt) < l.MinUsagePromptLength {
		return InvalidInput(fmt.Sprintf("usage_prompt must be at least %d characters", l.MinUsagePromptLength))
	}
	return nil
}
