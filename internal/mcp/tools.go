package mcp

func ptr(v float64) *float64 { return &v }

// AllTools returns the tools the server advertises.
func AllTools() []Tool {
	return []Tool{
		{
			Name: "recommend_solar_system",
			Description: "Recommend a residential solar system for a location. Provide either a monthly " +
				"electricity consumption figure or a free-text description of household usage.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"location": {Type: "string", Description: "City or address, e.g. \"Lahore\""},
					"electricity_kwh_per_month": {Type: "number", Description: "Monthly consumption in kWh from the electricity bill",
						Minimum: ptr(100), Maximum: ptr(5000)},
					"usage_prompt": {Type: "string", Description: "Description of appliances and usage habits"},
				},
				Required: []string{"location"},
			},
		},
		{
			Name:        "size_system",
			Description: "Size a system directly from daily consumption and irradiance, without any lookups.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"daily_kwh":        {Type: "number", Description: "Daily consumption in kWh", Minimum: ptr(0)},
					"solar_irradiance": {Type: "number", Description: "Average daily irradiance in kWh/m²/day", Minimum: ptr(0)},
				},
				Required: []string{"daily_kwh", "solar_irradiance"},
			},
		},
		{
			Name:        "tariff_cost",
			Description: "Compute the monthly electricity bill and average rate for a consumption volume under the slab tariff.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"units": {Type: "number", Description: "Monthly consumption in kWh", Minimum: ptr(0)},
				},
				Required: []string{"units"},
			},
		},
		{
			Name:        "list_recommendations",
			Description: "List recent recommendations, newest first.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"limit": {Type: "integer", Description: "Maximum number to return (default 20)", Minimum: ptr(1), Maximum: ptr(200)},
				},
			},
		},
		{
			Name:        "get_recommendation",
			Description: "Fetch a stored recommendation by ID.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"id": {Type: "string", Description: "Recommendation ID"},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "get_config",
			Description: "Show the sizing constants, tariff slabs and validation limits the service uses.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
	}
}
