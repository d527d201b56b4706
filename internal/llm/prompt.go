package llm

import (
	"fmt"
	"strings"

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
)

const extractionSystemPrompt = `You extract electricity usage figures from household descriptions.
Reply with a single number: the estimated daily consumption in kWh. No units, no words.
If the description lists appliances, estimate from typical wattage and hours of use.`

const narrativeSystemPrompt = `You are a residential solar energy advisor.
Write for homeowners with no technical background. Be concrete about sizes and avoid brand names.`

// buildExtractionPrompt constructs the prompt that asks for a daily kWh figure.
func buildExtractionPrompt(text string) string {
	return fmt.Sprintf("Extract numerical daily electricity consumption in kWh from this text, "+
		"return ONLY a number. Example: 8.5\nText: %s", text)
}

// buildNarrativePrompt constructs the fallback recommendation prompt.
func buildNarrativePrompt(req recommend.NarrativeRequest) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Location: %s\n", req.Location))
	if req.UsagePrompt != "" {
		b.WriteString(fmt.Sprintf("User Description: %s\n", req.UsagePrompt))
	}
	b.WriteString("\nBased on this information, generate a plain-language solar system recommendation. ")
	b.WriteString("Assume the location has moderate solar irradiance. Estimate daily consumption if possible, ")
	b.WriteString("and describe system size, panel type, inverter, and battery in simple terms. ")
	b.WriteString("Keep it under 150 words.")

	return b.String()
}
