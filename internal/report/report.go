// Package report renders stored recommendations as Markdown and HTML.
package report

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

// Renderer formats recommendations. Tariff, when set, adds a slab
// breakdown of the monthly bill to sizing reports.
type Renderer struct {
	Tariff *tariff.Schedule
	md     goldmark.Markdown
}

// NewRenderer creates a Renderer with GitHub-flavoured tables enabled.
func NewRenderer(schedule *tariff.Schedule) *Renderer {
	return &Renderer{
		Tariff: schedule,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Markdown returns the report body.
func (r *Renderer) Markdown(rec *recommend.Recommendation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", rec.Summary)
	fmt.Fprintf(&b, "- **Location:** %s\n", escapeCell(rec.Location))
	if rec.Sizing != nil {
		fmt.Fprintf(&b, "- **Coordinates:** %.4f, %.4f\n", rec.Sizing.Coordinates.Latitude, rec.Sizing.Coordinates.Longitude)
		fmt.Fprintf(&b, "- **Consumption source:** %s\n", sourceLabel(rec.Sizing.ConsumptionSource))
	}
	if !rec.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Generated:** %s\n", rec.CreatedAt.Format("2006-01-02 15:04 MST"))
	}
	if rec.ID != "" {
		fmt.Fprintf(&b, "- **Reference:** `%s`\n", rec.ID)
	}
	b.WriteString("\n")

	if rec.Kind == recommend.KindNarrative {
		b.WriteString("## Suggestion\n\n")
		b.WriteString(rec.Narrative)
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("## System\n\n")
	b.WriteString("| Metric | Value | Unit |\n|---|---|---|\n")
	for _, m := range rec.Metrics {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(m.Description), escapeCell(formatValue(m.Value)), escapeCell(m.Unit))
	}
	b.WriteString("\n")

	if rec.Sizing == nil || rec.Sizing.Payback == nil {
		return b.String()
	}
	p := rec.Sizing.Payback
	b.WriteString("## Economics\n\n")
	fmt.Fprintf(&b, "Monthly consumption basis of %g kWh at an average rate of %g %s/kWh.\n\n",
		p.MonthlyBasisKWh, p.AverageRate, p.Currency)
	if p.Years != nil {
		fmt.Fprintf(&b, "A system costing %s %s saves about %s %s per day and pays back in **%g years**.\n\n",
			p.Currency, formatValue(p.SystemCost), p.Currency, formatValue(p.DailySavings), *p.Years)
	} else {
		b.WriteString("No savings are expected at this tariff, so there is no payback period.\n\n")
	}

	if r.Tariff != nil {
		b.WriteString("### Monthly bill by slab\n\n")
		b.WriteString("| Slab | Units | Rate | Subtotal |\n|---|---|---|---|\n")
		for _, item := range r.Tariff.Itemize(p.MonthlyBasisKWh) {
			fmt.Fprintf(&b, "| %d | %g | %g | %.2f |\n", item.Slab, item.Units, item.Rate, item.Subtotal)
		}
		fmt.Fprintf(&b, "\nTotal: %.2f %s\n", r.Tariff.Cost(p.MonthlyBasisKWh), p.Currency)
	}
	return b.String()
}

// HTML renders the report as a standalone HTML page.
func (r *Renderer) HTML(rec *recommend.Recommendation) (string, error) {
	var content strings.Builder
	if err := r.md.Convert([]byte(r.Markdown(rec)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(rec.Summary) + "</title>" +
		"<style>body{font-family:system-ui,sans-serif;max-width:800px;margin:2rem auto;padding:0 1rem;color:#1c1917;} " +
		"table{border-collapse:collapse;width:100%;} th,td{border:1px solid #d6d3d1;padding:0.35rem 0.5rem;text-align:left;} " +
		"thead th{background:#fef3c7;}</style></head><body>" +
		content.String() +
		"</body></html>", nil
}

func sourceLabel(s recommend.ConsumptionSource) string {
	switch s {
	case recommend.SourceMonthlyFigure:
		return "monthly bill figure"
	case recommend.SourceLLMEstimate:
		return "estimated from usage description"
	default:
		return string(s)
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// escapeCell keeps free text from breaking table or list syntax.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
