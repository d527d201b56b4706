// Command solarcalc sizes a solar system offline from a consumption figure
// and an irradiance value, using the same calculators as the API.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/solaradvisor/solaradvisor/internal/config"
	"github.com/solaradvisor/solaradvisor/pkg/recommend"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
	"github.com/solaradvisor/solaradvisor/pkg/tariff"
)

type output struct {
	DailyKWh   float64            `json:"daily_kwh"`
	Irradiance float64            `json:"solar_irradiance"`
	System     sizing.Result      `json:"system"`
	Payback    *recommend.Payback `json:"payback,omitempty"`
	Bill       []tariff.Breakdown `json:"bill,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		monthly    float64
		daily      float64
		irradiance float64
		configFile string
		asJSON     bool
	)

	fs := pflag.NewFlagSet("solarcalc", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Float64VarP(&monthly, "monthly-kwh", "m", 0, "Monthly electricity consumption in kWh")
	fs.Float64VarP(&daily, "daily-kwh", "d", 0, "Daily electricity consumption in kWh (overrides --monthly-kwh)")
	fs.Float64VarP(&irradiance, "irradiance", "i", 0, "Average daily irradiance in kWh/m²/day (peak sun hours)")
	fs.StringVarP(&configFile, "config", "c", "", "Optional config file for tariff and sizing parameters")
	fs.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  solarcalc --irradiance N (--monthly-kwh N | --daily-kwh N) [flags]\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n  solarcalc -m 300 -i 5\n  solarcalc --daily-kwh 12.5 --irradiance 5.8 --json\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(configFile); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}

	out, err := calculate(cfg, monthly, daily, irradiance)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		fs.Usage()
		return 2
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}
	printTable(stdout, out)
	return 0
}

func calculate(cfg *config.Config, monthly, daily, irradiance float64) (*output, error) {
	if irradiance <= 0 {
		return nil, errors.New("--irradiance must be positive")
	}
	if daily <= 0 {
		if monthly <= 0 {
			return nil, errors.New("one of --monthly-kwh or --daily-kwh is required")
		}
		daily = monthly / cfg.Assumptions.DaysPerMonth
	}
	if monthly <= 0 {
		monthly = daily * cfg.Assumptions.DaysPerMonth
	}

	calc, err := sizing.NewCalculator(cfg.Sizing.Params())
	if err != nil {
		return nil, fmt.Errorf("sizing parameters: %w", err)
	}
	schedule, err := tariff.NewSchedule(cfg.Tariff.Slabs)
	if err != nil {
		return nil, fmt.Errorf("tariff: %w", err)
	}

	daily = sizing.Round(daily, 2)
	irradiance = sizing.Round(irradiance, 2)
	res, err := calc.Calculate(daily, irradiance)
	if err != nil {
		return nil, err
	}
	return &output{
		DailyKWh:   daily,
		Irradiance: irradiance,
		System:     res,
		Payback:    recommend.ComputePayback(schedule, monthly, daily, res.SystemKW, cfg.Tariff.CostPerKW, cfg.Tariff.Currency),
		Bill:       schedule.Itemize(monthly),
	}, nil
}

func printTable(w io.Writer, out *output) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Daily consumption\t%g kWh\n", out.DailyKWh)
	fmt.Fprintf(tw, "Solar irradiance\t%g kWh/m²/day\n", out.Irradiance)
	fmt.Fprintf(tw, "System size\t%g kW\n", out.System.SystemKW)
	fmt.Fprintf(tw, "Panels\t%d\n", out.System.PanelCount)
	fmt.Fprintf(tw, "Inverter\t%g kW\n", out.System.InverterKW)
	fmt.Fprintf(tw, "Battery\t%g kWh\n", out.System.BatteryKWh)
	fmt.Fprintf(tw, "Daily generation\t%g kWh\n", out.System.DailyGenerationKWh)
	if p := out.Payback; p != nil {
		fmt.Fprintf(tw, "Average tariff\t%g %s/kWh\n", p.AverageRate, p.Currency)
		fmt.Fprintf(tw, "Estimated cost\t%.0f %s\n", p.SystemCost, p.Currency)
		fmt.Fprintf(tw, "Daily savings\t%g %s\n", p.DailySavings, p.Currency)
		if p.Years != nil {
			fmt.Fprintf(tw, "Payback\t%g years\n", *p.Years)
		} else {
			fmt.Fprintf(tw, "Payback\tn/a\n")
		}
	}
	tw.Flush()
}
