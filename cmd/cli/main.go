package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"battery-scheduler/internal/analysis"
	"battery-scheduler/internal/config"
	"battery-scheduler/internal/data"
	"battery-scheduler/internal/ledger"
	"battery-scheduler/internal/log"
	"battery-scheduler/internal/model"
	"battery-scheduler/internal/schedule"
	"battery-scheduler/internal/solver"
	"battery-scheduler/internal/tariff"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "schedule":
		cmdSchedule(os.Args[2:])
	case "compare":
		cmdCompare(os.Args[2:])
	case "calendar":
		cmdCalendar(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli schedule --config examples/config.yaml --load load_data.csv [--generation generation_data.csv] --out results/schedule.csv")
	fmt.Println("  cli compare  --config examples/config.yaml --load load_data.csv --batteries examples/batteries")
	fmt.Println("  cli calendar --config examples/config.yaml")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - schedule outputs CSV with action=CHARGING/IDLE/DISCHARGING per sample")
	fmt.Println("  - load files are CSV (header row, kWh per sample in column 2) or JSON {\"load\": [...]}")
	fmt.Println("  - generation CSV holds hourly Wh and is spread over the samples of each hour")
}

type common struct {
	cfgPath  *string
	loadPath *string
	genPath  *string
	logLevel *string
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		cfgPath:  fs.String("config", "", "Path to YAML config (defaults to the built-in tariff and battery)"),
		loadPath: fs.String("load", "", "Path to load CSV or JSON"),
		genPath:  fs.String("generation", "", "Optional path to hourly generation CSV (Wh)"),
		logLevel: fs.String("log-level", "", "debug, info, warn or error (overrides log_level in the config)"),
	}
}

func (c common) config() *config.Config {
	cfg := config.Default()
	if *c.cfgPath != "" {
		var err error
		if cfg, err = config.Load(*c.cfgPath); err != nil {
			panic(err)
		}
	}

	lvl := *c.logLevel
	if lvl == "" {
		lvl = cfg.LogLevel
	}
	if err := log.Configure(lvl); err != nil {
		panic(err)
	}
	return cfg
}

func (c common) load(cal *tariff.Calendar) model.LoadProfile {
	if *c.loadPath == "" {
		fmt.Println("--load is required")
		os.Exit(2)
	}
	var load model.LoadProfile
	var err error
	if strings.HasSuffix(*c.loadPath, ".json") {
		load, err = data.LoadJSON(*c.loadPath)
	} else {
		load, err = data.LoadCSV(*c.loadPath)
	}
	if err != nil {
		panic(err)
	}
	if *c.genPath != "" {
		samplesPerHour := cal.Grid().SamplesPerDay / 24
		gen, err := data.GenerationCSV(*c.genPath, samplesPerHour)
		if err != nil {
			panic(err)
		}
		if load, err = data.NetLoad(load, gen); err != nil {
			panic(err)
		}
	}
	if err := load.Validate(cal.Horizon()); err != nil {
		panic(err)
	}
	return load
}

func cmdSchedule(args []string) {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	c := commonFlags(fs)
	outPath := fs.String("out", "results/schedule.csv", "Output CSV path")
	_ = fs.Parse(args)

	ctx := context.Background()
	cfg := c.config()
	cal, err := cfg.ToCalendar()
	if err != nil {
		panic(err)
	}
	load := c.load(cal)
	rates, err := cfg.ToRates()
	if err != nil {
		panic(err)
	}
	lp, err := cfg.ToSolver()
	if err != nil {
		panic(err)
	}

	params := cfg.Battery.ToModelParams()
	problem, err := schedule.NewProblem(cal, lp)
	if err != nil {
		panic(err)
	}
	res, err := problem.Run(ctx, rates, params, load)
	if err != nil {
		fmt.Printf("schedule %s: %v\n", problem.Status(), err)
		os.Exit(1)
	}
	samples, err := problem.CostOverTime(rates, params, res.Control, load)
	if err != nil {
		panic(err)
	}
	report, err := ledger.Build(cal, params, load, res, samples)
	if err != nil {
		panic(err)
	}

	// ensure output dir exists
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		panic(err)
	}
	if err := ledger.WriteLedgerCSV(*outPath, report.Rows); err != nil {
		panic(err)
	}

	s := report.Summary
	fmt.Printf("Wrote %d rows to %s\n", len(report.Rows), *outPath)
	fmt.Printf("Optimal cost=$%.2f Baseline=$%.2f Savings=$%.2f\n", s.OptimalCost, s.BaselineCost, s.Savings)
	fmt.Printf("Charged=%.2f kWh Discharged=%.2f kWh\n", s.EnergyChargedKWh, s.EnergyDischargedKWh)
	for _, dc := range tariff.DemandCategories {
		fmt.Printf("  %-10s demand %8.2f kW (baseline %8.2f kW)\n", dc, s.PeakDraw[dc], s.BaselinePeakDraw[dc])
	}
}

func cmdCompare(args []string) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	c := commonFlags(fs)
	batteries := fs.String("batteries", "examples/batteries", "Comma-separated battery YAML paths or a directory")
	_ = fs.Parse(args)

	ctx := context.Background()
	cfg := c.config()
	cal, err := cfg.ToCalendar()
	if err != nil {
		panic(err)
	}
	load := c.load(cal)
	rates, err := cfg.ToRates()
	if err != nil {
		panic(err)
	}
	lp, err := cfg.ToSolver()
	if err != nil {
		panic(err)
	}

	var scenarios []model.Scenario
	for _, p := range batteryFiles(*batteries) {
		b, err := config.LoadBatteryFile(p)
		if err != nil {
			panic(err)
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		scenarios = append(scenarios, model.Scenario{
			Name:    name,
			Battery: config.MergeBattery(cfg.Battery, b).ToModelParams(),
		})
	}

	outcomes, err := analysis.Compare(ctx, cal, rates, load, scenarios, func() solver.Solver { return lp })
	if err != nil {
		panic(err)
	}

	fmt.Printf("%-4s %-20s %-10s %-10s %-12s %-12s %-12s\n", "rank", "scenario", "kWh", "kW", "cost$", "baseline$", "savings$")
	for _, o := range outcomes {
		b := o.Scenario.Battery
		if o.Err != nil {
			fmt.Printf("%-4d %-20s %-10.1f %-10.1f error: %v\n", o.Rank, o.Scenario.Label(), b.CapacityKWh, b.PowerLimitKW, o.Err)
			continue
		}
		fmt.Printf(
			"%-4d %-20s %-10.1f %-10.1f %-12.2f %-12.2f %-12.2f\n",
			o.Rank,
			o.Scenario.Label(),
			b.CapacityKWh,
			b.PowerLimitKW,
			o.Result.OptimalCost,
			o.Result.Baseline.Total,
			o.Result.Savings(),
		)
	}
}

func cmdCalendar(args []string) {
	fs := flag.NewFlagSet("calendar", flag.ExitOnError)
	c := commonFlags(fs)
	_ = fs.Parse(args)

	cfg := c.config()
	cal, err := cfg.ToCalendar()
	if err != nil {
		panic(err)
	}
	grid := cal.Grid()
	fmt.Printf("%d samples/day x %d days = %d samples (%.2f h each)\n",
		grid.SamplesPerDay, grid.NumDays, grid.Horizon(), grid.Step())
	for _, p := range tariff.Periods {
		fmt.Printf("  %-10s %5d samples\n", p, cal.Count(p))
	}

	symbol := map[tariff.Period]byte{tariff.Peak: 'P', tariff.PartPeak: 'p', tariff.OffPeak: '.'}
	for d := 0; d < grid.NumDays; d++ {
		row := make([]byte, grid.SamplesPerDay)
		for i := range row {
			row[i] = symbol[cal.PeriodAt(d*grid.SamplesPerDay+i)]
		}
		fmt.Printf("%-9s %s\n", grid.Weekday(d), row)
	}
}

func batteryFiles(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			panic(err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			panic(err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
				out = append(out, filepath.Join(p, e.Name()))
			}
		}
	}
	return out
}
