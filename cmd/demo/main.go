package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"battery-scheduler/internal/ledger"
	"battery-scheduler/internal/log"
	"battery-scheduler/internal/model"
	"battery-scheduler/internal/schedule"
	"battery-scheduler/internal/solver"
	"battery-scheduler/internal/tariff"
)

// Demo:
// - A flat ten-sample day with no storage, whose cost is known by hand
// - A constant-load week with a small battery on the reference tariff
func main() {
	spd := flag.Int("samples-per-day", 96, "Samples per day for the week scenario")
	load := flag.Float64("load", 10, "Constant load per sample (kWh) for the week scenario")
	outCSV := flag.String("out", "", "Optional path to write the week ledger CSV (e.g. results/demo.csv)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		_ = log.Configure("debug")
	}
	ctx := context.Background()

	flatDay(ctx)
	week(ctx, *spd, *load, *outCSV)
}

// flatDay: every rate 10, load 10, capacity 0. The battery cannot move, so
// the bill is 10 samples x 10 kWh x 10 plus three demand charges of 10 x 10.
func flatDay(ctx context.Context) {
	cal, err := tariff.NewCalendar(tariff.TimeGrid{SamplesPerDay: 10, NumDays: 1}, tariff.DefaultWindows())
	if err != nil {
		panic(err)
	}
	rates := tariff.Rates{
		Energy: tariff.EnergyCharges{Peak: 10, PartPeak: 10, OffPeak: 10},
		Demand: tariff.DemandCharges{Peak: 10, PartPeak: 10, Max: 10},
	}
	battery := model.DefaultBatteryParams()
	battery.CapacityKWh = 0

	problem, err := schedule.NewProblem(cal, solver.InteriorPoint{})
	if err != nil {
		panic(err)
	}
	res, err := problem.Run(ctx, rates, battery, model.ConstantLoad(10, 10))
	if err != nil {
		panic(err)
	}
	fmt.Println("flat day, no storage")
	fmt.Printf("  status=%s optimal cost=%.2f (expected 1300.00)\n", problem.Status(), res.OptimalCost)
}

func week(ctx context.Context, spd int, loadKWh float64, outCSV string) {
	cal, err := tariff.NewCalendar(tariff.TimeGrid{SamplesPerDay: spd, NumDays: 7}, tariff.DefaultWindows())
	if err != nil {
		panic(err)
	}
	rates := tariff.DefaultRates()
	battery := model.DefaultBatteryParams()
	battery.Name = "demo"
	battery.CapacityKWh = 10
	battery.PowerLimitKW = 5
	load := model.ConstantLoad(cal.Horizon(), loadKWh)

	problem, err := schedule.NewProblem(cal, solver.InteriorPoint{})
	if err != nil {
		panic(err)
	}
	res, err := problem.Run(ctx, rates, battery, load)
	if err != nil {
		panic(err)
	}
	if err := schedule.Verify(res, battery, load, 1e-6); err != nil {
		panic(err)
	}
	samples, err := problem.CostOverTime(rates, battery, res.Control, load)
	if err != nil {
		panic(err)
	}
	report, err := ledger.Build(cal, battery, load, res, samples)
	if err != nil {
		panic(err)
	}

	s := report.Summary
	fmt.Printf("constant-load week, %d samples/day, %.0f kWh battery\n", spd, battery.CapacityKWh)
	fmt.Printf("  optimal=%.2f baseline=%.2f savings=%.2f\n", s.OptimalCost, s.BaselineCost, s.Savings)
	for _, w := range s.ChargeWindows {
		fmt.Printf("  day %d charge    %05.2fh-%05.2fh %.2f kWh\n", w.Day, w.StartHour, w.EndHour, w.EnergyKWh)
	}
	for _, w := range s.DischargeWindows {
		fmt.Printf("  day %d discharge %05.2fh-%05.2fh %.2f kWh\n", w.Day, w.StartHour, w.EndHour, w.EnergyKWh)
	}

	if outCSV != "" {
		if err := ledger.WriteLedgerCSV(outCSV, report.Rows); err != nil {
			panic(err)
		}
		fmt.Fprintf(os.Stdout, "  wrote %d rows to %s\n", len(report.Rows), outCSV)
	}
}
