package ledger

import (
	"fmt"

	"battery-scheduler/internal/cost"
	"battery-scheduler/internal/model"
	"battery-scheduler/internal/schedule"
	"battery-scheduler/internal/tariff"
)

// Build assembles the per-sample ledger of a solved schedule. samples is the
// per-sample cost split of the result, as returned by CostOverTime.
func Build(cal *tariff.Calendar, battery model.BatteryParams, load []float64, res *schedule.Result, samples []cost.Sample) (*Report, error) {
	if cal == nil {
		return nil, fmt.Errorf("calendar is nil")
	}
	if res == nil {
		return nil, fmt.Errorf("result is nil")
	}
	b, err := model.NewBattery(battery)
	if err != nil {
		return nil, err
	}
	T := cal.Horizon()
	if len(load) != T || len(res.Control) != T || len(res.State) != T+1 || len(samples) != T {
		return nil, fmt.Errorf("ledger inputs do not match horizon %d: load %d, control %d, state %d, samples %d",
			T, len(load), len(res.Control), len(res.State), len(samples))
	}

	grid := cal.Grid()
	rows := make([]Row, 0, T)
	cum := 0.0
	for t := 0; t < T; t++ {
		s := samples[t]
		cum += s.Total
		day := grid.DayOf(t)
		rows = append(rows, Row{
			Index:   t,
			Day:     day,
			Weekday: grid.Weekday(day),
			Hour:    grid.HourOfDay(t % grid.SamplesPerDay),
			Period:  s.Period,

			Load:    load[t],
			Control: res.Control[t],
			Action:  model.ActionFromControl(res.Control[t]),

			StateStart: res.State[t],
			StateEnd:   res.State[t+1],

			GridDraw: b.GridDraw(load[t], res.Control[t]),

			EnergyCost: s.Energy,
			DemandCost: s.Demand,
			Cost:       s.Total,
			CumCost:    cum,
		})
	}

	charged, discharged := b.Throughput(res.Control)
	return &Report{
		Battery: battery,
		Summary: Summary{
			Samples:             T,
			OptimalCost:         res.OptimalCost,
			BaselineCost:        res.Baseline.Total,
			Savings:             res.Savings(),
			EnergyChargedKWh:    charged,
			EnergyDischargedKWh: discharged,
			PeakDraw:            res.Breakdown.PeakDraw,
			BaselinePeakDraw:    res.Baseline.PeakDraw,
			Breakdown:           res.Breakdown,
			ChargeWindows:       windows(rows, model.ActionCharging, grid.Step()),
			DischargeWindows:    windows(rows, model.ActionDischarging, grid.Step()),
		},
		Rows: rows,
	}, nil
}

// windows groups consecutive rows with the given action, split at day
// boundaries.
func windows(rows []Row, action model.Action, step float64) []Window {
	var out []Window
	var cur *Window
	for i, r := range rows {
		if r.Action != action {
			cur = nil
			continue
		}
		if cur == nil || rows[i-1].Day != r.Day {
			out = append(out, Window{Action: action, Day: r.Day, StartHour: r.Hour})
			cur = &out[len(out)-1]
		}
		cur.EndHour = r.Hour + step
		if r.Control > 0 {
			cur.EnergyKWh += r.Control
		} else {
			cur.EnergyKWh -= r.Control
		}
	}
	return out
}
