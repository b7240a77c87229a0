package analysis

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"battery-scheduler/internal/model"
	"battery-scheduler/internal/tariff"
)

// LoadProfileStats summarizes a load profile against a calendar before any
// battery is involved. Use it to see where a battery has room to help.
type LoadProfileStats struct {
	Count int `json:"count"`

	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P05    float64 `json:"p05"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`

	// Energy is the summed load per tier.
	Energy map[tariff.Period]float64 `json:"energy"`
	// PeakDraw is the demand each category would bill with no battery.
	PeakDraw map[tariff.DemandCategory]float64 `json:"peak_draw"`
	// LoadFactor is mean over max draw; low values favour peak shaving.
	LoadFactor float64 `json:"load_factor"`
}

// Profile computes LoadProfileStats. load must match the calendar horizon.
func Profile(cal *tariff.Calendar, load model.LoadProfile) (LoadProfileStats, error) {
	if err := load.Validate(cal.Horizon()); err != nil {
		return LoadProfileStats{}, err
	}
	p := LoadProfileStats{
		Count:    len(load),
		Energy:   make(map[tariff.Period]float64, len(tariff.Periods)),
		PeakDraw: make(map[tariff.DemandCategory]float64, len(tariff.DemandCategories)),
	}

	sorted := append([]float64(nil), load...)
	sort.Float64s(sorted)
	p.Min = floats.Min(sorted)
	p.Max = floats.Max(sorted)
	p.Mean, p.StdDev = stat.MeanStdDev(sorted, nil)
	p.P05 = stat.Quantile(0.05, stat.LinInterp, sorted, nil)
	p.P50 = stat.Quantile(0.50, stat.LinInterp, sorted, nil)
	p.P95 = stat.Quantile(0.95, stat.LinInterp, sorted, nil)
	if p.Max > 0 {
		p.LoadFactor = p.Mean / p.Max
	}

	masked := make([]float64, len(load))
	for _, per := range tariff.Periods {
		floats.MulTo(masked, tariff.Mask(cal.Selector(per)), load)
		p.Energy[per] = floats.Sum(masked)
	}
	for _, dc := range tariff.DemandCategories {
		floats.MulTo(masked, tariff.Mask(cal.DemandSelector(dc)), load)
		p.PeakDraw[dc] = floats.Max(masked)
	}
	return p, nil
}
