// Package cost expresses the time-of-use bill of a battery schedule: energy
// charges summed per tier plus demand charges on the maximum draw per
// category.
package cost

import (
	"errors"
	"fmt"

	"battery-scheduler/internal/expr"
	"battery-scheduler/internal/model"
	"battery-scheduler/internal/tariff"
)

// ErrInvalidInput is returned for trajectories that do not fit the calendar.
var ErrInvalidInput = errors.New("invalid cost input")

// Model binds a calendar, a rate table and a battery.
type Model struct {
	cal     *tariff.Calendar
	rates   tariff.Rates
	battery *model.Battery
}

func New(cal *tariff.Calendar, rates tariff.Rates, battery *model.Battery) (*Model, error) {
	if cal == nil {
		return nil, fmt.Errorf("%w: nil calendar", ErrInvalidInput)
	}
	if battery == nil {
		return nil, fmt.Errorf("%w: nil battery", ErrInvalidInput)
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Model{cal: cal, rates: rates, battery: battery}, nil
}

func (m *Model) Calendar() *tariff.Calendar { return m.cal }
func (m *Model) Rates() tariff.Rates        { return m.rates }

// TotalLoad is the billed draw load + DischargeEfficiency·u.
func (m *Model) TotalLoad(u expr.Vector, load []float64) expr.Vector {
	return expr.Constants(load).Add(u.Scale(m.battery.Params.DischargeEfficiency))
}

// Cost builds the objective for control trajectory u. Samples outside a
// demand category's selector enter its maximum as a literal 0.
func (m *Model) Cost(u expr.Vector, load []float64) (expr.Objective, error) {
	if err := m.checkLen(len(u), len(load)); err != nil {
		return expr.Objective{}, err
	}
	total := m.TotalLoad(u, load)

	var obj expr.Objective
	for _, p := range tariff.Periods {
		energy := total.Mask(m.cal.Selector(p)).Sum()
		obj.Linear = obj.Linear.Add(energy.Scale(m.rates.EnergyCharge(p)))
	}
	obj.Linear = obj.Linear.Simplify()

	for _, dc := range tariff.DemandCategories {
		obj.Maxes = append(obj.Maxes, expr.MaxTerm{
			Label:  "demand_" + dc.String(),
			Weight: m.rates.DemandCharge(dc),
			Args:   demandArgs(total.Mask(m.cal.DemandSelector(dc))),
		})
	}
	return obj, nil
}

// demandArgs keeps every selected draw and collapses the unselected ones
// into a single zero argument.
func demandArgs(masked expr.Vector) []expr.Affine {
	args := make([]expr.Affine, 0, len(masked))
	zero := false
	for _, a := range masked {
		a = a.Simplify()
		if a.IsConstant() && a.Const == 0 {
			if !zero {
				args = append(args, expr.Constant(0))
				zero = true
			}
			continue
		}
		args = append(args, a)
	}
	return args
}

func (m *Model) checkLen(nu, nl int) error {
	h := m.cal.Horizon()
	if nu != h || nl != h {
		return fmt.Errorf("%w: control has %d samples and load %d, horizon is %d", ErrInvalidInput, nu, nl, h)
	}
	return nil
}

// Breakdown is a numeric evaluation of the cost.
type Breakdown struct {
	Energy   map[tariff.Period]float64         `json:"energy"`
	Demand   map[tariff.DemandCategory]float64 `json:"demand"`
	PeakDraw map[tariff.DemandCategory]float64 `json:"peak_draw"`
	Total    float64                           `json:"total"`
}

// Breakdown evaluates the cost of a concrete trajectory.
func (m *Model) Breakdown(u, load []float64) (Breakdown, error) {
	if err := m.checkLen(len(u), len(load)); err != nil {
		return Breakdown{}, err
	}
	draw := m.draw(u, load)
	b := Breakdown{
		Energy:   make(map[tariff.Period]float64, len(tariff.Periods)),
		Demand:   make(map[tariff.DemandCategory]float64, len(tariff.DemandCategories)),
		PeakDraw: make(map[tariff.DemandCategory]float64, len(tariff.DemandCategories)),
	}
	for _, p := range tariff.Periods {
		mask := tariff.Mask(m.cal.Selector(p))
		sum := 0.0
		for t, v := range draw {
			sum += mask[t] * v
		}
		b.Energy[p] = m.rates.EnergyCharge(p) * sum
		b.Total += b.Energy[p]
	}
	for _, dc := range tariff.DemandCategories {
		peak, _ := maskedMax(draw, tariff.Mask(m.cal.DemandSelector(dc)))
		b.PeakDraw[dc] = peak
		b.Demand[dc] = m.rates.DemandCharge(dc) * peak
		b.Total += b.Demand[dc]
	}
	return b, nil
}

// Sample is the cost attributed to one sample.
type Sample struct {
	Index     int           `json:"index"`
	Period    tariff.Period `json:"period"`
	TotalLoad float64       `json:"total_load"`
	Energy    float64       `json:"energy"`
	Demand    float64       `json:"demand"`
	Total     float64       `json:"total"`
}

// OverTime splits the cost of a trajectory per sample. Each demand charge
// lands on the first sample achieving its category maximum, so the samples
// sum to the aggregate cost.
func (m *Model) OverTime(u, load []float64) ([]Sample, error) {
	if err := m.checkLen(len(u), len(load)); err != nil {
		return nil, err
	}
	draw := m.draw(u, load)
	out := make([]Sample, len(draw))
	for t, v := range draw {
		p := m.cal.PeriodAt(t)
		out[t] = Sample{
			Index:     t,
			Period:    p,
			TotalLoad: v,
			Energy:    m.rates.EnergyCharge(p) * v,
		}
	}
	for _, dc := range tariff.DemandCategories {
		peak, at := maskedMax(draw, tariff.Mask(m.cal.DemandSelector(dc)))
		if at >= 0 {
			out[at].Demand += m.rates.DemandCharge(dc) * peak
		}
	}
	for t := range out {
		out[t].Total = out[t].Energy + out[t].Demand
	}
	return out, nil
}

func (m *Model) draw(u, load []float64) []float64 {
	d := make([]float64, len(load))
	for t := range load {
		d[t] = m.battery.GridDraw(load[t], u[t])
	}
	return d
}

// maskedMax is max_t(mask[t]·v[t]) and its first argmax.
func maskedMax(v, mask []float64) (float64, int) {
	best, at := 0.0, -1
	for t := range v {
		x := mask[t] * v[t]
		if at < 0 || x > best {
			best, at = x, t
		}
	}
	return best, at
}
