package tariff

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Selectors are horizon × horizon diagonal 0/1 masks, one per tier, plus the
// identity used for the whole-horizon demand charge.
type Selectors struct {
	Peak     *mat.DiagDense
	PartPeak *mat.DiagDense
	OffPeak  *mat.DiagDense
	All      *mat.DiagDense
}

// BuildSelectors classifies every sample of the grid into exactly one tier.
// Weekday blocks follow the windows; weekend days are entirely off-peak.
// Each selector is the block diagonal of its per-day diagonal blocks.
func BuildSelectors(grid TimeGrid, windows Windows) (Selectors, error) {
	if err := grid.Validate(); err != nil {
		return Selectors{}, err
	}
	if err := windows.Validate(); err != nil {
		return Selectors{}, err
	}

	spd := grid.SamplesPerDay
	weekday := make([]Period, spd)
	for i := range weekday {
		weekday[i] = windows.Classify(grid.HourOfDay(i))
	}

	blocks := map[Period][]float64{}
	for _, p := range Periods {
		blocks[p] = make([]float64, 0, grid.Horizon())
	}
	for d := 0; d < grid.NumDays; d++ {
		weekend := grid.Weekday(d).IsWeekend()
		for _, p := range Periods {
			for i := 0; i < spd; i++ {
				v := 0.0
				if (weekend && p == OffPeak) || (!weekend && weekday[i] == p) {
					v = 1
				}
				blocks[p] = append(blocks[p], v)
			}
		}
	}

	all := make([]float64, grid.Horizon())
	for i := range all {
		all[i] = 1
	}
	n := grid.Horizon()
	return Selectors{
		Peak:     mat.NewDiagDense(n, blocks[Peak]),
		PartPeak: mat.NewDiagDense(n, blocks[PartPeak]),
		OffPeak:  mat.NewDiagDense(n, blocks[OffPeak]),
		All:      mat.NewDiagDense(n, all),
	}, nil
}

// Calendar is an immutable view of a grid and its selectors.
type Calendar struct {
	grid    TimeGrid
	windows Windows
	sel     Selectors
	periods []Period
}

// NewCalendar builds the selectors once for reuse across problems.
func NewCalendar(grid TimeGrid, windows Windows) (*Calendar, error) {
	sel, err := BuildSelectors(grid, windows)
	if err != nil {
		return nil, err
	}
	periods := make([]Period, grid.Horizon())
	for t := range periods {
		switch {
		case sel.Peak.At(t, t) == 1:
			periods[t] = Peak
		case sel.PartPeak.At(t, t) == 1:
			periods[t] = PartPeak
		default:
			periods[t] = OffPeak
		}
	}
	return &Calendar{grid: grid, windows: windows, sel: sel, periods: periods}, nil
}

// DefaultCalendar is the reference 15-minute, one-week calendar.
func DefaultCalendar() *Calendar {
	cal, err := NewCalendar(TimeGrid{SamplesPerDay: 96, NumDays: 7}, DefaultWindows())
	if err != nil {
		panic(err)
	}
	return cal
}

func (c *Calendar) Grid() TimeGrid       { return c.grid }
func (c *Calendar) Windows() Windows     { return c.windows }
func (c *Calendar) Horizon() int         { return c.grid.Horizon() }
func (c *Calendar) Selectors() Selectors { return c.sel }

// Selector returns the mask of tier p.
func (c *Calendar) Selector(p Period) *mat.DiagDense {
	switch p {
	case Peak:
		return c.sel.Peak
	case PartPeak:
		return c.sel.PartPeak
	case OffPeak:
		return c.sel.OffPeak
	}
	panic(fmt.Sprintf("tariff: unknown period %d", int(p)))
}

// DemandSelector returns the mask over which demand category dc takes its maximum.
func (c *Calendar) DemandSelector(dc DemandCategory) *mat.DiagDense {
	switch dc {
	case DemandPeak:
		return c.sel.Peak
	case DemandPartPeak:
		return c.sel.PartPeak
	case DemandMax:
		return c.sel.All
	}
	panic(fmt.Sprintf("tariff: unknown demand category %d", int(dc)))
}

// Mask returns the diagonal of a selector as a slice.
func Mask(d *mat.DiagDense) []float64 {
	n, _ := d.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = d.At(i, i)
	}
	return out
}

// PeriodAt returns the tier of sample t.
func (c *Calendar) PeriodAt(t int) Period {
	return c.periods[t]
}

// IsWeekend reports whether day index d falls on a weekend.
func (c *Calendar) IsWeekend(d int) bool {
	return c.grid.Weekday(d).IsWeekend()
}

// Count returns how many samples belong to tier p.
func (c *Calendar) Count(p Period) int {
	n := 0
	for _, q := range c.periods {
		if q == p {
			n++
		}
	}
	return n
}
