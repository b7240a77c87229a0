package analysis

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"battery-scheduler/internal/log"
	"battery-scheduler/internal/model"
	"battery-scheduler/internal/schedule"
	"battery-scheduler/internal/solver"
	"battery-scheduler/internal/tariff"
)

// Outcome is the result of one scenario. Exactly one of Result and Err is set.
type Outcome struct {
	Rank     int
	Scenario model.Scenario
	Result   *schedule.Result
	Err      error
}

// Compare solves every scenario against the same calendar, rates and load,
// each on its own Problem and solver. Outcomes are ranked by savings,
// descending; failed scenarios sort last. Only context cancellation aborts
// the comparison.
func Compare(ctx context.Context, cal *tariff.Calendar, rates tariff.Rates, load []float64, scenarios []model.Scenario, newSolver func() solver.Solver) ([]Outcome, error) {
	out := make([]Outcome, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			out[i].Scenario = sc
			p, err := schedule.NewProblem(cal, newSolver())
			if err != nil {
				out[i].Err = err
				return nil
			}
			res, err := p.Run(gctx, rates, sc.Battery, load)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Ctx(ctx).WarnContext(ctx, "scenario failed", "scenario", sc.Label(), "error", err)
				out[i].Err = err
				return nil
			}
			out[i].Result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err != nil {
			return false
		}
		return a.Result.Savings() > b.Result.Savings()
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}
