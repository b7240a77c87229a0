// Package schedule formulates and solves the battery schedule that minimizes
// a time-of-use electricity bill.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"battery-scheduler/internal/cost"
	"battery-scheduler/internal/expr"
	"battery-scheduler/internal/log"
	"battery-scheduler/internal/model"
	"battery-scheduler/internal/solver"
	"battery-scheduler/internal/tariff"
)

// Status is the lifecycle state of a Problem.
type Status int

const (
	StatusUnsolved Status = iota
	StatusSolving
	StatusSolved
	StatusInfeasible
	StatusSolverError
)

func (s Status) String() string {
	switch s {
	case StatusUnsolved:
		return "unsolved"
	case StatusSolving:
		return "solving"
	case StatusSolved:
		return "solved"
	case StatusInfeasible:
		return "infeasible"
	case StatusSolverError:
		return "solver_error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result is the outcome of a successful Run.
type Result struct {
	// Control is the battery power per sample; positive charges.
	Control []float64 `json:"control"`
	// State is the stored energy, one entry longer than Control.
	State       []float64      `json:"state"`
	OptimalCost float64        `json:"optimal_cost"`
	Feasible    bool           `json:"feasible"`
	Breakdown   cost.Breakdown `json:"breakdown"`
	// Baseline is the cost of the same load with the battery idle.
	Baseline cost.Breakdown `json:"baseline"`
}

// Savings is the baseline cost minus the optimal cost.
func (r *Result) Savings() float64 {
	return r.Baseline.Total - r.OptimalCost
}

// Problem is a single schedule optimization over a calendar. A Problem runs
// at most once; build a new one for every solve.
type Problem struct {
	cal    *tariff.Calendar
	solver solver.Solver

	mu     sync.Mutex
	status Status
	// claimed is set while a Run formulates outside the lock.
	claimed bool
}

func NewProblem(cal *tariff.Calendar, s solver.Solver) (*Problem, error) {
	if cal == nil {
		return nil, fmt.Errorf("%w: nil calendar", ErrConfiguration)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: nil solver", ErrConfiguration)
	}
	return &Problem{cal: cal, solver: s}, nil
}

func (p *Problem) Calendar() *tariff.Calendar { return p.cal }

func (p *Problem) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Run validates the inputs, formulates the program and solves it once.
// Configuration errors leave the problem unsolved. Any other failure is
// terminal and returns no partial result.
func (p *Problem) Run(ctx context.Context, rates tariff.Rates, battery model.BatteryParams, load []float64) (*Result, error) {
	p.mu.Lock()
	if p.status != StatusUnsolved || p.claimed {
		status := p.status
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: status is %s", ErrAlreadyRun, status)
	}
	p.claimed = true
	p.mu.Unlock()

	f, err := formulate(p.cal, rates, battery, load)
	p.mu.Lock()
	if err != nil {
		p.claimed = false
		p.mu.Unlock()
		return nil, err
	}
	p.status = StatusSolving
	p.mu.Unlock()

	logger := log.Ctx(ctx).With("horizon", p.cal.Horizon(), "battery", battery.Name)
	logger.DebugContext(ctx, "solving schedule",
		"vars", f.program.Vars, "constraints", len(f.program.Constraints))
	start := time.Now()

	res, status, err := p.solve(ctx, f, load)

	p.mu.Lock()
	p.status = status
	p.mu.Unlock()

	if err != nil {
		logger.WarnContext(ctx, "schedule solve failed", "status", status.String(), "error", err)
		return nil, err
	}
	logger.InfoContext(ctx, "schedule solved",
		"optimal_cost", res.OptimalCost, "baseline_cost", res.Baseline.Total, "elapsed", time.Since(start))
	return res, nil
}

func (p *Problem) solve(ctx context.Context, f *formulation, load []float64) (*Result, Status, error) {
	sol, err := p.solver.Solve(ctx, f.program)
	if err != nil {
		if errors.Is(err, solver.ErrInfeasible) {
			return nil, StatusInfeasible, fmt.Errorf("%w: %w", ErrInfeasible, err)
		}
		return nil, StatusSolverError, &SolverError{Err: err}
	}
	if len(sol.X) != f.program.Vars {
		return nil, StatusSolverError, &SolverError{
			Err: fmt.Errorf("solution has %d values, program has %d variables", len(sol.X), f.program.Vars),
		}
	}

	u := f.u.Values(sol.X)
	s := f.s.Values(sol.X)
	breakdown, err := f.cost.Breakdown(u, load)
	if err != nil {
		return nil, StatusSolverError, &SolverError{Err: err}
	}
	baseline, err := f.cost.Breakdown(make([]float64, len(u)), load)
	if err != nil {
		return nil, StatusSolverError, &SolverError{Err: err}
	}
	return &Result{
		Control:     u,
		State:       s,
		OptimalCost: f.program.Objective.Eval(sol.X),
		Feasible:    true,
		Breakdown:   breakdown,
		Baseline:    baseline,
	}, StatusSolved, nil
}

// CostOverTime replays the per-sample cost of a trajectory on the problem's
// calendar. It does not change the problem state.
func (p *Problem) CostOverTime(rates tariff.Rates, battery model.BatteryParams, u, load []float64) ([]cost.Sample, error) {
	m, err := newCostModel(p.cal, rates, battery)
	if err != nil {
		return nil, err
	}
	samples, err := m.OverTime(u, load)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return samples, nil
}

// Baseline is the cost of serving load with the battery idle.
func Baseline(cal *tariff.Calendar, rates tariff.Rates, battery model.BatteryParams, load []float64) (cost.Breakdown, error) {
	m, err := newCostModel(cal, rates, battery)
	if err != nil {
		return cost.Breakdown{}, err
	}
	b, err := m.Breakdown(make([]float64, len(load)), load)
	if err != nil {
		return cost.Breakdown{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return b, nil
}

func newCostModel(cal *tariff.Calendar, rates tariff.Rates, battery model.BatteryParams) (*cost.Model, error) {
	b, err := model.NewBattery(battery)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	m, err := cost.New(cal, rates, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return m, nil
}

// formulation is the program for one Run along with the vectors needed to
// read the solution back.
type formulation struct {
	program solver.Program
	u       expr.Vector
	// s is the stored energy written in terms of u.
	s    expr.Vector
	cost *cost.Model
}

// formulate builds the program over the control vector u alone. The state
// recurrence is substituted, s[t] = ChargeEfficiency·Σ_{k<t} u[k], so s[0] = 0
// holds by construction and the state bounds become rows over prefixes of u.
// Of the two draw floors only the binding one is emitted: with
// DischargeEfficiency ≤ 1, load + u ≥ 0 implies load + DischargeEfficiency·u ≥ 0
// when load ≥ 0 and is implied by it when load < 0; either floor is implied by
// the power limit when load ≥ PowerLimitKW.
func formulate(cal *tariff.Calendar, rates tariff.Rates, battery model.BatteryParams, load []float64) (*formulation, error) {
	m, err := newCostModel(cal, rates, battery)
	if err != nil {
		return nil, err
	}
	if err := model.LoadProfile(load).Validate(cal.Horizon()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	T := cal.Horizon()
	var space expr.Space
	u := space.Vector("u", T)

	obj, err := m.Cost(u, load)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	capacity := expr.Constant(battery.CapacityKWh)
	power := expr.Constant(battery.PowerLimitKW)
	zero := expr.Constant(0)

	s := make(expr.Vector, T+1)
	s[0] = zero
	cons := make([]expr.Constraint, 0, 5*T+1)
	for t := 0; t < T; t++ {
		l := expr.Constant(load[t])
		cons = append(cons,
			expr.Le(fmt.Sprintf("power_max[%d]", t), u[t], power),
			expr.Ge(fmt.Sprintf("power_min[%d]", t), u[t], power.Scale(-1)),
		)
		switch {
		case load[t] < 0:
			cons = append(cons,
				expr.Ge(fmt.Sprintf("billed_draw[%d]", t), l.Add(u[t].Scale(battery.DischargeEfficiency)), zero))
		case load[t] < battery.PowerLimitKW:
			cons = append(cons,
				expr.Ge(fmt.Sprintf("no_export[%d]", t), l.Add(u[t]), zero))
		}

		s[t+1] = s[t].Add(u[t].Scale(battery.ChargeEfficiency))
		cons = append(cons,
			expr.Ge(fmt.Sprintf("state_min[%d]", t+1), s[t+1], zero),
			expr.Le(fmt.Sprintf("state_max[%d]", t+1), s[t+1], capacity),
		)
	}
	cons = append(cons, expr.Eq("terminal_state", s[T], zero))

	return &formulation{
		program: solver.Program{
			Vars:        space.Len(),
			Names:       space.Names(),
			Objective:   obj,
			Constraints: cons,
		},
		u:    u,
		s:    s,
		cost: m,
	}, nil
}
