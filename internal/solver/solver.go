// Package solver hands convex programs built from expr to an optimizer.
package solver

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"battery-scheduler/internal/expr"
)

var (
	ErrInfeasible = errors.New("problem is infeasible")
	ErrUnbounded  = errors.New("problem is unbounded")
	ErrNonConvex  = errors.New("problem is not convex")
)

// Error wraps an optimizer failure that is neither infeasibility nor
// unboundedness.
type Error struct {
	Err error
}

func (e *Error) Error() string { return "solver: " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Program is minimize Objective subject to Constraints over Vars variables.
type Program struct {
	Vars        int
	Names       []string
	Objective   expr.Objective
	Constraints []expr.Constraint
}

// Solution holds the optimal variable values and the objective at them.
type Solution struct {
	X         []float64
	Objective float64
}

// Solver is any optimizer able to minimize a Program.
type Solver interface {
	Solve(ctx context.Context, p Program) (Solution, error)
}

// Validate checks variable references and convexity.
func (p Program) Validate() error {
	if p.Vars < 0 {
		return fmt.Errorf("negative variable count %d", p.Vars)
	}
	if err := p.Objective.Convex(); err != nil {
		return fmt.Errorf("%w: %v", ErrNonConvex, err)
	}
	check := func(where string, a expr.Affine) error {
		for _, t := range a.Terms {
			if int(t.Var) < 0 || int(t.Var) >= p.Vars {
				return fmt.Errorf("%s references variable %d outside [0,%d)", where, t.Var, p.Vars)
			}
		}
		return nil
	}
	if err := check("objective", p.Objective.Linear); err != nil {
		return err
	}
	for _, m := range p.Objective.Maxes {
		for _, a := range m.Args {
			if err := check(m.Label, a); err != nil {
				return err
			}
		}
	}
	for _, c := range p.Constraints {
		if err := check(c.Name, c.Expr); err != nil {
			return err
		}
	}
	return nil
}

// MaxViolation returns the largest constraint violation of x.
func (p Program) MaxViolation(x []float64) (float64, string) {
	worst, name := 0.0, ""
	for _, c := range p.Constraints {
		if v := c.Violation(x); v > worst {
			worst, name = v, c.Name
		}
	}
	return worst, name
}

type limited struct {
	Solver
	slots *semaphore.Weighted
}

// Limit returns a Solver that holds one of slots for each solve. Callers
// sharing slots never run more solves at once than its weight; a solve
// waits for a free slot until ctx is done.
func Limit(s Solver, slots *semaphore.Weighted) Solver {
	return limited{Solver: s, slots: slots}
}

func (l limited) Solve(ctx context.Context, p Program) (Solution, error) {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return Solution{}, err
	}
	defer l.slots.Release(1)
	return l.Solver.Solve(ctx, p)
}
