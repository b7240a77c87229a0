package solver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battery-scheduler/internal/expr"
)

func TestSimplexLinear(t *testing.T) {
	var s expr.Space
	v := s.Vector("v", 2)
	x, y := v[0], v[1]
	p := Program{
		Vars:      s.Len(),
		Names:     s.Names(),
		Objective: expr.Objective{Linear: x.Add(y).Scale(-1)},
		Constraints: []expr.Constraint{
			expr.Le("x_max", x, expr.Constant(2)),
			expr.Le("y_max", y, expr.Constant(3)),
			expr.Le("sum", x.Add(y), expr.Constant(4)),
			expr.Ge("x_min", x, expr.Constant(0)),
			expr.Ge("y_min", y, expr.Constant(0)),
		},
	}
	sol, err := Simplex{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, -4, sol.Objective, 1e-8)
	viol, _ := p.MaxViolation(sol.X)
	assert.Less(t, viol, 1e-8)
}

func TestSimplexEquality(t *testing.T) {
	var s expr.Space
	v := s.Vector("v", 2)
	p := Program{
		Vars:      s.Len(),
		Objective: expr.Objective{Linear: v[0]},
		Constraints: []expr.Constraint{
			expr.Eq("a", v[0].Add(v[1]), expr.Constant(3)),
			expr.Eq("b", v[0].Sub(v[1]), expr.Constant(1)),
		},
	}
	sol, err := Simplex{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 2, sol.X[0], 1e-8)
	assert.InDelta(t, 1, sol.X[1], 1e-8)
}

func TestSimplexMaxTerm(t *testing.T) {
	var s expr.Space
	x := s.Vector("x", 1)[0]
	// minimize |x - 1| + 0.5·x over x >= 0.
	p := Program{
		Vars: s.Len(),
		Objective: expr.Objective{
			Linear: x.Scale(0.5),
			Maxes: []expr.MaxTerm{{
				Label:  "abs",
				Weight: 1,
				Args:   []expr.Affine{x.AddConst(-1), x.Scale(-1).AddConst(1)},
			}},
		},
		Constraints: []expr.Constraint{expr.Ge("x_min", x, expr.Constant(0))},
	}
	sol, err := Simplex{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 1, sol.X[0], 1e-8)
	assert.InDelta(t, 0.5, sol.Objective, 1e-8)
}

func TestSimplexInfeasible(t *testing.T) {
	var s expr.Space
	x := s.Vector("x", 1)[0]
	p := Program{
		Vars:      s.Len(),
		Objective: expr.Objective{Linear: x},
		Constraints: []expr.Constraint{
			expr.Ge("lo", x, expr.Constant(2)),
			expr.Le("hi", x, expr.Constant(1)),
		},
	}
	_, err := Simplex{}.Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSimplexConstantConstraints(t *testing.T) {
	var s expr.Space
	x := s.Vector("x", 1)[0]
	p := Program{
		Vars:      s.Len(),
		Objective: expr.Objective{Linear: x},
		Constraints: []expr.Constraint{
			expr.Ge("x_min", x, expr.Constant(0)),
			expr.Ge("ok", expr.Constant(1), expr.Constant(0)),
		},
	}
	sol, err := Simplex{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 0, sol.X[0], 1e-8)

	p.Constraints = append(p.Constraints, expr.Ge("broken", expr.Constant(-1), expr.Constant(0)))
	_, err = Simplex{}.Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSimplexUnusedVariables(t *testing.T) {
	var s expr.Space
	v := s.Vector("v", 2)
	p := Program{
		Vars:        s.Len(),
		Names:       s.Names(),
		Constraints: []expr.Constraint{expr.Ge("v0", v[0], expr.Constant(1))},
		Objective:   expr.Objective{Linear: v[0]},
	}
	sol, err := Simplex{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 1, sol.X[0], 1e-8)
	assert.Equal(t, 0.0, sol.X[1])

	p.Objective.Linear = p.Objective.Linear.Add(v[1])
	_, err = Simplex{}.Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrUnbounded)
	assert.Contains(t, err.Error(), "v[1]")
}

func TestSimplexNoRows(t *testing.T) {
	sol, err := Simplex{}.Solve(context.Background(), Program{
		Vars:      3,
		Objective: expr.Objective{Linear: expr.Constant(7)},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, sol.X)
	assert.Equal(t, 7.0, sol.Objective)
}

func TestSimplexRejectsNonConvex(t *testing.T) {
	var s expr.Space
	x := s.Vector("x", 1)[0]
	p := Program{
		Vars: s.Len(),
		Objective: expr.Objective{Maxes: []expr.MaxTerm{
			{Label: "neg", Weight: -1, Args: []expr.Affine{x}},
		}},
	}
	_, err := Simplex{}.Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrNonConvex)

	p = Program{Vars: 1, Objective: expr.Objective{Linear: expr.Of(5)}}
	_, err = Simplex{}.Solve(context.Background(), p)
	var se *Error
	assert.True(t, errors.As(err, &se))
}

func TestSimplexCancelled(t *testing.T) {
	var s expr.Space
	x := s.Vector("x", 1)[0]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Simplex{}.Solve(ctx, Program{
		Vars:        s.Len(),
		Objective:   expr.Objective{Linear: x},
		Constraints: []expr.Constraint{expr.Ge("x_min", x, expr.Constant(0))},
	})
	assert.ErrorIs(t, err, context.Canceled)
}
