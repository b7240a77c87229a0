package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"battery-scheduler/internal/expr"
)

// storageProgram is a small storage schedule: n moves u in [-1, 1] whose
// running sum stays in [0, 5] and returns to zero, paying a time-varying
// price on u plus the peak of base + u.
func storageProgram(n int) Program {
	var s expr.Space
	u := s.Vector("u", n)
	var linear expr.Affine
	args := make([]expr.Affine, n)
	var cons []expr.Constraint
	level := expr.Constant(0)
	for t := 0; t < n; t++ {
		price := 1 + math.Sin(float64(t)/3)
		base := 3 + 2*math.Cos(float64(t)/5)
		linear = linear.Add(u[t].Scale(price))
		args[t] = u[t].AddConst(base)
		level = level.Add(u[t])
		cons = append(cons,
			expr.Le(fmt.Sprintf("u_max[%d]", t), u[t], expr.Constant(1)),
			expr.Ge(fmt.Sprintf("u_min[%d]", t), u[t], expr.Constant(-1)),
			expr.Ge(fmt.Sprintf("level_min[%d]", t), level, expr.Constant(0)),
			expr.Le(fmt.Sprintf("level_max[%d]", t), level, expr.Constant(5)),
		)
	}
	cons = append(cons, expr.Eq("level_end", level, expr.Constant(0)))
	return Program{
		Vars:  s.Len(),
		Names: s.Names(),
		Objective: expr.Objective{
			Linear: linear,
			Maxes:  []expr.MaxTerm{{Label: "peak", Weight: 2, Args: args}},
		},
		Constraints: cons,
	}
}

func TestInteriorPointSmallPrograms(t *testing.T) {
	var s expr.Space
	v := s.Vector("v", 2)
	x, y := v[0], v[1]

	tests := []struct {
		name      string
		program   Program
		objective float64
		x         []float64
	}{
		{
			name: "linear",
			program: Program{
				Vars:      2,
				Objective: expr.Objective{Linear: x.Add(y).Scale(-1)},
				Constraints: []expr.Constraint{
					expr.Le("x_max", x, expr.Constant(2)),
					expr.Le("y_max", y, expr.Constant(3)),
					expr.Le("sum", x.Add(y), expr.Constant(4)),
					expr.Ge("x_min", x, expr.Constant(0)),
					expr.Ge("y_min", y, expr.Constant(0)),
				},
			},
			objective: -4,
		},
		{
			name: "equality",
			program: Program{
				Vars:      2,
				Objective: expr.Objective{Linear: x},
				Constraints: []expr.Constraint{
					expr.Eq("a", x.Add(y), expr.Constant(3)),
					expr.Eq("b", x.Sub(y), expr.Constant(1)),
				},
			},
			objective: 2,
			x:         []float64{2, 1},
		},
		{
			name: "max term",
			program: Program{
				Vars: 2,
				Objective: expr.Objective{
					Linear: x.Scale(0.5),
					Maxes: []expr.MaxTerm{{
						Label:  "abs",
						Weight: 1,
						Args:   []expr.Affine{x.AddConst(-1), x.Scale(-1).AddConst(1)},
					}},
				},
				Constraints: []expr.Constraint{expr.Ge("x_min", x, expr.Constant(0))},
			},
			objective: 0.5,
			x:         []float64{1, 0},
		},
		{
			name: "mixed",
			program: Program{
				Vars:      2,
				Objective: expr.Objective{Linear: x.Scale(2).Add(y)},
				Constraints: []expr.Constraint{
					expr.Eq("sum", x.Add(y), expr.Constant(4)),
					expr.Ge("x_min", x, expr.Constant(1)),
					expr.Le("y_max", y, expr.Constant(2)),
				},
			},
			objective: 6,
			x:         []float64{2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol, err := InteriorPoint{}.Solve(context.Background(), tt.program)
			require.NoError(t, err)
			assert.InDelta(t, tt.objective, sol.Objective, 1e-7)
			if tt.x != nil {
				assert.InDeltaSlice(t, tt.x, sol.X, 1e-7)
			}
			viol, name := tt.program.MaxViolation(sol.X)
			assert.Less(t, viol, 1e-7, name)
		})
	}
}

func TestInteriorPointMatchesSimplex(t *testing.T) {
	p := storageProgram(48)

	want, err := Simplex{}.Solve(context.Background(), p)
	require.NoError(t, err)
	got, err := InteriorPoint{}.Solve(context.Background(), p)
	require.NoError(t, err)

	assert.InDelta(t, want.Objective, got.Objective, 1e-6)
	viol, name := p.MaxViolation(got.X)
	assert.Less(t, viol, 1e-7, name)
}

func TestInteriorPointInfeasible(t *testing.T) {
	var s expr.Space
	v := s.Vector("v", 2)
	x, y := v[0], v[1]

	for name, cons := range map[string][]expr.Constraint{
		"bounds": {
			expr.Ge("lo", x, expr.Constant(2)),
			expr.Le("hi", x, expr.Constant(1)),
		},
		"equalities": {
			expr.Eq("a", x.Add(y), expr.Constant(1)),
			expr.Eq("b", x.Add(y), expr.Constant(2)),
		},
		"sum": {
			expr.Ge("x_min", x, expr.Constant(0)),
			expr.Ge("y_min", y, expr.Constant(0)),
			expr.Le("sum", x.Add(y), expr.Constant(-1)),
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := InteriorPoint{}.Solve(context.Background(), Program{
				Vars:        2,
				Objective:   expr.Objective{Linear: x.Add(y)},
				Constraints: cons,
			})
			assert.ErrorIs(t, err, ErrInfeasible)
		})
	}
}

func TestInteriorPointUnbounded(t *testing.T) {
	var s expr.Space
	x := s.Vector("x", 1)[0]
	_, err := InteriorPoint{}.Solve(context.Background(), Program{
		Vars:        1,
		Objective:   expr.Objective{Linear: x.Scale(-1)},
		Constraints: []expr.Constraint{expr.Ge("x_min", x, expr.Constant(0))},
	})
	assert.ErrorIs(t, err, ErrUnbounded)
}

func TestInteriorPointDegenerateRows(t *testing.T) {
	var s expr.Space
	x := s.Vector("x", 1)[0]
	// Repeated and constant rows; the optimum is x = 1.
	p := Program{
		Vars:      1,
		Objective: expr.Objective{Linear: x},
		Constraints: []expr.Constraint{
			expr.Ge("a", x, expr.Constant(1)),
			expr.Ge("b", x, expr.Constant(1)),
			expr.Ge("c", x.Scale(2), expr.Constant(2)),
			expr.Le("d", x, expr.Constant(1)),
			expr.Ge("ok", expr.Constant(1), expr.Constant(0)),
		},
	}
	sol, err := InteriorPoint{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 1, sol.X[0], 1e-7)

	p.Constraints = append(p.Constraints, expr.Ge("broken", expr.Constant(-1), expr.Constant(0)))
	_, err = InteriorPoint{}.Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestInteriorPointUnusedVariables(t *testing.T) {
	var s expr.Space
	v := s.Vector("v", 3)
	p := Program{
		Vars:        s.Len(),
		Names:       s.Names(),
		Constraints: []expr.Constraint{expr.Ge("v0", v[0], expr.Constant(1))},
		Objective:   expr.Objective{Linear: v[0]},
	}
	sol, err := InteriorPoint{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 1, sol.X[0], 1e-7)
	assert.Equal(t, []float64{0, 0}, sol.X[1:])

	p.Objective.Linear = p.Objective.Linear.Add(v[2])
	_, err = InteriorPoint{}.Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrUnbounded)
	assert.Contains(t, err.Error(), "v[2]")
}

func TestInteriorPointNoRows(t *testing.T) {
	sol, err := InteriorPoint{}.Solve(context.Background(), Program{
		Vars:      2,
		Objective: expr.Objective{Linear: expr.Constant(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, sol.X)
	assert.Equal(t, 3.0, sol.Objective)
}

func TestInteriorPointRejectsBadPrograms(t *testing.T) {
	var s expr.Space
	x := s.Vector("x", 1)[0]
	_, err := InteriorPoint{}.Solve(context.Background(), Program{
		Vars: 1,
		Objective: expr.Objective{Maxes: []expr.MaxTerm{
			{Label: "neg", Weight: -1, Args: []expr.Affine{x}},
		}},
	})
	assert.ErrorIs(t, err, ErrNonConvex)

	_, err = InteriorPoint{}.Solve(context.Background(), Program{Vars: 1, Objective: expr.Objective{Linear: expr.Of(5)}})
	var se *Error
	assert.True(t, errors.As(err, &se))
}

func TestInteriorPointIterationLimit(t *testing.T) {
	_, err := InteriorPoint{MaxIterations: 1}.Solve(context.Background(), storageProgram(24))
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "no convergence")
}

func TestInteriorPointCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := InteriorPoint{}.Solve(ctx, storageProgram(4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInteriorPointTimeoutReleasesWork(t *testing.T) {
	if testing.Short() {
		t.Skip("large program")
	}
	p := storageProgram(672)
	baseline := runtime.NumGoroutine()

	start := time.Now()
	_, err := InteriorPoint{Timeout: 20 * time.Millisecond}.Solve(context.Background(), p)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 30*time.Second)

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSimplexWaitsForSlot(t *testing.T) {
	for i := 0; i < cap(simplexSlots); i++ {
		simplexSlots <- struct{}{}
	}
	drained := false
	drain := func() {
		if drained {
			return
		}
		drained = true
		for i := 0; i < cap(simplexSlots); i++ {
			<-simplexSlots
		}
	}
	defer drain()

	p := storageProgram(4)
	_, err := Simplex{Timeout: 20 * time.Millisecond}.Solve(context.Background(), p)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	drain()
	_, err = Simplex{}.Solve(context.Background(), p)
	assert.NoError(t, err)
}

type blockingSolver struct {
	entered chan struct{}
	release chan struct{}
}

func (b blockingSolver) Solve(ctx context.Context, p Program) (Solution, error) {
	b.entered <- struct{}{}
	<-b.release
	return Solution{X: make([]float64, p.Vars)}, nil
}

func TestLimit(t *testing.T) {
	slots := semaphore.NewWeighted(1)
	inner := blockingSolver{entered: make(chan struct{}, 2), release: make(chan struct{})}
	s := Limit(inner, slots)

	done := make(chan error, 1)
	go func() {
		_, err := s.Solve(context.Background(), Program{Vars: 1})
		done <- err
	}()
	<-inner.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Solve(ctx, Program{Vars: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(inner.release)
	require.NoError(t, <-done)

	sol, err := Limit(InteriorPoint{}, slots).Solve(context.Background(), Program{Vars: 2})
	require.NoError(t, err)
	assert.Len(t, sol.X, 2)
	assert.True(t, slots.TryAcquire(1))
}
