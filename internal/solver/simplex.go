package solver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"battery-scheduler/internal/log"
)

const defaultTolerance = 1e-10

// simplexSlots caps the lp.Simplex calls running at once, including calls
// whose caller has already given up on them.
var simplexSlots = make(chan struct{}, runtime.GOMAXPROCS(0))

// Simplex solves programs with gonum's dense simplex method. Each max term
// in the objective is replaced by an epigraph variable.
//
// lp.Simplex cannot be interrupted. When ctx is done Solve returns at once,
// but the running call holds its slot until it finishes, and new solves wait
// for a free slot. The dense tableau grows with the square of the row count,
// so Simplex suits small programs; InteriorPoint handles full-week schedules.
type Simplex struct {
	// Tolerance is passed to lp.Simplex. Zero selects a default.
	Tolerance float64
	// Timeout bounds a single solve. Zero means no limit beyond ctx.
	Timeout time.Duration
}

func (s Simplex) Solve(ctx context.Context, p Program) (Solution, error) {
	prog, err := lower(p)
	if err != nil {
		return Solution{}, err
	}
	tol := s.Tolerance
	if tol == 0 {
		tol = defaultTolerance
	}
	if prog.n == 0 {
		return prog.solution(p, nil), nil
	}

	n := prog.n
	g, h := dense(prog.ineq, n)
	a, b := dense(prog.eq, n)

	log.Ctx(ctx).DebugContext(ctx, "solving linear program",
		"method", "simplex", "vars", n, "inequalities", len(prog.ineq), "equalities", len(prog.eq))
	start := time.Now()
	xt, err := s.run(ctx, prog.c, g, h, a, b, tol)
	if err != nil {
		return Solution{}, err
	}
	log.Ctx(ctx).DebugContext(ctx, "linear program solved", "elapsed", time.Since(start))

	// lp.Convert splits every column into x⁺ - x⁻.
	x := make([]float64, n)
	for j := range x {
		x[j] = xt[j] - xt[n+j]
	}
	return prog.solution(p, x), nil
}

func (s Simplex) run(ctx context.Context, c []float64, g mat.Matrix, h []float64, a mat.Matrix, b []float64, tol float64) ([]float64, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case simplexSlots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	type result struct {
		x   []float64
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() { <-simplexSlots }()
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: &Error{Err: fmt.Errorf("panic: %v", r)}}
			}
		}()
		cNew, aNew, bNew := lp.Convert(c, g, h, a, b)
		_, x, err := lp.Simplex(cNew, aNew, bNew, tol, nil)
		done <- result{x: x, err: mapError(err)}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.x, r.err
	}
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lp.ErrInfeasible):
		return fmt.Errorf("%w: %v", ErrInfeasible, err)
	case errors.Is(err, lp.ErrUnbounded):
		return fmt.Errorf("%w: %v", ErrUnbounded, err)
	default:
		return &Error{Err: err}
	}
}

// dense lays rows out as a matrix. It returns an untyped nil matrix for an
// empty row set, which lp.Convert accepts.
func dense(rows []sparseRow, n int) (mat.Matrix, []float64) {
	if len(rows) == 0 {
		return nil, nil
	}
	m := mat.NewDense(len(rows), n, nil)
	for i, r := range rows {
		for k, j := range r.idx {
			m.Set(i, j, r.coef[k])
		}
	}
	return m, rhs(rows)
}
