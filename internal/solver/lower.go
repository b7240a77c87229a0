package solver

import (
	"errors"
	"fmt"
	"sort"

	"battery-scheduler/internal/expr"
)

// feasibilityTol bounds the violation accepted for constraints with no
// variable terms.
const feasibilityTol = 1e-9

// sparseRow is Σ coef[k]·x[idx[k]] compared against rhs. Indices are
// columns of the lowered program, ascending and unique.
type sparseRow struct {
	idx  []int
	coef []float64
	rhs  float64
}

func (r sparseRow) dot(x []float64) float64 {
	v := 0.0
	for k, j := range r.idx {
		v += r.coef[k] * x[j]
	}
	return v
}

// samePattern reports whether r and o have the same columns and
// coefficients equal up to one common sign.
func (r sparseRow) samePattern(o sparseRow) bool {
	if len(r.idx) != len(o.idx) || len(r.idx) == 0 {
		return false
	}
	sign := 1.0
	if r.coef[0] != o.coef[0] {
		sign = -1
	}
	for k := range r.idx {
		if r.idx[k] != o.idx[k] || r.coef[k] != sign*o.coef[k] {
			return false
		}
	}
	return true
}

// linearProgram is a Program lowered to
//
//	minimize c·x subject to G x ≤ h, A x = b
//
// over the columns that appear in some row. Max terms become epigraph
// variables appended after the program's own.
type linearProgram struct {
	c    []float64
	ineq []sparseRow
	eq   []sparseRow
	// col maps a variable to its column, or -1 when it is fixed at zero.
	col []int
	n   int
}

func mulRows(rows []sparseRow, x, dst []float64) {
	for i, r := range rows {
		dst[i] = r.dot(x)
	}
}

// mulRowsT sets dst to Σ y[i]·rows[i].
func mulRowsT(rows []sparseRow, y, dst []float64) {
	for j := range dst {
		dst[j] = 0
	}
	for i, r := range rows {
		if y[i] == 0 {
			continue
		}
		for k, j := range r.idx {
			dst[j] += y[i] * r.coef[k]
		}
	}
}

func rhs(rows []sparseRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.rhs
	}
	return out
}

type rawRow struct {
	coefs map[int]float64
	rhs   float64
}

// lower validates p and rewrites it as a linear program.
func lower(p Program) (*linearProgram, error) {
	if err := p.Validate(); err != nil {
		if errors.Is(err, ErrNonConvex) {
			return nil, err
		}
		return nil, &Error{Err: err}
	}

	nVars := p.Vars
	c := map[int]float64{}
	for _, t := range p.Objective.Linear.Terms {
		c[int(t.Var)] += t.Coef
	}

	var ineq, eq []rawRow
	addRow := func(dst *[]rawRow, a expr.Affine, sign float64, extra int, extraCoef float64) {
		r := rawRow{coefs: make(map[int]float64, len(a.Terms)+1), rhs: -sign * a.Const}
		for _, t := range a.Terms {
			r.coefs[int(t.Var)] += sign * t.Coef
		}
		if extra >= 0 {
			r.coefs[extra] += extraCoef
		}
		*dst = append(*dst, r)
	}

	for _, cons := range p.Constraints {
		a := cons.Expr.Simplify()
		if a.IsConstant() {
			if (expr.Constraint{Expr: a, Sense: cons.Sense}).Violation(nil) > feasibilityTol {
				return nil, fmt.Errorf("%w: constraint %s has no variables and is violated", ErrInfeasible, cons.Name)
			}
			continue
		}
		switch cons.Sense {
		case expr.LessEq:
			addRow(&ineq, a, 1, -1, 0)
		case expr.GreaterEq:
			addRow(&ineq, a, -1, -1, 0)
		default:
			addRow(&eq, a, 1, -1, 0)
		}
	}

	for _, m := range p.Objective.Maxes {
		if m.Weight == 0 || len(m.Args) == 0 {
			continue
		}
		z := nVars
		nVars++
		c[z] += m.Weight
		for _, a := range m.Args {
			addRow(&ineq, a.Simplify(), 1, z, -1)
		}
	}

	// Variables that appear in no row are fixed at zero; with a non-zero
	// cost they would be free and the program unbounded.
	used := make([]bool, nVars)
	for _, rows := range [][]rawRow{ineq, eq} {
		for _, r := range rows {
			for v, k := range r.coefs {
				if k != 0 {
					used[v] = true
				}
			}
		}
	}
	lp := &linearProgram{col: make([]int, nVars)}
	for v := range used {
		lp.col[v] = -1
		if used[v] {
			lp.col[v] = lp.n
			lp.n++
		} else if c[v] != 0 {
			return nil, fmt.Errorf("%w: variable %s is unconstrained", ErrUnbounded, p.varName(v))
		}
	}

	lp.c = make([]float64, lp.n)
	for v, k := range c {
		if j := lp.col[v]; j >= 0 {
			lp.c[j] = k
		}
	}
	lp.ineq = lp.compress(ineq)
	lp.eq = lp.compress(eq)
	return lp, nil
}

func (lp *linearProgram) compress(rows []rawRow) []sparseRow {
	out := make([]sparseRow, 0, len(rows))
	for _, r := range rows {
		s := sparseRow{rhs: r.rhs}
		for v, k := range r.coefs {
			if k != 0 {
				s.idx = append(s.idx, lp.col[v])
			}
		}
		sort.Ints(s.idx)
		s.coef = make([]float64, len(s.idx))
		back := make(map[int]int, len(s.idx))
		for k, j := range s.idx {
			back[j] = k
		}
		for v, k := range r.coefs {
			if k != 0 {
				s.coef[back[lp.col[v]]] = k
			}
		}
		out = append(out, s)
	}
	return out
}

// solution maps lowered column values back onto the program's variables.
func (lp *linearProgram) solution(p Program, xt []float64) Solution {
	x := make([]float64, p.Vars)
	for v := 0; v < p.Vars; v++ {
		if j := lp.col[v]; j >= 0 {
			x[v] = xt[j]
		}
	}
	return Solution{X: x, Objective: p.Objective.Eval(x)}
}

func (p Program) varName(v int) string {
	if v < len(p.Names) {
		return p.Names[v]
	}
	return fmt.Sprintf("x%d", v)
}
