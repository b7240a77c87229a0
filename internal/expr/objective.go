package expr

import (
	"fmt"
	"math"
)

// MaxTerm is Weight · max(Args). Weight must be non-negative for the
// objective to stay convex.
type MaxTerm struct {
	Label  string
	Weight float64
	Args   []Affine
}

// Eval returns the weighted maximum and the index of the first argument
// achieving it. An empty term evaluates to 0 with index -1.
func (m MaxTerm) Eval(x []float64) (float64, int) {
	best, arg := math.Inf(-1), -1
	for i, a := range m.Args {
		if v := a.Eval(x); v > best {
			best, arg = v, i
		}
	}
	if arg < 0 {
		return 0, -1
	}
	return m.Weight * best, arg
}

// Objective is Linear + Σ Maxes, minimized.
type Objective struct {
	Linear Affine
	Maxes  []MaxTerm
}

func (o Objective) Eval(x []float64) float64 {
	v := o.Linear.Eval(x)
	for _, m := range o.Maxes {
		mv, _ := m.Eval(x)
		v += mv
	}
	return v
}

// Convex reports an error for the first negatively weighted max term.
func (o Objective) Convex() error {
	for _, m := range o.Maxes {
		if m.Weight < 0 || math.IsNaN(m.Weight) {
			return fmt.Errorf("max term %q has weight %g", m.Label, m.Weight)
		}
	}
	return nil
}

// Sense is the relation of a constraint expression to zero.
type Sense int

const (
	LessEq Sense = iota
	Equal
	GreaterEq
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case Equal:
		return "=="
	case GreaterEq:
		return ">="
	}
	return fmt.Sprintf("Sense(%d)", int(s))
}

// Constraint states Expr <Sense> 0.
type Constraint struct {
	Name  string
	Expr  Affine
	Sense Sense
}

// Le returns lhs <= rhs.
func Le(name string, lhs, rhs Affine) Constraint {
	return Constraint{Name: name, Expr: lhs.Sub(rhs).Simplify(), Sense: LessEq}
}

// Ge returns lhs >= rhs.
func Ge(name string, lhs, rhs Affine) Constraint {
	return Constraint{Name: name, Expr: lhs.Sub(rhs).Simplify(), Sense: GreaterEq}
}

// Eq returns lhs == rhs.
func Eq(name string, lhs, rhs Affine) Constraint {
	return Constraint{Name: name, Expr: lhs.Sub(rhs).Simplify(), Sense: Equal}
}

// Violation is how far x is from satisfying c; 0 when satisfied.
func (c Constraint) Violation(x []float64) float64 {
	v := c.Expr.Eval(x)
	switch c.Sense {
	case LessEq:
		return math.Max(v, 0)
	case GreaterEq:
		return math.Max(-v, 0)
	default:
		return math.Abs(v)
	}
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s: %v %v 0", c.Name, c.Expr, c.Sense)
}
