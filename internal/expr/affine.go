// Package expr builds affine expressions over decision variables, the small
// algebra the schedule objective and constraints are written in.
package expr

import (
	"fmt"
	"sort"
)

// Var indexes a scalar decision variable within a Space.
type Var int

// Term is a coefficient applied to one variable.
type Term struct {
	Var  Var
	Coef float64
}

// Affine is Σ Coef·x[Var] + Const. The zero value is the constant 0.
// Values are immutable; every operation returns a new expression.
type Affine struct {
	Terms []Term
	Const float64
}

// Constant returns the expression c with no variable terms.
func Constant(c float64) Affine {
	return Affine{Const: c}
}

// Of returns the expression 1·v.
func Of(v Var) Affine {
	return Affine{Terms: []Term{{Var: v, Coef: 1}}}
}

func (a Affine) Scale(k float64) Affine {
	out := Affine{Terms: make([]Term, 0, len(a.Terms)), Const: a.Const * k}
	for _, t := range a.Terms {
		out.Terms = append(out.Terms, Term{Var: t.Var, Coef: t.Coef * k})
	}
	return out
}

func (a Affine) Add(b Affine) Affine {
	out := Affine{Terms: make([]Term, 0, len(a.Terms)+len(b.Terms)), Const: a.Const + b.Const}
	out.Terms = append(out.Terms, a.Terms...)
	out.Terms = append(out.Terms, b.Terms...)
	return out
}

func (a Affine) Sub(b Affine) Affine {
	return a.Add(b.Scale(-1))
}

func (a Affine) AddConst(c float64) Affine {
	out := a.Add(Affine{})
	out.Const += c
	return out
}

// Simplify merges repeated variables, drops zero coefficients and orders
// terms by variable.
func (a Affine) Simplify() Affine {
	coefs := make(map[Var]float64, len(a.Terms))
	for _, t := range a.Terms {
		coefs[t.Var] += t.Coef
	}
	out := Affine{Const: a.Const}
	for v, c := range coefs {
		if c != 0 {
			out.Terms = append(out.Terms, Term{Var: v, Coef: c})
		}
	}
	sort.Slice(out.Terms, func(i, j int) bool { return out.Terms[i].Var < out.Terms[j].Var })
	return out
}

// IsConstant reports whether a has no non-zero variable terms.
func (a Affine) IsConstant() bool {
	for _, t := range a.Terms {
		if t.Coef != 0 {
			return false
		}
	}
	return true
}

// Eval computes the value of a at x. It panics if a references a variable
// outside x.
func (a Affine) Eval(x []float64) float64 {
	v := a.Const
	for _, t := range a.Terms {
		if int(t.Var) < 0 || int(t.Var) >= len(x) {
			panic(fmt.Sprintf("expr: variable %d out of range [0,%d)", t.Var, len(x)))
		}
		v += t.Coef * x[t.Var]
	}
	return v
}

func (a Affine) String() string {
	s := a.Simplify()
	out := ""
	for _, t := range s.Terms {
		if out != "" {
			out += " + "
		}
		out += fmt.Sprintf("%g·x%d", t.Coef, t.Var)
	}
	if out == "" || s.Const != 0 {
		if out != "" {
			out += " + "
		}
		out += fmt.Sprintf("%g", s.Const)
	}
	return out
}

// Space allocates decision variables and remembers their names.
type Space struct {
	names []string
}

// Vector allocates n fresh variables named name[0..n).
func (s *Space) Vector(name string, n int) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = Of(Var(len(s.names)))
		s.names = append(s.names, fmt.Sprintf("%s[%d]", name, i))
	}
	return v
}

// Len is the number of variables allocated so far.
func (s *Space) Len() int { return len(s.names) }

// Names returns variable names indexed by Var.
func (s *Space) Names() []string {
	return append([]string(nil), s.names...)
}
