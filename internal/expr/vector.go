package expr

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Vector is a sequence of affine expressions. Decision trajectories and
// numeric trajectories share this type.
type Vector []Affine

// Constants lifts numeric values into a Vector.
func Constants(vals []float64) Vector {
	v := make(Vector, len(vals))
	for i, c := range vals {
		v[i] = Constant(c)
	}
	return v
}

func (v Vector) Add(w Vector) Vector {
	mustSameLen(len(v), len(w))
	out := make(Vector, len(v))
	for i := range v {
		out[i] = v[i].Add(w[i])
	}
	return out
}

func (v Vector) Scale(k float64) Vector {
	out := make(Vector, len(v))
	for i := range v {
		out[i] = v[i].Scale(k)
	}
	return out
}

// Mask multiplies element i by the i-th diagonal entry of d, the product of a
// diagonal selector with v.
func (v Vector) Mask(d mat.Diagonal) Vector {
	mustSameLen(d.Diag(), len(v))
	out := make(Vector, len(v))
	for i := range v {
		out[i] = v[i].Scale(d.At(i, i))
	}
	return out
}

// Sum returns Σ v[i].
func (v Vector) Sum() Affine {
	var out Affine
	for _, a := range v {
		out.Terms = append(out.Terms, a.Terms...)
		out.Const += a.Const
	}
	return out.Simplify()
}

// Values evaluates every element at x.
func (v Vector) Values(x []float64) []float64 {
	out := make([]float64, len(v))
	for i, a := range v {
		out[i] = a.Eval(x)
	}
	return out
}

func mustSameLen(a, b int) {
	if a != b {
		panic(fmt.Sprintf("expr: length mismatch %d != %d", a, b))
	}
}
