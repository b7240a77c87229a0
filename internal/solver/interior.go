package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"battery-scheduler/internal/log"
)

const (
	defaultInteriorTolerance = 1e-10
	defaultMaxIterations     = 100
	// inaccurateTolerance is accepted when the iterates stall short of
	// Tolerance.
	inaccurateTolerance = 1e-6
	// stepFraction keeps iterates strictly inside the cone.
	stepFraction = 0.99
	// refineSteps of iterative refinement against the unregularized system.
	refineSteps = 2
)

var errBreakdown = errors.New("normal equations could not be factorized")

// InteriorPoint solves programs with a homogeneous self-dual primal-dual
// interior point method using Mehrotra's predictor-corrector steps. Each
// Newton system is reduced to the normal equations over the program's
// columns and factorized with a dense Cholesky decomposition, so an iteration
// costs the cube of the column count regardless of how many rows the program
// has. Cancellation is checked between iterations; Solve never leaves work
// running after it returns.
//
// Infeasibility and unboundedness are detected from the certificates the
// embedding converges to.
type InteriorPoint struct {
	// Tolerance on relative residuals and duality gap. Zero selects a default.
	Tolerance float64
	// MaxIterations before giving up. Zero selects a default.
	MaxIterations int
	// Timeout bounds a single solve. Zero means no limit beyond ctx.
	Timeout time.Duration
}

func (ip InteriorPoint) Solve(ctx context.Context, p Program) (sol Solution, err error) {
	prog, err := lower(p)
	if err != nil {
		return Solution{}, err
	}
	if ip.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ip.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return Solution{}, err
	}
	if prog.n == 0 {
		return prog.solution(p, nil), nil
	}

	tol := ip.Tolerance
	if tol == 0 {
		tol = defaultInteriorTolerance
	}
	maxIter := ip.MaxIterations
	if maxIter == 0 {
		maxIter = defaultMaxIterations
	}

	defer func() {
		if r := recover(); r != nil {
			sol, err = Solution{}, &Error{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	logger := log.Ctx(ctx)
	logger.DebugContext(ctx, "solving linear program",
		"method", "interior_point", "vars", prog.n, "inequalities", len(prog.ineq), "equalities", len(prog.eq))
	start := time.Now()

	w := newHSD(prog)
	x, iters, accurate, err := w.run(ctx, tol, maxIter)
	if err != nil {
		logger.DebugContext(ctx, "linear program failed", "iterations", iters, "error", err)
		return Solution{}, err
	}
	if !accurate {
		logger.WarnContext(ctx, "linear program solved to reduced accuracy",
			"iterations", iters, "tolerance", inaccurateTolerance)
	}
	logger.DebugContext(ctx, "linear program solved", "iterations", iters, "elapsed", time.Since(start))
	return prog.solution(p, x), nil
}

// hsd holds the iterate of the homogeneous embedding
//
//	Aᵀy + Gᵀz + cτ = 0
//	-Ax + bτ = 0
//	s = -Gx + hτ
//	κ = -cᵀx - bᵀy - hᵀz
//
// with s, z, τ, κ ≥ 0. A solution with τ > 0 scales to an optimum; κ > 0
// certifies infeasibility or unboundedness.
type hsd struct {
	prog    *linearProgram
	n, m, p int
	c, h, b []float64
	// groups are runs of consecutive inequality rows sharing a pattern,
	// whose outer products are accumulated once.
	groups [][2]int
	normC  float64
	normP  float64

	x, y, z, s []float64
	tau, kappa float64

	// per iteration
	w      []float64
	normal *mat.SymDense
	reg    *mat.SymDense
	chol   mat.Cholesky
	at     *mat.Dense // Aᵀ, n×p
	hinvAT *mat.Dense // H⁻¹Aᵀ
	schur  mat.Cholesky
}

// residuals of the embedding at the current iterate.
type residuals struct {
	rx, ry, rz []float64
	rt         float64
	mu         float64
	cx, by, hz float64
	// gx and ax are G x and A x; aty+gtz is stored in dual.
	gx, ax, dual []float64
}

func newHSD(prog *linearProgram) *hsd {
	n, m, p := prog.n, len(prog.ineq), len(prog.eq)
	w := &hsd{
		prog: prog,
		n:    n, m: m, p: p,
		c: prog.c, h: rhs(prog.ineq), b: rhs(prog.eq),
		x: make([]float64, n), y: make([]float64, p),
		z: make([]float64, m), s: make([]float64, m),
		tau: 1, kappa: 1,
		w:      make([]float64, m),
		normal: mat.NewSymDense(n, nil),
		reg:    mat.NewSymDense(n, nil),
	}
	for i := range w.z {
		w.z[i], w.s[i] = 1, 1
	}
	w.normC = math.Max(1, floats.Norm(w.c, 2))
	w.normP = math.Max(1, math.Max(norm(w.h), norm(w.b)))

	for i := 0; i < m; {
		j := i + 1
		for j < m && prog.ineq[j].samePattern(prog.ineq[i]) {
			j++
		}
		w.groups = append(w.groups, [2]int{i, j})
		i = j
	}
	if p > 0 {
		w.at = mat.NewDense(n, p, nil)
		for i, r := range prog.eq {
			for k, j := range r.idx {
				w.at.Set(j, i, r.coef[k])
			}
		}
		w.hinvAT = mat.NewDense(n, p, nil)
	}
	return w
}

func norm(v []float64) float64 { return floats.Norm(v, 2) }

func (w *hsd) residuals() residuals {
	r := residuals{
		rx: make([]float64, w.n), ry: make([]float64, w.p), rz: make([]float64, w.m),
		gx: make([]float64, w.m), ax: make([]float64, w.p), dual: make([]float64, w.n),
	}
	mulRows(w.prog.ineq, w.x, r.gx)
	mulRows(w.prog.eq, w.x, r.ax)

	aty := make([]float64, w.n)
	mulRowsT(w.prog.eq, w.y, aty)
	mulRowsT(w.prog.ineq, w.z, r.dual)
	floats.Add(r.dual, aty)

	for j := range r.rx {
		r.rx[j] = r.dual[j] + w.c[j]*w.tau
	}
	for i := range r.ry {
		r.ry[i] = -r.ax[i] + w.b[i]*w.tau
	}
	for i := range r.rz {
		r.rz[i] = -r.gx[i] + w.h[i]*w.tau - w.s[i]
	}
	r.cx = floats.Dot(w.c, w.x)
	if w.p > 0 {
		r.by = floats.Dot(w.b, w.y)
	}
	if w.m > 0 {
		r.hz = floats.Dot(w.h, w.z)
	}
	r.rt = -r.cx - r.by - r.hz - w.kappa
	sz := 0.0
	if w.m > 0 {
		sz = floats.Dot(w.s, w.z)
	}
	r.mu = (sz + w.tau*w.kappa) / float64(w.m+1)
	return r
}

// converged reports whether the scaled iterate is optimal to within tol.
func (w *hsd) converged(r residuals, tol float64) bool {
	pres := math.Max(norm(r.ry), norm(r.rz)) / w.tau / w.normP
	dres := norm(r.rx) / w.tau / w.normC
	gap := 0.0
	if w.m > 0 {
		gap = floats.Dot(w.s, w.z) / (w.tau * w.tau)
	}
	pcost := r.cx / w.tau
	return pres < tol && dres < tol && (gap < tol || gap/math.Max(1, math.Abs(pcost)) < tol)
}

// certificate checks for a ray proving infeasibility or unboundedness.
func (w *hsd) certificate(r residuals, tol float64) error {
	if d := r.by + r.hz; d < 0 && norm(r.dual)/-d < tol {
		return fmt.Errorf("%w: dual ray found", ErrInfeasible)
	}
	if r.cx < 0 {
		gxs := make([]float64, w.m)
		floats.AddTo(gxs, r.gx, w.s)
		if math.Max(norm(r.ax), norm(gxs))/-r.cx < tol {
			return fmt.Errorf("%w: primal ray found", ErrUnbounded)
		}
	}
	return nil
}

// scaled returns x/τ.
func (w *hsd) scaled() []float64 {
	x := make([]float64, w.n)
	floats.ScaleTo(x, 1/w.tau, w.x)
	return x
}

func (w *hsd) run(ctx context.Context, tol float64, maxIter int) ([]float64, int, bool, error) {
	for it := 0; ; it++ {
		if err := ctx.Err(); err != nil {
			return nil, it, false, err
		}
		r := w.residuals()
		if w.converged(r, tol) {
			return w.scaled(), it, true, nil
		}
		if err := w.certificate(r, tol); err != nil {
			return nil, it, false, err
		}
		if it == maxIter {
			if w.converged(r, inaccurateTolerance) {
				return w.scaled(), it, false, nil
			}
			return nil, it, false, &Error{Err: fmt.Errorf("no convergence in %d iterations", maxIter)}
		}
		if err := w.step(r); err != nil {
			if errors.Is(err, errBreakdown) && w.converged(r, inaccurateTolerance) {
				return w.scaled(), it, false, nil
			}
			return nil, it, false, &Error{Err: err}
		}
	}
}

// direction is a Newton step of the embedding.
type direction struct {
	x, y, z, s []float64
	tau, kappa float64
}

func (w *hsd) step(r residuals) error {
	if err := w.factorize(); err != nil {
		return err
	}

	// The τ column of the Newton system, shared by both solves.
	neg := func(v []float64) []float64 {
		out := make([]float64, len(v))
		floats.ScaleTo(out, -1, v)
		return out
	}
	qx, qy, qz := w.newton(neg(w.c), neg(w.b), neg(w.h))
	qden := w.kappa/w.tau - floats.Dot(w.c, qx) - dotOrZero(w.b, qy) - dotOrZero(w.h, qz)
	if !(qden > 0) {
		return fmt.Errorf("%w: non-positive τ pivot %g", errBreakdown, qden)
	}
	q := [3][]float64{qx, qy, qz}

	sz := make([]float64, w.m)
	floats.MulTo(sz, w.s, w.z)
	aff := w.solveDirection(r, q, qden, 1, sz, w.tau*w.kappa)
	sigma := math.Pow(1-w.maxStep(aff), 3)

	ds := make([]float64, w.m)
	for i := range ds {
		ds[i] = sz[i] + aff.s[i]*aff.z[i] - sigma*r.mu
	}
	dk := w.tau*w.kappa + aff.tau*aff.kappa - sigma*r.mu
	d := w.solveDirection(r, q, qden, 1-sigma, ds, dk)

	alpha := math.Min(1, stepFraction*w.maxStep(d))
	floats.AddScaled(w.x, alpha, d.x)
	floats.AddScaled(w.y, alpha, d.y)
	floats.AddScaled(w.z, alpha, d.z)
	floats.AddScaled(w.s, alpha, d.s)
	w.tau += alpha * d.tau
	w.kappa += alpha * d.kappa
	return nil
}

func dotOrZero(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Dot(a, b)
}

// solveDirection solves the Newton system with residual weight eta and
// complementarity targets ds (for s∘z) and dk (for τκ).
func (w *hsd) solveDirection(r residuals, q [3][]float64, qden, eta float64, ds []float64, dk float64) direction {
	f1 := make([]float64, w.n)
	floats.ScaleTo(f1, -eta, r.rx)
	f2 := make([]float64, w.p)
	floats.ScaleTo(f2, -eta, r.ry)
	f3 := make([]float64, w.m)
	for i := range f3 {
		f3[i] = -eta*r.rz[i] - ds[i]/w.z[i]
	}
	px, py, pz := w.newton(f1, f2, f3)

	d := direction{
		tau: (-eta*r.rt + floats.Dot(w.c, px) + dotOrZero(w.b, py) + dotOrZero(w.h, pz) - dk/w.tau) / qden,
	}
	d.x = px
	floats.AddScaled(d.x, d.tau, q[0])
	d.y = py
	floats.AddScaled(d.y, d.tau, q[1])
	d.z = pz
	floats.AddScaled(d.z, d.tau, q[2])
	d.s = make([]float64, w.m)
	for i := range d.s {
		d.s[i] = (-ds[i] - w.s[i]*d.z[i]) / w.z[i]
	}
	d.kappa = (-dk - w.kappa*d.tau) / w.tau
	return d
}

// maxStep is the largest step in (0, 1] keeping s, z, τ and κ non-negative.
func (w *hsd) maxStep(d direction) float64 {
	a := 1.0
	bound := func(v, dv float64) {
		if dv < 0 {
			a = math.Min(a, -v/dv)
		}
	}
	for i := range w.s {
		bound(w.s[i], d.s[i])
		bound(w.z[i], d.z[i])
	}
	bound(w.tau, d.tau)
	bound(w.kappa, d.kappa)
	return a
}

// newton solves
//
//	Aᵀdy + Gᵀdz = f1
//	-A dx = f2
//	-G dx + W⁻¹ dz = f3
//
// with W = Z/S, through the normal equations (GᵀWG) dx + Aᵀdy = f1 - GᵀW f3.
func (w *hsd) newton(f1, f2, f3 []float64) (dx, dy, dz []float64) {
	wf3 := make([]float64, w.m)
	floats.MulTo(wf3, w.w, f3)
	gwf3 := make([]float64, w.n)
	mulRowsT(w.prog.ineq, wf3, gwf3)

	r1 := make([]float64, w.n)
	floats.SubTo(r1, f1, gwf3)
	r2 := make([]float64, w.p)
	floats.ScaleTo(r2, -1, f2)
	dx, dy = w.solveRefined(r1, r2)

	dz = make([]float64, w.m)
	mulRows(w.prog.ineq, dx, dz)
	for i := range dz {
		dz[i] = w.w[i] * (f3[i] + dz[i])
	}
	return dx, dy, dz
}

// factorize forms H = GᵀWG and factorizes it and the Schur complement of
// the equality rows. A diagonal shift is raised until the factorization
// succeeds; refinement against the exact system recovers the accuracy.
func (w *hsd) factorize() error {
	for i := range w.w {
		w.w[i] = w.z[i] / w.s[i]
	}
	raw := w.normal.RawSymmetric()
	for i := range raw.Data {
		raw.Data[i] = 0
	}
	for _, g := range w.groups {
		weight := 0.0
		for i := g[0]; i < g[1]; i++ {
			weight += w.w[i]
		}
		row := w.prog.ineq[g[0]]
		for a, ia := range row.idx {
			wa := weight * row.coef[a]
			dst := raw.Data[ia*raw.Stride:]
			for b := a; b < len(row.idx); b++ {
				dst[row.idx[b]] += wa * row.coef[b]
			}
		}
	}

	scale := 1.0
	for i := 0; i < w.n; i++ {
		scale = math.Max(scale, raw.Data[i*raw.Stride+i])
	}
	if !factorShifted(&w.chol, w.reg, w.normal, scale) {
		return errBreakdown
	}
	if w.p == 0 {
		return nil
	}

	if err := ignoreCondition(w.chol.SolveTo(w.hinvAT, w.at)); err != nil {
		return fmt.Errorf("%w: %v", errBreakdown, err)
	}
	s := mat.NewSymDense(w.p, nil)
	col := make([]float64, w.n)
	for i, row := range w.prog.eq {
		for j := i; j < w.p; j++ {
			mat.Col(col, j, w.hinvAT)
			s.SetSym(i, j, row.dot(col))
		}
	}
	sScale := 1.0
	for i := 0; i < w.p; i++ {
		sScale = math.Max(sScale, s.At(i, i))
	}
	if !factorShifted(&w.schur, mat.NewSymDense(w.p, nil), s, sScale) {
		return errBreakdown
	}
	return nil
}

// factorShifted factorizes a + δI into chol, growing δ from a tiny multiple
// of scale until a is numerically positive definite.
func factorShifted(chol *mat.Cholesky, work, a *mat.SymDense, scale float64) bool {
	n := a.SymmetricDim()
	for delta := 1e-13 * scale; delta <= 1e-3*scale; delta *= 100 {
		work.CopySym(a)
		for i := 0; i < n; i++ {
			work.SetSym(i, i, work.At(i, i)+delta)
		}
		if chol.Factorize(work) {
			return true
		}
	}
	return false
}

// ignoreCondition drops mat.Condition warnings; near the optimum the normal
// equations are ill-conditioned by construction and the solve is still used.
func ignoreCondition(err error) error {
	var c mat.Condition
	if errors.As(err, &c) {
		return nil
	}
	return err
}

// solveShifted solves the regularized system
//
//	H dx + Aᵀdy = r1
//	A dx = r2
//
// by eliminating dx through H⁻¹.
func (w *hsd) solveShifted(r1, r2 []float64) ([]float64, []float64) {
	var hx mat.VecDense
	if err := ignoreCondition(w.chol.SolveVecTo(&hx, mat.NewVecDense(w.n, r1))); err != nil {
		panic(err)
	}
	dx := make([]float64, w.n)
	copy(dx, hx.RawVector().Data)
	if w.p == 0 {
		return dx, nil
	}

	t := make([]float64, w.p)
	for i, row := range w.prog.eq {
		t[i] = row.dot(dx) - r2[i]
	}
	var dyv mat.VecDense
	if err := ignoreCondition(w.schur.SolveVecTo(&dyv, mat.NewVecDense(w.p, t))); err != nil {
		panic(err)
	}
	dy := make([]float64, w.p)
	copy(dy, dyv.RawVector().Data)

	var corr mat.VecDense
	corr.MulVec(w.hinvAT, mat.NewVecDense(w.p, dy))
	floats.Sub(dx, corr.RawVector().Data)
	return dx, dy
}

// solveRefined applies iterative refinement against the unshifted system.
func (w *hsd) solveRefined(r1, r2 []float64) ([]float64, []float64) {
	dx, dy := w.solveShifted(r1, r2)
	e1 := make([]float64, w.n)
	e2 := make([]float64, w.p)
	gdx := make([]float64, w.m)
	aty := make([]float64, w.n)
	for k := 0; k < refineSteps; k++ {
		mulRows(w.prog.ineq, dx, gdx)
		floats.Mul(gdx, w.w)
		mulRowsT(w.prog.ineq, gdx, e1)
		if w.p > 0 {
			mulRowsT(w.prog.eq, dy, aty)
			floats.Add(e1, aty)
			mulRows(w.prog.eq, dx, e2)
		}
		floats.SubTo(e1, r1, e1)
		floats.SubTo(e2, r2, e2)
		cx, cy := w.solveShifted(e1, e2)
		floats.Add(dx, cx)
		floats.Add(dy, cy)
	}
	return dx, dy
}
