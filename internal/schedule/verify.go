package schedule

import (
	"fmt"
	"math"

	"battery-scheduler/internal/model"
)

// Verify replays every constraint of the formulation against a result,
// allowing an absolute slack of tol.
func Verify(r *Result, battery model.BatteryParams, load []float64, tol float64) error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrConstraintViolated)
	}
	T := len(load)
	if len(r.Control) != T || len(r.State) != T+1 {
		return fmt.Errorf("%w: control has %d samples and state %d for a load of %d",
			ErrConstraintViolated, len(r.Control), len(r.State), T)
	}
	b, err := model.NewBattery(battery)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	fail := func(name string, t int, v float64) error {
		return fmt.Errorf("%w: %s[%d] off by %g", ErrConstraintViolated, name, t, v)
	}
	u, s := r.Control, r.State
	for t := 0; t < T; t++ {
		if d := math.Abs(s[t+1] - b.Step(s[t], u[t])); d > tol {
			return fail("state_recurrence", t, d)
		}
		if d := math.Abs(u[t]) - battery.PowerLimitKW; d > tol {
			return fail("power_limit", t, d)
		}
		if d := -(load[t] + u[t]); d > tol {
			return fail("no_export", t, d)
		}
		if d := -b.GridDraw(load[t], u[t]); d > tol {
			return fail("billed_draw", t, d)
		}
	}
	for t := 0; t <= T; t++ {
		if d := -s[t]; d > tol {
			return fail("state_min", t, d)
		}
		if d := s[t] - battery.CapacityKWh; d > tol {
			return fail("state_max", t, d)
		}
	}
	if d := math.Abs(s[0]); d > tol {
		return fail("initial_state", 0, d)
	}
	if d := math.Abs(s[T]); d > tol {
		return fail("terminal_state", T, d)
	}
	return nil
}
