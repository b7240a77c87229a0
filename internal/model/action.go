package model

// Action is a human-friendly operating mode for a timestep.
// Keep these values stable; they are intended for CSV output.
type Action string

const (
	ActionCharging    Action = "CHARGING"
	ActionIdle        Action = "IDLE"
	ActionDischarging Action = "DISCHARGING"
)

// idleThresholdKW absorbs solver round-off around zero.
const idleThresholdKW = 1e-6

func ActionFromControl(u float64) Action {
	switch {
	case u > idleThresholdKW:
		return ActionCharging
	case u < -idleThresholdKW:
		return ActionDischarging
	default:
		return ActionIdle
	}
}
