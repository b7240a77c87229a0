package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBattery is wrapped by every battery validation error.
var ErrInvalidBattery = errors.New("invalid battery parameters")

// BatteryParams defines the physical parameters of the battery.
// Units:
// - CapacityKWh: kWh of stored energy
// - PowerLimitKW: kW, symmetric for charge and discharge
// - Efficiencies: 0..1
type BatteryParams struct {
	Name                string  `yaml:"name" json:"name"`
	CapacityKWh         float64 `yaml:"capacity_kwh" json:"capacity_kwh"`
	PowerLimitKW        float64 `yaml:"power_limit_kw" json:"power_limit_kw"`
	ChargeEfficiency    float64 `yaml:"charge_efficiency" json:"charge_efficiency"`
	DischargeEfficiency float64 `yaml:"discharge_efficiency" json:"discharge_efficiency"`
}

// DefaultBatteryParams is the 40 kWh / 20 kW reference battery.
func DefaultBatteryParams() BatteryParams {
	return BatteryParams{
		Name:                "default",
		CapacityKWh:         40,
		PowerLimitKW:        20,
		ChargeEfficiency:    0.95,
		DischargeEfficiency: 0.9,
	}
}

func (p BatteryParams) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"capacity_kwh", p.CapacityKWh},
		{"power_limit_kw", p.PowerLimitKW},
		{"charge_efficiency", p.ChargeEfficiency},
		{"discharge_efficiency", p.DischargeEfficiency},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidBattery, f.name)
		}
	}
	if p.CapacityKWh < 0 {
		return fmt.Errorf("%w: capacity_kwh must be >= 0", ErrInvalidBattery)
	}
	if p.PowerLimitKW < 0 {
		return fmt.Errorf("%w: power_limit_kw must be >= 0", ErrInvalidBattery)
	}
	if p.ChargeEfficiency <= 0 || p.ChargeEfficiency > 1 {
		return fmt.Errorf("%w: charge_efficiency must be in (0, 1]", ErrInvalidBattery)
	}
	if p.DischargeEfficiency <= 0 || p.DischargeEfficiency > 1 {
		return fmt.Errorf("%w: discharge_efficiency must be in (0, 1]", ErrInvalidBattery)
	}
	return nil
}

// Battery is a validated, read-only battery model.
//
// Control convention: positive u charges the battery, negative u discharges.
// The same efficiency applies to a sample whatever the sign of u.
type Battery struct {
	Params BatteryParams
}

func NewBattery(params BatteryParams) (*Battery, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Battery{Params: params}, nil
}

// Step returns the state after applying control u to state s.
func (b *Battery) Step(s, u float64) float64 {
	return s + b.Params.ChargeEfficiency*u
}

// GridDraw is the billed draw of a sample with site load and control u.
func (b *Battery) GridDraw(load, u float64) float64 {
	return load + b.Params.DischargeEfficiency*u
}

// Replay returns the state trajectory, len(u)+1 long, starting empty.
func (b *Battery) Replay(u []float64) []float64 {
	s := make([]float64, len(u)+1)
	for t, ut := range u {
		s[t+1] = b.Step(s[t], ut)
	}
	return s
}

// Throughput returns the energy charged and discharged over a trajectory,
// measured at the battery terminal.
func (b *Battery) Throughput(u []float64) (charged, discharged float64) {
	for _, ut := range u {
		if ut > 0 {
			charged += ut
		} else {
			discharged -= ut
		}
	}
	return charged, discharged
}
