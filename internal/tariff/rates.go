package tariff

import (
	"fmt"
	"math"
)

// EnergyCharges are per-kWh prices for each tier.
type EnergyCharges struct {
	Peak     float64 `yaml:"peak" json:"peak"`
	PartPeak float64 `yaml:"part_peak" json:"part_peak"`
	OffPeak  float64 `yaml:"off_peak" json:"off_peak"`
}

// DemandCharges are per-kW prices applied to the maximum draw of each category.
type DemandCharges struct {
	Peak     float64 `yaml:"peak" json:"peak"`
	PartPeak float64 `yaml:"part_peak" json:"part_peak"`
	Max      float64 `yaml:"max" json:"max"`
}

// Rates is the price table of a tariff. It does not depend on the horizon.
type Rates struct {
	Energy EnergyCharges `yaml:"energy" json:"energy"`
	Demand DemandCharges `yaml:"demand" json:"demand"`
}

// DefaultRates returns the reference commercial tariff.
func DefaultRates() Rates {
	return Rates{
		Energy: EnergyCharges{Peak: 0.14683, PartPeak: 0.10671, OffPeak: 0.08014},
		Demand: DemandCharges{Peak: 18.74, PartPeak: 5.23, Max: 15.96},
	}
}

func (r Rates) EnergyCharge(p Period) float64 {
	switch p {
	case Peak:
		return r.Energy.Peak
	case PartPeak:
		return r.Energy.PartPeak
	case OffPeak:
		return r.Energy.OffPeak
	}
	return 0
}

func (r Rates) DemandCharge(dc DemandCategory) float64 {
	switch dc {
	case DemandPeak:
		return r.Demand.Peak
	case DemandPartPeak:
		return r.Demand.PartPeak
	case DemandMax:
		return r.Demand.Max
	}
	return 0
}

// Validate rejects negative or non-finite charges. A negative demand charge
// would turn the objective non-convex.
func (r Rates) Validate() error {
	for _, p := range Periods {
		if err := checkCharge("energy", p.String(), r.EnergyCharge(p)); err != nil {
			return err
		}
	}
	for _, dc := range DemandCategories {
		if err := checkCharge("demand", dc.String(), r.DemandCharge(dc)); err != nil {
			return err
		}
	}
	return nil
}

func checkCharge(kind, name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s charge %s must be finite", ErrInvalidConfig, kind, name)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s charge %s must be >= 0, got %g", ErrInvalidConfig, kind, name, v)
	}
	return nil
}
