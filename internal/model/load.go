package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidLoad is wrapped by load profile validation errors.
var ErrInvalidLoad = errors.New("invalid load profile")

// LoadProfile is the site consumption per sample, in kWh per sample.
type LoadProfile []float64

// Validate checks the profile against the horizon of a time grid.
func (l LoadProfile) Validate(horizon int) error {
	if len(l) != horizon {
		return fmt.Errorf("%w: length %d does not match horizon %d", ErrInvalidLoad, len(l), horizon)
	}
	for i, v := range l {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: sample %d is not finite", ErrInvalidLoad, i)
		}
	}
	return nil
}

// ConstantLoad returns a profile of n samples all equal to v.
func ConstantLoad(n int, v float64) LoadProfile {
	l := make(LoadProfile, n)
	for i := range l {
		l[i] = v
	}
	return l
}
