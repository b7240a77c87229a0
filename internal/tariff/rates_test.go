package tariff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRates(t *testing.T) {
	r := DefaultRates()
	assert.NoError(t, r.Validate())
	assert.Equal(t, 0.14683, r.EnergyCharge(Peak))
	assert.Equal(t, 0.10671, r.EnergyCharge(PartPeak))
	assert.Equal(t, 0.08014, r.EnergyCharge(OffPeak))
	assert.Equal(t, 18.74, r.DemandCharge(DemandPeak))
	assert.Equal(t, 5.23, r.DemandCharge(DemandPartPeak))
	assert.Equal(t, 15.96, r.DemandCharge(DemandMax))
}

func TestRatesValidate(t *testing.T) {
	r := DefaultRates()
	r.Demand.Max = -1
	assert.ErrorIs(t, r.Validate(), ErrInvalidConfig)

	r = DefaultRates()
	r.Energy.OffPeak = math.NaN()
	assert.ErrorIs(t, r.Validate(), ErrInvalidConfig)

	r = DefaultRates()
	r.Energy.Peak = 0
	assert.NoError(t, r.Validate())
}
