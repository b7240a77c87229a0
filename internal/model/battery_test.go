package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatteryValidation(t *testing.T) {
	_, err := NewBattery(DefaultBatteryParams())
	require.NoError(t, err)

	zero := DefaultBatteryParams()
	zero.CapacityKWh = 0
	zero.PowerLimitKW = 0
	_, err = NewBattery(zero)
	require.NoError(t, err, "a zero-size battery is valid")

	cases := map[string]func(p *BatteryParams){
		"negative capacity":   func(p *BatteryParams) { p.CapacityKWh = -1 },
		"negative power":      func(p *BatteryParams) { p.PowerLimitKW = -5 },
		"zero charge eff":     func(p *BatteryParams) { p.ChargeEfficiency = 0 },
		"discharge eff > 1":   func(p *BatteryParams) { p.DischargeEfficiency = 1.2 },
		"non-finite capacity": func(p *BatteryParams) { p.CapacityKWh = math.Inf(1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultBatteryParams()
			mutate(&p)
			_, err := NewBattery(p)
			assert.ErrorIs(t, err, ErrInvalidBattery)
		})
	}
}

func TestBatteryDynamics(t *testing.T) {
	b, err := NewBattery(DefaultBatteryParams())
	require.NoError(t, err)

	assert.InDelta(t, 9.5, b.Step(0, 10), 1e-12)
	assert.InDelta(t, 19, b.GridDraw(10, 10), 1e-12)
	assert.InDelta(t, 1, b.GridDraw(10, -10), 1e-12)

	s := b.Replay([]float64{10, 0, -10})
	require.Len(t, s, 4)
	assert.InDelta(t, 0, s[0], 1e-12)
	assert.InDelta(t, 9.5, s[1], 1e-12)
	assert.InDelta(t, 9.5, s[2], 1e-12)
	assert.InDelta(t, 0, s[3], 1e-12)

	c, d := b.Throughput([]float64{10, 0, -4, -6})
	assert.Equal(t, 10.0, c)
	assert.Equal(t, 10.0, d)
}

func TestActionFromControl(t *testing.T) {
	assert.Equal(t, ActionCharging, ActionFromControl(3))
	assert.Equal(t, ActionDischarging, ActionFromControl(-3))
	assert.Equal(t, ActionIdle, ActionFromControl(1e-9))
}

func TestLoadProfileValidate(t *testing.T) {
	l := ConstantLoad(4, 2)
	assert.NoError(t, l.Validate(4))
	assert.ErrorIs(t, l.Validate(5), ErrInvalidLoad)
	l[2] = math.NaN()
	assert.ErrorIs(t, l.Validate(4), ErrInvalidLoad)

	assert.Equal(t, "b1", Scenario{Battery: BatteryParams{Name: "b1"}}.Label())
	assert.Equal(t, "s", Scenario{Name: "s", Battery: BatteryParams{Name: "b1"}}.Label())
}
