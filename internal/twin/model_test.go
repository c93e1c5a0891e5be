package twin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaselineModel_STCReference(t *testing.T) {
	params := DefaultParameters()
	expected := BaselineModel{}.ExpectedPower(1000, 25, params)

	// At STC the irradiance and temperature terms are exactly 1.
	assert.Equal(t, params.RatedDCCapacity*params.InverterEfficiency, expected)
}

func TestBaselineModel_Scenario800W30C(t *testing.T) {
	params := Parameters{
		RatedDCCapacity:    6000,
		TempCoefficient:    -0.004,
		InverterEfficiency: 0.95,
	}
	expected := BaselineModel{}.ExpectedPower(800, 30, params)

	// 6000 * 0.8 * (1 - 0.004*5) * 0.95
	assert.InDelta(t, 4468.8, expected, 1e-9)
}

func TestBaselineModel_MonotonicInIrradiance(t *testing.T) {
	params := DefaultParameters()
	model := BaselineModel{}
	previous := model.ExpectedPower(0, 40, params)
	for g := 50.0; g <= 1200; g += 50 {
		current := model.ExpectedPower(g, 40, params)
		assert.GreaterOrEqual(t, current, previous, "irradiance %f", g)
		previous = current
	}
}

func TestBaselineModel_NonIncreasingInTemperature(t *testing.T) {
	params := DefaultParameters()
	model := BaselineModel{}
	previous := model.ExpectedPower(900, -10, params)
	for temp := -5.0; temp <= 90; temp += 5 {
		current := model.ExpectedPower(900, temp, params)
		assert.LessOrEqual(t, current, previous, "temperature %f", temp)
		previous = current
	}
}

func TestBaselineModel_ClampsNegativeToZero(t *testing.T) {
	params := DefaultParameters()
	model := BaselineModel{}

	// 1 + (-0.004)*(300-25) = -0.1, so the raw product is negative.
	assert.Equal(t, 0.0, model.ExpectedPower(1000, 300, params))
	// Negative irradiance also clamps rather than producing negative power.
	assert.Equal(t, 0.0, model.ExpectedPower(-100, 25, params))
}

func TestBaselineModel_ZeroIrradiance(t *testing.T) {
	assert.Equal(t, 0.0, BaselineModel{}.ExpectedPower(0, 25, DefaultParameters()))
}

func TestParameters_Validate(t *testing.T) {
	assert.NoError(t, DefaultParameters().Validate())

	bad := DefaultParameters()
	bad.RatedDCCapacity = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRatedCapacity)

	bad = DefaultParameters()
	bad.InverterEfficiency = 1.2
	assert.ErrorIs(t, bad.Validate(), ErrInvalidEfficiency)

	bad.InverterEfficiency = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidEfficiency)
}
