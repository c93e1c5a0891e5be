package twin

import "time"

// Standard Test Conditions reference values.
const (
	stcIrradiance = 1000.0 // W/m²
	stcModuleTemp = 25.0   // °C
)

// Model maps environmental inputs and parameters to an expected AC power in
// watts. Implementations must be pure and safe for concurrent use, so a
// richer orientation- or loss-aware model can replace the baseline without
// touching any downstream component.
type Model interface {
	ExpectedPower(irradiance, moduleTemp float64, p Parameters) float64
}

// ExpectedPowerSample is one model output at a timestamp.
type ExpectedPowerSample struct {
	Timestamp       time.Time
	ExpectedACPower float64
}

// BaselineModel is the first-order irradiance-linear, temperature-derated
// model referenced to STC:
//
//	expected = rated * (G/1000) * (1 + gamma*(T-25)) * eff
//
// Results are clamped to zero: the derating term can go negative at extreme
// module temperatures, but physical AC power cannot.
type BaselineModel struct{}

// ExpectedPower implements Model.
func (BaselineModel) ExpectedPower(irradiance, moduleTemp float64, p Parameters) float64 {
	expected := p.RatedDCCapacity *
		(irradiance / stcIrradiance) *
		(1 + p.TempCoefficient*(moduleTemp-stcModuleTemp)) *
		p.InverterEfficiency
	if expected < 0 {
		return 0
	}
	return expected
}
