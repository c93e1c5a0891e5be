package twin

import "errors"

// Defaults for a 6 kW string inverter rated at standard test conditions.
const (
	DefaultRatedDCCapacity    = 6000.0 // W
	DefaultTempCoefficient    = -0.004 // per °C
	DefaultInverterEfficiency = 0.95   // fraction
)

var (
	// ErrInvalidRatedCapacity indicates a non-positive rated DC capacity.
	ErrInvalidRatedCapacity = errors.New("twin: rated dc capacity must be positive")
	// ErrInvalidEfficiency indicates an efficiency outside (0, 1].
	ErrInvalidEfficiency = errors.New("twin: inverter efficiency must be in (0, 1]")
)

// Parameters describe one inverter's physical model inputs.
type Parameters struct {
	RatedDCCapacity    float64 // W, > 0
	TempCoefficient    float64 // per °C, typically negative
	InverterEfficiency float64 // fraction in (0, 1]
}

// DefaultParameters returns the stock parameter set.
func DefaultParameters() Parameters {
	return Parameters{
		RatedDCCapacity:    DefaultRatedDCCapacity,
		TempCoefficient:    DefaultTempCoefficient,
		InverterEfficiency: DefaultInverterEfficiency,
	}
}

// Validate checks the parameter invariants.
func (p Parameters) Validate() error {
	if p.RatedDCCapacity <= 0 {
		return ErrInvalidRatedCapacity
	}
	if p.InverterEfficiency <= 0 || p.InverterEfficiency > 1 {
		return ErrInvalidEfficiency
	}
	return nil
}
