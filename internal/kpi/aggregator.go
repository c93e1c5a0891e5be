// Package kpi computes energy-yield indicators per inverter and window.
package kpi

import (
	"time"

	telemetry "inverter-twin/internal/telemetry/domain"
	"inverter-twin/internal/twin"
)

// Record is the KPI result for one inverter over one window. PR and CUF are
// nil when their denominators are degenerate (zero theoretical energy, zero
// duration, or a series too short to infer a sampling interval); callers
// render nil as N/A rather than treating it as an error.
type Record struct {
	InverterID  string
	WindowStart time.Time
	WindowEnd   time.Time
	PR          *float64
	CUF         *float64
}

// Aggregator computes PR and CUF from validated series. No rounding happens
// here; presentation rounds at the output boundary.
type Aggregator struct{}

// NewAggregator constructs an Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate computes the KPI record for one inverter's series.
//
// The sampling interval is inferred from the spacing of the first two samples
// and assumed uniform across the series. Energies follow the rectangle sums
//
//	actual      = Σ P_ac * dt
//	theoretical = rated * Σ (G/1000) * dt
//
// PR = actual/theoretical when theoretical > 0, CUF = actual/(rated * n*dt)
// when the duration is positive; otherwise the ratio is undefined.
func (a *Aggregator) Aggregate(series telemetry.InverterSeries, params twin.Parameters) Record {
	record := Record{InverterID: series.InverterID()}
	if start, ok := series.Start(); ok {
		record.WindowStart = start
	}
	if end, ok := series.End(); ok {
		record.WindowEnd = end
	}

	if series.Len() < 2 {
		// A single sample gives no interval to integrate over.
		return record
	}
	dtHours := series.Sample(1).Timestamp.Sub(series.Sample(0).Timestamp).Hours()
	if dtHours <= 0 {
		return record
	}

	var actualPowerSum, irradianceRatioSum float64
	for _, sample := range series.Samples() {
		actualPowerSum += sample.ActualACPower
		irradianceRatioSum += sample.Irradiance / 1000
	}

	actualEnergy := actualPowerSum * dtHours
	theoreticalEnergy := params.RatedDCCapacity * irradianceRatioSum * dtHours
	totalDurationHours := float64(series.Len()) * dtHours

	if theoreticalEnergy > 0 {
		pr := actualEnergy / theoreticalEnergy
		record.PR = &pr
	}
	if totalDurationHours > 0 {
		cuf := actualEnergy / (params.RatedDCCapacity * totalDurationHours)
		record.CUF = &cuf
	}
	return record
}
