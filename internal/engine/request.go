package engine

import (
	"path/filepath"
	"strings"
	"time"

	telemetry "inverter-twin/internal/telemetry/domain"
	"inverter-twin/internal/twin"
)

// Request carries everything one analysis invocation needs. The engine holds
// no state between invocations; every derived record is recomputed from the
// request.
type Request struct {
	// Tables are the per-inverter extracts. The table source name, minus any
	// file extension, becomes the inverter id.
	Tables []telemetry.Table
	// Weather is an optional external weather table joined by exact timestamp.
	Weather *telemetry.Table
	// Metadata is passed through verbatim to report headers.
	Metadata telemetry.Metadata

	// Params apply to every inverter unless overridden per inverter id.
	Params    twin.Parameters
	Overrides map[string]twin.Parameters

	ThresholdPct float64
	Policy       twin.ZeroDenominatorPolicy
	Strict       bool

	// RangeStart/RangeEnd select an inclusive calendar-date window. Both zero
	// means the full available range.
	RangeStart time.Time
	RangeEnd   time.Time

	// Inverters restricts the analysis to a subset of inverter ids. Empty
	// means all.
	Inverters []string
}

// withDefaults fills unset request fields with the stock configuration.
func (r Request) withDefaults() Request {
	if r.Params == (twin.Parameters{}) {
		r.Params = twin.DefaultParameters()
	}
	if r.ThresholdPct == 0 {
		r.ThresholdPct = twin.DefaultAlertThresholdPct
	}
	if r.Policy == "" {
		r.Policy = twin.ZeroDenominatorLegacy
	}
	return r
}

// hasRange reports whether a date window was requested.
func (r Request) hasRange() bool {
	return !r.RangeStart.IsZero() || !r.RangeEnd.IsZero()
}

// paramsFor returns the parameters for one inverter.
func (r Request) paramsFor(inverterID string) twin.Parameters {
	if override, ok := r.Overrides[inverterID]; ok {
		return override
	}
	return r.Params
}

// wantsInverter reports whether the inverter is inside the requested subset.
func (r Request) wantsInverter(inverterID string) bool {
	if len(r.Inverters) == 0 {
		return true
	}
	for _, id := range r.Inverters {
		if id == inverterID {
			return true
		}
	}
	return false
}

// InverterIDFromSource derives the inverter identity from an upload name:
// the base name with any extension removed.
func InverterIDFromSource(source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	if ext != "" && len(ext) < len(base) {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
