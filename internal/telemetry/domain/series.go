package telemetry

import "time"

// InverterSeries is a validated, time-ordered sequence of samples for one
// inverter. It is immutable once built: range selection and weather merges
// produce new series instead of mutating the receiver.
type InverterSeries struct {
	inverterID string
	samples    []TelemetrySample
}

// NewInverterSeries builds a series from already ordered, duplicate-free
// samples. The validator is the only intended producer; callers constructing
// series directly must uphold the ordering invariant themselves.
func NewInverterSeries(inverterID string, samples []TelemetrySample) (InverterSeries, error) {
	if inverterID == "" {
		return InverterSeries{}, ErrEmptyInverterID
	}
	for i := 1; i < len(samples); i++ {
		if !samples[i].Timestamp.After(samples[i-1].Timestamp) {
			return InverterSeries{}, ErrUnorderedSamples
		}
	}
	owned := make([]TelemetrySample, len(samples))
	copy(owned, samples)
	return InverterSeries{inverterID: inverterID, samples: owned}, nil
}

// InverterID returns the series identity.
func (s InverterSeries) InverterID() string { return s.inverterID }

// Len returns the number of samples.
func (s InverterSeries) Len() int { return len(s.samples) }

// Sample returns the i-th sample.
func (s InverterSeries) Sample(i int) TelemetrySample { return s.samples[i] }

// Samples returns a copy of the underlying samples.
func (s InverterSeries) Samples() []TelemetrySample {
	out := make([]TelemetrySample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Start returns the first timestamp and whether the series is non-empty.
func (s InverterSeries) Start() (time.Time, bool) {
	if len(s.samples) == 0 {
		return time.Time{}, false
	}
	return s.samples[0].Timestamp, true
}

// End returns the last timestamp and whether the series is non-empty.
func (s InverterSeries) End() (time.Time, bool) {
	if len(s.samples) == 0 {
		return time.Time{}, false
	}
	return s.samples[len(s.samples)-1].Timestamp, true
}

// Filter returns a new series holding the samples for which keep returns true.
// Ordering is preserved, so the result satisfies the series invariant.
func (s InverterSeries) Filter(keep func(TelemetrySample) bool) InverterSeries {
	var kept []TelemetrySample
	for _, sample := range s.samples {
		if keep(sample) {
			kept = append(kept, sample)
		}
	}
	return InverterSeries{inverterID: s.inverterID, samples: kept}
}

// Map returns a new series with each sample replaced by transform(sample).
// The transform must not change timestamps.
func (s InverterSeries) Map(transform func(TelemetrySample) TelemetrySample) InverterSeries {
	mapped := make([]TelemetrySample, len(s.samples))
	for i, sample := range s.samples {
		mapped[i] = transform(sample)
	}
	return InverterSeries{inverterID: s.inverterID, samples: mapped}
}

// WeatherSeries is a time-ordered external weather series.
type WeatherSeries struct {
	samples []WeatherSample
}

// NewWeatherSeries builds a weather series from ordered, duplicate-free rows.
func NewWeatherSeries(samples []WeatherSample) (WeatherSeries, error) {
	for i := 1; i < len(samples); i++ {
		if !samples[i].Timestamp.After(samples[i-1].Timestamp) {
			return WeatherSeries{}, ErrUnorderedSamples
		}
	}
	owned := make([]WeatherSample, len(samples))
	copy(owned, samples)
	return WeatherSeries{samples: owned}, nil
}

// Len returns the number of weather rows.
func (w WeatherSeries) Len() int { return len(w.samples) }

// Samples returns a copy of the underlying weather rows.
func (w WeatherSeries) Samples() []WeatherSample {
	out := make([]WeatherSample, len(w.samples))
	copy(out, w.samples)
	return out
}

// At returns the weather row with exactly the given timestamp.
func (w WeatherSeries) At(ts time.Time) (WeatherSample, bool) {
	// Series are small and fully materialized; a scan keeps the index-free
	// immutable representation.
	for _, sample := range w.samples {
		if sample.Timestamp.Equal(ts) {
			return sample, true
		}
	}
	return WeatherSample{}, false
}
