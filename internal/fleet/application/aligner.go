package application

import (
	"fmt"
	"sort"
	"time"

	fleet "inverter-twin/internal/fleet/domain"
	telemetry "inverter-twin/internal/telemetry/domain"
)

// Aligner selects date ranges, merges external weather rows and unions
// per-inverter series into one fleet dataset.
type Aligner struct{}

// NewAligner constructs an Aligner.
func NewAligner() *Aligner {
	return &Aligner{}
}

// SelectRange returns a new series holding the samples whose calendar date
// falls inclusively between start and end. Filtering is whole-day: a range
// ending on a date keeps every sample of that date regardless of
// time-of-day. An empty result is an EmptyRangeError.
func (a *Aligner) SelectRange(series telemetry.InverterSeries, start, end time.Time) (telemetry.InverterSeries, error) {
	startDay := truncateToDay(start)
	endDay := truncateToDay(end)

	selected := series.Filter(func(sample telemetry.TelemetrySample) bool {
		day := truncateToDay(sample.Timestamp)
		return !day.Before(startDay) && !day.After(endDay)
	})
	if selected.Len() == 0 {
		return telemetry.InverterSeries{}, &fleet.EmptyRangeError{
			InverterID: series.InverterID(),
			Start:      startDay,
			End:        endDay,
		}
	}
	return selected, nil
}

// MergeWeather joins a series with an external weather series by exact
// timestamp equality. Matched samples take irradiance and module temperature
// from the weather station; telemetry rows without an exact match are dropped
// and counted. No interpolation is performed.
func (a *Aligner) MergeWeather(series telemetry.InverterSeries, weather telemetry.WeatherSeries) (telemetry.InverterSeries, []telemetry.Warning, error) {
	byTime := make(map[time.Time]telemetry.WeatherSample, weather.Len())
	for _, sample := range weather.Samples() {
		byTime[sample.Timestamp] = sample
	}

	dropped := 0
	matched := series.Filter(func(sample telemetry.TelemetrySample) bool {
		if _, ok := byTime[sample.Timestamp]; ok {
			return true
		}
		dropped++
		return false
	})
	merged := matched.Map(func(sample telemetry.TelemetrySample) telemetry.TelemetrySample {
		w := byTime[sample.Timestamp]
		sample.Irradiance = w.Irradiance
		sample.ModuleTemp = w.ModuleTemp
		return sample
	})

	var warnings []telemetry.Warning
	if dropped > 0 {
		warnings = append(warnings, telemetry.Warning{
			Code: telemetry.WarnWeatherDropped,
			Message: fmt.Sprintf("%s: %d of %d rows had no exact weather match and were dropped",
				series.InverterID(), dropped, series.Len()),
		})
	}
	return merged, warnings, nil
}

// UnionAll concatenates the selected per-inverter series into one
// time-ordered, inverter-tagged dataset.
func (a *Aligner) UnionAll(seriesByInverter map[string]telemetry.InverterSeries) fleet.Dataset {
	total := 0
	for _, series := range seriesByInverter {
		total += series.Len()
	}
	records := make([]fleet.Record, 0, total)
	for id, series := range seriesByInverter {
		for _, sample := range series.Samples() {
			records = append(records, fleet.Record{InverterID: id, Sample: sample})
		}
	}
	sort.SliceStable(records, func(a, b int) bool {
		at, bt := records[a].Sample.Timestamp, records[b].Sample.Timestamp
		if at.Equal(bt) {
			return records[a].InverterID < records[b].InverterID
		}
		return at.Before(bt)
	})
	return fleet.NewDataset(records)
}

func truncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
