package application

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fleet "inverter-twin/internal/fleet/domain"
	telemetry "inverter-twin/internal/telemetry/domain"
)

func seriesOf(t *testing.T, id string, timestamps ...time.Time) telemetry.InverterSeries {
	t.Helper()
	samples := make([]telemetry.TelemetrySample, 0, len(timestamps))
	for i, ts := range timestamps {
		samples = append(samples, telemetry.TelemetrySample{
			Timestamp:     ts,
			Irradiance:    float64(100 * (i + 1)),
			ModuleTemp:    25,
			ActualACPower: float64(500 * (i + 1)),
		})
	}
	series, err := telemetry.NewInverterSeries(id, samples)
	require.NoError(t, err)
	return series
}

func day(d int, hour int) time.Time {
	return time.Date(2025, 6, d, hour, 0, 0, 0, time.UTC)
}

func TestSelectRange_InclusiveCalendarDates(t *testing.T) {
	series := seriesOf(t, "inv-1", day(1, 10), day(2, 10), day(3, 23), day(4, 0))
	aligner := NewAligner()

	// The end date keeps every sample of that day, even late ones.
	selected, err := aligner.SelectRange(series, day(2, 15), day(3, 2))
	require.NoError(t, err)
	require.Equal(t, 2, selected.Len())
	assert.Equal(t, day(2, 10), selected.Sample(0).Timestamp)
	assert.Equal(t, day(3, 23), selected.Sample(1).Timestamp)
}

func TestSelectRange_DoesNotMutateOriginal(t *testing.T) {
	series := seriesOf(t, "inv-1", day(1, 10), day(2, 10))
	_, err := NewAligner().SelectRange(series, day(2, 0), day(2, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, series.Len())
}

func TestSelectRange_EmptyResultIsError(t *testing.T) {
	series := seriesOf(t, "inv-1", day(1, 10), day(2, 10))
	_, err := NewAligner().SelectRange(series, day(10, 0), day(11, 0))

	var emptyErr *fleet.EmptyRangeError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, "inv-1", emptyErr.InverterID)
}

func TestMergeWeather_ExactJoinAndDroppedCount(t *testing.T) {
	series := seriesOf(t, "inv-1", day(1, 10), day(1, 11), day(1, 12))
	weather, err := telemetry.NewWeatherSeries([]telemetry.WeatherSample{
		{Timestamp: day(1, 10), Irradiance: 777, ModuleTemp: 28, WindSpeed: 3},
		{Timestamp: day(1, 12), Irradiance: 888, ModuleTemp: 29, WindSpeed: 4},
		{Timestamp: day(1, 13), Irradiance: 999, ModuleTemp: 30, WindSpeed: 5},
	})
	require.NoError(t, err)

	merged, warnings, err := NewAligner().MergeWeather(series, weather)
	require.NoError(t, err)

	// The 11:00 telemetry row has no exact match and is dropped, not
	// interpolated.
	require.Equal(t, 2, merged.Len())
	assert.Equal(t, 777.0, merged.Sample(0).Irradiance)
	assert.Equal(t, 28.0, merged.Sample(0).ModuleTemp)
	assert.Equal(t, 888.0, merged.Sample(1).Irradiance)
	// Electrical readings stay from the inverter extract.
	assert.Equal(t, 500.0, merged.Sample(0).ActualACPower)

	require.Len(t, warnings, 1)
	assert.Equal(t, telemetry.WarnWeatherDropped, warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "1 of 3")
}

func TestMergeWeather_NoDropsNoWarning(t *testing.T) {
	series := seriesOf(t, "inv-1", day(1, 10))
	weather, err := telemetry.NewWeatherSeries([]telemetry.WeatherSample{
		{Timestamp: day(1, 10), Irradiance: 700, ModuleTemp: 26},
	})
	require.NoError(t, err)

	merged, warnings, err := NewAligner().MergeWeather(series, weather)
	require.NoError(t, err)
	assert.Equal(t, 1, merged.Len())
	assert.Empty(t, warnings)
}

func TestUnionAll_TimeOrderedAndTagged(t *testing.T) {
	a := seriesOf(t, "inv-a", day(1, 10), day(1, 12))
	b := seriesOf(t, "inv-b", day(1, 11), day(1, 12))

	dataset := NewAligner().UnionAll(map[string]telemetry.InverterSeries{
		"inv-a": a,
		"inv-b": b,
	})
	require.Equal(t, 4, dataset.Len())

	var got []string
	for _, record := range dataset.Records() {
		got = append(got, record.InverterID+"@"+record.Sample.Timestamp.Format("15:04"))
	}
	// Equal timestamps tie-break by inverter id for determinism.
	assert.Equal(t, []string{"inv-a@10:00", "inv-b@11:00", "inv-a@12:00", "inv-b@12:00"}, got)

	assert.ElementsMatch(t, []string{"inv-a", "inv-b"}, dataset.InverterIDs())
	assert.Len(t, dataset.ByInverter("inv-a"), 2)
}
