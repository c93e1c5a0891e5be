package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inverter-twin/internal/alerts/notify"
	telemetry "inverter-twin/internal/telemetry/domain"
	"inverter-twin/internal/twin"
)

var telemetryHeader = []string{"Time", "Irradiance", "Module_Temp", "V_dc", "I_dc", "P_ac"}

type sampleSpec struct {
	ts         string
	irradiance float64
	moduleTemp float64
	acPower    float64
}

func tableOf(source string, specs ...sampleSpec) telemetry.Table {
	records := make([][]string, 0, len(specs))
	for _, spec := range specs {
		records = append(records, []string{
			spec.ts,
			fmt.Sprintf("%g", spec.irradiance),
			fmt.Sprintf("%g", spec.moduleTemp),
			"400",
			"10",
			fmt.Sprintf("%g", spec.acPower),
		})
	}
	return telemetry.Table{Source: source, Header: telemetryHeader, Records: records}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	eng, err := NewEngine(twin.BaselineModel{}, opts...)
	require.NoError(t, err)
	return eng
}

func TestRun_SingleInverterScenario(t *testing.T) {
	// actual=380 against expected 6000*0.8*(1-0.004*5)*0.95 = 4468.8 W,
	// deviation around -91.5%.
	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 380},
		sampleSpec{"2025-06-01 10:15:00", 800, 30, 4468.8},
	)
	result, err := newTestEngine(t).Run(context.Background(), Request{Tables: []telemetry.Table{table}})
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, result.Outcome)
	require.Equal(t, 2, result.Fleet.Len())
	require.Len(t, result.Records, 2)

	first := result.Records[0]
	assert.Equal(t, "inv-1", first.InverterID)
	assert.InDelta(t, 4468.8, first.ExpectedW, 1e-9)
	assert.InDelta(t, -91.5, first.DeviationPct, 0.05)
	assert.Equal(t, twin.StatusAlert, first.Status)

	second := result.Records[1]
	assert.Equal(t, twin.StatusOK, second.Status)
	assert.InDelta(t, 0.0, second.DeviationPct, 1e-9)

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, 1, result.TotalAlerts())
	assert.Equal(t, map[string]int{"inv-1": 1}, result.AlertsByInverter())

	require.Len(t, result.KPIs, 1)
	assert.Equal(t, "inv-1", result.KPIs[0].InverterID)
	require.NotNil(t, result.KPIs[0].PR)
	require.NotNil(t, result.KPIs[0].CUF)

	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), result.AvailableStart)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC), result.AvailableEnd)
}

func TestRun_EmptyUploadIsNoData(t *testing.T) {
	result, err := newTestEngine(t).Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoData, result.Outcome)
	assert.Empty(t, result.KPIs)
	assert.Empty(t, result.Alerts)
}

func TestRun_InvalidFileIsIsolated(t *testing.T) {
	good := tableOf("inv-good.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 4468.8},
		sampleSpec{"2025-06-01 10:15:00", 800, 30, 4468.8},
	)
	broken := telemetry.Table{
		Source:  "inv-broken.csv",
		Header:  []string{"Time", "P_ac"},
		Records: [][]string{{"2025-06-01 10:00:00", "100"}},
	}

	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables: []telemetry.Table{good, broken},
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, result.Outcome)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "inv-broken.csv", result.Skipped[0].Source)
	assert.Contains(t, result.Skipped[0].Reason, "missing columns")

	assert.Len(t, result.KPIs, 1)
	assert.Equal(t, "inv-good", result.KPIs[0].InverterID)
}

func TestRun_DateFilterExcludesNonOverlappingInverter(t *testing.T) {
	june := tableOf("inv-june.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 4000},
		sampleSpec{"2025-06-01 10:15:00", 800, 30, 4000},
	)
	july := tableOf("inv-july.csv",
		sampleSpec{"2025-07-01 10:00:00", 800, 30, 4000},
		sampleSpec{"2025-07-01 10:15:00", 800, 30, 4000},
	)

	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables:     []telemetry.Table{june, july},
		RangeStart: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// The July inverter is excluded entirely, without an error.
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, []string{"inv-june"}, result.Fleet.InverterIDs())
	require.Len(t, result.KPIs, 1)
	assert.Equal(t, "inv-june", result.KPIs[0].InverterID)
}

func TestRun_RangeWithNoSurvivorsIsFatal(t *testing.T) {
	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 4000},
	)
	_, err := newTestEngine(t).Run(context.Background(), Request{
		Tables:     []telemetry.Table{table},
		RangeStart: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestRun_AllFilesSkippedIsNoData(t *testing.T) {
	broken := telemetry.Table{
		Source:  "inv-broken.csv",
		Header:  []string{"Time"},
		Records: [][]string{{"2025-06-01 10:00:00"}},
	}
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables: []telemetry.Table{broken},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoData, result.Outcome)
	assert.Len(t, result.Skipped, 1)
}

func TestRun_InverterSubset(t *testing.T) {
	a := tableOf("inv-a.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 4000},
		sampleSpec{"2025-06-01 10:15:00", 800, 30, 4000},
	)
	b := tableOf("inv-b.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 4000},
		sampleSpec{"2025-06-01 10:15:00", 800, 30, 4000},
	)
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables:    []telemetry.Table{a, b},
		Inverters: []string{"inv-b"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"inv-b"}, result.Fleet.InverterIDs())
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "inv-a.csv", result.Skipped[0].Source)
}

func TestRun_DuplicateInverterIDSkipsLaterUpload(t *testing.T) {
	first := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 4000},
		sampleSpec{"2025-06-01 10:15:00", 800, 30, 4000},
	)
	second := tableOf("uploads/inv-1.csv",
		sampleSpec{"2025-06-02 10:00:00", 800, 30, 4000},
		sampleSpec{"2025-06-02 10:15:00", 800, 30, 4000},
	)
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables: []telemetry.Table{first, second},
	})
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "uploads/inv-1.csv", result.Skipped[0].Source)
	assert.Contains(t, result.Skipped[0].Reason, "duplicate inverter id")
	assert.Contains(t, result.Skipped[0].Reason, "inv-1.csv")

	// Only the first upload's pipeline survives, keeping the result aligned.
	assert.Equal(t, 2, result.Fleet.Len())
	assert.Len(t, result.Records, 2)
	require.Len(t, result.KPIs, 1)
	assert.Equal(t, []string{"inv-1"}, result.Fleet.InverterIDs())
	assert.Equal(t, time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC), result.AvailableEnd)
}

func TestRun_AvailableRangeSpansUnfilteredData(t *testing.T) {
	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 4000},
		sampleSpec{"2025-06-15 10:00:00", 800, 30, 4000},
		sampleSpec{"2025-06-30 10:00:00", 800, 30, 4000},
	)
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables:     []telemetry.Table{table},
		RangeStart: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Equal(t, 1, result.Fleet.Len())
	// The available range still spans the full uploaded data, not the window.
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), result.AvailableStart)
	assert.Equal(t, time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC), result.AvailableEnd)
}

func TestRun_EmptyRangeKeepsSkippedReports(t *testing.T) {
	good := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 4000},
	)
	broken := telemetry.Table{
		Source:  "inv-broken.csv",
		Header:  []string{"Time"},
		Records: [][]string{{"2025-06-01 10:00:00"}},
	}
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables:     []telemetry.Table{good, broken},
		RangeStart: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrEmptyRange)

	// The partial result still carries the per-file reports.
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "inv-broken.csv", result.Skipped[0].Source)
}

func TestRun_WeatherMatchingNothingSkipsFile(t *testing.T) {
	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 100, 20, 4000},
	)
	weather := telemetry.Table{
		Source: "weather.csv",
		Header: []string{"Time", "Irradiance", "Module_Temp", "wind_speed"},
		Records: [][]string{
			{"2025-07-01 10:00:00", "800", "30", "3"},
		},
	}
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables:  []telemetry.Table{table},
		Weather: &weather,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoData, result.Outcome)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "weather")
}

func TestRun_WeatherMergeOverridesEnvironment(t *testing.T) {
	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 100, 20, 4000},
		sampleSpec{"2025-06-01 10:15:00", 100, 20, 4000},
	)
	weather := telemetry.Table{
		Source: "weather.csv",
		Header: []string{"Time", "Irradiance", "Module_Temp", "wind_speed"},
		Records: [][]string{
			{"2025-06-01 10:00:00", "800", "30", "3"},
		},
	}
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables:  []telemetry.Table{table},
		Weather: &weather,
	})
	require.NoError(t, err)

	// Only the matched row survives, and the model sees weather-station
	// irradiance and temperature.
	require.Equal(t, 1, result.Fleet.Len())
	assert.Equal(t, 800.0, result.Fleet.Record(0).Sample.Irradiance)
	assert.InDelta(t, 4468.8, result.Records[0].ExpectedW, 1e-9)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, telemetry.WarnWeatherDropped, result.Warnings[0].Code)
}

func TestRun_UndefinedPolicyExcludesZeroExpected(t *testing.T) {
	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 04:00:00", 0, 15, 12},
		sampleSpec{"2025-06-01 04:15:00", 0, 15, 12},
	)
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables: []telemetry.Table{table},
		Policy: twin.ZeroDenominatorUndefined,
	})
	require.NoError(t, err)

	for _, record := range result.Records {
		assert.Equal(t, twin.StatusUndefined, record.Status)
	}
	assert.Empty(t, result.Alerts)
}

func TestRun_LegacyPolicyAlertsOnZeroExpected(t *testing.T) {
	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 04:00:00", 0, 15, 12},
		sampleSpec{"2025-06-01 04:15:00", 0, 15, 12},
	)
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables: []telemetry.Table{table},
	})
	require.NoError(t, err)

	// denom falls back to 1: deviation is 100*12 = 1200%.
	require.Len(t, result.Alerts, 2)
	assert.InDelta(t, 1200.0, result.Alerts[0].DeviationPct, 1e-9)
}

func TestRun_PerInverterOverrides(t *testing.T) {
	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 1000, 25, 950},
		sampleSpec{"2025-06-01 10:15:00", 1000, 25, 950},
	)
	result, err := newTestEngine(t).Run(context.Background(), Request{
		Tables: []telemetry.Table{table},
		Overrides: map[string]twin.Parameters{
			"inv-1": {RatedDCCapacity: 1000, TempCoefficient: -0.004, InverterEfficiency: 0.95},
		},
	})
	require.NoError(t, err)

	// At STC with the override, expected is rated*eff = 950 W.
	assert.InDelta(t, 950.0, result.Records[0].ExpectedW, 1e-9)
	assert.Equal(t, twin.StatusOK, result.Records[0].Status)
}

type captureNotifier struct {
	summaries []notify.Summary
}

func (c *captureNotifier) Notify(_ context.Context, summary notify.Summary) error {
	c.summaries = append(c.summaries, summary)
	return nil
}

func TestRun_NotifierReceivesAlertSummary(t *testing.T) {
	capture := &captureNotifier{}
	eng := newTestEngine(t, WithNotifier(capture))

	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 380},
		sampleSpec{"2025-06-01 10:15:00", 800, 30, 4468.8},
	)
	_, err := eng.Run(context.Background(), Request{Tables: []telemetry.Table{table}})
	require.NoError(t, err)

	require.Len(t, capture.summaries, 1)
	assert.Equal(t, 1, capture.summaries[0].TotalAlerts)
	assert.Len(t, capture.summaries[0].Events, 1)
}

func TestRun_NoAlertsNoNotification(t *testing.T) {
	capture := &captureNotifier{}
	eng := newTestEngine(t, WithNotifier(capture))

	table := tableOf("inv-1.csv",
		sampleSpec{"2025-06-01 10:00:00", 800, 30, 4468.8},
		sampleSpec{"2025-06-01 10:15:00", 800, 30, 4468.8},
	)
	_, err := eng.Run(context.Background(), Request{Tables: []telemetry.Table{table}})
	require.NoError(t, err)
	assert.Empty(t, capture.summaries)
}

func TestRun_InvalidParametersRejected(t *testing.T) {
	table := tableOf("inv-1.csv", sampleSpec{"2025-06-01 10:00:00", 800, 30, 4000})
	_, err := newTestEngine(t).Run(context.Background(), Request{
		Tables: []telemetry.Table{table},
		Params: twin.Parameters{RatedDCCapacity: -1, InverterEfficiency: 0.95},
	})
	assert.ErrorIs(t, err, twin.ErrInvalidRatedCapacity)
}

func TestInverterIDFromSource(t *testing.T) {
	assert.Equal(t, "inv-1", InverterIDFromSource("inv-1.csv"))
	assert.Equal(t, "inv-1", InverterIDFromSource("uploads/inv-1.csv"))
	assert.Equal(t, "inv-1", InverterIDFromSource("inv-1"))
	assert.Equal(t, ".csv", InverterIDFromSource(".csv"))
}
