package application

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	telemetry "inverter-twin/internal/telemetry/domain"
)

// Column names of an inverter extract.
const (
	ColumnTime       = "Time"
	ColumnIrradiance = "Irradiance"
	ColumnModuleTemp = "Module_Temp"
	ColumnDCVoltage  = "V_dc"
	ColumnDCCurrent  = "I_dc"
	ColumnACPower    = "P_ac"
	ColumnWindSpeed  = "wind_speed"
)

var requiredTelemetryColumns = []string{
	ColumnTime,
	ColumnIrradiance,
	ColumnModuleTemp,
	ColumnDCVoltage,
	ColumnDCCurrent,
	ColumnACPower,
}

var requiredWeatherColumns = []string{
	ColumnTime,
	ColumnIrradiance,
	ColumnModuleTemp,
	ColumnWindSpeed,
}

// Accepted timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Physical plausibility bounds. Violations are warnings in normal mode and
// hard errors in strict mode.
const (
	minModuleTempC = -50
	maxModuleTempC = 100
)

// Validator checks schema and timestamp discipline of raw extracts and turns
// them into immutable series.
type Validator struct {
	strict bool
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithStrict promotes physical-range warnings to errors.
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator constructs a Validator.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateTelemetry parses one inverter's table into a series. Samples are
// sorted ascending by timestamp; duplicate timestamps are rejected.
func (v *Validator) ValidateTelemetry(table telemetry.Table, inverterID string) (telemetry.InverterSeries, []telemetry.Warning, error) {
	index, err := checkSchema(table, requiredTelemetryColumns)
	if err != nil {
		return telemetry.InverterSeries{}, nil, err
	}

	samples := make([]telemetry.TelemetrySample, 0, len(table.Records))
	for i, record := range table.Records {
		row := rowReader{table: table, index: index, record: record, rowNum: i + 2}
		sample := telemetry.TelemetrySample{}
		sample.Timestamp, err = row.timeValue(ColumnTime)
		if err == nil {
			sample.Irradiance, err = row.floatValue(ColumnIrradiance)
		}
		if err == nil {
			sample.ModuleTemp, err = row.floatValue(ColumnModuleTemp)
		}
		if err == nil {
			sample.DCVoltage, err = row.floatValue(ColumnDCVoltage)
		}
		if err == nil {
			sample.DCCurrent, err = row.floatValue(ColumnDCCurrent)
		}
		if err == nil {
			sample.ActualACPower, err = row.floatValue(ColumnACPower)
		}
		if err != nil {
			return telemetry.InverterSeries{}, nil, err
		}
		samples = append(samples, sample)
	}

	sort.SliceStable(samples, func(a, b int) bool {
		return samples[a].Timestamp.Before(samples[b].Timestamp)
	})
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp.Equal(samples[i-1].Timestamp) {
			return telemetry.InverterSeries{}, nil, &telemetry.DuplicateTimestampError{
				Source:    table.Source,
				Timestamp: samples[i].Timestamp.Format(time.RFC3339),
			}
		}
	}

	warnings, err := v.rangeFindings(table.Source, samples)
	if err != nil {
		return telemetry.InverterSeries{}, nil, err
	}

	series, err := telemetry.NewInverterSeries(inverterID, samples)
	if err != nil {
		return telemetry.InverterSeries{}, nil, err
	}
	return series, warnings, nil
}

// ValidateWeather parses an external weather table into a weather series.
// The same ordering and duplicate rules apply as for telemetry.
func (v *Validator) ValidateWeather(table telemetry.Table) (telemetry.WeatherSeries, error) {
	index, err := checkSchema(table, requiredWeatherColumns)
	if err != nil {
		return telemetry.WeatherSeries{}, err
	}

	samples := make([]telemetry.WeatherSample, 0, len(table.Records))
	for i, record := range table.Records {
		row := rowReader{table: table, index: index, record: record, rowNum: i + 2}
		sample := telemetry.WeatherSample{}
		sample.Timestamp, err = row.timeValue(ColumnTime)
		if err == nil {
			sample.Irradiance, err = row.floatValue(ColumnIrradiance)
		}
		if err == nil {
			sample.ModuleTemp, err = row.floatValue(ColumnModuleTemp)
		}
		if err == nil {
			sample.WindSpeed, err = row.floatValue(ColumnWindSpeed)
		}
		if err != nil {
			return telemetry.WeatherSeries{}, err
		}
		samples = append(samples, sample)
	}

	sort.SliceStable(samples, func(a, b int) bool {
		return samples[a].Timestamp.Before(samples[b].Timestamp)
	})
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp.Equal(samples[i-1].Timestamp) {
			return telemetry.WeatherSeries{}, &telemetry.DuplicateTimestampError{
				Source:    table.Source,
				Timestamp: samples[i].Timestamp.Format(time.RFC3339),
			}
		}
	}

	return telemetry.NewWeatherSeries(samples)
}

func (v *Validator) rangeFindings(source string, samples []telemetry.TelemetrySample) ([]telemetry.Warning, error) {
	var warnings []telemetry.Warning
	report := func(rowTS time.Time, what string) error {
		message := fmt.Sprintf("%s at %s: %s", source, rowTS.Format(time.RFC3339), what)
		if v.strict {
			return fmt.Errorf("telemetry: out-of-range value: %s", message)
		}
		warnings = append(warnings, telemetry.Warning{Code: telemetry.WarnOutOfRange, Message: message})
		return nil
	}

	for _, sample := range samples {
		if sample.Irradiance < 0 {
			if err := report(sample.Timestamp, fmt.Sprintf("negative irradiance %.3f W/m²", sample.Irradiance)); err != nil {
				return nil, err
			}
		}
		if sample.ModuleTemp < minModuleTempC || sample.ModuleTemp > maxModuleTempC {
			if err := report(sample.Timestamp, fmt.Sprintf("module temperature %.1f °C outside [%d, %d]", sample.ModuleTemp, minModuleTempC, maxModuleTempC)); err != nil {
				return nil, err
			}
		}
		if sample.ActualACPower < 0 {
			if err := report(sample.Timestamp, fmt.Sprintf("negative AC power %.3f W", sample.ActualACPower)); err != nil {
				return nil, err
			}
		}
	}
	return warnings, nil
}

func checkSchema(table telemetry.Table, required []string) (map[string]int, error) {
	index := table.ColumnIndex()
	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &telemetry.SchemaError{Source: table.Source, Missing: missing}
	}
	return index, nil
}

type rowReader struct {
	table  telemetry.Table
	index  map[string]int
	record []string
	rowNum int
}

func (r rowReader) cell(column string) (string, error) {
	pos := r.index[column]
	if pos >= len(r.record) {
		return "", &telemetry.ParseError{
			Source: r.table.Source,
			Row:    r.rowNum,
			Column: column,
			Value:  "",
			Err:    fmt.Errorf("row has %d fields, column is at position %d", len(r.record), pos+1),
		}
	}
	return strings.TrimSpace(r.record[pos]), nil
}

func (r rowReader) timeValue(column string) (time.Time, error) {
	raw, err := r.cell(column)
	if err != nil {
		return time.Time{}, err
	}
	var lastErr error
	for _, layout := range timeLayouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, &telemetry.ParseError{
		Source: r.table.Source,
		Row:    r.rowNum,
		Column: column,
		Value:  raw,
		Err:    lastErr,
	}
}

func (r rowReader) floatValue(column string) (float64, error) {
	raw, err := r.cell(column)
	if err != nil {
		return 0, err
	}
	value, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		return 0, &telemetry.ParseError{
			Source: r.table.Source,
			Row:    r.rowNum,
			Column: column,
			Value:  raw,
			Err:    parseErr,
		}
	}
	return value, nil
}
