// Package export renders analysis results for download. All numeric rounding
// to 3 decimals happens here, at the output boundary; the engine never rounds.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strconv"
	"time"

	"inverter-twin/internal/engine"
)

const timestampLayout = time.RFC3339

// FleetCSVHeader is the column order of the full processed dataset export.
var FleetCSVHeader = []string{
	"time",
	"inverter_id",
	"irradiance",
	"module_temp",
	"v_dc",
	"i_dc",
	"p_ac",
	"expected_ac_power",
	"deviation_pct",
	"status",
}

// AlertsCSVHeader is the column order of the alerts-only export.
var AlertsCSVHeader = []string{
	"timestamp",
	"inverter_id",
	"actual",
	"expected",
	"deviation_pct",
}

// ErrRecordMismatch indicates a result whose fleet dataset and classified
// records disagree, which should never happen for an engine-produced result.
var ErrRecordMismatch = errors.New("export: fleet dataset and deviation records out of step")

// FleetCSV renders the full processed dataset: every fleet sample joined with
// its model output and classification.
func FleetCSV(result engine.Result) ([]byte, error) {
	if result.Fleet.Len() != len(result.Records) {
		return nil, ErrRecordMismatch
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(FleetCSVHeader); err != nil {
		return nil, err
	}
	for i := 0; i < result.Fleet.Len(); i++ {
		record := result.Fleet.Record(i)
		deviation := result.Records[i]
		if record.InverterID != deviation.InverterID || !record.Sample.Timestamp.Equal(deviation.Timestamp) {
			return nil, ErrRecordMismatch
		}
		row := []string{
			record.Sample.Timestamp.Format(timestampLayout),
			record.InverterID,
			formatFloat(record.Sample.Irradiance),
			formatFloat(record.Sample.ModuleTemp),
			formatFloat(record.Sample.DCVoltage),
			formatFloat(record.Sample.DCCurrent),
			formatFloat(record.Sample.ActualACPower),
			formatFloat(deviation.ExpectedW),
			formatFloat(deviation.DeviationPct),
			string(deviation.Status),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

// AlertsCSV renders the alerts-only subset.
func AlertsCSV(result engine.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(AlertsCSVHeader); err != nil {
		return nil, err
	}
	for _, event := range result.Alerts {
		row := []string{
			event.Timestamp.Format(timestampLayout),
			event.InverterID,
			formatFloat(event.ActualW),
			formatFloat(event.ExpectedW),
			formatFloat(event.DeviationPct),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// formatKPI renders an optional ratio, using "N/A" for undefined values.
func formatKPI(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return formatFloat(*v)
}
