package export

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/xuri/excelize/v2"

	"inverter-twin/internal/engine"
)

// ReportXLSX renders the analysis as a workbook: a summary sheet with plant
// metadata and alert totals, a kpi sheet, a fleet sheet with the processed
// dataset and an alerts sheet.
func ReportXLSX(result engine.Result) ([]byte, error) {
	if result.Fleet.Len() != len(result.Records) {
		return nil, ErrRecordMismatch
	}

	f := excelize.NewFile()
	summarySheet := "summary"
	kpiSheet := "kpi"
	fleetSheet := "fleet"
	alertsSheet := "alerts"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(kpiSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(fleetSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(alertsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Inverter Performance Report")
	row := 3
	keys := make([]string, 0, len(result.Metadata))
	for key := range result.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), key)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), result.Metadata[key])
		row++
	}
	row++
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Alert Threshold (%)")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), result.ThresholdPct)
	row++
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Total Alerts")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), result.TotalAlerts())
	row++
	counts := result.AlertsByInverter()
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Alerts: "+id)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), counts[id])
		row++
	}

	_ = f.SetCellValue(kpiSheet, "A1", "Inverter")
	_ = f.SetCellValue(kpiSheet, "B1", "Window Start")
	_ = f.SetCellValue(kpiSheet, "C1", "Window End")
	_ = f.SetCellValue(kpiSheet, "D1", "PR")
	_ = f.SetCellValue(kpiSheet, "E1", "CUF")
	for i, record := range result.KPIs {
		r := i + 2
		_ = f.SetCellValue(kpiSheet, fmt.Sprintf("A%d", r), record.InverterID)
		_ = f.SetCellValue(kpiSheet, fmt.Sprintf("B%d", r), record.WindowStart.Format(timestampLayout))
		_ = f.SetCellValue(kpiSheet, fmt.Sprintf("C%d", r), record.WindowEnd.Format(timestampLayout))
		setKPI(f, kpiSheet, fmt.Sprintf("D%d", r), record.PR)
		setKPI(f, kpiSheet, fmt.Sprintf("E%d", r), record.CUF)
	}

	for col, name := range FleetCSVHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(fleetSheet, cell, name)
	}
	for i := 0; i < result.Fleet.Len(); i++ {
		record := result.Fleet.Record(i)
		deviation := result.Records[i]
		values := []interface{}{
			record.Sample.Timestamp.Format(timestampLayout),
			record.InverterID,
			round3(record.Sample.Irradiance),
			round3(record.Sample.ModuleTemp),
			round3(record.Sample.DCVoltage),
			round3(record.Sample.DCCurrent),
			round3(record.Sample.ActualACPower),
			round3(deviation.ExpectedW),
			round3(deviation.DeviationPct),
			string(deviation.Status),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(fleetSheet, cell, value)
		}
	}

	for col, name := range AlertsCSVHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(alertsSheet, cell, name)
	}
	for i, event := range result.Alerts {
		values := []interface{}{
			event.Timestamp.Format(timestampLayout),
			event.InverterID,
			round3(event.ActualW),
			round3(event.ExpectedW),
			round3(event.DeviationPct),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(alertsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setKPI(f *excelize.File, sheet, cell string, v *float64) {
	if v == nil {
		_ = f.SetCellValue(sheet, cell, "N/A")
		return
	}
	_ = f.SetCellValue(sheet, cell, round3(*v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
