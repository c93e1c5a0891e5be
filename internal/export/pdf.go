package export

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"inverter-twin/internal/engine"
)

// pdfMaxAlertRows caps the alert table in the PDF report; the CSV export
// carries the full stream.
const pdfMaxAlertRows = 40

// ReportPDF renders a compact performance report: plant metadata, KPI table
// and the first alert rows.
func ReportPDF(result engine.Result) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Inverter Performance Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)

	keys := make([]string, 0, len(result.Metadata))
	for key := range result.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %s", key, result.Metadata[key]))
		pdf.Ln(5)
	}
	if !result.AvailableStart.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Window: %s to %s",
			result.AvailableStart.Format("2006-01-02"), result.AvailableEnd.Format("2006-01-02")))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Alert Threshold: %.1f%%", result.ThresholdPct))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Alerts: %d", result.TotalAlerts()))
	pdf.Ln(8)

	// KPI table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Inverter", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "PR", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "CUF", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, record := range result.KPIs {
		pdf.CellFormat(60, 6, record.InverterID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, formatKPI(record.PR), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatKPI(record.CUF), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	// Alerts table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(42, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(42, 6, "Inverter", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Actual (W)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, 6, "Expected (W)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Deviation (%)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	shown := 0
	for _, event := range result.Alerts {
		if shown >= pdfMaxAlertRows {
			break
		}
		pdf.CellFormat(42, 6, event.Timestamp.Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(42, 6, event.InverterID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, formatFloat(event.ActualW), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 6, formatFloat(event.ExpectedW), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, formatFloat(event.DeviationPct), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		shown++
	}
	if remaining := len(result.Alerts) - shown; remaining > 0 {
		pdf.Ln(2)
		pdf.Cell(0, 6, fmt.Sprintf("... and %d more alerts (see CSV export)", remaining))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
