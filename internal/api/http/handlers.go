// Package apihttp is the thin presentation layer: multipart CSV uploads in,
// JSON or downloadable exports out. All engine outputs are rounded to 3
// decimals here, never inside the engine.
package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inverter-twin/internal/config"
	"inverter-twin/internal/engine"
	"inverter-twin/internal/export"
	"inverter-twin/internal/observability/metrics"
	telemetry "inverter-twin/internal/telemetry/domain"
	"inverter-twin/internal/telemetry/interfaces/csvfile"
	"inverter-twin/internal/twin"
)

const (
	maxUploadBytes = 64 << 20
	dateLayout     = "2006-01-02"
)

// AnalysisHandler serves POST /api/v1/analysis.
type AnalysisHandler struct {
	engine *engine.Engine
	cfg    config.Config
}

// NewAnalysisHandler constructs an AnalysisHandler.
func NewAnalysisHandler(eng *engine.Engine, cfg config.Config) (*AnalysisHandler, error) {
	if eng == nil {
		return nil, errors.New("apihttp: nil engine")
	}
	return &AnalysisHandler{engine: eng, cfg: cfg}, nil
}

// ServeHTTP runs one analysis over the uploaded extracts and responds JSON.
func (h *AnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req, err := parseAnalysisRequest(r, h.cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.engine.Run(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(buildAnalysisResponse(result))
}

// Export formats.
const (
	FormatFleetCSV   = "fleet.csv"
	FormatAlertsCSV  = "alerts.csv"
	FormatReportXLSX = "report.xlsx"
	FormatReportPDF  = "report.pdf"
)

// ExportHandler serves POST /api/v1/exports/<format>.
type ExportHandler struct {
	engine *engine.Engine
	cfg    config.Config
	format string
}

// NewExportHandler constructs an ExportHandler for one format.
func NewExportHandler(eng *engine.Engine, cfg config.Config, format string) (*ExportHandler, error) {
	if eng == nil {
		return nil, errors.New("apihttp: nil engine")
	}
	switch format {
	case FormatFleetCSV, FormatAlertsCSV, FormatReportXLSX, FormatReportPDF:
	default:
		return nil, fmt.Errorf("apihttp: unknown export format %q", format)
	}
	return &ExportHandler{engine: eng, cfg: cfg, format: format}, nil
}

// ServeHTTP runs one analysis and streams the requested export.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req, err := parseAnalysisRequest(r, h.cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.engine.Run(r.Context(), req)
	if err != nil {
		metrics.ObserveExport(h.format, metrics.ResultError)
		writeEngineError(w, err)
		return
	}
	if result.Outcome == engine.OutcomeNoData {
		metrics.ObserveExport(h.format, metrics.ResultNoData)
		http.Error(w, "no data to export", http.StatusBadRequest)
		return
	}

	var body []byte
	var contentType string
	switch h.format {
	case FormatFleetCSV:
		body, err = export.FleetCSV(result)
		contentType = "text/csv; charset=utf-8"
	case FormatAlertsCSV:
		body, err = export.AlertsCSV(result)
		contentType = "text/csv; charset=utf-8"
	case FormatReportXLSX:
		body, err = export.ReportXLSX(result)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatReportPDF:
		body, err = export.ReportPDF(result)
		contentType = "application/pdf"
	}
	if err != nil {
		metrics.ObserveExport(h.format, metrics.ResultError)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(h.format, metrics.ResultSuccess)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.format))
	_, _ = w.Write(body)
}

func parseAnalysisRequest(r *http.Request, cfg config.Config) (engine.Request, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return engine.Request{}, fmt.Errorf("parse multipart form: %w", err)
	}

	req := engine.Request{
		Params:       cfg.ModelParameters(),
		Overrides:    cfg.ParameterOverrides(),
		ThresholdPct: cfg.AlertThresholdPct,
		Policy:       cfg.Policy(),
		Strict:       cfg.StrictValidation,
	}

	for _, header := range r.MultipartForm.File["file"] {
		table, err := decodeUpload(header)
		if err != nil {
			return engine.Request{}, err
		}
		req.Tables = append(req.Tables, table)
	}
	if weatherFiles := r.MultipartForm.File["weather"]; len(weatherFiles) > 0 {
		table, err := decodeUpload(weatherFiles[0])
		if err != nil {
			return engine.Request{}, err
		}
		req.Weather = &table
	}

	form := r.MultipartForm.Value
	if raw := formValue(form, "start"); raw != "" {
		start, err := time.Parse(dateLayout, raw)
		if err != nil {
			return engine.Request{}, fmt.Errorf("invalid start date %q", raw)
		}
		req.RangeStart = start
	}
	if raw := formValue(form, "end"); raw != "" {
		end, err := time.Parse(dateLayout, raw)
		if err != nil {
			return engine.Request{}, fmt.Errorf("invalid end date %q", raw)
		}
		req.RangeEnd = end
	}
	if raw := formValue(form, "threshold_pct"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold <= 0 {
			return engine.Request{}, fmt.Errorf("invalid threshold_pct %q", raw)
		}
		req.ThresholdPct = threshold
	}
	if raw := formValue(form, "strict"); raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			return engine.Request{}, fmt.Errorf("invalid strict %q", raw)
		}
		req.Strict = strict
	}
	if raw := formValue(form, "policy"); raw != "" {
		policy := twin.ZeroDenominatorPolicy(raw)
		if !policy.IsValid() {
			return engine.Request{}, fmt.Errorf("invalid policy %q", raw)
		}
		req.Policy = policy
	}
	if raw := formValue(form, "inverters"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				req.Inverters = append(req.Inverters, id)
			}
		}
	}
	if raw := formValue(form, "rated_dc_capacity_w"); raw != "" {
		rated, err := strconv.ParseFloat(raw, 64)
		if err != nil || rated <= 0 {
			return engine.Request{}, fmt.Errorf("invalid rated_dc_capacity_w %q", raw)
		}
		req.Params.RatedDCCapacity = rated
	}

	metadata := telemetry.Metadata{}
	for key, values := range form {
		if strings.HasPrefix(key, "meta_") && len(values) > 0 {
			metadata[strings.TrimPrefix(key, "meta_")] = values[0]
		}
	}
	if len(metadata) > 0 {
		req.Metadata = metadata
	}
	return req, nil
}

func decodeUpload(header *multipart.FileHeader) (telemetry.Table, error) {
	file, err := header.Open()
	if err != nil {
		return telemetry.Table{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()
	return csvfile.Decode(header.Filename, file)
}

func formValue(form map[string][]string, key string) string {
	if values := form[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func writeEngineError(w http.ResponseWriter, err error) {
	var schemaErr *telemetry.SchemaError
	var parseErr *telemetry.ParseError
	var dupErr *telemetry.DuplicateTimestampError
	switch {
	case errors.Is(err, engine.ErrEmptyRange):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &schemaErr), errors.As(err, &parseErr), errors.As(err, &dupErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "analysis error: "+err.Error(), http.StatusInternalServerError)
	}
}

// ---- JSON shaping ----

type analysisResponse struct {
	Outcome          string               `json:"outcome"`
	AvailableStart   string               `json:"available_start,omitempty"`
	AvailableEnd     string               `json:"available_end,omitempty"`
	Inverters        []string             `json:"inverters,omitempty"`
	Records          []recordRow          `json:"records,omitempty"`
	KPIs             []kpiRow             `json:"kpis,omitempty"`
	Alerts           []alertRow           `json:"alerts,omitempty"`
	TotalAlerts      int                  `json:"total_alerts"`
	AlertsByInverter map[string]int       `json:"alerts_by_inverter,omitempty"`
	Warnings         []telemetry.Warning  `json:"warnings,omitempty"`
	Skipped          []engine.SkippedFile `json:"skipped,omitempty"`
	Metadata         telemetry.Metadata   `json:"metadata,omitempty"`
}

type recordRow struct {
	Timestamp    string  `json:"time"`
	InverterID   string  `json:"inverter_id"`
	Irradiance   float64 `json:"irradiance"`
	ModuleTemp   float64 `json:"module_temp"`
	DCVoltage    float64 `json:"v_dc"`
	DCCurrent    float64 `json:"i_dc"`
	ActualW      float64 `json:"p_ac"`
	ExpectedW    float64 `json:"expected_ac_power"`
	DeviationPct float64 `json:"deviation_pct"`
	Status       string  `json:"status"`
}

type kpiRow struct {
	InverterID  string   `json:"inverter_id"`
	WindowStart string   `json:"window_start"`
	WindowEnd   string   `json:"window_end"`
	PR          *float64 `json:"pr"`
	CUF         *float64 `json:"cuf"`
}

type alertRow struct {
	Timestamp    string  `json:"timestamp"`
	InverterID   string  `json:"inverter_id"`
	ActualW      float64 `json:"actual"`
	ExpectedW    float64 `json:"expected"`
	DeviationPct float64 `json:"deviation_pct"`
}

func buildAnalysisResponse(result engine.Result) analysisResponse {
	resp := analysisResponse{
		Outcome:     string(result.Outcome),
		TotalAlerts: result.TotalAlerts(),
		Warnings:    result.Warnings,
		Skipped:     result.Skipped,
		Metadata:    result.Metadata,
	}
	if result.Outcome == engine.OutcomeNoData {
		return resp
	}
	resp.AvailableStart = result.AvailableStart.Format(time.RFC3339)
	resp.AvailableEnd = result.AvailableEnd.Format(time.RFC3339)
	resp.Inverters = result.Fleet.InverterIDs()
	resp.AlertsByInverter = result.AlertsByInverter()

	for i := 0; i < result.Fleet.Len() && i < len(result.Records); i++ {
		record := result.Fleet.Record(i)
		deviation := result.Records[i]
		resp.Records = append(resp.Records, recordRow{
			Timestamp:    record.Sample.Timestamp.Format(time.RFC3339),
			InverterID:   record.InverterID,
			Irradiance:   round3(record.Sample.Irradiance),
			ModuleTemp:   round3(record.Sample.ModuleTemp),
			DCVoltage:    round3(record.Sample.DCVoltage),
			DCCurrent:    round3(record.Sample.DCCurrent),
			ActualW:      round3(record.Sample.ActualACPower),
			ExpectedW:    round3(deviation.ExpectedW),
			DeviationPct: round3(deviation.DeviationPct),
			Status:       string(deviation.Status),
		})
	}
	for _, record := range result.KPIs {
		resp.KPIs = append(resp.KPIs, kpiRow{
			InverterID:  record.InverterID,
			WindowStart: record.WindowStart.Format(time.RFC3339),
			WindowEnd:   record.WindowEnd.Format(time.RFC3339),
			PR:          roundPtr(record.PR),
			CUF:         roundPtr(record.CUF),
		})
	}
	for _, event := range result.Alerts {
		resp.Alerts = append(resp.Alerts, alertRow{
			Timestamp:    event.Timestamp.Format(time.RFC3339),
			InverterID:   event.InverterID,
			ActualW:      round3(event.ActualW),
			ExpectedW:    round3(event.ExpectedW),
			DeviationPct: round3(event.DeviationPct),
		})
	}
	return resp
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	rounded := round3(*v)
	return &rounded
}
