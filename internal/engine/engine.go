// Package engine orchestrates one analysis invocation: validate each
// inverter's extract, select the date window, merge weather, run the expected
// power model, classify deviations and aggregate KPIs and alerts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"inverter-twin/internal/alerts"
	"inverter-twin/internal/alerts/notify"
	fleetapp "inverter-twin/internal/fleet/application"
	fleet "inverter-twin/internal/fleet/domain"
	"inverter-twin/internal/kpi"
	"inverter-twin/internal/observability/metrics"
	telemetryapp "inverter-twin/internal/telemetry/application"
	telemetry "inverter-twin/internal/telemetry/domain"
	"inverter-twin/internal/twin"
)

// ErrEmptyRange indicates that the requested date window left no samples for
// any inverter. Distinct from the no-data outcome of an empty upload set.
var ErrEmptyRange = errors.New("engine: no samples in the selected date range")

// Outcome distinguishes a produced analysis from a no-data invocation.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeNoData Outcome = "no_data"
)

// SkippedFile reports an upload that was isolated from the batch.
type SkippedFile struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Result is the full output of one invocation.
type Result struct {
	Outcome Outcome

	Series  map[string]telemetry.InverterSeries
	Fleet   fleet.Dataset
	Records []twin.DeviationRecord
	KPIs    []kpi.Record
	Alerts  []alerts.Event

	// AvailableStart/End are the min and max timestamps across all validated
	// series before range selection, for range pickers.
	AvailableStart time.Time
	AvailableEnd   time.Time

	ThresholdPct float64
	Metadata     telemetry.Metadata
	Warnings     []telemetry.Warning
	Skipped      []SkippedFile
}

// TotalAlerts returns the overall alert count.
func (r Result) TotalAlerts() int { return len(r.Alerts) }

// AlertsByInverter returns per-inverter alert counts.
func (r Result) AlertsByInverter() map[string]int {
	return alerts.CountByInverter(r.Alerts)
}

// Engine wires the pipeline components together.
type Engine struct {
	model      twin.Model
	aligner    *fleetapp.Aligner
	aggregator *kpi.Aggregator
	collector  *alerts.Collector
	notifier   notify.Notifier
	logger     *log.Logger
	workers    int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier assigns an alert sink invoked after every invocation that
// produced alerts. Sink failures are logged, never returned.
func WithNotifier(notifier notify.Notifier) Option {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWorkers bounds the per-inverter worker pool.
func WithWorkers(workers int) Option {
	return func(e *Engine) {
		if workers > 0 {
			e.workers = workers
		}
	}
}

// NewEngine constructs an Engine around a power model strategy.
func NewEngine(model twin.Model, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, errors.New("engine: nil model")
	}
	e := &Engine{
		model:      model,
		aligner:    fleetapp.NewAligner(),
		aggregator: kpi.NewAggregator(),
		collector:  alerts.NewCollector(),
		workers:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// pipelineOutput is one inverter's share of the computation, produced inside
// the worker pool and merged after the barrier.
type pipelineOutput struct {
	inverterID string
	series     telemetry.InverterSeries
	records    []twin.DeviationRecord
	kpi        kpi.Record
	warnings   []telemetry.Warning
	skipped    *SkippedFile
	emptyRange bool

	// availableStart/End span the validated series before range selection and
	// weather merge, so filtered invocations still report the full data range.
	availableStart time.Time
	availableEnd   time.Time
}

// Run executes one analysis invocation. Per-inverter pipelines run
// concurrently; union, KPI collection and alerting happen after all pipelines
// finish. A structurally invalid file is skipped and reported without
// aborting the batch.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	req = req.withDefaults()

	if err := req.Params.Validate(); err != nil {
		return Result{}, err
	}
	for id, params := range req.Overrides {
		if err := params.Validate(); err != nil {
			return Result{}, fmt.Errorf("engine: override for %s: %w", id, err)
		}
	}
	classifier, err := twin.NewClassifier(req.ThresholdPct, req.Policy)
	if err != nil {
		return Result{}, err
	}

	if len(req.Tables) == 0 {
		metrics.ObserveAnalysis(metrics.ResultNoData, time.Since(started))
		return Result{Outcome: OutcomeNoData, ThresholdPct: req.ThresholdPct, Metadata: req.Metadata}, nil
	}

	validator := telemetryapp.NewValidator(telemetryapp.WithStrict(req.Strict))

	var weather *telemetry.WeatherSeries
	if req.Weather != nil {
		parsed, err := validator.ValidateWeather(*req.Weather)
		if err != nil {
			return Result{}, err
		}
		weather = &parsed
	}

	outputs := make([]pipelineOutput, len(req.Tables))
	firstSource := make(map[string]string, len(req.Tables))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)
	for i, table := range req.Tables {
		// Two uploads mapping to the same inverter id would produce an
		// inconsistent result; the first upload wins, later ones are skipped.
		inverterID := InverterIDFromSource(table.Source)
		if first, dup := firstSource[inverterID]; dup {
			outputs[i] = pipelineOutput{
				inverterID: inverterID,
				skipped: &SkippedFile{
					Source: table.Source,
					Reason: fmt.Sprintf("duplicate inverter id %q, already provided by %s", inverterID, first),
				},
			}
			continue
		}
		firstSource[inverterID] = table.Source
		i, table := i, table
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			outputs[i] = e.runPipeline(table, weather, validator, classifier, req)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, err
	}

	return e.merge(ctx, req, outputs, started)
}

// runPipeline is the per-inverter stage: validate, select, merge weather,
// model and classify.
func (e *Engine) runPipeline(table telemetry.Table, weather *telemetry.WeatherSeries, validator *telemetryapp.Validator, classifier *twin.Classifier, req Request) pipelineOutput {
	inverterID := InverterIDFromSource(table.Source)
	out := pipelineOutput{inverterID: inverterID}
	if !req.wantsInverter(inverterID) {
		out.skipped = &SkippedFile{Source: table.Source, Reason: "not in requested inverter subset"}
		return out
	}

	series, warnings, err := validator.ValidateTelemetry(table, inverterID)
	if err != nil {
		out.skipped = &SkippedFile{Source: table.Source, Reason: err.Error()}
		return out
	}
	out.warnings = warnings
	if start, ok := series.Start(); ok {
		out.availableStart = start
	}
	if end, ok := series.End(); ok {
		out.availableEnd = end
	}

	if req.hasRange() {
		start, end := req.RangeStart, req.RangeEnd
		if start.IsZero() {
			start, _ = series.Start()
		}
		if end.IsZero() {
			end, _ = series.End()
		}
		selected, err := e.aligner.SelectRange(series, start, end)
		if err != nil {
			var emptyRange *fleet.EmptyRangeError
			if errors.As(err, &emptyRange) {
				// This inverter simply has no rows in the window; the fleet
				// may still be served by the others.
				out.emptyRange = true
				return out
			}
			out.skipped = &SkippedFile{Source: table.Source, Reason: err.Error()}
			return out
		}
		series = selected
	}

	if weather != nil {
		merged, mergeWarnings, err := e.aligner.MergeWeather(series, *weather)
		if err != nil {
			out.skipped = &SkippedFile{Source: table.Source, Reason: err.Error()}
			return out
		}
		out.warnings = append(out.warnings, mergeWarnings...)
		metrics.AddWeatherRowsDropped(series.Len() - merged.Len())
		if merged.Len() == 0 {
			out.skipped = &SkippedFile{
				Source: table.Source,
				Reason: "no telemetry rows matched the weather series timestamps",
			}
			return out
		}
		series = merged
	}

	params := req.paramsFor(inverterID)
	records := make([]twin.DeviationRecord, 0, series.Len())
	for _, sample := range series.Samples() {
		expected := e.model.ExpectedPower(sample.Irradiance, sample.ModuleTemp, params)
		records = append(records, classifier.Classify(sample.Timestamp, inverterID, sample.ActualACPower, expected))
	}

	out.series = series
	out.records = records
	out.kpi = e.aggregator.Aggregate(series, params)
	return out
}

// merge is the synchronization barrier: union the surviving series, order the
// classified records and collect KPIs and alerts.
func (e *Engine) merge(ctx context.Context, req Request, outputs []pipelineOutput, started time.Time) (Result, error) {
	result := Result{
		Outcome:      OutcomeOK,
		Series:       make(map[string]telemetry.InverterSeries),
		ThresholdPct: req.ThresholdPct,
		Metadata:     req.Metadata,
	}

	sawEmptyRange := false
	var allRecords []twin.DeviationRecord
	for _, out := range outputs {
		result.Warnings = append(result.Warnings, out.warnings...)
		if out.skipped != nil {
			result.Skipped = append(result.Skipped, *out.skipped)
			continue
		}
		// The available range covers every validated series, including ones
		// the date window excluded entirely, so range pickers see the full
		// extent of the uploaded data.
		if !out.availableStart.IsZero() {
			if result.AvailableStart.IsZero() || out.availableStart.Before(result.AvailableStart) {
				result.AvailableStart = out.availableStart
			}
		}
		if out.availableEnd.After(result.AvailableEnd) {
			result.AvailableEnd = out.availableEnd
		}
		if out.emptyRange {
			sawEmptyRange = true
			continue
		}
		result.Series[out.inverterID] = out.series
		allRecords = append(allRecords, out.records...)
		result.KPIs = append(result.KPIs, out.kpi)
	}

	if len(result.Series) == 0 {
		if sawEmptyRange {
			metrics.ObserveAnalysis(metrics.ResultError, time.Since(started))
			// The partial result keeps the skipped-file reports and warnings
			// gathered so far for the caller to surface.
			return result, ErrEmptyRange
		}
		// Every upload was skipped or the set was effectively empty.
		metrics.ObserveAnalysis(metrics.ResultNoData, time.Since(started))
		result.Outcome = OutcomeNoData
		return result, nil
	}

	result.Fleet = e.aligner.UnionAll(result.Series)
	sort.SliceStable(allRecords, func(a, b int) bool {
		at, bt := allRecords[a].Timestamp, allRecords[b].Timestamp
		if at.Equal(bt) {
			return allRecords[a].InverterID < allRecords[b].InverterID
		}
		return at.Before(bt)
	})
	result.Records = allRecords
	sort.Slice(result.KPIs, func(a, b int) bool {
		return result.KPIs[a].InverterID < result.KPIs[b].InverterID
	})
	result.Alerts = e.collector.Collect(allRecords)

	metrics.ObserveAnalysis(metrics.ResultSuccess, time.Since(started))
	metrics.AddAlerts(len(result.Alerts))
	metrics.AddSkippedFiles(len(result.Skipped))

	if e.notifier != nil && len(result.Alerts) > 0 {
		summary := notify.Summary{
			GeneratedAt:      time.Now().UTC(),
			PlantName:        req.Metadata["plant_name"],
			TotalAlerts:      len(result.Alerts),
			AlertsByInverter: result.AlertsByInverter(),
			Events:           result.Alerts,
		}
		if err := e.notifier.Notify(ctx, summary); err != nil && e.logger != nil {
			e.logger.Printf("alert notify error: %v", err)
		}
	}
	return result, nil
}
