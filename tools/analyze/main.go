// Command analyze runs one analysis over local CSV extracts and prints KPI
// and alert summaries. Useful for ad hoc checks without the HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
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

func main() {
	weatherPath := flag.String("weather", "", "optional weather CSV joined by exact timestamp")
	start := flag.String("start", "", "range start date (2006-01-02)")
	end := flag.String("end", "", "range end date (2006-01-02)")
	threshold := flag.Float64("threshold", 0, "alert threshold percent (default from config)")
	inverters := flag.String("inverters", "", "comma-separated inverter subset")
	strict := flag.Bool("strict", false, "treat out-of-range values as errors")
	fleetOut := flag.String("fleet-csv", "", "write the processed fleet dataset CSV to this path")
	alertsOut := flag.String("alerts-csv", "", "write the alerts CSV to this path")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if flag.NArg() == 0 {
		logger.Fatal("usage: analyze [flags] inverter1.csv [inverter2.csv ...]")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	metrics.Init()

	req := engine.Request{
		Params:       cfg.ModelParameters(),
		Overrides:    cfg.ParameterOverrides(),
		ThresholdPct: cfg.AlertThresholdPct,
		Policy:       cfg.Policy(),
		Strict:       *strict || cfg.StrictValidation,
	}
	if *threshold > 0 {
		req.ThresholdPct = *threshold
	}
	for _, path := range flag.Args() {
		table, err := readTable(path)
		if err != nil {
			logger.Fatalf("read %s: %v", path, err)
		}
		req.Tables = append(req.Tables, table)
	}
	if *weatherPath != "" {
		table, err := readTable(*weatherPath)
		if err != nil {
			logger.Fatalf("read weather %s: %v", *weatherPath, err)
		}
		req.Weather = &table
	}
	if *start != "" {
		req.RangeStart, err = time.Parse("2006-01-02", *start)
		if err != nil {
			logger.Fatalf("invalid -start: %v", err)
		}
	}
	if *end != "" {
		req.RangeEnd, err = time.Parse("2006-01-02", *end)
		if err != nil {
			logger.Fatalf("invalid -end: %v", err)
		}
	}
	if *inverters != "" {
		for _, id := range strings.Split(*inverters, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.Inverters = append(req.Inverters, id)
			}
		}
	}

	eng, err := engine.NewEngine(twin.BaselineModel{}, engine.WithLogger(logger))
	if err != nil {
		logger.Fatalf("engine error: %v", err)
	}
	result, err := eng.Run(context.Background(), req)
	if err != nil {
		logger.Fatalf("analysis error: %v", err)
	}

	for _, warning := range result.Warnings {
		logger.Printf("warning [%s]: %s", warning.Code, warning.Message)
	}
	for _, skipped := range result.Skipped {
		logger.Printf("skipped %s: %s", skipped.Source, skipped.Reason)
	}
	if result.Outcome == engine.OutcomeNoData {
		fmt.Println("no data")
		return
	}

	fmt.Printf("window %s .. %s, %d samples, %d inverters\n",
		result.AvailableStart.Format("2006-01-02 15:04"),
		result.AvailableEnd.Format("2006-01-02 15:04"),
		result.Fleet.Len(), len(result.Series))
	fmt.Println()
	fmt.Printf("%-20s %8s %8s %8s\n", "inverter", "PR", "CUF", "alerts")
	counts := result.AlertsByInverter()
	for _, record := range result.KPIs {
		fmt.Printf("%-20s %8s %8s %8d\n",
			record.InverterID, formatKPI(record.PR), formatKPI(record.CUF), counts[record.InverterID])
	}
	fmt.Println()
	fmt.Printf("total alerts: %d\n", result.TotalAlerts())

	if *fleetOut != "" {
		body, err := export.FleetCSV(result)
		if err != nil {
			logger.Fatalf("fleet csv: %v", err)
		}
		if err := os.WriteFile(*fleetOut, body, 0o644); err != nil {
			logger.Fatalf("write %s: %v", *fleetOut, err)
		}
	}
	if *alertsOut != "" {
		body, err := export.AlertsCSV(result)
		if err != nil {
			logger.Fatalf("alerts csv: %v", err)
		}
		if err := os.WriteFile(*alertsOut, body, 0o644); err != nil {
			logger.Fatalf("write %s: %v", *alertsOut, err)
		}
	}
}

func readTable(path string) (telemetry.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return telemetry.Table{}, err
	}
	defer file.Close()
	return csvfile.Decode(path, file)
}

func formatKPI(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.3f", *v)
}
