package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inverter-twin/internal/alerts/notify"
	apihttp "inverter-twin/internal/api/http"
	"inverter-twin/internal/config"
	"inverter-twin/internal/engine"
	"inverter-twin/internal/observability/metrics"
	"inverter-twin/internal/twin"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	metrics.Init()

	var notifiers []notify.Notifier
	if cfg.AlertWebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		notifiers = append(notifiers, webhook)
	}
	var kafkaSink *notify.KafkaNotifier
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		kafkaSink, err = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Fatalf("alert kafka sink error: %v", err)
		}
		notifiers = append(notifiers, kafkaSink)
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	if len(notifiers) > 0 {
		opts = append(opts, engine.WithNotifier(notify.NewMultiNotifier(notifiers...)))
	}
	eng, err := engine.NewEngine(twin.BaselineModel{}, opts...)
	if err != nil {
		logger.Fatalf("engine error: %v", err)
	}

	analysisHandler, err := apihttp.NewAnalysisHandler(eng, cfg)
	if err != nil {
		logger.Fatalf("analysis handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/analysis", analysisHandler)
	for _, format := range []string{
		apihttp.FormatFleetCSV,
		apihttp.FormatAlertsCSV,
		apihttp.FormatReportXLSX,
		apihttp.FormatReportPDF,
	} {
		handler, err := apihttp.NewExportHandler(eng, cfg, format)
		if err != nil {
			logger.Fatalf("export handler error: %v", err)
		}
		mux.Handle("/api/v1/exports/"+format, handler)
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	serveErr := server.ListenAndServe()
	// log.Fatal would skip deferred cleanup, so the kafka writer is closed
	// explicitly before exiting.
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Printf("kafka close error: %v", err)
		}
	}
	logger.Fatal(serveErr)
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
