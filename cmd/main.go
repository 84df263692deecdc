package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/superskip/dispatch/internal/address"
	"github.com/superskip/dispatch/internal/config"
	"github.com/superskip/dispatch/internal/input"
	"github.com/superskip/dispatch/internal/lookup"
	"github.com/superskip/dispatch/internal/metrics"
	"github.com/superskip/dispatch/internal/models"
	"github.com/superskip/dispatch/internal/service"
	"github.com/superskip/dispatch/internal/webhook"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application. It reads the input CSV, formats the
// addresses, submits them in batches to the lookup API and logs the run summary.
func main() {
	// Cancel the context on an interrupt signal. There is no dedicated mid-run
	// cancellation path: interruption surfaces as per-batch transport errors.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for application metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Start the monitoring server in a goroutine so a long run can be observed.
	go startMonitoringServer(ctx, logger, reg, cfg.Port)

	// Read and format the input addresses.
	records, err := input.ReadRecords(cfg.InputPath)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	logger.InfoContext(ctx, "Loaded address records", "count", len(records), "path", cfg.InputPath)

	formatted := address.FormatRecords(records)

	// Optional plain-text export of the formatted addresses.
	if cfg.OutputPath != "" {
		const filePerm = 0o644
		if err = os.WriteFile(cfg.OutputPath, []byte(address.Join(formatted)), filePerm); err != nil {
			log.Fatalf("Failed to write formatted addresses: %v", err)
		}
		logger.InfoContext(ctx, "Exported formatted addresses", "path", cfg.OutputPath)
	}

	client := lookup.NewClient(cfg.LookupURL, cfg.APIKey, logger)
	notifier := webhook.NewNotifier(cfg.WebhookURL, logger)

	submitter := service.NewSubmitter(
		logger,
		client,
		notifier,
		appMetrics,
		cfg.WebhookURL,
		cfg.BatchSize,
		func(done, total int) {
			appMetrics.AddressesProcessed.Set(float64(done))
			logger.InfoContext(ctx, "Progress", "done", done, "total", total)
		},
		func(message string) {
			logger.InfoContext(ctx, message)
		},
	)

	results, summary, err := submitter.Run(ctx, formatted)
	if err != nil {
		log.Fatalf("Submission run rejected: %v", err)
	}

	for _, res := range results {
		if res.Status == models.BatchError {
			logger.WarnContext(ctx, "Batch ended with error", "batch", res.Batch, "error", res.Error)
		}
	}

	logger.InfoContext(ctx, "Run summary",
		"total_batches", summary.TotalBatches,
		"submitted", summary.Submitted,
		"completed", summary.Completed,
		"errors", summary.Errors,
	)
}

// startMonitoringServer starts an HTTP server that provides health check and
// metrics endpoints. It listens on the specified port and logs the server's
// status and any errors encountered.
func startMonitoringServer(ctx context.Context, log *slog.Logger, reg *prometheus.Registry, port int) {
	http.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		if _, err := writer.Write([]byte("OK")); err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}
	})
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      http.DefaultServeMux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelError,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
