package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/superskip/dispatch/internal/lookup"
	"github.com/superskip/dispatch/internal/metrics"
	"github.com/superskip/dispatch/internal/models"
)

// LookupAPI submits one batch of formatted addresses to the remote lookup service.
type LookupAPI interface {
	Submit(ctx context.Context, batch []string, webhookURL string) (*lookup.Response, error)
}

// Notifier delivers advisory notifications to the caller's webhook.
// Implementations never fail the caller; delivery is best-effort.
type Notifier interface {
	NotifyStart(ctx context.Context)
	Forward(ctx context.Context, body json.RawMessage)
	NotifySummary(ctx context.Context, summary models.RunSummary)
}

// ProgressFunc receives cumulative progress after each batch:
// addresses processed so far out of the total.
type ProgressFunc func(done, total int)

// StatusFunc receives human-readable status updates during a run.
type StatusFunc func(message string)

// Precondition errors. Everything past the preconditions is captured as batch
// results instead of being raised, so one bad batch never aborts a run.
var (
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	ErrNoAddresses      = errors.New("address list is empty")
)

// Submitter drives the full submission workflow for one list of formatted
// addresses: partition into batches, one sequential exchange per batch, relay
// every outcome to the webhook, and accumulate the run summary.
type Submitter struct {
	log        *slog.Logger     // Logger for logging service activities
	api        LookupAPI        // Client for the remote lookup service
	notifier   Notifier         // Advisory webhook notifier
	metrics    *metrics.Metrics // Metrics for tracking run progress and outcomes
	webhookURL string           // Webhook endpoint the lookup service delivers async results to
	batchSize  int              // Maximum number of addresses per batch
	onProgress ProgressFunc     // Progress callback, decoupled from any presentation layer
	onStatus   StatusFunc       // Status callback
}

// NewSubmitter creates a new Submitter. Nil progress or status callbacks are
// replaced with no-ops.
func NewSubmitter(
	log *slog.Logger,
	api LookupAPI,
	notifier Notifier,
	metrics *metrics.Metrics,
	webhookURL string,
	batchSize int,
	onProgress ProgressFunc,
	onStatus StatusFunc,
) *Submitter {
	if onProgress == nil {
		onProgress = func(int, int) {}
	}
	if onStatus == nil {
		onStatus = func(string) {}
	}

	return &Submitter{
		log:        log,
		api:        api,
		notifier:   notifier,
		metrics:    metrics,
		webhookURL: webhookURL,
		batchSize:  batchSize,
		onProgress: onProgress,
		onStatus:   onStatus,
	}
}

// Run processes every batch to completion or failure, strictly in order, and
// returns the full ordered result list plus the run summary. Only the two
// precondition violations return an error; every per-batch failure is recorded
// as a result and the run continues.
func (s *Submitter) Run(ctx context.Context, addresses []string) ([]models.BatchResult, models.RunSummary, error) {
	if s.batchSize <= 0 {
		return nil, models.RunSummary{}, ErrInvalidBatchSize
	}
	if len(addresses) == 0 {
		return nil, models.RunSummary{}, ErrNoAddresses
	}

	batches := partition(addresses, s.batchSize)
	total := len(addresses)

	s.log.InfoContext(ctx, "Starting submission run", "addresses", total, "batches", len(batches))
	s.onStatus(fmt.Sprintf("Submitting %d addresses in %d batches", total, len(batches)))

	// Best-effort reachability check; the notifier logs failures itself.
	s.notifier.NotifyStart(ctx)

	results := make([]models.BatchResult, 0, len(batches))
	done := 0
	for idx, batch := range batches {
		s.onStatus(fmt.Sprintf("Processing batch %d/%d", idx+1, len(batches)))
		results = append(results, s.submitBatch(ctx, idx+1, batch))

		done += len(batch)
		s.onProgress(done, total)
	}

	summary := summarize(results)

	// When at least one batch was accepted asynchronously the receiver is waiting
	// on out-of-band deliveries, so send a terminal signal it can rely on.
	if summary.Submitted > 0 {
		s.notifier.NotifySummary(ctx, summary)
	}

	s.log.InfoContext(ctx, "Submission run finished",
		"total_batches", summary.TotalBatches,
		"submitted", summary.Submitted,
		"completed", summary.Completed,
		"errors", summary.Errors,
	)
	s.onStatus("Processing complete")

	return results, summary, nil
}

// submitBatch performs one exchange with the lookup API and classifies the
// outcome into exactly one result variant.
func (s *Submitter) submitBatch(ctx context.Context, idx int, batch []string) models.BatchResult {
	startTime := time.Now()
	resp, err := s.api.Submit(ctx, batch, s.webhookURL)
	s.metrics.RequestSeconds.Observe(time.Since(startTime).Seconds())

	if err != nil {
		// Surfaced to the operator immediately, recorded as data, run continues.
		s.log.ErrorContext(ctx, "Batch submission failed", "batch", idx, "error", err)
		s.onStatus(fmt.Sprintf("Error with batch %d: %v", idx, err))
		s.metrics.BatchesProcessed.WithLabelValues(string(models.BatchError)).Inc()
		s.metrics.APIErrors.Inc()

		return models.BatchResult{Batch: idx, Status: models.BatchError, Error: err.Error()}
	}

	// Forward the API response body to the webhook verbatim, best-effort.
	s.notifier.Forward(ctx, resp.Body)

	if resp.Kind == lookup.KindAccepted {
		s.log.InfoContext(ctx, "Batch accepted for async processing", "batch", idx, "request_id", resp.RequestID)
		s.metrics.BatchesProcessed.WithLabelValues(string(models.BatchSubmitted)).Inc()

		return models.BatchResult{Batch: idx, Status: models.BatchSubmitted, RequestID: resp.RequestID}
	}

	s.log.InfoContext(ctx, "Batch completed synchronously", "batch", idx)
	s.metrics.BatchesProcessed.WithLabelValues(string(models.BatchCompleted)).Inc()

	return models.BatchResult{Batch: idx, Status: models.BatchCompleted, Data: resp.Body}
}

// partition splits addresses into contiguous chunks of at most size elements,
// preserving order. The last chunk may be shorter.
func partition(addresses []string, size int) [][]string {
	batches := make([][]string, 0, (len(addresses)+size-1)/size)
	for start := 0; start < len(addresses); start += size {
		end := min(start+size, len(addresses))
		batches = append(batches, addresses[start:end])
	}

	return batches
}

// summarize folds the per-batch results into the terminal run summary, so the
// outcome counts are derived from the result list rather than tracked alongside it.
func summarize(results []models.BatchResult) models.RunSummary {
	summary := models.RunSummary{TotalBatches: len(results)}
	for _, res := range results {
		switch res.Status {
		case models.BatchSubmitted:
			summary.Submitted++
		case models.BatchCompleted:
			summary.Completed++
		case models.BatchError:
			summary.Errors++
		}
	}

	return summary
}
