package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/superskip/dispatch/internal/models"
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier delivers advisory notifications to the caller's webhook endpoint.
// Deliveries are best-effort: every method attempts delivery, logs the outcome and
// returns nothing, so a lost notification can never fail a run.
type Notifier struct {
	client HTTPClient   // HTTP client for making requests
	url    string       // Webhook endpoint URL
	log    *slog.Logger // Logger for logging delivery outcomes
}

// NewNotifier creates a webhook notifier for the given endpoint.
func NewNotifier(url string, log *slog.Logger) *Notifier {
	const timeout = 10

	return &Notifier{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		url: url,
		log: log,
	}
}

// NewNotifierWithClient allows injecting a custom HTTP client.
func NewNotifierWithClient(client HTTPClient, url string, log *slog.Logger) *Notifier {
	return &Notifier{client: client, url: url, log: log}
}

// NotifyStart announces that a run is about to begin so the receiver can verify
// the endpoint is reachable before batches start flowing.
func (n *Notifier) NotifyStart(ctx context.Context) {
	payload := map[string]any{"test": true, "message": "Starting processing"}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.WarnContext(ctx, "Failed to encode start notification", "error", err)
		return
	}

	n.post(ctx, "start", body)
}

// Forward relays a raw lookup API response body to the webhook verbatim.
func (n *Notifier) Forward(ctx context.Context, body json.RawMessage) {
	n.post(ctx, "batch", body)
}

// NotifySummary delivers the terminal run summary, guaranteeing the receiver a
// final signal even when per-batch deliveries were lost.
func (n *Notifier) NotifySummary(ctx context.Context, summary models.RunSummary) {
	payload := struct {
		Summary bool `json:"summary"`
		models.RunSummary
	}{Summary: true, RunSummary: summary}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.WarnContext(ctx, "Failed to encode summary notification", "error", err)
		return
	}

	n.post(ctx, "summary", body)
}

// post attempts one delivery and logs the outcome. Failures are swallowed.
func (n *Notifier) post(ctx context.Context, kind string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.log.WarnContext(ctx, "Failed to create webhook request", "kind", kind, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.WarnContext(ctx, "Webhook delivery failed, continuing", "kind", kind, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		n.log.WarnContext(ctx, "Webhook rejected delivery, continuing", "kind", kind, "status", resp.StatusCode)
		return
	}

	n.log.DebugContext(ctx, "Webhook delivery succeeded", "kind", kind)
}
