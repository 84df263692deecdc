package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL -- whitepages address lookup API base URL.
const DefaultBaseURL = "https://api.app.outscraper.com/whitepages-addresses"

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResponseKind tells whether the API answered with the final payload inline or
// queued the batch for async delivery to the webhook.
type ResponseKind int

const (
	// KindAccepted -- status 202, results will arrive at the webhook out-of-band.
	KindAccepted ResponseKind = iota
	// KindCompleted -- status 200, the final payload is in the response body.
	KindCompleted
)

// Response is one classified exchange with the lookup API.
type Response struct {
	Kind      ResponseKind
	RequestID string          // service-issued request id, set on async acceptance
	Body      json.RawMessage // raw response body, forwarded to the webhook verbatim
}

// ErrEmptyBatch is returned when Submit is called with no addresses.
var ErrEmptyBatch = errors.New("lookup client got empty batch")

// Client submits address batches to the lookup API.
type Client struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the lookup API
	apiKey  string        // API key with lookup access
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter, throttles batch submission rate
}

// NewClient creates a new lookup API client. The limiter allows one request per
// second with burst 1, which realizes the fixed pause between consecutive batches
// (the first request passes immediately, no pause trails the last one).
func NewClient(baseURL, apiKey string, log *slog.Logger) *Client {
	const timeout = 30

	return &Client{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// NewClientWithOptions allows injecting a custom HTTP client and rate limiter.
func NewClientWithOptions(client HTTPClient, baseURL, apiKey string, limiter *rate.Limiter, log *slog.Logger) *Client {
	return &Client{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Submit issues one lookup request for a batch of formatted addresses and blocks
// until a response or transport failure. The webhook URL travels in the query so
// the service can deliver async results itself. Non-2xx statuses, unreadable bodies
// and malformed JSON are returned as errors; classification into batch results is
// the caller's concern.
func (c *Client) Submit(ctx context.Context, batch []string, webhookURL string) (*Response, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	// Rate limit
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	c.log.DebugContext(ctx, "Submitting batch to lookup API", "size", len(batch))

	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("webhook_url", webhookURL)
	for _, addr := range batch {
		query.Add("query", addr)
	}
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// API key travels in a header, never in the query.
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute lookup request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var payload json.RawMessage
		if err = json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode lookup response: %w", err)
		}

		c.log.DebugContext(ctx, "Lookup API completed batch synchronously")

		return &Response{Kind: KindCompleted, Body: payload}, nil
	case http.StatusAccepted:
		var accepted struct {
			ID string `json:"id"`
		}
		if err = json.Unmarshal(body, &accepted); err != nil {
			return nil, fmt.Errorf("failed to decode lookup response: %w", err)
		}

		c.log.DebugContext(ctx, "Lookup API accepted batch", "request_id", accepted.ID)

		return &Response{Kind: KindAccepted, RequestID: accepted.ID, Body: body}, nil
	default:
		c.log.ErrorContext(ctx, "Lookup API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("lookup API returned status %d: %s", resp.StatusCode, string(body))
	}
}
