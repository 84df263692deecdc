package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superskip/dispatch/internal/lookup"
	"github.com/superskip/dispatch/internal/metrics"
	"github.com/superskip/dispatch/internal/models"
)

// fakeAPI is a scriptable LookupAPI that records every submitted batch.
type fakeAPI struct {
	submitFunc func(call int, batch []string) (*lookup.Response, error)
	batches    [][]string
}

func (f *fakeAPI) Submit(_ context.Context, batch []string, _ string) (*lookup.Response, error) {
	f.batches = append(f.batches, batch)
	return f.submitFunc(len(f.batches), batch)
}

// fakeNotifier records advisory notifications instead of delivering them.
type fakeNotifier struct {
	starts    int
	forwards  []json.RawMessage
	summaries []models.RunSummary
}

func (f *fakeNotifier) NotifyStart(_ context.Context) { f.starts++ }

func (f *fakeNotifier) Forward(_ context.Context, b json.RawMessage) {
	f.forwards = append(f.forwards, b)
}
func (f *fakeNotifier) NotifySummary(_ context.Context, s models.RunSummary) {
	f.summaries = append(f.summaries, s)
}

func makeAddresses(n int) []string {
	addresses := make([]string, 0, n)
	for i := 0; i < n; i++ {
		addresses = append(addresses, fmt.Sprintf("%d MAIN ST, SPRINGFIELD, IL 62704", i+1))
	}
	return addresses
}

func accepted(id string) *lookup.Response {
	body := json.RawMessage(fmt.Sprintf(`{"id": %q}`, id))
	return &lookup.Response{Kind: lookup.KindAccepted, RequestID: id, Body: body}
}

func completed(payload string) *lookup.Response {
	return &lookup.Response{Kind: lookup.KindCompleted, Body: json.RawMessage(payload)}
}

func TestSubmitterRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()
	webhookURL := "https://hooks.example.com/results"

	newSubmitter := func(api *fakeAPI, notifier *fakeNotifier, batchSize int, onProgress ProgressFunc) *Submitter {
		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		return NewSubmitter(logger, api, notifier, appMetrics, webhookURL, batchSize, onProgress, nil)
	}

	t.Run("partitions 45 addresses into 3 batches", func(t *testing.T) {
		addresses := makeAddresses(45)
		api := &fakeAPI{submitFunc: func(call int, _ []string) (*lookup.Response, error) {
			return accepted(fmt.Sprintf("req-%d", call)), nil
		}}
		notifier := &fakeNotifier{}
		var progress [][2]int

		submitter := newSubmitter(api, notifier, 20, func(done, total int) {
			progress = append(progress, [2]int{done, total})
		})
		results, summary, err := submitter.Run(ctx, addresses)

		require.NoError(t, err)
		require.Len(t, results, 3)
		require.Len(t, api.batches, 3)
		assert.Len(t, api.batches[0], 20)
		assert.Len(t, api.batches[1], 20)
		assert.Len(t, api.batches[2], 5)

		// Concatenating the batches reproduces the original list exactly.
		var rejoined []string
		for _, batch := range api.batches {
			rejoined = append(rejoined, batch...)
		}
		assert.Equal(t, addresses, rejoined)

		assert.Equal(t, models.RunSummary{TotalBatches: 3, Submitted: 3}, summary)
		assert.Equal(t, "req-1", results[0].RequestID)
		assert.Equal(t, [][2]int{{20, 45}, {40, 45}, {45, 45}}, progress)
		assert.Equal(t, 1, notifier.starts)
		assert.Len(t, notifier.forwards, 3)
		require.Len(t, notifier.summaries, 1)
		assert.Equal(t, summary, notifier.summaries[0])
	})

	t.Run("classifies mixed outcomes and keeps going", func(t *testing.T) {
		api := &fakeAPI{submitFunc: func(call int, _ []string) (*lookup.Response, error) {
			switch call {
			case 1:
				return accepted("abc123"), nil
			case 2:
				return nil, errors.New("lookup API returned status 500: upstream exploded")
			default:
				return completed(`{"results": []}`), nil
			}
		}}
		notifier := &fakeNotifier{}

		submitter := newSubmitter(api, notifier, 1, nil)
		results, summary, err := submitter.Run(ctx, makeAddresses(3))

		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, models.BatchSubmitted, results[0].Status)
		assert.Equal(t, "abc123", results[0].RequestID)

		assert.Equal(t, models.BatchError, results[1].Status)
		assert.Contains(t, results[1].Error, "500")

		assert.Equal(t, models.BatchCompleted, results[2].Status)
		assert.JSONEq(t, `{"results": []}`, string(results[2].Data))

		assert.Equal(t, models.RunSummary{TotalBatches: 3, Submitted: 1, Completed: 1, Errors: 1}, summary)
		assert.Equal(t, summary.TotalBatches, summary.Submitted+summary.Completed+summary.Errors)

		// Errored batches forward nothing; the summary still goes out because one
		// batch was accepted asynchronously.
		assert.Len(t, notifier.forwards, 2)
		assert.Len(t, notifier.summaries, 1)
	})

	t.Run("synchronous-only run skips the summary delivery", func(t *testing.T) {
		api := &fakeAPI{submitFunc: func(int, []string) (*lookup.Response, error) {
			return completed(`{"results": []}`), nil
		}}
		notifier := &fakeNotifier{}

		submitter := newSubmitter(api, notifier, 1, nil)
		_, summary, err := submitter.Run(ctx, makeAddresses(2))

		require.NoError(t, err)
		assert.Equal(t, models.RunSummary{TotalBatches: 2, Completed: 2}, summary)
		assert.Empty(t, notifier.summaries)
	})

	t.Run("every batch failing still yields a full run", func(t *testing.T) {
		api := &fakeAPI{submitFunc: func(int, []string) (*lookup.Response, error) {
			return nil, errors.New("failed to execute lookup request: connection refused")
		}}
		notifier := &fakeNotifier{}

		submitter := newSubmitter(api, notifier, 2, nil)
		results, summary, err := submitter.Run(ctx, makeAddresses(5))

		require.NoError(t, err)
		assert.Len(t, results, 3)
		assert.Equal(t, models.RunSummary{TotalBatches: 3, Errors: 3}, summary)
		assert.Empty(t, notifier.forwards)
		assert.Empty(t, notifier.summaries)
	})

	t.Run("invalid batch size is a precondition error", func(t *testing.T) {
		submitter := newSubmitter(&fakeAPI{}, &fakeNotifier{}, 0, nil)
		results, summary, err := submitter.Run(ctx, makeAddresses(1))

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
		assert.Nil(t, results)
		assert.Zero(t, summary)
	})

	t.Run("empty address list is a precondition error", func(t *testing.T) {
		notifier := &fakeNotifier{}
		submitter := newSubmitter(&fakeAPI{}, notifier, 20, nil)
		results, _, err := submitter.Run(ctx, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoAddresses)
		assert.Nil(t, results)
		assert.Zero(t, notifier.starts)
	})

	t.Run("status callback narrates the run", func(t *testing.T) {
		api := &fakeAPI{submitFunc: func(int, []string) (*lookup.Response, error) {
			return completed(`{}`), nil
		}}
		var statuses []string

		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		submitter := NewSubmitter(logger, api, &fakeNotifier{}, appMetrics, webhookURL, 1, nil,
			func(message string) { statuses = append(statuses, message) })
		_, _, err := submitter.Run(ctx, makeAddresses(2))

		require.NoError(t, err)
		require.NotEmpty(t, statuses)
		assert.Equal(t, "Submitting 2 addresses in 2 batches", statuses[0])
		assert.Contains(t, statuses, "Processing batch 2/2")
		assert.Equal(t, "Processing complete", statuses[len(statuses)-1])
	})
}

func TestPartition(t *testing.T) {
	cases := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"empty list", 0, 20, nil},
		{"single partial batch", 7, 20, []int{7}},
		{"exact fit", 40, 20, []int{20, 20}},
		{"one left over", 21, 20, []int{20, 1}},
		{"45 by 20", 45, 20, []int{20, 20, 5}},
		{"batch size one", 3, 1, []int{1, 1, 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			addresses := makeAddresses(tc.n)
			batches := partition(addresses, tc.size)

			require.Len(t, batches, len(tc.sizes))
			rejoined := make([]string, 0, tc.n)
			for idx, batch := range batches {
				assert.Len(t, batch, tc.sizes[idx])
				rejoined = append(rejoined, batch...)
			}
			assert.Equal(t, addresses, rejoined)
		})
	}
}

func TestSummarize(t *testing.T) {
	results := []models.BatchResult{
		{Batch: 1, Status: models.BatchSubmitted, RequestID: "a"},
		{Batch: 2, Status: models.BatchError, Error: "boom"},
		{Batch: 3, Status: models.BatchSubmitted, RequestID: "b"},
		{Batch: 4, Status: models.BatchCompleted},
	}

	summary := summarize(results)

	assert.Equal(t, models.RunSummary{TotalBatches: 4, Submitted: 2, Completed: 1, Errors: 1}, summary)
	assert.Equal(t, summary.TotalBatches, summary.Submitted+summary.Completed+summary.Errors)
	assert.Len(t, results, summary.TotalBatches)
}
