package orchestrate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/argocli"
)

// fakeSubmitter fails a source's submissions failures[source] times before
// succeeding, recording every call.
type fakeSubmitter struct {
	mu       sync.Mutex
	calls    []argocli.SubmitOptions
	failures map[string]int
}

func (f *fakeSubmitter) Submit(_ context.Context, _ time.Duration, opts argocli.SubmitOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, opts)

	source := opts.Parameters["source-url"]
	if f.failures[source] > 0 {
		f.failures[source]--
		return fmt.Errorf("workflow %s failed", opts.Name)
	}
	return nil
}

func (f *fakeSubmitter) callsFor(workflowPrefix string) []argocli.SubmitOptions {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := []argocli.SubmitOptions{}
	for _, call := range f.calls {
		if len(call.Name) >= len(workflowPrefix) && call.Name[:len(workflowPrefix)] == workflowPrefix {
			matched = append(matched, call)
		}
	}
	return matched
}

func ingestionBusinessConfig() *types.BusinessConfig {
	zeroDelay := func(maxRetries int) types.RetryPolicy {
		return types.RetryPolicy{MaxRetries: maxRetries, RetryDelayMinutes: 0}
	}
	return &types.BusinessConfig{
		Version: 1,
		Sources: []types.SourceConfig{
			{
				Name: "bloomberg_api", Category: types.SourceCategoryMarket,
				Priority: types.PriorityCritical, SLAMinutes: 5,
				URL: "https://bloomberg.example.com", Type: "rest_api",
			},
			{
				Name: "reuters_api", Category: types.SourceCategoryMarket,
				Priority: types.PriorityHigh, SLAMinutes: 10,
				URL: "https://reuters.example.com", Type: "rest_api",
			},
			{
				Name: "master_securities_db", Category: types.SourceCategoryReference,
				Priority: types.PriorityMedium, SLAMinutes: 60,
				URL: "postgresql://securities.example.com", Type: "database",
			},
		},
		BusinessHours: types.BusinessHours{
			MarketOpen:  "09:00",
			MarketClose: "16:00",
			Timezone:    "America/New_York",
		},
		RetryPolicies: map[types.Priority]types.RetryPolicy{
			types.PriorityCritical: zeroDelay(2),
			types.PriorityHigh:     zeroDelay(1),
			types.PriorityMedium:   zeroDelay(1),
			types.PriorityLow:      zeroDelay(0),
		},
	}
}

func marketHoursClock(t *testing.T) *clocktesting.FakePassiveClock {
	t.Helper()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// Monday 10:00 New York
	return clocktesting.NewFakePassiveClock(time.Date(2024, 3, 4, 10, 0, 0, 0, ny))
}

func TestRunIngestionAllSourcesSucceed(t *testing.T) {
	submitter := &fakeSubmitter{}
	ing := NewIngestorWithClock(submitter, marketHoursClock(t))

	result, err := ing.RunIngestion(context.Background(), IngestionConfig{
		Business: ingestionBusinessConfig(),
		Template: "data-ingestion-pipeline",
		RunID:    "0123456789abcdef",
	})
	require.NoError(t, err)

	assert.Equal(t, types.WindowMarketHours, result.Window)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1.0, result.SLAComplianceRate)
	assert.Empty(t, result.Escalations)

	calls := submitter.callsFor("ingestion-bloomberg-api-01234567")
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, "data-ingestion-pipeline", call.Template)
	assert.True(t, call.Wait)
	assert.Equal(t, "https://bloomberg.example.com", call.Parameters["source-url"])
	assert.Equal(t, "rest_api", call.Parameters["source-type"])
	assert.Equal(t, "critical", call.Parameters["priority"])
	assert.Equal(t, "market_hours_critical", call.Parameters["business-context"])

	deadline, err := time.Parse(time.RFC3339, call.Parameters["sla-deadline"])
	require.NoError(t, err)
	// critical 5m SLA halves during market hours
	assert.Equal(t, marketHoursClock(t).Now().Add(2*time.Minute).Unix(), deadline.Unix())
}

func TestRunIngestionRetriesUntilSuccess(t *testing.T) {
	submitter := &fakeSubmitter{
		failures: map[string]int{"https://bloomberg.example.com": 2},
	}
	ing := NewIngestorWithClock(submitter, marketHoursClock(t))

	result, err := ing.RunIngestion(context.Background(), IngestionConfig{
		Business: ingestionBusinessConfig(),
		Template: "data-ingestion-pipeline",
		RunID:    "run1",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Succeeded)

	var bloomberg SourceOutcome
	for _, outcome := range result.Outcomes {
		if outcome.Source == "bloomberg_api" {
			bloomberg = outcome
		}
	}
	assert.True(t, bloomberg.Succeeded)
	assert.Equal(t, 3, bloomberg.Attempts)
	assert.Equal(t, "ingestion-bloomberg-api-run1-r2", bloomberg.Workflow)
}

func TestRunIngestionEscalatesCriticalFailure(t *testing.T) {
	submitter := &fakeSubmitter{
		failures: map[string]int{"https://bloomberg.example.com": 10},
	}
	ing := NewIngestorWithClock(submitter, marketHoursClock(t))

	result, err := ing.RunIngestion(context.Background(), IngestionConfig{
		Business: ingestionBusinessConfig(),
		Template: "data-ingestion-pipeline",
		RunID:    "run2",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"bloomberg_api"}, result.Escalations)
	assert.InDelta(t, 2.0/3.0, result.SLAComplianceRate, 0.0001)

	var bloomberg SourceOutcome
	for _, outcome := range result.Outcomes {
		if outcome.Source == "bloomberg_api" {
			bloomberg = outcome
		}
	}
	assert.False(t, bloomberg.Succeeded)
	// first attempt plus two retries
	assert.Equal(t, 3, bloomberg.Attempts)
	assert.NotEmpty(t, bloomberg.Error)
}

func TestWorkflowName(t *testing.T) {
	assert.Equal(t, "ingestion-bloomberg-api-01234567",
		workflowName("bloomberg_api", "0123456789abcdef"))
	assert.Equal(t, "ingestion-nyse-feed-run1",
		workflowName("nyse_feed", "run1"))
}
