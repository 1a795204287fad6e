package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/vsem-svoim/basecap/api/types"
)

func testConfig(t *testing.T) *types.BusinessConfig {
	t.Helper()

	cfg, err := LoadConfig([]byte(`
version: 1
description: test sources
sources:
- name: bloomberg_api
  category: market
  priority: critical
  slaMinutes: 5
- name: reuters_api
  category: market
  priority: high
  slaMinutes: 10
- name: nyse_feed
  category: market
  priority: high
  slaMinutes: 15
- name: master_securities_db
  category: reference
  priority: medium
  slaMinutes: 60
- name: corporate_actions_api
  category: reference
  priority: medium
  slaMinutes: 120
- name: social_sentiment_api
  category: alternative
  priority: low
  slaMinutes: 240
- name: satellite_imagery
  category: alternative
  priority: low
  slaMinutes: 480
businessHours:
  marketOpen: "09:00"
  marketClose: "16:00"
  timezone: America/New_York
`))
	require.NoError(t, err)
	return cfg
}

func sourceNames(sources []types.SourceConfig) []string {
	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name)
	}
	return names
}

func TestLoadConfigAppliesDefaultRetryPolicies(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, types.RetryPolicy{MaxRetries: 5, RetryDelayMinutes: 1},
		cfg.RetryPolicies[types.PriorityCritical])
	assert.Equal(t, types.RetryPolicy{MaxRetries: 3, RetryDelayMinutes: 5},
		cfg.RetryPolicies[types.PriorityHigh])
	assert.Equal(t, types.RetryPolicy{MaxRetries: 2, RetryDelayMinutes: 15},
		cfg.RetryPolicies[types.PriorityMedium])
	assert.Equal(t, types.RetryPolicy{MaxRetries: 1, RetryDelayMinutes: 60},
		cfg.RetryPolicies[types.PriorityLow])
}

func TestLoadConfigInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{
			name: "wrong version",
			data: "version: 2",
		},
		{
			name: "no sources",
			data: "version: 1",
		},
		{
			name: "duplicate source name",
			data: `
version: 1
sources:
- name: bloomberg_api
  category: market
  priority: critical
  slaMinutes: 5
- name: bloomberg_api
  category: market
  priority: high
  slaMinutes: 10
businessHours:
  marketOpen: "09:00"
  marketClose: "16:00"
  timezone: America/New_York
`,
		},
		{
			name: "open after close",
			data: `
version: 1
sources:
- name: bloomberg_api
  category: market
  priority: critical
  slaMinutes: 5
businessHours:
  marketOpen: "17:00"
  marketClose: "16:00"
  timezone: America/New_York
`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestSelectSources(t *testing.T) {
	cfg := testConfig(t)

	for _, tc := range []struct {
		name     string
		window   types.Window
		expected []string
	}{
		{
			name:   "market hours pick critical and high market feeds plus reference",
			window: types.WindowMarketHours,
			expected: []string{
				"bloomberg_api", "reuters_api", "nyse_feed",
				"master_securities_db", "corporate_actions_api",
			},
		},
		{
			name:   "off hours process everything",
			window: types.WindowOffHours,
			expected: []string{
				"bloomberg_api", "reuters_api", "nyse_feed",
				"master_securities_db", "corporate_actions_api",
				"social_sentiment_api", "satellite_imagery",
			},
		},
		{
			name:     "weekend only touches alternative sources",
			window:   types.WindowWeekend,
			expected: []string{"social_sentiment_api", "satellite_imagery"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, sourceNames(SelectSources(cfg, tc.window)))
		})
	}
}

func TestDeadline(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		name     string
		source   string
		window   types.Window
		expected time.Duration
	}{
		{
			name:     "market hours halve the sla",
			source:   "bloomberg_api",
			window:   types.WindowMarketHours,
			expected: 2 * time.Minute, // int(5 * 0.5)
		},
		{
			name:     "weekend doubles the sla",
			source:   "social_sentiment_api",
			window:   types.WindowWeekend,
			expected: 480 * time.Minute,
		},
		{
			name:     "off hours keep the base sla",
			source:   "master_securities_db",
			window:   types.WindowOffHours,
			expected: 60 * time.Minute,
		},
		{
			name:     "unknown source falls back to one hour",
			source:   "no_such_feed",
			window:   types.WindowMarketHours,
			expected: time.Hour,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			deadline := Deadline(cfg, tc.source, tc.window, now)
			assert.Equal(t, now.Add(tc.expected), deadline)
		})
	}
}

func TestBuildPlan(t *testing.T) {
	cfg := testConfig(t)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Monday 10:00 New York, inside market hours.
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, ny)
	planner := NewPlannerWithClock(cfg, clocktesting.NewFakePassiveClock(now))

	plan, err := planner.BuildPlan()
	require.NoError(t, err)

	assert.Equal(t, types.WindowMarketHours, plan.Window)
	assert.Equal(t, now, plan.GeneratedAt)
	require.Len(t, plan.Items, 5)

	first := plan.Items[0]
	assert.Equal(t, "bloomberg_api", first.Source)
	assert.Equal(t, types.SourceCategoryMarket, first.Category)
	assert.Equal(t, types.PriorityCritical, first.Priority)
	assert.Equal(t, now.Add(2*time.Minute), first.SLADeadline)
	assert.Equal(t, types.RetryPolicy{MaxRetries: 5, RetryDelayMinutes: 1}, first.Retry)

	last := plan.Items[4]
	assert.Equal(t, "corporate_actions_api", last.Source)
	assert.Equal(t, now.Add(60*time.Minute), last.SLADeadline)
	assert.Equal(t, types.RetryPolicy{MaxRetries: 2, RetryDelayMinutes: 15}, last.Retry)
}
