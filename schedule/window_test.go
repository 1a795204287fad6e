package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsem-svoim/basecap/api/types"
)

func TestClassify(t *testing.T) {
	hours := types.BusinessHours{
		MarketOpen:  "09:00",
		MarketClose: "16:00",
		Timezone:    "America/New_York",
	}
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	for _, tc := range []struct {
		name     string
		now      time.Time
		expected types.Window
	}{
		{
			name:     "weekday during market hours",
			now:      time.Date(2024, 3, 4, 10, 30, 0, 0, ny), // Monday
			expected: types.WindowMarketHours,
		},
		{
			name:     "market open boundary",
			now:      time.Date(2024, 3, 4, 9, 0, 0, 0, ny),
			expected: types.WindowMarketHours,
		},
		{
			name:     "market close boundary is inclusive",
			now:      time.Date(2024, 3, 4, 16, 0, 0, 0, ny),
			expected: types.WindowMarketHours,
		},
		{
			name:     "weekday after close",
			now:      time.Date(2024, 3, 4, 16, 1, 0, 0, ny),
			expected: types.WindowOffHours,
		},
		{
			name:     "weekday before open",
			now:      time.Date(2024, 3, 4, 8, 59, 0, 0, ny),
			expected: types.WindowOffHours,
		},
		{
			name:     "saturday",
			now:      time.Date(2024, 3, 2, 12, 0, 0, 0, ny),
			expected: types.WindowWeekend,
		},
		{
			name:     "sunday",
			now:      time.Date(2024, 3, 3, 12, 0, 0, 0, ny),
			expected: types.WindowWeekend,
		},
		{
			name: "utc instant converted into market timezone",
			// 14:00 UTC on an EST Monday is 09:00 in New York.
			now:      time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC),
			expected: types.WindowMarketHours,
		},
		{
			name: "weekend decided in market timezone",
			// Monday 01:00 UTC is still Sunday evening in New York.
			now:      time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC),
			expected: types.WindowWeekend,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			window, err := Classify(hours, tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, window)
		})
	}
}

func TestClassifyInvalidTimezone(t *testing.T) {
	hours := types.BusinessHours{
		MarketOpen:  "09:00",
		MarketClose: "16:00",
		Timezone:    "Mars/Olympus",
	}
	_, err := Classify(hours, time.Now())
	assert.Error(t, err)
}
