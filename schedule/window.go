package schedule

import (
	"fmt"
	"time"

	"github.com/vsem-svoim/basecap/api/types"
)

// minuteOfDay converts a HH:MM string into minutes since midnight. The value
// must have been validated by BusinessHours.Validate before.
func minuteOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Classify maps an instant onto the business window. Weekends are always
// maintenance windows. On weekdays the market-hours window spans from open
// to close in the configured timezone, close bound inclusive.
func Classify(hours types.BusinessHours, now time.Time) (types.Window, error) {
	loc, err := time.LoadLocation(hours.Timezone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", hours.Timezone, err)
	}

	local := now.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return types.WindowWeekend, nil
	}

	open, err := minuteOfDay(hours.MarketOpen)
	if err != nil {
		return "", err
	}
	close, err := minuteOfDay(hours.MarketClose)
	if err != nil {
		return "", err
	}

	minute := local.Hour()*60 + local.Minute()
	if minute >= open && minute <= close {
		return types.WindowMarketHours, nil
	}
	return types.WindowOffHours, nil
}
