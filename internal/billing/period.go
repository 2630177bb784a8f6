// Package billing mirrors Stripe subscription state into local subscription rows.
package billing

import (
	"strings"
	"time"
)

// Billing interval units as reported by Stripe prices.
const (
	IntervalDay   = "day"
	IntervalWeek  = "week"
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// NextBillingBoundary returns the smallest anchor + k*interval*intervalCount (k >= 0)
// strictly after now. Month and year steps are taken from the original anchor and clamp
// its day-of-month to the target month. Unknown units advance monthly. It reports false
// when intervalCount < 1.
func NextBillingBoundary(anchor time.Time, interval string, intervalCount int, now time.Time) (time.Time, bool) {
	if intervalCount < 1 {
		return time.Time{}, false
	}
	anchor = anchor.UTC()
	now = now.UTC()

	var step func(k int) time.Time
	var estimate int
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case IntervalDay, IntervalWeek:
		days := intervalCount
		if strings.EqualFold(strings.TrimSpace(interval), IntervalWeek) {
			days *= 7
		}
		step = func(k int) time.Time { return anchor.AddDate(0, 0, k*days) }
		estimate = int(now.Sub(anchor).Hours()/24) / days
	default:
		months := intervalCount
		if strings.EqualFold(strings.TrimSpace(interval), IntervalYear) {
			months *= 12
		}
		step = func(k int) time.Time { return addMonthsClamped(anchor, k*months) }
		estimate = monthsBetween(anchor, now) / months
	}

	k := estimate
	if k < 0 {
		k = 0
	}
	for !step(k).After(now) {
		k++
	}
	for k > 0 && step(k-1).After(now) {
		k--
	}
	return step(k), true
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// addMonthsClamped adds n months to t keeping t's day-of-month where the target month allows it.
func addMonthsClamped(t time.Time, n int) time.Time {
	total := int(t.Month()) - 1 + n
	year := t.Year() + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)
	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
