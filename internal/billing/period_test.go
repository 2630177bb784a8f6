package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextBillingBoundary_MonthClamping(t *testing.T) {
	anchor := date(2024, 1, 31)

	got, ok := NextBillingBoundary(anchor, IntervalMonth, 1, date(2024, 3, 15))
	require.True(t, ok)
	assert.Equal(t, date(2024, 3, 31), got)

	got, ok = NextBillingBoundary(anchor, IntervalMonth, 1, date(2024, 4, 1))
	require.True(t, ok)
	assert.Equal(t, date(2024, 4, 30), got)

	got, _ = NextBillingBoundary(anchor, IntervalMonth, 1, date(2024, 2, 1))
	assert.Equal(t, date(2024, 2, 29), got)

	got, _ = NextBillingBoundary(anchor, IntervalMonth, 1, date(2025, 2, 1))
	assert.Equal(t, date(2025, 2, 28), got)
}

func TestNextBillingBoundary_PreservesOriginalDay(t *testing.T) {
	anchor := date(2024, 1, 31)
	want := []time.Time{
		date(2024, 2, 29), date(2024, 3, 31), date(2024, 4, 30), date(2024, 5, 31),
		date(2024, 6, 30), date(2024, 7, 31), date(2024, 8, 31), date(2024, 9, 30),
	}
	now := anchor
	for _, expected := range want {
		got, ok := NextBillingBoundary(anchor, IntervalMonth, 1, now)
		require.True(t, ok)
		assert.Equal(t, expected, got)
		now = got
	}
}

func TestNextBillingBoundary_LeapDayYearly(t *testing.T) {
	anchor := date(2024, 2, 29)
	got, ok := NextBillingBoundary(anchor, IntervalYear, 1, date(2024, 6, 1))
	require.True(t, ok)
	assert.Equal(t, date(2025, 2, 28), got)

	got, _ = NextBillingBoundary(anchor, IntervalYear, 1, date(2027, 3, 1))
	assert.Equal(t, date(2028, 2, 29), got)
}

func TestNextBillingBoundary_StrictlyAfterNow(t *testing.T) {
	anchor := date(2024, 1, 15)
	got, _ := NextBillingBoundary(anchor, IntervalMonth, 1, date(2024, 2, 15))
	assert.Equal(t, date(2024, 3, 15), got)

	got, _ = NextBillingBoundary(anchor, IntervalMonth, 1, date(2023, 12, 1))
	assert.Equal(t, anchor, got, "future anchor is its own first boundary")
}

func TestNextBillingBoundary_DaysWeeksAndCounts(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	got, _ := NextBillingBoundary(anchor, IntervalDay, 10, date(2024, 1, 25))
	assert.Equal(t, time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC), got)

	got, _ = NextBillingBoundary(anchor, IntervalWeek, 2, date(2024, 1, 29))
	assert.Equal(t, time.Date(2024, 1, 29, 9, 30, 0, 0, time.UTC), got)

	got, _ = NextBillingBoundary(anchor, IntervalMonth, 3, date(2024, 5, 1))
	assert.Equal(t, time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC), got)
}

func TestNextBillingBoundary_UnknownUnitIsMonthly(t *testing.T) {
	anchor := date(2024, 1, 10)
	got, ok := NextBillingBoundary(anchor, "fortnight", 1, date(2024, 1, 20))
	require.True(t, ok)
	assert.Equal(t, date(2024, 2, 10), got)
}

func TestNextBillingBoundary_InvalidCount(t *testing.T) {
	for _, count := range []int{0, -1} {
		_, ok := NextBillingBoundary(date(2024, 1, 1), IntervalMonth, count, date(2024, 6, 1))
		assert.False(t, ok)
	}
}

func TestNextBillingBoundary_IsSmallest(t *testing.T) {
	anchor := date(2023, 8, 31)
	for _, interval := range []string{IntervalDay, IntervalWeek, IntervalMonth, IntervalYear} {
		for count := 1; count <= 3; count++ {
			now := date(2026, 2, 14)
			got, ok := NextBillingBoundary(anchor, interval, count, now)
			require.True(t, ok)
			assert.True(t, got.After(now), "%s x%d", interval, count)

			prevNow := got.Add(-time.Nanosecond)
			again, _ := NextBillingBoundary(anchor, interval, count, prevNow)
			assert.Equal(t, got, again, "%s x%d", interval, count)
		}
	}
}

func TestMapVendorStatus(t *testing.T) {
	for raw, want := range map[string]string{
		"active":             "active",
		"trialing":           "trialing",
		"past_due":           "past_due",
		"canceled":           "cancelled",
		"unpaid":             "unpaid",
		"incomplete":         "incomplete",
		"incomplete_expired": "incomplete_expired",
		"paused":             "paused",
	} {
		got, ok := MapVendorStatus(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, string(got))
	}

	got, ok := MapVendorStatus("mystery")
	assert.False(t, ok)
	assert.Equal(t, "mystery", string(got))
	assert.False(t, got.IsOpen())
}
