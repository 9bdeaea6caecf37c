package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refDay = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intp(v int) *int { return &v }

func TestDaysUntilIgnoresTimeOfDay(t *testing.T) {
	t.Parallel()
	shanghai := time.FixedZone("CST", 8*3600)
	tests := []struct {
		name   string
		ref    time.Time
		target time.Time
		want   int
	}{
		{"midnight both", refDay, date(2024, 1, 13), 3},
		{"late reference", time.Date(2024, 1, 10, 23, 59, 59, 0, time.UTC), date(2024, 1, 13), 3},
		{"late target", refDay, time.Date(2024, 1, 13, 23, 0, 0, 0, time.UTC), 3},
		{"early target", refDay, time.Date(2024, 1, 8, 0, 0, 1, 0, time.UTC), -2},
		{"other zone", time.Date(2024, 1, 10, 7, 0, 0, 0, shanghai), date(2024, 1, 10), 0},
		{"month boundary", date(2024, 1, 31), date(2024, 2, 1), 1},
		{"leap day", date(2024, 2, 28), date(2024, 3, 1), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntil(tt.ref, tt.target))
		})
	}
}

func TestDaysUntilAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	ref := time.Date(2024, 3, 9, 0, 0, 0, 0, loc)
	assert.Equal(t, 2, DaysUntil(ref, time.Date(2024, 3, 11, 0, 0, 0, 0, loc)))
}

func TestClassifyScenarios(t *testing.T) {
	t.Parallel()
	th := Thresholds{DefaultReminderDays: 3, ImminentWindowDays: 3, FloorDays: 30}

	t.Run("expired two days ago", func(t *testing.T) {
		set := Classify([]Item{{Name: "milk", ExpiryDate: date(2024, 1, 8)}}, refDay, th)
		require.Len(t, set.Expired, 1)
		assert.Equal(t, 2, set.Expired[0].DaysPastExpiry)
		assert.Equal(t, "expired 2 days ago", ExpiredPhrase(set.Expired[0].DaysPastExpiry))
		assert.Equal(t, 1, set.Due)
	})

	t.Run("expires today", func(t *testing.T) {
		set := Classify([]Item{{Name: "bread", ExpiryDate: date(2024, 1, 10)}}, refDay, th)
		require.Len(t, set.Imminent, 1)
		assert.Equal(t, 0, set.Imminent[0].DaysUntilExpiry)
		assert.Equal(t, "expires today", ImminentPhrase(0))
	})

	t.Run("expires at threshold", func(t *testing.T) {
		set := Classify([]Item{{Name: "eggs", ExpiryDate: date(2024, 1, 13)}}, refDay, th)
		require.Len(t, set.Imminent, 1)
		assert.Equal(t, 3, set.Imminent[0].DaysUntilExpiry)
		assert.Equal(t, "expires in 3 days", ImminentPhrase(3))
	})

	t.Run("below floor", func(t *testing.T) {
		set := Classify([]Item{{Name: "jam", ExpiryDate: date(2023, 12, 1)}}, refDay, th)
		assert.Equal(t, 0, set.Due)
		assert.Empty(t, set.Expired)
		assert.Empty(t, set.Imminent)
	})
}

func TestClassifyBoundaries(t *testing.T) {
	t.Parallel()
	th := Thresholds{DefaultReminderDays: 3, ImminentWindowDays: 2}
	items := []Item{
		{Name: "floor-31", ExpiryDate: refDay.AddDate(0, 0, -31)},
		{Name: "floor-30", ExpiryDate: refDay.AddDate(0, 0, -30)},
		{Name: "window", ExpiryDate: refDay.AddDate(0, 0, 2)},
		{Name: "silent", ExpiryDate: refDay.AddDate(0, 0, 3)},
		{Name: "beyond", ExpiryDate: refDay.AddDate(0, 0, 4)},
		{Name: "own-threshold", ExpiryDate: refDay.AddDate(0, 0, 10), ReminderThresholdDays: intp(10)},
		{Name: "own-threshold-out", ExpiryDate: refDay.AddDate(0, 0, 11), ReminderThresholdDays: intp(10)},
	}
	set := Classify(items, refDay, th)

	// floor-30, window, silent, own-threshold
	assert.Equal(t, 4, set.Due)
	require.Len(t, set.Expired, 1)
	assert.Equal(t, "floor-30", set.Expired[0].Item.Name)
	assert.Equal(t, 30, set.Expired[0].DaysPastExpiry)
	require.Len(t, set.Imminent, 1)
	assert.Equal(t, "window", set.Imminent[0].Item.Name)
}

func TestClassifyZeroThresholdOverride(t *testing.T) {
	t.Parallel()
	th := Thresholds{DefaultReminderDays: 3, ImminentWindowDays: 3}
	items := []Item{
		{Name: "today", ExpiryDate: refDay, ReminderThresholdDays: intp(0)},
		{Name: "tomorrow", ExpiryDate: refDay.AddDate(0, 0, 1), ReminderThresholdDays: intp(0)},
	}
	set := Classify(items, refDay, th)
	assert.Equal(t, 1, set.Due)
	require.Len(t, set.Imminent, 1)
	assert.Equal(t, "today", set.Imminent[0].Item.Name)
}

func TestClassifyPreservesOrderAndInput(t *testing.T) {
	t.Parallel()
	th := Thresholds{DefaultReminderDays: 5, ImminentWindowDays: 5}
	items := []Item{
		{Name: "a", ExpiryDate: refDay.AddDate(0, 0, -3)},
		{Name: "b", ExpiryDate: refDay.AddDate(0, 0, -1)},
		{Name: "c", ExpiryDate: refDay},
		{Name: "d", ExpiryDate: refDay.AddDate(0, 0, 1)},
		{Name: "e", ExpiryDate: refDay.AddDate(0, 0, 4)},
	}
	before := append([]Item(nil), items...)
	set := Classify(items, refDay, th)

	assert.Equal(t, before, items)
	var expired, imminent []string
	for _, e := range set.Expired {
		expired = append(expired, e.Item.Name)
	}
	for _, i := range set.Imminent {
		imminent = append(imminent, i.Item.Name)
	}
	assert.Equal(t, []string{"a", "b"}, expired)
	assert.Equal(t, []string{"c", "d", "e"}, imminent)
}

func TestClassifyIsDeterministic(t *testing.T) {
	t.Parallel()
	th := Thresholds{DefaultReminderDays: 3, ImminentWindowDays: 3}
	items := []Item{
		{Name: "a", ExpiryDate: refDay.AddDate(0, 0, -2), CategoryName: "Dairy"},
		{Name: "b", ExpiryDate: refDay.AddDate(0, 0, 1)},
	}
	first := Classify(items, refDay, th)
	second := Classify(items, refDay.Add(15*time.Hour), th)
	assert.Equal(t, first, second)
	assert.Equal(t, Compose(first, Framing{}), Compose(second, Framing{}))
}

func TestDefaultFloorApplied(t *testing.T) {
	t.Parallel()
	set := Classify([]Item{{Name: "old", ExpiryDate: refDay.AddDate(0, 0, -30)}}, refDay, Thresholds{DefaultReminderDays: 3})
	assert.Equal(t, 1, set.Due)
}
