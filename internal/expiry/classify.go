package expiry

import "time"

// Classify partitions items relative to ref.
//
// items must already be sorted ascending by expiry; the order is kept.
// An item is due when floor <= daysUntil <= threshold (both inclusive), where
// threshold is the item's own ReminderThresholdDays or th.DefaultReminderDays.
func Classify(items []Item, ref time.Time, th Thresholds) ClassifiedSet {
	var set ClassifiedSet
	floor := -th.floor()
	for _, it := range items {
		d := DaysUntil(ref, it.ExpiryDate)
		threshold := th.DefaultReminderDays
		if it.ReminderThresholdDays != nil {
			threshold = *it.ReminderThresholdDays
		}
		if d > threshold || d < floor {
			continue
		}
		set.Due++
		switch {
		case d < 0:
			set.Expired = append(set.Expired, ExpiredItem{Item: it, DaysPastExpiry: -d})
		case d <= th.ImminentWindowDays:
			set.Imminent = append(set.Imminent, ImminentItem{Item: it, DaysUntilExpiry: d})
		}
	}
	return set
}
