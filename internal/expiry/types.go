package expiry

import (
	"fmt"
	"strings"
	"time"
)

// UncategorizedLabel is shown for items without a category.
const UncategorizedLabel = "uncategorized"

// DefaultFloorDays bounds how far in the past an expiry date may be and still
// be reported.
const DefaultFloorDays = 30

// Item is one tracked inventory entry, as read from the item repository.
type Item struct {
	Name       string
	ExpiryDate time.Time
	// ReminderThresholdDays overrides Thresholds.DefaultReminderDays when set.
	ReminderThresholdDays *int
	CategoryName          string
}

// Category returns the display category.
func (it Item) Category() string {
	if c := strings.TrimSpace(it.CategoryName); c != "" {
		return c
	}
	return UncategorizedLabel
}

// Account is a potential recipient from the account directory.
type Account struct {
	Email string
}

// Thresholds are the per-run knobs of the classifier.
type Thresholds struct {
	DefaultReminderDays int
	ImminentWindowDays  int
	// FloorDays: 0 means DefaultFloorDays.
	FloorDays int
}

func (t Thresholds) floor() int {
	if t.FloorDays <= 0 {
		return DefaultFloorDays
	}
	return t.FloorDays
}

type ExpiredItem struct {
	Item           Item
	DaysPastExpiry int
}

type ImminentItem struct {
	Item            Item
	DaysUntilExpiry int
}

// ClassifiedSet is the result of one classification pass.
//
// Due counts every item inside both the reminder threshold and the floor.
// Expired and Imminent are subsets of the due items in input order; a due item
// beyond the imminent window belongs to neither.
type ClassifiedSet struct {
	Due      int
	Expired  []ExpiredItem
	Imminent []ImminentItem
}

// SelectionMode picks which accounts receive the reminder.
type SelectionMode string

const (
	SinglePrimary SelectionMode = "single-primary"
	BroadcastAll  SelectionMode = "broadcast-all"
)

func ParseSelectionMode(s string) (SelectionMode, error) {
	switch SelectionMode(strings.ToLower(strings.TrimSpace(s))) {
	case SinglePrimary, "single", "primary":
		return SinglePrimary, nil
	case BroadcastAll, "broadcast", "all":
		return BroadcastAll, nil
	default:
		return "", fmt.Errorf("unknown recipient selection mode %q (use %s or %s)", s, SinglePrimary, BroadcastAll)
	}
}

// Outcome records one delivery attempt.
type Outcome struct {
	Recipient   string `json:"email"`
	Succeeded   bool   `json:"success"`
	ErrorDetail string `json:"error,omitempty"`
}

// RunReport is the aggregate result of one sweep.
type RunReport struct {
	DueItemCount        int       `json:"dueItemCount"`
	ExpiredCount        int       `json:"expiredCount"`
	ImminentCount       int       `json:"imminentCount"`
	EmailsSent          int       `json:"emailsSent"`
	EmailsFailed        int       `json:"emailsFailed"`
	PerRecipientResults []Outcome `json:"perRecipientResults"`
	Timestamp           time.Time `json:"timestamp"`
}
