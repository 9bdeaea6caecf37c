package sweep

import (
	"fmt"
	"strings"
	"time"

	"expirywatch/internal/expiry"
)

type Mode string

const (
	ModeReminder Mode = "reminder"
	ModeTest     Mode = "test"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReminder:
		return ModeReminder, nil
	case ModeTest:
		return ModeTest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Policy is everything that differs between trigger modes.
type Policy struct {
	Thresholds expiry.Thresholds
	Selection  expiry.SelectionMode
	Framing    expiry.Framing
	// From is the sender identity handed to the gateway.
	From string
	// StampSendTime appends the local send time to the message.
	StampSendTime bool
}

const DefaultFrom = "Inventory Reminder <noreply@example.com>"

// DefaultPolicies returns the stock reminder and test policies.
func DefaultPolicies() map[Mode]Policy {
	return map[Mode]Policy{
		ModeReminder: {
			Thresholds: expiry.Thresholds{DefaultReminderDays: 3, ImminentWindowDays: 3, FloorDays: expiry.DefaultFloorDays},
			Selection:  expiry.SinglePrimary,
			From:       DefaultFrom,
		},
		ModeTest: {
			Thresholds: expiry.Thresholds{DefaultReminderDays: 5, ImminentWindowDays: 5, FloorDays: expiry.DefaultFloorDays},
			Selection:  expiry.BroadcastAll,
			Framing: expiry.Framing{
				SubjectPrefix: "[TEST] ",
				Banner:        "This is a test email",
			},
			From:          DefaultFrom,
			StampSendTime: true,
		},
	}
}

// Config is the hot-swappable part of the service.
type Config struct {
	// OwnerScope selects whose items are swept. Required.
	OwnerScope string
	// Location defines calendar days for the reference date. nil means time.Local.
	Location *time.Location
	Policies map[Mode]Policy
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func sendTimeNote(at time.Time) string {
	return "Sent at " + at.Format("2006-01-02 15:04:05 MST")
}
