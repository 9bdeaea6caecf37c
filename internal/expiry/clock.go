package expiry

import "time"

const day = 24 * time.Hour

// Clock supplies the current time. Sweeps derive their reference date from it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// FixedClock always returns t.
func FixedClock(t time.Time) Clock { return fixedClock(t) }

// CalendarDay strips the time of day, keeping t's location.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysUntil returns the number of calendar days from ref's day to target's
// day. Each side is read in its own location and the difference is taken in
// UTC so DST transitions cannot produce fractional days.
func DaysUntil(ref, target time.Time) int {
	ry, rm, rd := ref.Date()
	ty, tm, td := target.Date()
	a := time.Date(ry, rm, rd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / day)
}
