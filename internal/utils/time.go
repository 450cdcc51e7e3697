package utils

import (
	"time"

	"github.com/julianstephens/habitrefresh/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == constants.DefaultTimezone {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// DateString returns the calendar date of t in loc as YYYY-MM-DD.
func DateString(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(constants.DateFormat)
}

// NextMidnight returns the first local midnight strictly after now, in now's location.
// On days where midnight is skipped by a DST transition the normalized instant is returned.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// StoreWeekday converts a Go weekday (Sunday=0) to the habit store numbering
// where Monday=1 and Sunday=7.
func StoreWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	_, err := LoadLocation(timezone)
	return err == nil
}
