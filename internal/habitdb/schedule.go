package habitdb

import (
	"strconv"
	"strings"

	"github.com/julianstephens/habitrefresh/internal/logger"
)

// ParseTargetDays splits a comma-separated weekday list. Entries that are
// not integers in 1..7 are returned in invalid and otherwise ignored.
func ParseTargetDays(s string) (days []int, invalid []string) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 7 {
			invalid = append(invalid, part)
			continue
		}
		days = append(days, n)
	}
	return days, invalid
}

// IsScheduledOn reports whether targetDays contains the store weekday.
// Malformed entries are logged and skipped.
func IsScheduledOn(targetDays string, storeWeekday int) bool {
	days, invalid := ParseTargetDays(targetDays)
	if len(invalid) > 0 {
		logger.Debug("ignoring invalid target days", "target_days", targetDays, "entries", invalid)
	}
	for _, d := range days {
		if d == storeWeekday {
			return true
		}
	}
	return false
}
