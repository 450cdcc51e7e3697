package constants

const (
	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// DefaultTimezone selects the system local timezone
	DefaultTimezone = "Local"
)
