package models

// Habit is a row of the host application's habits table
type Habit struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ReminderTime string `json:"reminder_time"`
	TargetDays   string `json:"target_days"` // comma-separated store weekdays, Monday=1 ... Sunday=7
}

// HabitEntry is a row of the host application's habit_entries table
type HabitEntry struct {
	HabitID     int64  `json:"habit_id"`
	Date        string `json:"date"` // YYYY-MM-DD, possibly with a time component
	IsCompleted bool   `json:"is_completed"`
}

// Consumer is a registered display instance that renders the snapshot
type Consumer struct {
	ID           string `json:"id"`
	RegisteredAt string `json:"registered_at"` // RFC3339
}
