package models

import "time"

// SnapshotItem is one habit scheduled for the snapshot's day
type SnapshotItem struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	CompletedToday bool   `json:"isCompletedToday"`
}

// Snapshot is the materialized result of a refresh cycle. It is overwritten
// wholesale on each successful refresh.
type Snapshot struct {
	Habits      []SnapshotItem `json:"habits"`
	Total       int            `json:"totalHabits"`
	Completed   int            `json:"completedHabits"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// NewSnapshot builds a snapshot from items, computing the aggregate counts.
func NewSnapshot(items []SnapshotItem, at time.Time) Snapshot {
	if items == nil {
		items = []SnapshotItem{}
	}
	completed := 0
	for _, item := range items {
		if item.CompletedToday {
			completed++
		}
	}
	return Snapshot{
		Habits:      items,
		Total:       len(items),
		Completed:   completed,
		LastUpdated: at,
	}
}
