package models

import "time"

// Source identifies which path produced a refresh result
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// RefreshResult is produced once per cycle by the resolver and consumed
// immediately by the worker. It is never persisted.
type RefreshResult struct {
	Success  bool
	Snapshot *Snapshot // nil on the fallback path, where the host app writes the slot itself
	Source   Source
}

// CycleStatus is the only value that crosses the component boundary upward
type CycleStatus string

const (
	CycleCompleted      CycleStatus = "completed"
	CycleSkipped        CycleStatus = "skipped"
	CycleRetryScheduled CycleStatus = "retry_scheduled"
)

// CycleRecord describes a finished cycle
type CycleRecord struct {
	ID         string      `json:"id"`
	Reason     string      `json:"reason"`
	Status     CycleStatus `json:"status"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}
