package storage

import (
	"fmt"

	"github.com/julianstephens/habitrefresh/internal/constants"
	apperrors "github.com/julianstephens/habitrefresh/internal/errors"
)

// LastProcessedDate returns the last day a refresh succeeded, "" if none
func (s *Store) LastProcessedDate() (string, error) {
	value, _, err := s.GetValue(constants.KeyLastProcessedDate)
	return value, err
}

// MarkProcessed records today as processed, but only if the guard still
// holds prev. prev == "" means the guard must not exist yet.
func (s *Store) MarkProcessed(prev, today string) error {
	if s.db == nil {
		return ErrNotLoaded
	}

	var query string
	var args []any
	if prev == "" {
		query = "INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING"
		args = []any{constants.KeyLastProcessedDate, today}
	} else {
		query = "UPDATE kv SET value = ? WHERE key = ? AND value = ?"
		args = []any{today, constants.KeyLastProcessedDate, prev}
	}

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to write day guard: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to write day guard: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expected %q: %w", prev, apperrors.ErrGuardConflict)
	}
	return nil
}
