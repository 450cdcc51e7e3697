package storage

import (
	"encoding/json"
	"fmt"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/models"
)

// SnapshotKeys lists the slots LoadSnapshot tries, in order
func SnapshotKeys() []string {
	keys := []string{constants.KeySnapshot, constants.KeySnapshotLegacy}
	for i := 0; i < constants.LegacyInstanceSlots; i++ {
		keys = append(keys, fmt.Sprintf(constants.LegacyInstanceKeyPattern, i))
	}
	return keys
}

// SaveSnapshot overwrites the primary slot and mirrors it to the legacy slot
func (s *Store) SaveSnapshot(snap models.Snapshot) error {
	if s.db == nil {
		return ErrNotLoaded
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, key := range []string{constants.KeySnapshot, constants.KeySnapshotLegacy} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", key, string(data)); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot returns the first non-empty slot and the key it came from.
// A slot holding undecodable JSON is logged and skipped. Returns nil when
// every slot is empty.
func (s *Store) LoadSnapshot() (*models.Snapshot, string, error) {
	for _, key := range SnapshotKeys() {
		value, ok, err := s.GetValue(key)
		if err != nil {
			return nil, "", err
		}
		if !ok || value == "" {
			continue
		}

		var snap models.Snapshot
		if err := json.Unmarshal([]byte(value), &snap); err != nil {
			logger.Warn("skipping undecodable snapshot slot", "key", key, "error", err)
			continue
		}
		if snap.Habits == nil {
			snap.Habits = []models.SnapshotItem{}
		}
		return &snap, key, nil
	}
	return nil, "", nil
}
