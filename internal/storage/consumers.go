package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitrefresh/internal/models"
)

// AddConsumer registers a display consumer. Re-adding keeps the original
// registration time.
func (s *Store) AddConsumer(id string) error {
	if s.db == nil {
		return ErrNotLoaded
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("consumer id cannot be empty")
	}
	_, err := s.db.Exec(
		"INSERT INTO consumers (id, registered_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING",
		id, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to add consumer %s: %w", id, err)
	}
	return nil
}

// RemoveConsumer unregisters a consumer. Returns false if it was not registered.
func (s *Store) RemoveConsumer(id string) (bool, error) {
	if s.db == nil {
		return false, ErrNotLoaded
	}
	res, err := s.db.Exec("DELETE FROM consumers WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to remove consumer %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListConsumers() ([]models.Consumer, error) {
	if s.db == nil {
		return nil, ErrNotLoaded
	}
	rows, err := s.db.Query("SELECT id, registered_at FROM consumers ORDER BY registered_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list consumers: %w", err)
	}
	defer rows.Close()

	consumers := []models.Consumer{}
	for rows.Next() {
		var c models.Consumer
		if err := rows.Scan(&c.ID, &c.RegisteredAt); err != nil {
			return nil, err
		}
		consumers = append(consumers, c)
	}
	return consumers, rows.Err()
}

func (s *Store) CountConsumers() (int, error) {
	if s.db == nil {
		return 0, ErrNotLoaded
	}
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM consumers").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count consumers: %w", err)
	}
	return n, nil
}
