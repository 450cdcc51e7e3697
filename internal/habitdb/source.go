// Package habitdb reads the host application's habit database. It never writes.
package habitdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/julianstephens/habitrefresh/internal/errors"
	"github.com/julianstephens/habitrefresh/internal/models"
)

// Source opens sessions against a habit database. Open doubles as the
// reachability check: it fails with ErrStoreUnreachable unless the store
// exists and answers a trivial read.
type Source interface {
	Open(ctx context.Context) (Session, error)
	Describe() string
}

type Session interface {
	// Habits returns every decodable habit ordered by id. Rows that fail to
	// decode are passed to skip and left out.
	Habits(ctx context.Context, skip func(error)) ([]models.Habit, error)
	IsCompleted(ctx context.Context, habitID int64, date string) (bool, error)
	Close() error
}

// tableSet names the two tables; older host builds suffix them with _table.
type tableSet struct {
	habits  string
	entries string
}

var knownTables = []tableSet{
	{habits: "habits", entries: "habit_entries"},
	{habits: "habits_table", entries: "habit_entries_table"},
}

type dialect struct {
	name        string
	placeholder func(n int) string
	// dateOf wraps a column or parameter so timestamps compare as dates.
	dateOf func(expr string) string
}

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
	dateOf:      func(expr string) string { return "date(" + expr + ")" },
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	dateOf:      func(expr string) string { return "CAST(" + expr + " AS DATE)" },
}

type sqlSession struct {
	db     *sql.DB
	d      dialect
	tables tableSet
}

// openSession probes the known table layouts and keeps the first one that
// answers a count query.
func openSession(ctx context.Context, db *sql.DB, d dialect) (*sqlSession, error) {
	var lastErr error
	for _, t := range knownTables {
		var n int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.habits).Scan(&n)
		if err == nil {
			return &sqlSession{db: db, d: d, tables: t}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: habits table not readable: %v", apperrors.ErrStoreUnreachable, lastErr)
}

func (s *sqlSession) Habits(ctx context.Context, skip func(error)) ([]models.Habit, error) {
	if skip == nil {
		skip = func(error) {}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, description, reminder_time, target_days FROM "+s.tables.habits+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	habits := []models.Habit{}
	row := 0
	for rows.Next() {
		row++
		var id sql.NullInt64
		var title, desc, reminderTime, targetDays sql.NullString
		if err := rows.Scan(&id, &title, &desc, &reminderTime, &targetDays); err != nil {
			skip(fmt.Errorf("%w: row %d: %v", apperrors.ErrDecode, row, err))
			continue
		}
		if !id.Valid {
			skip(fmt.Errorf("%w: row %d: null id", apperrors.ErrDecode, row))
			continue
		}
		habits = append(habits, models.Habit{
			ID:           id.Int64,
			Title:        title.String,
			Description:  desc.String,
			ReminderTime: reminderTime.String,
			TargetDays:   targetDays.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate habits: %w", err)
	}
	return habits, nil
}

func (s *sqlSession) IsCompleted(ctx context.Context, habitID int64, date string) (bool, error) {
	query := fmt.Sprintf("SELECT is_completed FROM %s WHERE habit_id = %s AND %s = %s",
		s.tables.entries,
		s.d.placeholder(1),
		s.d.dateOf("date"),
		s.d.dateOf(s.d.placeholder(2)),
	)

	var raw any
	err := s.db.QueryRowContext(ctx, query, habitID, date).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check completion for habit %d: %w", habitID, err)
	}
	return truthy(raw), nil
}

func (s *sqlSession) Close() error {
	return s.db.Close()
}

// truthy interprets is_completed as stored by either driver: an integer
// flag in SQLite, a boolean in PostgreSQL.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x == 1
	case float64:
		return x == 1
	case []byte:
		return truthyString(string(x))
	case string:
		return truthyString(x)
	default:
		return false
	}
}

func truthyString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true":
		return true
	}
	return false
}
