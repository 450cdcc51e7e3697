package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/julianstephens/habitrefresh/internal/backup"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNotLoaded is returned by every accessor called before Init or Load
var ErrNotLoaded = errors.New("state database not loaded")

// Store is the state database: key-value slots plus the consumer registry
type Store struct {
	path string
	db   *sql.DB
}

func New(path string) *Store {
	return &Store{
		path: path,
	}
}

// Init creates the database file when missing and applies pending migrations
func (s *Store) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := s.open(); err != nil {
		return err
	}

	runner, err := s.migrationRunner()
	if err != nil {
		return err
	}
	s.backupBeforeUpgrade(runner)
	if _, err := runner.Apply(func(msg string) { logger.Info(msg) }); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// backupBeforeUpgrade copies an existing database aside when migrations are
// pending. A failed backup is logged and does not block the upgrade.
func (s *Store) backupBeforeUpgrade(runner *migration.Runner) {
	current, err := runner.CurrentVersion()
	if err != nil || current == 0 {
		return
	}
	latest, err := runner.LatestVersion()
	if err != nil || current >= latest {
		return
	}
	path, err := backup.NewManager(s.path).Create()
	if err != nil {
		logger.Warn("pre-migration backup failed", "error", err)
		return
	}
	logger.Info("backed up state database", "path", path, "from_version", current, "to_version", latest)
}

// Load opens an already initialized database and checks its schema version
func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("state database not initialized, run 'habitrefresh init' first")
	}

	if err := s.open(); err != nil {
		return err
	}

	runner, err := s.migrationRunner()
	if err != nil {
		return err
	}
	return runner.Validate()
}

func (s *Store) open() error {
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps the CAS in one place.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("failed to configure database: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) migrationRunner() (*migration.Runner, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	return migration.NewRunner(s.db, sub), nil
}

// SchemaVersion reports the applied and the latest known schema version
func (s *Store) SchemaVersion() (current, latest int, err error) {
	if s.db == nil {
		return 0, 0, ErrNotLoaded
	}
	runner, err := s.migrationRunner()
	if err != nil {
		return 0, 0, err
	}
	if current, err = runner.CurrentVersion(); err != nil {
		return 0, 0, err
	}
	if latest, err = runner.LatestVersion(); err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// GetValue reads a slot. ok is false when the slot has never been written.
func (s *Store) GetValue(key string) (value string, ok bool, err error) {
	if s.db == nil {
		return "", false, ErrNotLoaded
	}
	err = s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// SetValue overwrites a slot
func (s *Store) SetValue(key, value string) error {
	if s.db == nil {
		return ErrNotLoaded
	}
	if _, err := s.db.Exec("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
