package migration

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func migrationsFS(files map[string]string) fstest.MapFS {
	m := fstest.MapFS{}
	for name, content := range files {
		m[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return m
}

func TestCurrentVersionFreshDatabase(t *testing.T) {
	runner := NewRunner(setupTestDB(t), migrationsFS(map[string]string{
		"001_test.sql": "CREATE TABLE test (id INTEGER);",
	}))

	version, err := runner.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestMigrationsSortedAndNamed(t *testing.T) {
	runner := NewRunner(setupTestDB(t), migrationsFS(map[string]string{
		"003_another.sql": "CREATE TABLE test2 (id INTEGER);",
		"001_init.sql":    "CREATE TABLE test1 (id INTEGER);",
		"002_update.sql":  "ALTER TABLE test1 ADD COLUMN name TEXT;",
		"README.md":       "ignored",
	}))

	migrations, err := runner.Migrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "init", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "update", migrations[1].Name)
	assert.Equal(t, 3, migrations[2].Version)
	assert.Equal(t, "another", migrations[2].Name)
}

func TestMigrationsRejectBadNames(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{name: "missing underscore", files: map[string]string{"001.sql": "SELECT 1;"}},
		{name: "non numeric version", files: map[string]string{"abc_init.sql": "SELECT 1;"}},
		{name: "zero version", files: map[string]string{"000_init.sql": "SELECT 1;"}},
		{name: "duplicate version", files: map[string]string{"001_a.sql": "SELECT 1;", "001_b.sql": "SELECT 1;"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(setupTestDB(t), migrationsFS(tt.files)).Migrations()
			assert.Error(t, err)
		})
	}
}

func TestApplyFromScratchAndIdempotent(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, migrationsFS(map[string]string{
		"001_init.sql":  "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);",
		"002_posts.sql": "CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER);",
	}))

	var logged []string
	applied, err := runner.Apply(func(s string) { logged = append(logged, s) })
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Len(t, logged, 2)

	version, err := runner.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.NoError(t, runner.Validate())

	applied, err = runner.Apply(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
}

func TestApplyRollsBackFailedMigration(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, migrationsFS(map[string]string{
		"001_init.sql":   "CREATE TABLE users (id INTEGER PRIMARY KEY);",
		"002_broken.sql": "CREATE TABLE nope (",
	}))

	applied, err := runner.Apply(nil)
	assert.Error(t, err)
	assert.Equal(t, 1, applied)

	version, err := runner.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Error(t, runner.Validate(), "pending migration must fail validation")
}

func TestApplyRejectsNewerDatabase(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, migrationsFS(map[string]string{
		"001_init.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
	}))
	_, err := runner.Apply(nil)
	require.NoError(t, err)

	_, err = db.Exec("UPDATE schema_version SET version = 9")
	require.NoError(t, err)

	_, err = runner.Apply(nil)
	assert.Error(t, err)
	assert.Error(t, runner.Validate())
}
