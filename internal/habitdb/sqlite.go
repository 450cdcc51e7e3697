package habitdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite"

	apperrors "github.com/julianstephens/habitrefresh/internal/errors"
	"github.com/julianstephens/habitrefresh/internal/logger"
)

// SQLiteSource reads the host application's SQLite file in read-only mode
type SQLiteSource struct {
	fs         afero.Fs
	path       string
	candidates []string
}

// NewSQLiteSource pins the database to path when it is set; otherwise the
// candidates are probed in order on every Open.
func NewSQLiteSource(fs afero.Fs, path string, candidates []string) *SQLiteSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &SQLiteSource{fs: fs, path: path, candidates: candidates}
}

// Locate returns the first candidate that exists as a regular file
func (s *SQLiteSource) Locate() (string, error) {
	paths := s.candidates
	if s.path != "" {
		paths = []string{s.path}
	}
	for _, p := range paths {
		info, err := s.fs.Stat(p)
		if err != nil {
			logger.Debug("habit database candidate missing", "path", p)
			continue
		}
		if info.IsDir() {
			continue
		}
		return p, nil
	}
	return "", fmt.Errorf("%w: no habit database found in %d candidate paths", apperrors.ErrStoreUnreachable, len(paths))
}

func (s *SQLiteSource) Open(ctx context.Context) (Session, error) {
	path, err := s.Locate()
	if err != nil {
		return nil, err
	}

	dsn := (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnreachable, err)
	}

	session, err := openSession(ctx, db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("opened habit database", "path", path, "table", session.tables.habits)
	return session, nil
}

func (s *SQLiteSource) Describe() string {
	if s.path != "" {
		return "sqlite:" + s.path
	}
	return fmt.Sprintf("sqlite:(%d candidates)", len(s.candidates))
}
