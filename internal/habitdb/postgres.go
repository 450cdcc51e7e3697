package habitdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	apperrors "github.com/julianstephens/habitrefresh/internal/errors"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

// ValidateConnString accepts URL or key=value connection strings that carry
// no password. Passwords belong in the keyring or .pgpass.
func ValidateConnString(connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}
	if _, err := pq.NewConnector(connStr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}

	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
		}
		if _, set := u.User.Password(); set {
			return ErrEmbeddedCredentials
		}
		return nil
	}

	for _, pair := range strings.Fields(connStr) {
		key, _, ok := strings.Cut(pair, "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "password") {
			return ErrEmbeddedCredentials
		}
	}
	return nil
}

// PostgresSource reads habits from a PostgreSQL database. The DSN is
// resolved on every Open so keyring changes apply without a restart.
type PostgresSource struct {
	dsn func() (string, error)
}

func NewPostgresSource(dsn func() (string, error)) *PostgresSource {
	return &PostgresSource{dsn: dsn}
}

func (s *PostgresSource) Open(ctx context.Context) (Session, error) {
	dsn, err := s.dsn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnreachable, err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnreachable, err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnreachable, err)
	}

	session, err := openSession(ctx, db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return session, nil
}

func (s *PostgresSource) Describe() string {
	return "postgres"
}
