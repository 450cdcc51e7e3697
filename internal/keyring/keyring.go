package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/zalando/go-keyring"
)

var (
	// ErrNotFound is returned when no habit source DSN is stored for the account
	ErrNotFound = errors.New("habit source credentials not found in keyring")
	// ErrUnavailable is returned when the OS keyring cannot be reached
	ErrUnavailable = errors.New("OS keyring is not available")
)

func account(user string) string {
	if strings.TrimSpace(user) == "" {
		return constants.DefaultKeyringUser
	}
	return user
}

// GetDSN reads the habit source connection string stored under user.
// An empty user selects the default account.
func GetDSN(user string) (string, error) {
	dsn, err := keyring.Get(constants.AppName, account(user))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return dsn, nil
}

// SetDSN stores the habit source connection string under user
func SetDSN(user, dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := keyring.Set(constants.AppName, account(user), dsn); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

func DeleteDSN(user string) error {
	if err := keyring.Delete(constants.AppName, account(user)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// IsAvailable is a best-effort probe: a read that reports "not found" still
// proves the keyring answered.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "availability-probe")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
