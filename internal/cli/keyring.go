package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitrefresh/internal/habitdb"
	"github.com/julianstephens/habitrefresh/internal/keyring"
)

// KeyringSetCmd stores the PostgreSQL habit source connection string
type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string for the habit database."`
}

func (c *KeyringSetCmd) Run(ctx *Context) error {
	if err := habitdb.ValidateConnString(c.ConnectionString); err != nil {
		if !errors.Is(err, habitdb.ErrEmbeddedCredentials) {
			return err
		}
		// The keyring is encrypted, so an embedded password is tolerated here.
		ctx.printf("%s Connection string contains a password; it is stored as-is in the OS keyring.\n", warnStyle.Render("⚠"))
	}
	if err := keyring.SetDSN(ctx.Config.HabitSource.KeyringUser, c.ConnectionString); err != nil {
		return err
	}
	ctx.printf("%s Connection string stored in OS keyring\n", okStyle.Render("✓"))
	return nil
}

type KeyringGetCmd struct{}

func (c *KeyringGetCmd) Run(ctx *Context) error {
	dsn, err := keyring.GetDSN(ctx.Config.HabitSource.KeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'habitrefresh keyring set' to store one")
		}
		return err
	}
	ctx.printf("%s\n", maskPassword(dsn))
	return nil
}

type KeyringDeleteCmd struct{}

func (c *KeyringDeleteCmd) Run(ctx *Context) error {
	if err := keyring.DeleteDSN(ctx.Config.HabitSource.KeyringUser); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return err
	}
	ctx.printf("%s Connection string deleted from OS keyring\n", okStyle.Render("✓"))
	return nil
}

// maskPassword hides the password of a URL or key=value connection string
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		scheme, rest, _ := strings.Cut(connStr, "://")
		at := strings.LastIndex(rest, "@")
		if at == -1 {
			return connStr
		}
		user, _, hasPassword := strings.Cut(rest[:at], ":")
		if !hasPassword {
			return connStr
		}
		return fmt.Sprintf("%s://%s:****%s", scheme, user, rest[at:])
	}

	fields := strings.Fields(connStr)
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = "password=****"
		}
	}
	return strings.Join(fields, " ")
}
