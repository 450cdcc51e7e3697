package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
)

type InitCmd struct {
	Force bool `help:"Overwrite an existing config file with defaults."`
}

func (c *InitCmd) Run(ctx *Context) error {
	if ctx.ConfigPath != "" {
		_, err := os.Stat(ctx.ConfigPath)
		switch {
		case errors.Is(err, os.ErrNotExist) || c.Force:
			if ctx.Config.Control.Secret == "" {
				ctx.Config.Control.Secret = uuid.NewString()
			}
			if err := ctx.Config.Save(ctx.ConfigPath); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			ctx.printf("Wrote config: %s\n", ctx.ConfigPath)
		case err != nil:
			return fmt.Errorf("failed to check config: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	ctx.printf("Initialized state database at: %s\n", ctx.Store.Path())
	return nil
}
