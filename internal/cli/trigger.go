package cli

import (
	"context"
	"errors"
)

// TriggerRefreshCmd asks the running daemon to run a cycle now
type TriggerRefreshCmd struct {
	Reason string `help:"Reason recorded with the cycle." default:"trigger"`
}

func (c *TriggerRefreshCmd) Run(ctx *Context) error {
	client := ctx.daemon()
	if client == nil {
		return errors.New("control API is disabled; use 'habitrefresh refresh --local'")
	}
	id, err := client.Refresh(context.Background(), c.Reason)
	if err != nil {
		return err
	}
	ctx.printf("%s Cycle %s queued\n", okStyle.Render("✓"), id)
	return nil
}

// TriggerRecoverCmd delivers a restart notification to the running daemon,
// re-arming the wake as after a reboot.
type TriggerRecoverCmd struct{}

func (c *TriggerRecoverCmd) Run(ctx *Context) error {
	client := ctx.daemon()
	if client == nil {
		return errors.New("control API is disabled; send SIGHUP to the daemon instead")
	}
	if err := client.Recover(context.Background()); err != nil {
		return err
	}
	ctx.printf("%s Daemon re-armed\n", okStyle.Render("✓"))
	return nil
}
