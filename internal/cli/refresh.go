package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/models"
	"github.com/julianstephens/habitrefresh/internal/runner"
	"github.com/julianstephens/habitrefresh/internal/server"
)

// daemon returns a control API client, or nil when the API is disabled
func (c *Context) daemon() *server.Client {
	if !c.Config.Control.Enabled || c.Config.Control.Addr == "" {
		return nil
	}
	return server.NewClient(c.Config.Control.Addr, c.Config.Control.Secret)
}

// RefreshCmd runs one boundary cycle. A running daemon is asked to do it so
// cycles never overlap; without one the cycle runs in this process.
type RefreshCmd struct {
	Local  bool   `help:"Run the cycle in this process even when a daemon is running."`
	Reason string `help:"Reason recorded with the cycle." default:"manual"`
}

func (c *RefreshCmd) Run(ctx *Context) error {
	if client := ctx.daemon(); client != nil && !c.Local {
		id, err := client.Refresh(context.Background(), c.Reason)
		if err == nil {
			ctx.printf("%s Cycle %s queued on the daemon\n", okStyle.Render("✓"), id)
			return nil
		}
		if !errors.Is(err, server.ErrDaemonUnreachable) {
			return err
		}
		logger.Debug("daemon not running, refreshing locally", "error", err)
	}

	status, err := ctx.runLocalCycle(context.Background(), c.Reason)
	if err != nil {
		return err
	}
	switch status {
	case models.CycleCompleted:
		ctx.printf("%s Refresh completed\n", okStyle.Render("✓"))
	case models.CycleSkipped:
		ctx.printf("%s Already refreshed today\n", okStyle.Render("✓"))
	default:
		ctx.printf("%s Refresh did not complete\n", failStyle.Render("❌"))
		return fmt.Errorf("cycle finished with status %s", status)
	}
	return nil
}

func (c *Context) runLocalCycle(parent context.Context, reason string) (models.CycleStatus, error) {
	p, err := c.NewPipeline()
	if err != nil {
		return "", err
	}
	defer p.Close()

	r, err := runner.New(p.Worker, runner.Options{RetrySpec: c.Config.Schedule.RetrySpec})
	if err != nil {
		return "", err
	}
	defer r.Stop()
	return r.RunNow(parent, reason), nil
}
