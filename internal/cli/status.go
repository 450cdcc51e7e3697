package cli

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/server"
	"github.com/julianstephens/habitrefresh/internal/utils"
)

// StatusCmd reports the day guard and, when a daemon answers, its schedule
type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	var status server.Status
	online := false
	if client := ctx.daemon(); client != nil {
		s, err := client.Status(context.Background())
		switch {
		case err == nil:
			status, online = s, true
		case errors.Is(err, server.ErrDaemonUnreachable):
			logger.Debug("daemon not running", "error", err)
		default:
			return err
		}
	}

	if !online {
		local, err := ctx.localStatus()
		if err != nil {
			return err
		}
		status = local
	}

	ctx.printf("%s\n", titleStyle.Render("habitrefresh "+status.Version))
	ctx.row("Today", status.Today)
	last := status.LastProcessedDate
	if last == "" {
		last = "never"
	}
	if status.LastProcessedDate == status.Today {
		last = okStyle.Render(last)
	} else {
		last = warnStyle.Render(last)
	}
	ctx.row("Last refreshed", last)
	ctx.row("Consumers", status.Consumers)

	if !online {
		ctx.row("Daemon", failStyle.Render("not running"))
		return nil
	}
	ctx.row("Daemon", okStyle.Render("running"))
	if status.PendingWake != nil {
		ctx.row("Next wake", status.PendingWake.Format(time.RFC3339)+" ("+status.WakeService+")")
	} else {
		ctx.row("Next wake", "not armed")
	}
	if status.LastCycle != nil {
		ctx.row("Last cycle", string(status.LastCycle.Status)+" at "+status.LastCycle.FinishedAt.Format(time.RFC3339))
	}
	if status.RetryPending {
		ctx.row("Retry", warnStyle.Render("pending"))
	}
	return nil
}

func (c *Context) row(label string, value any) {
	c.printf("%s %v\n", labelStyle.Render(label), value)
}

func (c *Context) localStatus() (server.Status, error) {
	loc, err := c.Config.Location()
	if err != nil {
		return server.Status{}, err
	}
	last, err := c.Store.LastProcessedDate()
	if err != nil {
		return server.Status{}, err
	}
	n, err := c.Store.CountConsumers()
	if err != nil {
		return server.Status{}, err
	}
	return server.Status{
		Version:           constants.Version,
		Today:             utils.DateString(time.Now(), loc),
		LastProcessedDate: last,
		Consumers:         n,
	}, nil
}
