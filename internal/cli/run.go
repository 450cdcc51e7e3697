package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/recovery"
	"github.com/julianstephens/habitrefresh/internal/runner"
	"github.com/julianstephens/habitrefresh/internal/scheduler"
	"github.com/julianstephens/habitrefresh/internal/server"
)

// RunCmd is the long-running daemon: it arms the daily wake, runs boundary
// cycles and serves the control API until interrupted. SIGHUP is treated as
// a restart notification.
type RunCmd struct{}

func (c *RunCmd) Run(ctx *Context) error {
	loc, err := ctx.Config.Location()
	if err != nil {
		return err
	}

	pipeline, err := ctx.NewPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Close()

	r, err := runner.New(pipeline.Worker, runner.Options{RetrySpec: ctx.Config.Schedule.RetrySpec})
	if err != nil {
		return err
	}

	services, err := scheduler.ServicesFor(ctx.Config.Schedule.WakeMode)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(scheduler.Options{
		Services: services,
		Location: loc,
		WakeSpec: ctx.Config.Schedule.WakeSpec,
		OnWake:   func() { r.Enqueue("wake") },
	})
	if err != nil {
		return err
	}

	hook := recovery.New(recovery.Options{
		Scheduler: sched,
		Runner:    r,
		Consumers: ctx.Store,
		CatchUp:   ctx.Config.Schedule.CatchUp,
	})
	watcher := recovery.NewWatcher(hook, ctx.Store, ctx.Store.Path(), 0)

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.Start()
	defer r.Stop()
	defer sched.Cancel()

	logger.Info("daemon starting", "state", ctx.Store.Path(), "timezone", loc.String(), "wake_mode", ctx.Config.Schedule.WakeMode)
	if err := hook.OnRestart(appCtx); err != nil {
		logger.Error("restart recovery failed", "error", err)
	}

	go func() {
		if err := watcher.Run(appCtx); err != nil {
			logger.Error("consumer watcher stopped", "error", err)
		}
	}()

	var srv *server.Server
	if ctx.Config.Control.Enabled && ctx.Config.Control.Addr != "" {
		srv = server.New(server.Config{
			Addr:      ctx.Config.Control.Addr,
			Secret:    ctx.Config.Control.Secret,
			Guard:     ctx.Store,
			Consumers: ctx.Store,
			Runner:    r,
			Scheduler: sched,
			Recovery:  hook,
			Location:  loc,
		})
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("control API stopped", "error", err)
			}
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	ctx.printf("%s habitrefresh daemon running (Ctrl+C to stop)\n", okStyle.Render("✓"))
	for {
		select {
		case <-appCtx.Done():
			logger.Info("daemon shutting down")
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("control API shutdown failed", "error", err)
				}
				cancel()
			}
			return nil
		case <-hup:
			logger.Info("restart notification received")
			if err := hook.OnRestart(appCtx); err != nil {
				logger.Error("restart recovery failed", "error", err)
			}
		}
	}
}
