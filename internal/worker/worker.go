// Package worker runs one refresh cycle: check the day guard, resolve, record
// the day, notify consumers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/julianstephens/habitrefresh/internal/errors"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/models"
	"github.com/julianstephens/habitrefresh/internal/utils"
)

type Guard interface {
	LastProcessedDate() (string, error)
	MarkProcessed(prev, today string) error
}

type Resolver interface {
	Resolve(ctx context.Context) models.RefreshResult
}

type Notifier interface {
	Notify(ctx context.Context, cycleID string)
}

type Options struct {
	Guard    Guard
	Resolver Resolver
	Notifier Notifier
	Location *time.Location
	Now      func() time.Time
}

type Worker struct {
	guard    Guard
	resolver Resolver
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

func New(opts Options) *Worker {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Worker{
		guard:    opts.Guard,
		resolver: opts.Resolver,
		notifier: opts.Notifier,
		loc:      opts.Location,
		now:      opts.Now,
	}
}

// RunCycle performs at most one refresh per calendar day. Consumers are
// notified exactly once per call, whatever the outcome.
func (w *Worker) RunCycle(ctx context.Context, cycleID string) (status models.CycleStatus) {
	defer w.notifier.Notify(ctx, cycleID)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("cycle aborted", "cycle", cycleID, "error", fmt.Errorf("%w: panic: %v", apperrors.ErrUnexpected, p))
			status = models.CycleRetryScheduled
		}
	}()

	last, err := w.guard.LastProcessedDate()
	if err != nil {
		logger.Error("failed to read day guard", "cycle", cycleID, "error", err)
		return models.CycleRetryScheduled
	}

	today := utils.DateString(w.now(), w.loc)
	if today == last {
		logger.Info("already refreshed today", "cycle", cycleID, "date", today)
		return models.CycleSkipped
	}
	if last != "" && today < last {
		// Refresh anyway; the guard follows the clock.
		logger.Warn("clock moved backwards since last refresh", "cycle", cycleID, "last", last, "today", today)
	}

	result := w.resolver.Resolve(ctx)
	if !result.Success {
		logger.Warn("refresh failed, retry scheduled", "cycle", cycleID, "source", result.Source)
		return models.CycleRetryScheduled
	}

	if err := w.guard.MarkProcessed(last, today); err != nil {
		if errors.Is(err, apperrors.ErrGuardConflict) {
			if current, readErr := w.guard.LastProcessedDate(); readErr == nil && current == today {
				logger.Info("day recorded by a concurrent cycle", "cycle", cycleID, "date", today)
				return models.CycleSkipped
			}
		}
		logger.Error("failed to record refresh day", "cycle", cycleID, "error", err)
		return models.CycleRetryScheduled
	}

	logger.Info("refresh completed", "cycle", cycleID, "date", today, "source", result.Source)
	return models.CycleCompleted
}
