// Package resolver produces the refresh result for one cycle: from the habit
// database when it is reachable, otherwise by asking the host application to
// refresh on its own.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/habitrefresh/internal/constants"
	apperrors "github.com/julianstephens/habitrefresh/internal/errors"
	"github.com/julianstephens/habitrefresh/internal/habitdb"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/models"
	"github.com/julianstephens/habitrefresh/internal/utils"
)

// Trigger asks the host application to refresh the snapshot itself
type Trigger interface {
	RequestRefresh(ctx context.Context) error
}

type SnapshotWriter interface {
	SaveSnapshot(models.Snapshot) error
}

type Options struct {
	Source    habitdb.Source
	Trigger   Trigger
	Snapshots SnapshotWriter
	Location  *time.Location
	// Grace is how long the fallback waits before trusting the host; zero
	// selects the default.
	Grace time.Duration
	Now   func() time.Time
}

type Resolver struct {
	source    habitdb.Source
	trigger   Trigger
	snapshots SnapshotWriter
	loc       *time.Location
	grace     time.Duration
	now       func() time.Time
}

func New(opts Options) *Resolver {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Grace <= 0 {
		opts.Grace = constants.FallbackGracePeriod
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		source:    opts.Source,
		trigger:   opts.Trigger,
		snapshots: opts.Snapshots,
		loc:       opts.Location,
		grace:     opts.Grace,
		now:       opts.Now,
	}
}

// Resolve never returns an error and never panics; every failure is folded
// into an unsuccessful result.
func (r *Resolver) Resolve(ctx context.Context) (result models.RefreshResult) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("refresh failed", "error", fmt.Errorf("%w: panic: %v", apperrors.ErrUnexpected, p))
			result = models.RefreshResult{Success: false, Source: models.SourcePrimary}
		}
	}()

	if r.source == nil {
		return r.fallback(ctx)
	}

	session, err := r.source.Open(ctx)
	if err != nil {
		logger.Warn("habit database unreachable, using fallback", "source", r.source.Describe(), "error", err)
		return r.fallback(ctx)
	}
	defer session.Close()

	snap, err := r.fromStore(ctx, session)
	if err != nil {
		logger.Error("refresh failed", "error", fmt.Errorf("%w: %v", apperrors.ErrUnexpected, err))
		return models.RefreshResult{Success: false, Source: models.SourcePrimary}
	}
	return models.RefreshResult{Success: true, Snapshot: &snap, Source: models.SourcePrimary}
}

func (r *Resolver) fromStore(ctx context.Context, session habitdb.Session) (models.Snapshot, error) {
	now := r.now().In(r.loc)
	today := utils.DateString(now, r.loc)
	weekday := utils.StoreWeekday(now.Weekday())

	habits, err := session.Habits(ctx, func(err error) {
		logger.Warn("skipping habit row", "error", err)
	})
	if err != nil {
		return models.Snapshot{}, err
	}

	items := make([]models.SnapshotItem, 0, len(habits))
	for _, h := range habits {
		if err := ctx.Err(); err != nil {
			return models.Snapshot{}, err
		}

		if !habitdb.IsScheduledOn(h.TargetDays, weekday) {
			continue
		}

		done, err := session.IsCompleted(ctx, h.ID, today)
		if err != nil {
			logger.Warn("completion lookup failed, counting as not completed", "habit", h.ID, "error", err)
			done = false
		}
		items = append(items, models.SnapshotItem{ID: h.ID, Title: h.Title, CompletedToday: done})
	}

	snap := models.NewSnapshot(items, now)
	if err := r.snapshots.SaveSnapshot(snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to save snapshot: %w", err)
	}
	logger.Info("snapshot refreshed", "date", today, "total", snap.Total, "completed", snap.Completed)
	return snap, nil
}

// fallback cannot observe the host's outcome; after the grace period it
// reports success optimistically.
func (r *Resolver) fallback(ctx context.Context) models.RefreshResult {
	failed := models.RefreshResult{Success: false, Source: models.SourceFallback}
	if r.trigger == nil {
		logger.Error("no fallback trigger configured")
		return failed
	}

	if err := r.trigger.RequestRefresh(ctx); err != nil {
		logger.Error("fallback trigger not delivered", "error", err)
		return failed
	}

	timer := time.NewTimer(r.grace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		logger.Warn("fallback wait cancelled", "error", ctx.Err())
		return failed
	case <-timer.C:
	}

	logger.Info("assuming host application refreshed", "reason", apperrors.ErrFallbackTimeout, "grace", r.grace)
	return models.RefreshResult{Success: true, Source: models.SourceFallback}
}
