// Package runner executes refresh cycles one at a time. A new trigger
// replaces the cycle in flight, and failed cycles are retried on a cron
// schedule until one completes or is skipped.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/models"
)

// CycleRunner is implemented by worker.Worker
type CycleRunner interface {
	RunCycle(ctx context.Context, cycleID string) models.CycleStatus
}

type Options struct {
	// RetrySpec is a cron expression; defaults to "@every 15m".
	RetrySpec string
	NewID     func() string
	Now       func() time.Time
}

type Runner struct {
	worker    CycleRunner
	retrySpec string
	newID     func() string
	now       func() time.Time

	mu         sync.Mutex
	base       context.Context
	stop       context.CancelFunc
	cancel     context.CancelFunc
	done       chan struct{}
	last       models.CycleRecord
	hasLast    bool
	retryEntry cron.EntryID
	retrying   bool

	cron *cron.Cron
	wg   sync.WaitGroup
}

func New(worker CycleRunner, opts Options) (*Runner, error) {
	if opts.RetrySpec == "" {
		opts.RetrySpec = constants.DefaultRetrySpec
	}
	if _, err := cron.ParseStandard(opts.RetrySpec); err != nil {
		return nil, fmt.Errorf("invalid retry schedule %q: %w", opts.RetrySpec, err)
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	base, stop := context.WithCancel(context.Background())
	return &Runner{
		worker:    worker,
		retrySpec: opts.RetrySpec,
		newID:     opts.NewID,
		now:       opts.Now,
		base:      base,
		stop:      stop,
		cron:      cron.New(),
	}, nil
}

// Start begins evaluating the retry schedule
func (r *Runner) Start() {
	r.cron.Start()
	logger.Debug("runner started", "retry", r.retrySpec)
}

// Stop cancels the cycle in flight and waits for every cycle to return
func (r *Runner) Stop() {
	r.stop()
	<-r.cron.Stop().Done()
	r.wg.Wait()
	logger.Debug("runner stopped")
}

// Enqueue starts a cycle in the background and returns its ID
func (r *Runner) Enqueue(reason string) string {
	id, _ := r.start(r.base, reason)
	return id
}

// RunNow runs a cycle and waits for it. It is serialized with background
// cycles the same way Enqueue is.
func (r *Runner) RunNow(ctx context.Context, reason string) models.CycleStatus {
	merged, cancel := context.WithCancel(ctx)
	defer cancel()
	// Runner shutdown also cancels a synchronous cycle.
	stopWatch := context.AfterFunc(r.base, cancel)
	defer stopWatch()

	_, result := r.start(merged, reason)
	return (<-result).Status
}

// Wait blocks until no cycle is running or queued
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Last returns the most recently finished cycle
func (r *Runner) Last() (models.CycleRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// RetryPending reports whether a retry job is registered
func (r *Runner) RetryPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retrying
}

// start replaces the cycle in flight. The new cycle waits for the replaced
// one to return before touching the day guard.
func (r *Runner) start(parent context.Context, reason string) (string, <-chan models.CycleRecord) {
	id := r.newID()
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	result := make(chan models.CycleRecord, 1)

	r.mu.Lock()
	prevCancel, prevDone := r.cancel, r.done
	r.cancel, r.done = cancel, done
	r.wg.Add(1)
	r.mu.Unlock()

	if prevCancel != nil {
		logger.Info("replacing cycle in flight", "cycle", id, "reason", reason)
		prevCancel()
	}

	go func() {
		defer r.wg.Done()
		defer close(done)
		defer cancel()

		if prevDone != nil {
			<-prevDone
		}

		rec := models.CycleRecord{ID: id, Reason: reason, StartedAt: r.now()}
		if ctx.Err() != nil {
			logger.Debug("cycle superseded before start", "cycle", id, "reason", reason)
			rec.Status = models.CycleSkipped
			rec.FinishedAt = rec.StartedAt
			result <- rec
			r.release(done)
			return
		}

		logger.Info("cycle started", "cycle", id, "reason", reason)
		rec.Status = r.worker.RunCycle(ctx, id)
		rec.FinishedAt = r.now()
		logger.Info("cycle finished", "cycle", id, "status", rec.Status, "duration", rec.FinishedAt.Sub(rec.StartedAt))

		r.mu.Lock()
		r.last, r.hasLast = rec, true
		r.mu.Unlock()

		r.updateRetry(rec.Status)
		r.release(done)
		result <- rec
	}()

	return id, result
}

func (r *Runner) release(done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == done {
		r.cancel, r.done = nil, nil
	}
}

func (r *Runner) updateRetry(status models.CycleStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch status {
	case models.CycleRetryScheduled:
		if r.retrying || r.base.Err() != nil {
			return
		}
		entry, err := r.cron.AddFunc(r.retrySpec, func() {
			r.Enqueue("retry")
		})
		if err != nil {
			logger.Error("failed to schedule retry", "spec", r.retrySpec, "error", err)
			return
		}
		r.retryEntry, r.retrying = entry, true
		logger.Info("retry scheduled", "spec", r.retrySpec)
	case models.CycleCompleted, models.CycleSkipped:
		if !r.retrying {
			return
		}
		r.cron.Remove(r.retryEntry)
		r.retrying = false
		logger.Debug("retry cleared")
	}
}
