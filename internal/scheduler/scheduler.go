// Package scheduler owns the single outstanding wake for the next daily
// refresh. Arming replaces the previous wake; a fired wake re-arms itself.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "github.com/julianstephens/habitrefresh/internal/errors"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/utils"
)

type Options struct {
	// Services in preference order; the first available one is used.
	Services []WakeService
	Location *time.Location
	// WakeSpec is an optional cron expression replacing local midnight.
	WakeSpec string
	OnWake   func()
	Now      func() time.Time
}

type Scheduler struct {
	services []WakeService
	loc      *time.Location
	spec     cron.Schedule
	onWake   func()
	now      func() time.Time

	mu      sync.Mutex
	handle  Handle
	pending time.Time
	armed   bool
	service string
	gen     uint64
}

func New(opts Options) (*Scheduler, error) {
	s := &Scheduler{
		services: opts.Services,
		loc:      opts.Location,
		onWake:   opts.OnWake,
		now:      opts.Now,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.WakeSpec != "" {
		spec, err := cron.ParseStandard(opts.WakeSpec)
		if err != nil {
			return nil, fmt.Errorf("invalid wake schedule %q: %w", opts.WakeSpec, err)
		}
		s.spec = spec
	}
	return s, nil
}

// Next returns the trigger instant strictly after now
func (s *Scheduler) Next(now time.Time) time.Time {
	now = now.In(s.loc)
	if s.spec != nil {
		return s.spec.Next(now)
	}
	return utils.NextMidnight(now)
}

// Arm schedules the next wake, replacing any outstanding one
func (s *Scheduler) Arm() (time.Time, error) {
	return s.armAfter(s.now())
}

// armAfter schedules the first trigger strictly after base
func (s *Scheduler) armAfter(base time.Time) (at time.Time, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", apperrors.ErrTimerServiceUnavailable, p)
			at = time.Time{}
		}
	}()

	svc := s.pick()
	if svc == nil {
		return time.Time{}, apperrors.ErrTimerServiceUnavailable
	}
	at = s.Next(base)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
	}
	s.gen++
	gen := s.gen
	s.handle = svc.Schedule(at, func() { s.fire(gen) })
	s.pending, s.armed, s.service = at, true, svc.Name()

	logger.Info("wake armed", "at", at.Format(time.RFC3339), "service", svc.Name())
	return at, nil
}

func (s *Scheduler) pick() WakeService {
	for _, svc := range s.services {
		if svc != nil && svc.Available() {
			return svc
		}
	}
	return nil
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		// Replaced or cancelled after the service committed to firing.
		s.mu.Unlock()
		return
	}
	at := s.pending
	s.handle, s.armed = nil, false
	s.mu.Unlock()

	logger.Info("wake fired", "scheduled", at.Format(time.RFC3339), "late", s.now().Sub(at).Round(time.Second))
	if s.onWake != nil {
		s.onWake()
	}
	// A monotonic timer can fire just ahead of the wall clock; never re-arm
	// for the trigger that just fired.
	base := s.now()
	if base.Before(at) {
		base = at
	}
	if _, err := s.armAfter(base); err != nil {
		logger.Error("failed to re-arm wake", "error", err)
	}
}

// Cancel stops the outstanding wake. Safe when nothing is armed.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
		logger.Info("wake cancelled", "at", s.pending.Format(time.RFC3339))
	}
	s.armed = false
}

// Pending reports the outstanding trigger time
func (s *Scheduler) Pending() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.armed
}

// Service names the wake service behind the outstanding wake
func (s *Scheduler) Service() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return ""
	}
	return s.service
}
