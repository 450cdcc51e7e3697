// Package recovery re-establishes the daily wake after a restart and follows
// the consumer count so the daemon only keeps a wake while someone listens.
package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/habitrefresh/internal/logger"
)

type Scheduler interface {
	Arm() (time.Time, error)
	Cancel()
}

type Enqueuer interface {
	Enqueue(reason string) string
}

type ConsumerCounter interface {
	CountConsumers() (int, error)
}

type Options struct {
	Scheduler Scheduler
	Runner    Enqueuer
	Consumers ConsumerCounter
	// CatchUp enqueues one cycle on restart so a day missed while the host
	// was down is refreshed immediately.
	CatchUp bool
}

type Hook struct {
	sched     Scheduler
	runner    Enqueuer
	consumers ConsumerCounter
	catchUp   bool

	mu    sync.Mutex
	count int
}

func New(opts Options) *Hook {
	return &Hook{
		sched:     opts.Scheduler,
		runner:    opts.Runner,
		consumers: opts.Consumers,
		catchUp:   opts.CatchUp,
	}
}

// OnRestart arms the wake when at least one consumer is registered. Calling
// it repeatedly only replaces the wake.
func (h *Hook) OnRestart(_ context.Context) error {
	n, err := h.consumers.CountConsumers()
	if err != nil {
		return fmt.Errorf("failed to count consumers: %w", err)
	}

	h.mu.Lock()
	h.count = n
	h.mu.Unlock()

	if n == 0 {
		logger.Info("no consumers registered, wake not armed")
		return nil
	}

	_, armErr := h.sched.Arm()
	if h.catchUp {
		h.runner.Enqueue("recover")
	}
	if armErr != nil {
		return fmt.Errorf("failed to arm wake: %w", armErr)
	}
	return nil
}

// OnConsumerCount arms on the first consumer and cancels after the last
func (h *Hook) OnConsumerCount(n int) {
	h.mu.Lock()
	prev := h.count
	h.count = n
	h.mu.Unlock()

	switch {
	case prev == 0 && n > 0:
		logger.Info("first consumer registered", "consumers", n)
		if _, err := h.sched.Arm(); err != nil {
			logger.Error("failed to arm wake", "error", err)
		}
	case prev > 0 && n == 0:
		logger.Info("last consumer removed, cancelling wake")
		h.sched.Cancel()
	}
}

// Count returns the consumer count last observed
func (h *Hook) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
