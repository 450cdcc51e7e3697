// Package notifier tells display consumers to re-render after every refresh
// cycle, whatever its outcome.
package notifier

import (
	"context"
	"time"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/models"
)

// Store is the slice of the state database the notifier reads
type Store interface {
	ListConsumers() ([]models.Consumer, error)
	LoadSnapshot() (*models.Snapshot, string, error)
}

type Notifier struct {
	store Store
	out   Broadcaster
	now   func() time.Time
}

func New(store Store, out Broadcaster) *Notifier {
	if out == nil {
		out = LogBroadcaster{}
	}
	return &Notifier{store: store, out: out, now: time.Now}
}

// Notify broadcasts one render request to all registered consumers. Failures
// are logged and swallowed. Nothing is sent when no consumer is registered.
func (n *Notifier) Notify(_ context.Context, cycleID string) {
	consumers, err := n.store.ListConsumers()
	if err != nil {
		logger.Warn("failed to list consumers", "cycle", cycleID, "error", err)
		return
	}
	if len(consumers) == 0 {
		logger.Debug("no consumers registered, skipping render request", "cycle", cycleID)
		return
	}

	ids := make([]string, 0, len(consumers))
	for _, c := range consumers {
		ids = append(ids, c.ID)
	}

	req := RenderRequest{
		Consumers: ids,
		State:     constants.RenderStateEmpty,
		CycleID:   cycleID,
		SentAt:    n.now().UTC(),
	}

	snap, key, err := n.store.LoadSnapshot()
	if err != nil {
		// Consumers still re-render; they show the onboarding state.
		logger.Warn("failed to load snapshot", "cycle", cycleID, "error", err)
	} else if snap != nil {
		req.State = constants.RenderStateReady
		req.Snapshot = snap
		logger.Debug("loaded snapshot", "cycle", cycleID, "slot", key)
	}

	if err := n.out.Broadcast(req); err != nil {
		logger.Warn("render broadcast failed", "cycle", cycleID, "error", err)
		return
	}
	logger.Info("render requested", "cycle", cycleID, "consumers", len(ids), "state", req.State)
}

func (n *Notifier) Close() error {
	return n.out.Close()
}
