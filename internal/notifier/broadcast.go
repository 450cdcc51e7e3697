package notifier

import (
	"encoding/json"
	"time"

	"github.com/julianstephens/habitrefresh/internal/models"
)

// RenderRequest asks every listed consumer to re-render from the snapshot
type RenderRequest struct {
	Consumers []string         `json:"consumers"`
	State     string           `json:"state"` // "ready" or "empty"
	Snapshot  *models.Snapshot `json:"snapshot,omitempty"`
	CycleID   string           `json:"cycle_id"`
	SentAt    time.Time        `json:"sent_at"`
}

// Broadcaster delivers render requests to display consumers.
// Broadcast errors must never crash the caller.
type Broadcaster interface {
	Broadcast(req RenderRequest) error
	Close() error
}

func EncodeRenderRequest(req RenderRequest) ([]byte, error) {
	return json.Marshal(req)
}
