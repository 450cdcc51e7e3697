package notifier

import "github.com/julianstephens/habitrefresh/internal/logger"

// LogBroadcaster only records render requests in the log. Used when no
// broker is configured.
type LogBroadcaster struct{}

func (LogBroadcaster) Broadcast(req RenderRequest) error {
	total, completed := 0, 0
	if req.Snapshot != nil {
		total, completed = req.Snapshot.Total, req.Snapshot.Completed
	}
	logger.Info("render requested",
		"cycle", req.CycleID,
		"consumers", len(req.Consumers),
		"state", req.State,
		"total", total,
		"completed", completed,
	)
	return nil
}

func (LogBroadcaster) Close() error { return nil }
