package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitrefresh/internal/models"
)

type scriptedWorker struct {
	mu       sync.Mutex
	statuses []models.CycleStatus
	ids      []string
	block    chan struct{}

	active    int32
	maxActive int32
	cancelled int32
}

func (w *scriptedWorker) RunCycle(ctx context.Context, cycleID string) models.CycleStatus {
	n := atomic.AddInt32(&w.active, 1)
	defer atomic.AddInt32(&w.active, -1)
	for {
		m := atomic.LoadInt32(&w.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&w.maxActive, m, n) {
			break
		}
	}

	w.mu.Lock()
	w.ids = append(w.ids, cycleID)
	block := w.block
	status := models.CycleCompleted
	if len(w.statuses) > 0 {
		status = w.statuses[0]
		w.statuses = w.statuses[1:]
	}
	w.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			atomic.AddInt32(&w.cancelled, 1)
			return models.CycleRetryScheduled
		}
	}
	return status
}

func (w *scriptedWorker) seen() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.ids...)
}

func newRunner(t *testing.T, w CycleRunner, spec string) *Runner {
	t.Helper()
	r, err := New(w, Options{RetrySpec: spec})
	require.NoError(t, err)
	r.Start()
	t.Cleanup(r.Stop)
	return r
}

func TestNewRejectsBadRetrySpec(t *testing.T) {
	_, err := New(&scriptedWorker{}, Options{RetrySpec: "whenever"})
	assert.Error(t, err)
}

func TestEnqueueRecordsCycle(t *testing.T) {
	w := &scriptedWorker{}
	r := newRunner(t, w, "@every 1h")

	_, ok := r.Last()
	assert.False(t, ok)

	id := r.Enqueue("wake")
	r.Wait()

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	rec, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "wake", rec.Reason)
	assert.Equal(t, models.CycleCompleted, rec.Status)
	assert.False(t, rec.FinishedAt.Before(rec.StartedAt))
	assert.Equal(t, []string{id}, w.seen())
}

func TestRunNow(t *testing.T) {
	w := &scriptedWorker{statuses: []models.CycleStatus{models.CycleSkipped}}
	r := newRunner(t, w, "@every 1h")

	status := r.RunNow(context.Background(), "manual")
	assert.Equal(t, models.CycleSkipped, status)

	rec, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "manual", rec.Reason)
}

func TestEnqueueReplacesCycleInFlight(t *testing.T) {
	w := &scriptedWorker{block: make(chan struct{})}
	r := newRunner(t, w, "@every 1h")

	first := r.Enqueue("wake")
	require.Eventually(t, func() bool { return len(w.seen()) == 1 }, time.Second, 5*time.Millisecond)

	// Unblock later cycles; the first one is only released by cancellation.
	w.mu.Lock()
	w.block = nil
	w.mu.Unlock()

	second := r.Enqueue("recover")
	r.Wait()

	assert.Equal(t, []string{first, second}, w.seen())
	assert.Equal(t, int32(1), atomic.LoadInt32(&w.cancelled))
	assert.Equal(t, int32(1), atomic.LoadInt32(&w.maxActive), "cycles must never overlap")

	rec, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, second, rec.ID)
	assert.Equal(t, models.CycleCompleted, rec.Status)
}

func TestBurstOfTriggersNeverOverlaps(t *testing.T) {
	w := &scriptedWorker{}
	r := newRunner(t, w, "@every 1h")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Enqueue("burst")
		}()
	}
	wg.Wait()
	r.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&w.maxActive))
	assert.NotEmpty(t, w.seen())
	_, ok := r.Last()
	assert.True(t, ok)
}

func TestRetryRegisteredAndCleared(t *testing.T) {
	w := &scriptedWorker{statuses: []models.CycleStatus{
		models.CycleRetryScheduled,
		models.CycleRetryScheduled,
		models.CycleCompleted,
	}}
	r := newRunner(t, w, "@every 1h")

	assert.Equal(t, models.CycleRetryScheduled, r.RunNow(context.Background(), "wake"))
	assert.True(t, r.RetryPending())
	assert.Len(t, r.cron.Entries(), 1)

	assert.Equal(t, models.CycleRetryScheduled, r.RunNow(context.Background(), "wake"))
	assert.Len(t, r.cron.Entries(), 1, "a second failure must not stack retries")

	assert.Equal(t, models.CycleCompleted, r.RunNow(context.Background(), "retry"))
	assert.False(t, r.RetryPending())
	assert.Empty(t, r.cron.Entries())
}

func TestRetryFires(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the cron tick")
	}

	w := &scriptedWorker{statuses: []models.CycleStatus{models.CycleRetryScheduled}}
	r := newRunner(t, w, "@every 1s")

	r.Enqueue("wake")
	require.Eventually(t, func() bool {
		rec, ok := r.Last()
		return ok && rec.Reason == "retry" && rec.Status == models.CycleCompleted
	}, 5*time.Second, 50*time.Millisecond)
	assert.False(t, r.RetryPending())
}

func TestStopCancelsCycleInFlight(t *testing.T) {
	w := &scriptedWorker{block: make(chan struct{})}
	r, err := New(w, Options{})
	require.NoError(t, err)
	r.Start()

	r.Enqueue("wake")
	require.Eventually(t, func() bool { return len(w.seen()) == 1 }, time.Second, 5*time.Millisecond)

	r.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&w.cancelled))
	assert.False(t, r.RetryPending(), "no retry is registered after shutdown")
}
