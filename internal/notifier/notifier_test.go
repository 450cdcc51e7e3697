package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/models"
	"github.com/julianstephens/habitrefresh/internal/storage"
)

type fakeStore struct {
	consumers []models.Consumer
	listErr   error
	snap      *models.Snapshot
	loadErr   error
}

func (f *fakeStore) ListConsumers() ([]models.Consumer, error) {
	return f.consumers, f.listErr
}

func (f *fakeStore) LoadSnapshot() (*models.Snapshot, string, error) {
	if f.loadErr != nil {
		return nil, "", f.loadErr
	}
	if f.snap == nil {
		return nil, "", nil
	}
	return f.snap, constants.KeySnapshot, nil
}

func TestNotify(t *testing.T) {
	snap := models.NewSnapshot([]models.SnapshotItem{{ID: 1, Title: "Read", CompletedToday: true}}, time.Now())
	two := []models.Consumer{{ID: "a"}, {ID: "b"}}

	tests := []struct {
		name      string
		store     *fakeStore
		wantSent  bool
		wantState string
	}{
		{name: "no consumers", store: &fakeStore{snap: &snap}, wantSent: false},
		{name: "list error", store: &fakeStore{listErr: errors.New("locked")}, wantSent: false},
		{name: "snapshot ready", store: &fakeStore{consumers: two, snap: &snap}, wantSent: true, wantState: constants.RenderStateReady},
		{name: "no snapshot yet", store: &fakeStore{consumers: two}, wantSent: true, wantState: constants.RenderStateEmpty},
		{name: "snapshot load error", store: &fakeStore{consumers: two, loadErr: errors.New("io")}, wantSent: true, wantState: constants.RenderStateEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewFakeBroadcaster()
			New(tt.store, out).Notify(context.Background(), "cycle-1")

			reqs := out.Requests()
			if !tt.wantSent {
				assert.Empty(t, reqs)
				return
			}
			require.Len(t, reqs, 1)
			assert.Equal(t, []string{"a", "b"}, reqs[0].Consumers)
			assert.Equal(t, tt.wantState, reqs[0].State)
			assert.Equal(t, "cycle-1", reqs[0].CycleID)
			assert.Equal(t, tt.wantState == constants.RenderStateReady, reqs[0].Snapshot != nil)
		})
	}
}

func TestNotifySwallowsBroadcastError(t *testing.T) {
	out := NewFakeBroadcaster()
	out.Err = errors.New("broker down")
	store := &fakeStore{consumers: []models.Consumer{{ID: "a"}}}

	assert.NotPanics(t, func() {
		New(store, out).Notify(context.Background(), "cycle-1")
	})
	assert.Len(t, out.Requests(), 1)
}

func TestNotifyWithStateDatabase(t *testing.T) {
	store := storage.New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, store.Init())
	defer store.Close()

	require.NoError(t, store.AddConsumer("kitchen"))
	require.NoError(t, store.SetValue("HabitWidgetPrefs_4.widget_data",
		`{"habits":[{"id":9,"title":"Walk","isCompletedToday":false}],"totalHabits":1,"completedHabits":0,"lastUpdated":"2024-01-02T00:00:00Z"}`))

	out := NewFakeBroadcaster()
	n := New(store, out)
	n.Notify(context.Background(), "cycle-2")

	reqs := out.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, constants.RenderStateReady, reqs[0].State)
	require.NotNil(t, reqs[0].Snapshot)
	assert.Equal(t, int64(9), reqs[0].Snapshot.Habits[0].ID)

	require.NoError(t, n.Close())
	assert.True(t, out.Closed)
}

func TestEncodeRenderRequest(t *testing.T) {
	data, err := EncodeRenderRequest(RenderRequest{
		Consumers: []string{"a"},
		State:     constants.RenderStateEmpty,
		CycleID:   "c",
		SentAt:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "empty", decoded["state"])
	assert.Equal(t, "c", decoded["cycle_id"])
	assert.Equal(t, "2024-01-02T00:00:00Z", decoded["sent_at"])
	assert.NotContains(t, decoded, "snapshot")
}

func TestLogBroadcaster(t *testing.T) {
	var b Broadcaster = LogBroadcaster{}
	assert.NoError(t, b.Broadcast(RenderRequest{CycleID: "c"}))
	assert.NoError(t, b.Close())
}
