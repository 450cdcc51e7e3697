package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julianstephens/habitrefresh/internal/constants"
)

// WakeService arms a one-shot callback at an absolute wall-clock instant
type WakeService interface {
	Name() string
	Available() bool
	Schedule(at time.Time, fire func()) Handle
}

// Handle cancels an armed wake. Stop reports whether the wake was still
// pending.
type Handle interface {
	Stop() bool
}

// ServicesFor returns the wake services allowed by mode, in preference order
func ServicesFor(mode string) ([]WakeService, error) {
	switch mode {
	case constants.WakeModeAuto, "":
		return []WakeService{NewWallClock(constants.WallClockSleepCap), NewTimer()}, nil
	case constants.WakeModeWallClock:
		return []WakeService{NewWallClock(constants.WallClockSleepCap)}, nil
	case constants.WakeModeTimer:
		return []WakeService{NewTimer()}, nil
	default:
		return nil, fmt.Errorf("unknown wake mode %q", mode)
	}
}

// WallClock sleeps in chunks of at most Cap and compares against the wall
// clock after each one, so a suspended host or a clock step delays the wake
// by no more than one chunk.
type WallClock struct {
	Cap time.Duration
	now func() time.Time
}

func NewWallClock(cap time.Duration) *WallClock {
	if cap <= 0 {
		cap = constants.WallClockSleepCap
	}
	return &WallClock{Cap: cap, now: time.Now}
}

func (w *WallClock) Name() string    { return constants.WakeModeWallClock }
func (w *WallClock) Available() bool { return true }

func (w *WallClock) Schedule(at time.Time, fire func()) Handle {
	h := &wallHandle{stopped: make(chan struct{})}
	at = at.Round(0)

	go func() {
		for {
			remaining := at.Sub(w.now().Round(0))
			if remaining <= 0 {
				if h.state.CompareAndSwap(statePending, stateFired) {
					fire()
				}
				return
			}

			timer := time.NewTimer(min(remaining, w.Cap))
			select {
			case <-h.stopped:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
	return h
}

const (
	statePending int32 = iota
	stateFired
	stateStopped
)

type wallHandle struct {
	state   atomic.Int32
	once    sync.Once
	stopped chan struct{}
}

func (h *wallHandle) Stop() bool {
	pending := h.state.CompareAndSwap(statePending, stateStopped)
	h.once.Do(func() { close(h.stopped) })
	return pending
}

// Timer uses a monotonic time.Timer. It is exact while the host is awake but
// does not advance during suspend.
type Timer struct{}

func NewTimer() *Timer { return &Timer{} }

func (Timer) Name() string    { return constants.WakeModeTimer }
func (Timer) Available() bool { return true }

func (Timer) Schedule(at time.Time, fire func()) Handle {
	return time.AfterFunc(time.Until(at.Round(0)), fire)
}
