package notifier

import "sync"

// FakeBroadcaster records render requests for test assertions
type FakeBroadcaster struct {
	mu       sync.Mutex
	requests []RenderRequest

	// Err, if set, is returned by Broadcast after recording the request.
	Err    error
	Closed bool
}

func NewFakeBroadcaster() *FakeBroadcaster {
	return &FakeBroadcaster{}
}

func (f *FakeBroadcaster) Broadcast(req RenderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.Err
}

func (f *FakeBroadcaster) Requests() []RenderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RenderRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeBroadcaster) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
