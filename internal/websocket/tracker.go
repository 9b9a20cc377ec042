package websocket

import (
	"context"
	"sync"
)

// RelayTracker keeps the running upstream relays so they can be cancelled
// and awaited on shutdown
type RelayTracker struct {
	mu     sync.Mutex
	relays map[string]*trackedRelay
	wg     sync.WaitGroup
}

type trackedRelay struct {
	cancel func()
	once   sync.Once
}

func NewRelayTracker() *RelayTracker {
	return &RelayTracker{
		relays: make(map[string]*trackedRelay),
	}
}

// Register tracks a relay under key. A relay already registered under the
// same key is cancelled and stays awaited by Wait until its own unregister
// runs.
func (t *RelayTracker) Register(key string, cancel func()) (unregister func()) {
	entry := &trackedRelay{cancel: cancel}

	t.mu.Lock()
	old := t.relays[key]
	t.relays[key] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil && old.cancel != nil {
		old.cancel()
	}

	return func() { t.unregister(key, entry) }
}

func (t *RelayTracker) unregister(key string, entry *trackedRelay) {
	entry.once.Do(func() {
		t.mu.Lock()
		if t.relays[key] == entry {
			delete(t.relays, key)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *RelayTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.relays)
}

// CancelAll cancels every tracked relay and returns how many there were
func (t *RelayTracker) CancelAll() (canceled int) {
	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.relays {
		if entry.cancel != nil {
			cancels = append(cancels, entry.cancel)
		}
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered relay unregistered or ctx is done
func (t *RelayTracker) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
