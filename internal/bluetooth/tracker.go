package bluetooth

import (
	"sort"
	"sync"
)

// Tracker is the set of devices with a reconnect in flight, keyed by
// device ID so different queries for one device collide.
type Tracker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]struct{})}
}

// TryAcquire adds deviceID to the set. ok is false if it is already there.
// release is safe to call more than once; callers defer it.
func (t *Tracker) TryAcquire(deviceID string) (release func(), ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.active[deviceID]; busy {
		return func() {}, false
	}
	t.active[deviceID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.active, deviceID)
			t.mu.Unlock()
		})
	}, true
}

func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.active))
	for id := range t.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
