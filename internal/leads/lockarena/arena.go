// Package lockarena provides the per-lead busy guard. Operations on the same
// lead are mutually exclusive; a second caller is rejected, never queued.
package lockarena

import (
	"sync"

	"github.com/google/uuid"
)

// Arena tracks which leads currently have a mutating operation in flight.
// Entries only exist while held, so the map stays as small as the number of
// concurrent operations.
type Arena struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{held: make(map[uuid.UUID]struct{})}
}

// TryAcquire marks leadID as busy. When ok is false another operation holds
// the lead and release is nil. Release is idempotent.
func (a *Arena) TryAcquire(leadID uuid.UUID) (release func(), ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, busy := a.held[leadID]; busy {
		return nil, false
	}
	a.held[leadID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.held, leadID)
			a.mu.Unlock()
		})
	}, true
}

// Held reports whether leadID is currently busy.
func (a *Arena) Held(leadID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.held[leadID]
	return ok
}

// Len returns the number of leads currently held.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.held)
}
