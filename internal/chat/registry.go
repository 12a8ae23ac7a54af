package chat

import (
	"context"
	"sync"
	"time"
)

// Registry keeps the live surfaces of the web interface in memory, one per page session. Surfaces are
// independent of each other and disappear when swept or when the process exits.
type Registry struct {
	mu       sync.RWMutex
	surfaces map[string]*Surface
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		surfaces: make(map[string]*Surface),
	}
}

// New creates and registers a fresh surface.
func (r *Registry) New() *Surface {
	s := NewSurface()

	r.mu.Lock()
	r.surfaces[s.ID()] = s
	r.mu.Unlock()

	return s
}

// Get looks up a surface by ID.
func (r *Registry) Get(id string) (*Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.surfaces[id]
	return s, ok
}

// Len returns the number of registered surfaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.surfaces)
}

// Sweep removes idle surfaces that have not changed within the idle duration and returns how many were
// removed. Surfaces with a submission in flight are kept regardless of age.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.surfaces {
		if s.State() == StateSubmitting || s.LastActive().After(cutoff) {
			continue
		}
		delete(r.surfaces, id)
		removed++
	}
	return removed
}

// Janitor calls Sweep every interval until ctx is done.
func (r *Registry) Janitor(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}
