package wake

import "sync"

// Registry maps channel ids to published handles. Safe for concurrent use.
type Registry[H any] struct {
	mu      sync.RWMutex
	handles map[string]H
}

// NewRegistry creates an empty registry.
func NewRegistry[H any]() *Registry[H] {
	return &Registry[H]{handles: make(map[string]H)}
}

// Publish stores h under id, replacing any previous entry.
func (r *Registry[H]) Publish(id string, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[id] = h
}

// Lookup returns the handle published under id.
func (r *Registry[H]) Lookup(id string) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// Remove deletes the entry for id. It reports whether an entry existed.
func (r *Registry[H]) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[id]
	delete(r.handles, id)
	return ok
}

// Len returns the number of published handles.
func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
