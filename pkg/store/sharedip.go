package store

import "sync"

// SharedIPRegistry tracks addresses known to be used by many unrelated
// people (public proxies, school NAT gateways). A blanket lock on a shared
// address is downgraded to an advisory restriction for non-autoconfirmed
// users, instead of hitting everyone behind it.
type SharedIPRegistry struct {
	mu    sync.RWMutex
	notes map[string]string
}

// NewSharedIPRegistry creates an empty registry.
func NewSharedIPRegistry() *SharedIPRegistry {
	return &SharedIPRegistry{notes: make(map[string]string)}
}

// Add marks ip as shared with a free-text note.
func (r *SharedIPRegistry) Add(ip, note string) {
	r.mu.Lock()
	r.notes[ip] = note
	r.mu.Unlock()
}

// Remove unmarks ip.
func (r *SharedIPRegistry) Remove(ip string) {
	r.mu.Lock()
	delete(r.notes, ip)
	r.mu.Unlock()
}

// IsShared reports whether ip is registered as shared.
func (r *SharedIPRegistry) IsShared(ip string) bool {
	r.mu.RLock()
	_, ok := r.notes[ip]
	r.mu.RUnlock()
	return ok
}

// Note returns the note for ip, or "" if not registered.
func (r *SharedIPRegistry) Note(ip string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notes[ip]
}

// ForEach visits every registered address and note.
func (r *SharedIPRegistry) ForEach(visit func(ip, note string)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ip, note := range r.notes {
		visit(ip, note)
	}
}
