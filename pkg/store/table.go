// Package store holds the in-memory punishment tables.
//
// Tables expire entries lazily: there is no background sweep, so a read may
// delete state. Get, Has and ForEach all evict entries whose expiry has
// passed before returning. An expired entry therefore still occupies memory
// until it is next touched or a save cycle rewrites the table.
package store

import (
	"sync"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
)

// Table maps an opaque key (user ID or network address) to a punishment.
// Many keys may reference logically the same punishment (same primary ID);
// that is how one ban reaches all of a user's alts and addresses.
//
// All methods are safe for concurrent use. Reads may mutate the table (lazy
// eviction); callers must not assume Get is side-effect free.
type Table struct {
	mu      sync.Mutex
	entries map[string]*model.Punishment
	now     func() time.Time
}

// NewTable creates a Table using time.Now.
func NewTable() *Table {
	return NewTableWithClock(time.Now)
}

// NewTableWithClock creates a Table with a custom clock, for tests.
func NewTableWithClock(now func() time.Time) *Table {
	if now == nil {
		now = time.Now
	}
	return &Table{entries: make(map[string]*model.Punishment), now: now}
}

// Get returns the live punishment under key, or nil. An expired entry is
// deleted and reported as absent.
func (t *Table) Get(key string) *model.Punishment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getLocked(key)
}

func (t *Table) getLocked(key string) *model.Punishment {
	p, ok := t.entries[key]
	if !ok {
		return nil
	}
	if p.Expired(t.now()) {
		delete(t.entries, key)
		return nil
	}
	return p
}

// Has reports whether a live punishment exists under key.
func (t *Table) Has(key string) bool {
	return t.Get(key) != nil
}

// Set stores p under key, replacing any previous entry.
func (t *Table) Set(key string, p *model.Punishment) {
	t.mu.Lock()
	t.entries[key] = p
	t.mu.Unlock()
}

// Delete removes the entry under key, expired or not.
func (t *Table) Delete(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// ForEach visits every live entry, evicting expired ones as it goes. The
// visit order is unspecified. The callback must not call back into the table.
func (t *Table) ForEach(visit func(key string, p *model.Punishment)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for key, p := range t.entries {
		if p.Expired(now) {
			delete(t.entries, key)
			continue
		}
		visit(key, p)
	}
}

// Len returns the number of entries currently held, including any expired
// entries not yet evicted.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
