package store

import (
	"sync"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
)

// RoomTable is a two-level table: room ID to key to punishment. Inner tables
// are created on demand and removed when their last entry is deleted, so the
// outer map never holds empty rooms.
type RoomTable struct {
	mu    sync.Mutex
	rooms map[string]*Table
	now   func() time.Time
}

// NewRoomTable creates a RoomTable using time.Now.
func NewRoomTable() *RoomTable {
	return NewRoomTableWithClock(time.Now)
}

// NewRoomTableWithClock creates a RoomTable with a custom clock, for tests.
func NewRoomTableWithClock(now func() time.Time) *RoomTable {
	if now == nil {
		now = time.Now
	}
	return &RoomTable{rooms: make(map[string]*Table), now: now}
}

// Get returns the live punishment under (room, key), or nil.
func (rt *RoomTable) Get(room, key string) *model.Punishment {
	rt.mu.Lock()
	inner := rt.rooms[room]
	rt.mu.Unlock()
	if inner == nil {
		return nil
	}
	p := inner.Get(key)
	if p == nil {
		rt.dropIfEmpty(room)
	}
	return p
}

// Set stores p under (room, key).
func (rt *RoomTable) Set(room, key string, p *model.Punishment) {
	rt.mu.Lock()
	inner := rt.rooms[room]
	if inner == nil {
		inner = NewTableWithClock(rt.now)
		rt.rooms[room] = inner
	}
	rt.mu.Unlock()
	inner.Set(key, p)
}

// Delete removes the entry under (room, key) and drops the room's inner
// table if it is now empty.
func (rt *RoomTable) Delete(room, key string) {
	rt.mu.Lock()
	inner := rt.rooms[room]
	rt.mu.Unlock()
	if inner == nil {
		return
	}
	inner.Delete(key)
	rt.dropIfEmpty(room)
}

// ForEach visits every live entry across all rooms, evicting expired entries
// and empty rooms as it goes.
func (rt *RoomTable) ForEach(visit func(room, key string, p *model.Punishment)) {
	rt.mu.Lock()
	inners := make(map[string]*Table, len(rt.rooms))
	for room, inner := range rt.rooms {
		inners[room] = inner
	}
	rt.mu.Unlock()

	for room, inner := range inners {
		inner.ForEach(func(key string, p *model.Punishment) {
			visit(room, key, p)
		})
		rt.dropIfEmpty(room)
	}
}

// HasRoom reports whether any entries exist for room (live or not yet
// evicted).
func (rt *RoomTable) HasRoom(room string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.rooms[room] != nil
}

func (rt *RoomTable) dropIfEmpty(room string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if inner := rt.rooms[room]; inner != nil && inner.Len() == 0 {
		delete(rt.rooms, room)
	}
}
