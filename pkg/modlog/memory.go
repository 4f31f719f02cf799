package modlog

import (
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Sink for tests. It mirrors the SQLite sink's
// search semantics.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	entries []Entry
}

var _ Sink = (*Memory)(nil)

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) Append(room, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{ID: m.nextID, Room: room, Line: line, At: time.Now().UTC()})
	m.nextID++
	return nil
}

func (m *Memory) Search(room, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.entries[i]
		if e.Room != room {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(e.Line), strings.ToLower(query)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
