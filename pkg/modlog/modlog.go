// Package modlog provides the moderation-log sink: an append-only record of
// human-readable moderation lines, scoped per room and searchable.
package modlog

import "time"

// Entry is one recorded moderation line.
type Entry struct {
	ID   int64
	Room string
	Line string
	At   time.Time
}

// Sink receives moderation lines. The punishment engine writes one line per
// administrative action; a write failure degrades the audit trail, never the
// in-memory punishment state.
type Sink interface {
	// Append records a line for a room ("global" is a room like any other).
	Append(room, line string) error

	// Search returns up to limit entries for room matching query (substring,
	// case-insensitive), most recent first. An empty query matches all.
	Search(room, query string, limit int) ([]Entry, error)

	// Close releases the underlying storage.
	Close() error
}
