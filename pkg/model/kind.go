package model

import "sync"

// Built-in punishment kinds. The set is open: callers register additional
// kinds (e.g. battle bans, tournament bans) through RegisterKind.
const (
	KindLock      = "LOCK"
	KindNamelock  = "NAMELOCK"
	KindBan       = "BAN"
	KindRoomban   = "ROOMBAN"
	KindBlacklist = "BLACKLIST"
	KindMute      = "MUTE"
)

// KindInfo describes a registered punishment kind.
//
// Severity orders global kinds for escalation: applying a new punishment to
// an already-punished user keeps the higher-severity kind. Room-scoped kinds
// carry no severity order; they only replace same-kind entries.
//
// Points feed the repeat-offender monitor; kinds with zero points never
// contribute to auto-escalation.
type KindInfo struct {
	Severity   int
	Points     int
	RoomScoped bool
}

var (
	kindMu sync.RWMutex
	kinds  = map[string]KindInfo{
		KindLock:      {Severity: 1},
		KindNamelock:  {Severity: 2},
		KindBan:       {Severity: 3},
		KindMute:      {Points: 2, RoomScoped: true},
		KindRoomban:   {Points: 4, RoomScoped: true},
		KindBlacklist: {Points: 5, RoomScoped: true},
	}
)

// RegisterKind adds or replaces a punishment kind. Safe for concurrent use.
func RegisterKind(name string, info KindInfo) {
	kindMu.Lock()
	kinds[name] = info
	kindMu.Unlock()
}

// Kind returns the registration for name, if any.
func Kind(name string) (KindInfo, bool) {
	kindMu.RLock()
	info, ok := kinds[name]
	kindMu.RUnlock()
	return info, ok
}

// KindPoints returns the monitor weight of a kind; unregistered or
// unweighted kinds score 0.
func KindPoints(name string) int {
	info, _ := Kind(name)
	return info.Points
}

// StrongerKind returns the stronger of two global kinds under the fixed
// severity order LOCK < NAMELOCK < BAN. On a tie (or for kinds without a
// severity) the new kind wins.
func StrongerKind(newKind, oldKind string) string {
	ni, _ := Kind(newKind)
	oi, _ := Kind(oldKind)
	if oi.Severity > ni.Severity {
		return oldKind
	}
	return newKind
}
