package punishments

import (
	"context"
	"time"
)

// Session is a live connection as seen by the punishment registry. The
// session/identity system implements it; the registry only reads identity
// facts and triggers enforcement side effects.
type Session interface {
	// ConnectionID is a stable identifier for this connection, used to
	// re-resolve the session after an asynchronous reputation lookup. The
	// user behind it may have changed in the meantime.
	ConnectionID() string

	UserID() string
	IPs() []string

	// Autoconfirmed returns the session's autoconfirmed user ID, or "".
	Autoconfirmed() string

	// Trusted returns the session's trusted user ID, or "".
	Trusted() string

	// Alts returns the session's known alternate sessions. The graph may
	// contain cycles; callers must carry a visited set.
	Alts() []Session

	Connected() bool

	// Disconnect tears the connection down, showing notice to the user.
	Disconnect(notice string)

	// MarkLocked flags the session as locked until the given time (zero =
	// permanent) and refreshes its displayed identity.
	MarkLocked(until time.Time)

	// MarkSemilocked applies an advisory-only restriction (shared-address
	// softening, unresolvable hosts, blocklist hits).
	MarkSemilocked(reason string)

	// ForceRename renames the session to a pinned generated name.
	ForceRename(name string)

	// Send delivers a notice line to the user.
	Send(notice string)
}

// IdentityProvider resolves user IDs and addresses to live sessions.
type IdentityProvider interface {
	Sessions(userid string) []Session
	SessionsByIP(ip string) []Session

	// SessionByConnection re-resolves a connection ID to its current
	// session, if it still exists.
	SessionByConnection(connID string) (Session, bool)
}

// RoomProvider exposes the room hierarchy and membership hooks.
type RoomProvider interface {
	// Parent returns the parent room ID, if the room is nested.
	Parent(roomID string) (string, bool)

	// SubRooms returns the room's direct sub-room IDs.
	SubRooms(roomID string) []string

	IsPrivate(roomID string) bool
	IsPersonal(roomID string) bool
	IsBattle(roomID string) bool

	// RemoveUser drops the user from the room's membership and any active
	// game state.
	RemoveUser(roomID, userid string)

	// MutedRooms returns the rooms currently holding a temporary mute for
	// the user. Mutes live in the rooms themselves, not in the punishment
	// tables, but count toward repeat-offender scoring.
	MutedRooms(userid string) []string
}

// Reputation answers asynchronous address-reputation questions. The
// reputation package provides the default implementation.
type Reputation interface {
	ReverseLookup(ctx context.Context, ip string) (string, error)
	CheckBlocklist(ctx context.Context, ip string) (bool, error)
}
