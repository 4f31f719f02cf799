package punishments

import (
	"log/slog"
	"sort"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/store"
)

// Default durations per punishment flavor.
const (
	LockDuration      = 48 * time.Hour
	NamelockDuration  = 48 * time.Hour
	BanDuration       = 7 * 24 * time.Hour
	RoombanDuration   = 48 * time.Hour
	BlacklistDuration = 365 * 24 * time.Hour
	AutolockDuration  = 7 * 24 * time.Hour
	RangeDuration     = 90 * time.Minute
)

// Punish applies p to user and cascades it across the user's addresses,
// autoconfirmed and trusted identities, and known alternate sessions. The
// punishment escalates rather than replaces: an existing entry's expiry and
// kind are never reduced. One row is appended to the durable log with the
// full alias set collected during the cascade.
//
// Returns every affected live session so the caller can disconnect, rename
// or otherwise act on them. A persistence error is returned alongside the
// affected set; the in-memory state is already consistent either way.
func (r *Registry) Punish(user Session, p *model.Punishment) ([]Session, error) {
	p = r.escalate(p)
	seen := make(map[string]bool)
	affected := r.cascade(user, p, seen)
	err := r.persistPunishment(p, seen)
	return dedupeSessions(affected), err
}

// PunishName applies p to a raw user ID that may have no live session.
// Live sessions matching the ID are cascaded into; otherwise only the ID
// itself is recorded.
func (r *Registry) PunishName(userid string, p *model.Punishment) ([]Session, error) {
	p = r.escalate(p)
	seen := make(map[string]bool)
	var affected []Session
	for _, s := range r.identity.Sessions(userid) {
		affected = append(affected, r.cascade(s, p, seen)...)
	}
	if !seen[userid] {
		r.ids.Set(userid, p)
		seen[userid] = true
	}
	err := r.persistPunishment(p, seen)
	return dedupeSessions(affected), err
}

// escalate merges p with any live entry already filed under its primary ID:
// the expiry becomes the later of the two and the kind the stronger under
// the global severity order. A new punishment can never shorten or
// downgrade an existing one.
func (r *Registry) escalate(p *model.Punishment) *model.Punishment {
	existing := r.ids.Get(p.ID)
	if existing == nil {
		return p
	}
	merged := *p
	merged.Kind = model.StrongerKind(p.Kind, existing.Kind)
	if existing.Permanent() || (!p.Permanent() && existing.ExpiresAt.After(p.ExpiresAt)) {
		merged.ExpiresAt = existing.ExpiresAt
	}
	return &merged
}

// cascade records p under every key reachable from user, recursing through
// alternate identities. seen guards against cycles in the alt graph and
// doubles as the collected alias set; no key is processed twice.
//
// Trusted identities are recorded but not recursed into; their sessions go
// to the front of the affected list so they are still acted upon first.
func (r *Registry) cascade(user Session, p *model.Punishment, seen map[string]bool) []Session {
	uid := user.UserID()
	if seen[uid] {
		return nil
	}
	seen[uid] = true
	r.ids.Set(uid, p)
	affected := []Session{user}

	for _, ip := range user.IPs() {
		if seen[ip] {
			continue
		}
		seen[ip] = true
		r.ips.Set(ip, p)
		// Anyone still connected from the same address is an alt in
		// practice and gets cascaded into.
		for _, s := range r.identity.SessionsByIP(ip) {
			if !s.Connected() {
				continue
			}
			affected = append(affected, r.cascade(s, p, seen)...)
		}
	}

	if ac := user.Autoconfirmed(); ac != "" && !seen[ac] {
		seen[ac] = true
		r.ids.Set(ac, p)
		for _, s := range r.identity.Sessions(ac) {
			affected = append(affected, r.cascade(s, p, seen)...)
		}
	}

	if tr := user.Trusted(); tr != "" && !seen[tr] {
		seen[tr] = true
		r.ids.Set(tr, p)
		affected = prependSessions(r.identity.Sessions(tr), affected)
	}

	for _, alt := range user.Alts() {
		affected = append(affected, r.cascade(alt, p, seen)...)
	}
	return affected
}

// persistPunishment appends one row after a top-level punish. The primary ID
// is excluded from its own alias list.
func (r *Registry) persistPunishment(p *model.Punishment, seen map[string]bool) error {
	delete(seen, p.ID)
	alts := make([]string, 0, len(seen))
	for key := range seen {
		alts = append(alts, key)
	}
	sort.Strings(alts)
	if err := r.log.AppendGlobal(p, alts); err != nil {
		slog.Error("punishment not persisted", "id", p.ID, "kind", p.Kind, "err", err)
		return err
	}
	return nil
}

// Unpunish removes every global entry whose punishment matches the primary
// ID resolved from id (an identity or address) and the given kind. It
// proceeds best-effort even when id resolves to nothing, so drifted state
// still gets cleaned up, and finishes with a full table rewrite since any
// number of rows may have changed.
//
// Returns the resolved primary ID, or "" when nothing was removed.
func (r *Registry) Unpunish(id, kind string) (string, error) {
	primary := id
	if p := r.ids.Get(id); p != nil {
		primary = p.ID
	} else if p := r.ips.Get(id); p != nil {
		primary = p.ID
	}

	removed := r.deleteMatching(r.ips, primary, kind)
	removed = r.deleteMatching(r.ids, primary, kind) || removed

	err := r.log.SaveGlobal(r.ips, r.ids)
	if !removed {
		return "", err
	}
	r.metrics.Unpunishes.Add(1)
	return primary, err
}

// RoomPunish applies p to user within one room. Escalation in rooms is
// same-kind only: a matching entry's expiry is extended, but kinds do not
// outrank each other. For public rooms the repeat-offender monitor runs
// afterward and may escalate globally.
func (r *Registry) RoomPunish(room string, user Session, p *model.Punishment) ([]Session, error) {
	p = r.roomEscalate(room, p)
	seen := make(map[string]bool)
	affected := r.roomCascade(room, user, p, seen)
	err := r.persistRoomPunishment(room, p, seen)
	r.metrics.RoomPunishments.Add(1)
	if r.isPublicRoom(room) {
		r.monitorPunishments(p.ID)
	}
	return dedupeSessions(affected), err
}

// RoomPunishName is RoomPunish for a raw user ID with no live session
// required.
func (r *Registry) RoomPunishName(room, userid string, p *model.Punishment) ([]Session, error) {
	p = r.roomEscalate(room, p)
	seen := make(map[string]bool)
	var affected []Session
	for _, s := range r.identity.Sessions(userid) {
		affected = append(affected, r.roomCascade(room, s, p, seen)...)
	}
	if !seen[userid] {
		r.roomIDs.Set(room, userid, p)
		seen[userid] = true
	}
	err := r.persistRoomPunishment(room, p, seen)
	r.metrics.RoomPunishments.Add(1)
	if r.isPublicRoom(room) {
		r.monitorPunishments(p.ID)
	}
	return dedupeSessions(affected), err
}

func (r *Registry) roomEscalate(room string, p *model.Punishment) *model.Punishment {
	existing := r.roomIDs.Get(room, p.ID)
	if existing == nil || existing.Kind != p.Kind {
		return p
	}
	merged := *p
	if existing.Permanent() || (!p.Permanent() && existing.ExpiresAt.After(p.ExpiresAt)) {
		merged.ExpiresAt = existing.ExpiresAt
	}
	return &merged
}

func (r *Registry) roomCascade(room string, user Session, p *model.Punishment, seen map[string]bool) []Session {
	uid := user.UserID()
	if seen[uid] {
		return nil
	}
	seen[uid] = true
	r.roomIDs.Set(room, uid, p)
	affected := []Session{user}

	for _, ip := range user.IPs() {
		if seen[ip] {
			continue
		}
		seen[ip] = true
		r.roomIPs.Set(room, ip, p)
		for _, s := range r.identity.SessionsByIP(ip) {
			if !s.Connected() {
				continue
			}
			affected = append(affected, r.roomCascade(room, s, p, seen)...)
		}
	}

	if ac := user.Autoconfirmed(); ac != "" && !seen[ac] {
		seen[ac] = true
		r.roomIDs.Set(room, ac, p)
		for _, s := range r.identity.Sessions(ac) {
			affected = append(affected, r.roomCascade(room, s, p, seen)...)
		}
	}

	if tr := user.Trusted(); tr != "" && !seen[tr] {
		seen[tr] = true
		r.roomIDs.Set(room, tr, p)
		affected = prependSessions(r.identity.Sessions(tr), affected)
	}

	for _, alt := range user.Alts() {
		affected = append(affected, r.roomCascade(room, alt, p, seen)...)
	}
	return affected
}

func (r *Registry) persistRoomPunishment(room string, p *model.Punishment, seen map[string]bool) error {
	delete(seen, p.ID)
	alts := make([]string, 0, len(seen))
	for key := range seen {
		alts = append(alts, key)
	}
	sort.Strings(alts)
	if err := r.log.AppendRoom(room, p, alts); err != nil {
		slog.Error("room punishment not persisted", "room", room, "id", p.ID, "err", err)
		return err
	}
	return nil
}

// RoomUnpunish removes every entry in room matching the resolved primary ID
// and kind, then rewrites the room table.
func (r *Registry) RoomUnpunish(room, id, kind string) (string, error) {
	primary := id
	if p := r.roomIDs.Get(room, id); p != nil {
		primary = p.ID
	} else if p := r.roomIPs.Get(room, id); p != nil {
		primary = p.ID
	}

	removed := r.deleteRoomMatching(r.roomIPs, room, primary, kind)
	removed = r.deleteRoomMatching(r.roomIDs, room, primary, kind) || removed

	err := r.log.SaveRoom(r.roomIPs, r.roomIDs)
	if !removed {
		return "", err
	}
	return primary, err
}

// isPublicRoom reports whether room punishments there should feed the
// repeat-offender monitor.
func (r *Registry) isPublicRoom(room string) bool {
	if r.rooms == nil {
		return false
	}
	return !r.rooms.IsPrivate(room) && !r.rooms.IsPersonal(room) && !r.rooms.IsBattle(room)
}

// deleteMatching removes entries whose punishment matches (primary, kind).
// Keys are collected first; tables must not be mutated mid-iteration.
func (r *Registry) deleteMatching(t *store.Table, primary, kind string) bool {
	var keys []string
	t.ForEach(func(key string, p *model.Punishment) {
		if p.ID == primary && p.Kind == kind {
			keys = append(keys, key)
		}
	})
	for _, key := range keys {
		t.Delete(key)
	}
	return len(keys) > 0
}

func (r *Registry) deleteRoomMatching(rt *store.RoomTable, room, primary, kind string) bool {
	type entry struct{ room, key string }
	var keys []entry
	rt.ForEach(func(rm, key string, p *model.Punishment) {
		if rm == room && p.ID == primary && p.Kind == kind {
			keys = append(keys, entry{rm, key})
		}
	})
	for _, e := range keys {
		rt.Delete(e.room, e.key)
	}
	return len(keys) > 0
}

// prependSessions returns head followed by tail in a fresh slice. head comes
// straight from the identity provider; appending to it in place could write
// into the provider's backing array.
func prependSessions(head, tail []Session) []Session {
	out := make([]Session, 0, len(head)+len(tail))
	out = append(out, head...)
	return append(out, tail...)
}

// dedupeSessions drops repeated sessions, keeping first occurrence order.
// The input is left untouched.
func dedupeSessions(sessions []Session) []Session {
	seen := make(map[string]bool, len(sessions))
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		id := s.ConnectionID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, s)
	}
	return out
}
