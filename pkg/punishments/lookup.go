package punishments

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/iprange"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/reputation"
)

// Search scans all four tables for entries whose primary ID or raw key
// equals id. It returns every matching key (room entries prefixed
// "room:") plus the reason fields of the winning match.
//
// When several distinct punishments match, the one with the latest expiry
// wins (permanent beats everything); map iteration order never decides.
func (r *Registry) Search(id string) (keys []string, reasons []string) {
	var best *model.Punishment

	consider := func(key string, p *model.Punishment) {
		if p.ID != id && key != id {
			return
		}
		keys = append(keys, key)
		if best == nil || laterExpiry(p.ExpiresAt, best.ExpiresAt) {
			best = p
		}
	}

	r.ips.ForEach(func(key string, p *model.Punishment) { consider(key, p) })
	r.ids.ForEach(func(key string, p *model.Punishment) { consider(key, p) })
	r.roomIPs.ForEach(func(room, key string, p *model.Punishment) { consider(room+":"+key, p) })
	r.roomIDs.ForEach(func(room, key string, p *model.Punishment) { consider(room+":"+key, p) })

	sort.Strings(keys)
	if best != nil {
		reasons = best.Reasons
	}
	return keys, reasons
}

// laterExpiry reports whether a is strictly later than b, treating the zero
// time as infinitely far in the future.
func laterExpiry(a, b time.Time) bool {
	if a.IsZero() {
		return !b.IsZero()
	}
	if b.IsZero() {
		return false
	}
	return a.After(b)
}

// IsRoomBanned returns the room punishment excluding the user from room, or
// nil. The check walks the user's ID, autoconfirmed ID and addresses, then
// defers to the room's parent chain: a child room with no entry of its own
// always reflects its parent's current punishment.
//
// A BLACKLIST hit on a shared address is suppressed for autoconfirmed
// users (shared-address exemption).
func (r *Registry) IsRoomBanned(user Session, room string) *model.Punishment {
	if p := r.roomIDs.Get(room, user.UserID()); p != nil {
		return p
	}
	if ac := user.Autoconfirmed(); ac != "" {
		if p := r.roomIDs.Get(room, ac); p != nil {
			return p
		}
	}
	for _, ip := range user.IPs() {
		if p := r.roomIPs.Get(room, ip); p != nil {
			if p.Kind == model.KindBlacklist && r.shared.IsShared(ip) && user.Autoconfirmed() != "" {
				r.metrics.SharedIPExemptions.Add(1)
				continue
			}
			return p
		}
	}
	if parent, ok := r.parentRoom(room); ok {
		return r.IsRoomBanned(user, parent)
	}
	return nil
}

func (r *Registry) parentRoom(room string) (string, bool) {
	if r.rooms == nil {
		return "", false
	}
	return r.rooms.Parent(room)
}

// CheckIPBanned decides at accept time whether a connection from ip may
// proceed. Order matters: the flood short-circuit rejects provisionally
// before any table is consulted, then the ban tables, then the configured
// range set. Returns the blocking punishment ID and true when banned.
func (r *Registry) CheckIPBanned(ip string) (string, bool) {
	if !r.flood.Allow(ip) {
		r.metrics.FloodRejections.Add(1)
		return "#flood", true
	}
	if p := iprange.SearchPrefix(r.ips, ip); p != nil && p.Kind == model.KindBan {
		return p.ID, true
	}
	if r.rangeCheck(ip) {
		r.metrics.RangeBlocks.Add(1)
		return model.IPBanID, true
	}
	return "", false
}

// ConnectionEstablished clears the flood-control record for ip once a
// connection finishes its handshake.
func (r *Registry) ConnectionEstablished(ip string) {
	r.flood.Clear(ip)
}

// CheckName enforces global punishments when a session logs in or renames.
// It resolves the punishment by user ID, then autoconfirmed ID, and applies
// the kind-specific effect. Returns the punishment acted on, if any.
func (r *Registry) CheckName(user Session) *model.Punishment {
	p := r.ids.Get(user.UserID())
	if p == nil {
		if ac := user.Autoconfirmed(); ac != "" {
			p = r.ids.Get(ac)
		}
	}
	if p == nil {
		return nil
	}
	r.enforce(user, p, "")
	return p
}

// CheckIP enforces address-level punishments when a session connects, then
// fires the asynchronous reputation checks. The connection does not wait on
// those; their callbacks re-resolve the session and tolerate it being gone.
func (r *Registry) CheckIP(user Session) *model.Punishment {
	var acted *model.Punishment
	for _, ip := range user.IPs() {
		p := iprange.SearchPrefix(r.ips, ip)
		if p == nil {
			continue
		}
		if p.Kind != model.KindBan && r.shared.IsShared(ip) {
			// Lock-class punishments never take down a whole shared
			// address: autoconfirmed users pass untouched, unverified
			// ones get an advisory restriction only.
			if user.Autoconfirmed() == "" {
				user.MarkSemilocked(model.SharedIPID(p.ID))
			}
			r.metrics.SharedIPExemptions.Add(1)
			continue
		}
		r.enforce(user, p, ip)
		acted = p
	}
	if r.reputation != nil {
		connID := user.ConnectionID()
		for _, ip := range user.IPs() {
			go r.checkReputation(connID, ip)
		}
	}
	return acted
}

// enforce applies a punishment's effect to one live session.
func (r *Registry) enforce(user Session, p *model.Punishment, ip string) {
	switch p.Kind {
	case model.KindBan:
		user.Disconnect(r.banNotice(p))
	case model.KindNamelock:
		user.MarkLocked(p.ExpiresAt)
		user.ForceRename(guestName())
		user.Send(r.lockNotice(p))
	default:
		user.MarkLocked(p.ExpiresAt)
		user.Send(r.lockNotice(p))
	}
	if ip != "" {
		slog.Debug("punishment enforced on connect", "user", user.UserID(), "ip", ip, "kind", p.Kind, "id", p.ID)
	}
}

// checkReputation runs the reverse-DNS and blocklist checks for one address
// and applies any verdict to whatever session currently owns the connection.
// The originating session may have been replaced or torn down; the verdict
// is discarded if no session resolves.
func (r *Registry) checkReputation(connID, ip string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := r.reputation.ReverseLookup(ctx, ip); err != nil {
		if errors.Is(err, reputation.ErrInvalidAddress) {
			// Soft signal: restrict, don't reject.
			if s, ok := r.identity.SessionByConnection(connID); ok {
				s.MarkSemilocked(model.HostFilter)
			}
			return
		}
		slog.Warn("reverse lookup failed", "ip", ip, "err", err)
		return
	}

	if !r.cfg.BlocklistEnabled {
		return
	}
	listed, err := r.reputation.CheckBlocklist(ctx, ip)
	if err != nil {
		slog.Warn("blocklist check failed", "ip", ip, "err", err)
		return
	}
	if !listed {
		return
	}
	r.metrics.BlocklistHits.Add(1)
	// Re-resolve: the session object from connect time may be stale.
	if s, ok := r.identity.SessionByConnection(connID); ok {
		s.MarkSemilocked(model.DNSBLID)
		slog.Info("blocklisted address soft-locked", "ip", ip, "user", s.UserID())
	}
}
