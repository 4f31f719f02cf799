package punishments

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/iprange"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
)

// The flavor methods below are thin policy layers over Punish/RoomPunish:
// each picks a default duration, files the kind-tagged punishment, and runs
// the kind-specific side effect on every affected live session.

// Ban globally bans the user and disconnects every affected session.
// A zero expiresAt applies the default duration.
func (r *Registry) Ban(user Session, expiresAt time.Time, reasons ...string) ([]Session, error) {
	if expiresAt.IsZero() {
		expiresAt = r.now().Add(BanDuration)
	}
	p := model.New(model.KindBan, user.UserID(), expiresAt, reasons...)
	affected, err := r.Punish(user, p)
	notice := r.banNotice(p)
	for _, s := range affected {
		s.Disconnect(notice)
	}
	r.metrics.Bans.Add(1)
	r.writeModlog("global", fmt.Sprintf("%s was banned (%s)", p.ID, p.ReasonText()))
	return affected, err
}

// Lock globally locks the user: every affected session is marked locked and
// its displayed identity refreshed, but connections stay up.
func (r *Registry) Lock(user Session, expiresAt time.Time, reasons ...string) ([]Session, error) {
	if expiresAt.IsZero() {
		expiresAt = r.now().Add(LockDuration)
	}
	p := model.New(model.KindLock, user.UserID(), expiresAt, reasons...)
	affected, err := r.Punish(user, p)
	notice := r.lockNotice(p)
	for _, s := range affected {
		s.MarkLocked(p.ExpiresAt)
		s.Send(notice)
	}
	r.metrics.Locks.Add(1)
	r.writeModlog("global", fmt.Sprintf("%s was locked (%s)", p.ID, p.ReasonText()))
	return affected, err
}

// Namelock locks the user and pins every affected session to a generated
// guest name.
func (r *Registry) Namelock(user Session, expiresAt time.Time, reasons ...string) ([]Session, error) {
	if expiresAt.IsZero() {
		expiresAt = r.now().Add(NamelockDuration)
	}
	p := model.New(model.KindNamelock, user.UserID(), expiresAt, reasons...)
	affected, err := r.Punish(user, p)
	notice := r.lockNotice(p)
	for _, s := range affected {
		s.MarkLocked(p.ExpiresAt)
		s.ForceRename(guestName())
		s.Send(notice)
	}
	r.metrics.Namelocks.Add(1)
	r.writeModlog("global", fmt.Sprintf("%s was namelocked (%s)", p.ID, p.ReasonText()))
	return affected, err
}

// Roomban excludes the user from one room and its sub-rooms.
func (r *Registry) Roomban(room string, user Session, expiresAt time.Time, reasons ...string) ([]Session, error) {
	if expiresAt.IsZero() {
		expiresAt = r.now().Add(RoombanDuration)
	}
	p := model.New(model.KindRoomban, user.UserID(), expiresAt, reasons...)
	affected, err := r.RoomPunish(room, user, p)
	r.evictFromRoom(room, affected)
	r.writeModlog(room, fmt.Sprintf("%s was banned from %s (%s)", p.ID, room, p.ReasonText()))
	return affected, err
}

// Blacklist is a longer-lived room exclusion that also clears game state.
func (r *Registry) Blacklist(room string, user Session, expiresAt time.Time, reasons ...string) ([]Session, error) {
	if expiresAt.IsZero() {
		expiresAt = r.now().Add(BlacklistDuration)
	}
	p := model.New(model.KindBlacklist, user.UserID(), expiresAt, reasons...)
	affected, err := r.RoomPunish(room, user, p)
	r.evictFromRoom(room, affected)
	r.writeModlog(room, fmt.Sprintf("%s was blacklisted from %s (%s)", p.ID, room, p.ReasonText()))
	return affected, err
}

// BlacklistName blacklists a raw user ID with no live session required.
func (r *Registry) BlacklistName(room, userid string, expiresAt time.Time, reasons ...string) ([]Session, error) {
	if expiresAt.IsZero() {
		expiresAt = r.now().Add(BlacklistDuration)
	}
	p := model.New(model.KindBlacklist, userid, expiresAt, reasons...)
	affected, err := r.RoomPunishName(room, userid, p)
	r.evictFromRoom(room, affected)
	r.writeModlog(room, fmt.Sprintf("%s was blacklisted from %s (%s)", userid, room, p.ReasonText()))
	return affected, err
}

// evictFromRoom removes every affected user from the room's membership and
// game state, cascading into sub-rooms.
func (r *Registry) evictFromRoom(room string, affected []Session) {
	if r.rooms == nil {
		return
	}
	rooms := []string{room}
	for i := 0; i < len(rooms); i++ {
		rooms = append(rooms, r.rooms.SubRooms(rooms[i])...)
	}
	for _, s := range affected {
		for _, rm := range rooms {
			r.rooms.RemoveUser(rm, s.UserID())
		}
	}
}

// Autolock locks a raw user ID as a system action: one week by default, or
// permanent-until-restart for severe cases. A moderation-log line is always
// written against the originating room.
func (r *Registry) Autolock(userid, room, reason, message string, permanent bool) error {
	expiresAt := r.now().Add(AutolockDuration)
	if permanent {
		expiresAt = time.Time{}
	}
	p := model.New(model.KindLock, userid, expiresAt, reason)
	affected, err := r.PunishName(userid, p)
	notice := r.lockNotice(p)
	for _, s := range affected {
		s.MarkLocked(p.ExpiresAt)
		s.Send(notice)
	}
	if message == "" {
		message = fmt.Sprintf("%s was automatically locked (%s)", userid, reason)
	}
	r.metrics.Autolocks.Add(1)
	r.writeModlog(room, message)
	return err
}

// LockRange locks a wildcard address prefix for a short fixed duration.
// Range punishments are filed under a reserved ID and never persisted.
func (r *Registry) LockRange(ipRange, reason string) {
	key := iprange.WildcardKey(ipRange)
	p := model.New(model.KindLock, model.RangelockID, r.now().Add(RangeDuration), reason)
	r.ips.Set(key, p)
	r.metrics.RangeBlocks.Add(1)
	r.writeModlog("global", fmt.Sprintf("the range %s was locked (%s)", key, reason))
}

// BanRange bans a wildcard address prefix for a short fixed duration.
func (r *Registry) BanRange(ipRange, reason string) {
	key := iprange.WildcardKey(ipRange)
	p := model.New(model.KindBan, model.IPBanID, r.now().Add(RangeDuration), reason)
	r.ips.Set(key, p)
	r.metrics.RangeBlocks.Add(1)
	r.writeModlog("global", fmt.Sprintf("the range %s was banned (%s)", key, reason))
}

// banNotice renders the disconnect notice for a ban.
func (r *Registry) banNotice(p *model.Punishment) string {
	var b strings.Builder
	b.WriteString("You are banned")
	if reason := p.ReasonText(); reason != "" {
		b.WriteString(": " + reason)
	}
	if !p.Permanent() {
		b.WriteString(fmt.Sprintf(" (expires %s)", p.ExpiresAt.UTC().Format(time.RFC1123)))
	}
	if r.cfg.AppealURL != "" {
		b.WriteString(". Appeal at " + r.cfg.AppealURL)
	}
	return b.String()
}

// lockNotice renders the notice sent to a locked session.
func (r *Registry) lockNotice(p *model.Punishment) string {
	var b strings.Builder
	b.WriteString("You are locked and cannot chat")
	if reason := p.ReasonText(); reason != "" {
		b.WriteString(": " + reason)
	}
	if !p.Permanent() {
		b.WriteString(fmt.Sprintf(" (expires %s)", p.ExpiresAt.UTC().Format(time.RFC1123)))
	}
	if r.cfg.AppealURL != "" {
		b.WriteString(". Appeal at " + r.cfg.AppealURL)
	}
	return b.String()
}

// guestName generates the pinned display name used by namelocks.
func guestName() string {
	return fmt.Sprintf("Guest %d", rand.Intn(900000)+100000)
}
