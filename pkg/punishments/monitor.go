package punishments

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
)

// monitorPunishments scores a user's accumulated public-room punishments
// after a new one is recorded, and escalates to a global lock past the
// configured threshold. Runs synchronously from RoomPunish.
func (r *Registry) monitorPunishments(userid string) {
	if model.IsReserved(userid) {
		return
	}
	// Already globally punished: no double escalation.
	if r.ids.Get(userid) != nil {
		return
	}

	type hit struct {
		room string
		kind string
	}
	var hits []hit
	seenRooms := make(map[string]bool)

	r.roomIDs.ForEach(func(room, key string, p *model.Punishment) {
		if key != userid || p.ID != userid || seenRooms[room] {
			return
		}
		if !r.isPublicRoom(room) {
			return
		}
		seenRooms[room] = true
		hits = append(hits, hit{room, p.Kind})
	})

	// Temporary mutes live in the rooms, not in the tables, but still count.
	if r.rooms != nil {
		for _, room := range r.rooms.MutedRooms(userid) {
			if seenRooms[room] || !r.isPublicRoom(room) {
				continue
			}
			seenRooms[room] = true
			hits = append(hits, hit{room, model.KindMute})
		}
	}

	if len(hits) < r.cfg.MonitorMinPunishments {
		return
	}

	points := 0
	rooms := make([]string, 0, len(hits))
	for _, h := range hits {
		points += model.KindPoints(h.kind)
		rooms = append(rooms, h.room)
	}
	sort.Strings(rooms)
	roomList := strings.Join(rooms, ", ")

	if points >= r.cfg.AutolockPointThreshold && r.cfg.AutolockEnabled {
		reason := fmt.Sprintf("Autolock: %d room punishments", len(hits))
		message := fmt.Sprintf("%s was locked for having punishments in %d rooms: %s", userid, len(hits), roomList)
		if err := r.Autolock(userid, "staff", reason, message, false); err != nil {
			slog.Error("monitor autolock not persisted", "user", userid, "err", err)
		}
		return
	}

	r.metrics.MonitorNotices.Add(1)
	r.writeModlog("staff", fmt.Sprintf("%s has %d punishments in public rooms: %s", userid, len(hits), roomList))
	slog.Info("repeat offender notice", "user", userid, "punishments", len(hits), "points", points)
}
