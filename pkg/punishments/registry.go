// Package punishments implements the punishment registry: who is locked,
// banned or muted, for how long, at what scope, and what to do about it on
// every connection, login, rename and room entry.
package punishments

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/iprange"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/modlog"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/persist"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/store"
)

// Registry is the process-wide punishment store and engine. It owns the
// in-memory tables, which are the sole source of truth while running;
// persistence only replays them at startup and records changes.
type Registry struct {
	cfg Config

	ips     *store.Table     // global, keyed by address or wildcard prefix
	ids     *store.Table     // global, keyed by user ID
	roomIPs *store.RoomTable // per room, address keys
	roomIDs *store.RoomTable // per room, user ID keys
	shared  *store.SharedIPRegistry

	log        *persist.Log
	rangeCheck iprange.Checker

	identity   IdentityProvider
	rooms      RoomProvider
	reputation Reputation
	modlog     modlog.Sink

	flood   *FloodLimiter
	metrics *Metrics
	now     func() time.Time
}

// Dependencies holds the registry's collaborators. Identity and Rooms are
// required; the rest are optional and disable their feature when nil.
type Dependencies struct {
	Identity     IdentityProvider
	Rooms        RoomProvider
	Reputation   Reputation
	ModLog       modlog.Sink
	RangeChecker iprange.Checker
	Clock        func() time.Time
}

// New creates a Registry. Call Load before serving to rehydrate the tables.
func New(cfg Config, deps Dependencies) *Registry {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	check := deps.RangeChecker
	if check == nil {
		check = func(string) bool { return false }
	}
	return &Registry{
		cfg:        cfg,
		ips:        store.NewTableWithClock(now),
		ids:        store.NewTableWithClock(now),
		roomIPs:    store.NewRoomTableWithClock(now),
		roomIDs:    store.NewRoomTableWithClock(now),
		shared:     store.NewSharedIPRegistry(),
		log:        persist.NewLogWithClock(cfg.DataDir, now),
		rangeCheck: check,
		identity:   deps.Identity,
		rooms:      deps.Rooms,
		reputation: deps.Reputation,
		modlog:     deps.ModLog,
		flood:      NewFloodLimiterWithClock(cfg.FloodLimit, cfg.FloodWindow.Duration, now),
		metrics:    NewMetrics(),
		now:        now,
	}
}

// Load rehydrates every table from disk. Called exactly once at startup.
func (r *Registry) Load() error {
	if err := r.log.LoadGlobal(r.ips, r.ids); err != nil {
		return fmt.Errorf("punishments: %w", err)
	}
	if err := r.log.LoadRoom(r.roomIPs, r.roomIDs); err != nil {
		return fmt.Errorf("punishments: %w", err)
	}
	if err := r.log.LoadSharedIPs(r.shared); err != nil {
		return fmt.Errorf("punishments: %w", err)
	}
	if r.cfg.RangebanFile != "" {
		ranges, err := iprange.LoadRangeList(r.cfg.RangebanFile)
		if err != nil {
			return fmt.Errorf("punishments: %w", err)
		}
		if len(ranges) > 0 {
			check, err := iprange.NewChecker(ranges)
			if err != nil {
				return fmt.Errorf("punishments: %w", err)
			}
			prev := r.rangeCheck
			r.rangeCheck = func(ip string) bool { return prev(ip) || check(ip) }
			slog.Info("loaded legacy address-ban list", "file", r.cfg.RangebanFile, "ranges", len(ranges))
		}
	}
	return nil
}

// SaveAll fully rewrites both punishment tables. Used by administrative
// tooling; the server itself appends per punishment and rewrites only after
// removals.
func (r *Registry) SaveAll() error {
	if err := r.log.SaveGlobal(r.ips, r.ids); err != nil {
		return err
	}
	return r.log.SaveRoom(r.roomIPs, r.roomIDs)
}

// Metrics returns the registry's counters.
func (r *Registry) Metrics() *Metrics {
	return r.metrics
}

// AddSharedIP registers ip as a shared address and rewrites the shared file.
func (r *Registry) AddSharedIP(ip, note string) error {
	r.shared.Add(ip, note)
	return r.log.SaveSharedIPs(r.shared)
}

// RemoveSharedIP unregisters ip and rewrites the shared file.
func (r *Registry) RemoveSharedIP(ip string) error {
	r.shared.Remove(ip)
	return r.log.SaveSharedIPs(r.shared)
}

// IsSharedIP reports whether ip is a registered shared address.
func (r *Registry) IsSharedIP(ip string) bool {
	return r.shared.IsShared(ip)
}

// SharedIP is one registered shared-address entry.
type SharedIP struct {
	IP   string
	Note string
}

// SharedIPs returns the registered shared addresses and notes, sorted.
func (r *Registry) SharedIPs() []SharedIP {
	var entries []SharedIP
	r.shared.ForEach(func(ip, note string) {
		entries = append(entries, SharedIP{IP: ip, Note: note})
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].IP < entries[j].IP })
	return entries
}

// writeModlog records one moderation line, if a sink is wired. A failing
// sink degrades the audit trail only; it never blocks enforcement.
func (r *Registry) writeModlog(room, line string) {
	if r.modlog == nil {
		return
	}
	if err := r.modlog.Append(room, line); err != nil {
		slog.Warn("modlog write failed", "room", room, "err", err)
	}
}
