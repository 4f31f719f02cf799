// Package persist stores the punishment tables on disk.
//
// Three files live in the data directory: the global punishment table, the
// room punishment table, and the shared-address registry. Tables are
// tab-separated with CRLF row endings and a header row that is skipped on
// load. Full rewrites go through a temp file and an atomic rename so a crash
// mid-write cannot corrupt a table; per-punishment appends are issued as a
// single write each so rows never interleave.
//
// Punishments filed under a reserved "#" ID (raw IP bans, rangelocks) are
// ephemeral and are never written.
package persist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/store"
)

// Default filenames inside the data directory.
const (
	GlobalFile   = "punishments.tsv"
	RoomFile     = "room-punishments.tsv"
	SharedIPFile = "sharedips.tsv"
)

const (
	punishmentHeader = "Punishment\tUser ID\tIPs and alts\tExpires\tReason\r\n"
	sharedIPHeader   = "Address\tType\tNote\r\n"

	// infinity encodes a permanent punishment's expiry on disk.
	infinity = "Infinity"
)

// Log writes and reads the punishment files. All writes are serialized
// through one mutex; reads happen only at startup.
type Log struct {
	globalPath string
	roomPath   string
	sharedPath string

	mu  sync.Mutex
	now func() time.Time
}

// NewLog creates a Log rooted at dir, using the default filenames.
func NewLog(dir string) *Log {
	return &Log{
		globalPath: filepath.Join(dir, GlobalFile),
		roomPath:   filepath.Join(dir, RoomFile),
		sharedPath: filepath.Join(dir, SharedIPFile),
		now:        time.Now,
	}
}

// NewLogWithClock is NewLog with a custom clock, for tests.
func NewLogWithClock(dir string, now func() time.Time) *Log {
	l := NewLog(dir)
	if now != nil {
		l.now = now
	}
	return l
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return infinity
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseExpiry(s string) (time.Time, error) {
	if s == infinity {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// formatRow renders one punishment row. idCol is the primary ID, with a
// "room:" prefix for room rows. alts never contains the primary ID itself.
func formatRow(kind, idCol string, alts []string, expiresAt time.Time, reasons []string) string {
	cols := make([]string, 0, 4+len(reasons))
	cols = append(cols, kind, idCol, strings.Join(alts, ","), formatExpiry(expiresAt))
	cols = append(cols, reasons...)
	return strings.Join(cols, "\t") + "\r\n"
}

// parseRow splits one table row. Returns ok=false for rows that should be
// skipped (header, blank, too few columns).
func parseRow(line string) (kind, idCol string, alts []string, expiresAt time.Time, reasons []string, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", "", nil, time.Time{}, nil, false
	}
	cols := strings.Split(line, "\t")
	if len(cols) < 4 || cols[0] == "Punishment" {
		return "", "", nil, time.Time{}, nil, false
	}
	exp, err := parseExpiry(cols[3])
	if err != nil {
		return "", "", nil, time.Time{}, nil, false
	}
	for _, a := range strings.Split(cols[2], ",") {
		if a = strings.TrimSpace(a); a != "" {
			alts = append(alts, a)
		}
	}
	return cols[0], cols[1], alts, exp, cols[4:], true
}

// LoadGlobal reads the global table into the address and identity tables.
// Expired rows are skipped; each surviving punishment is registered under
// every alias key plus its primary ID. Keys that are not canonical user IDs
// go to the address table. Malformed rows are dropped silently; a missing
// file is no data.
func (l *Log) LoadGlobal(ips, ids *store.Table) error {
	return l.loadRows(l.globalPath, func(kind, idCol string, alts []string, expiresAt time.Time, reasons []string) {
		p := model.New(kind, idCol, expiresAt, reasons...)
		registerKey(ips, ids, idCol, p)
		for _, key := range alts {
			registerKey(ips, ids, key, p)
		}
	})
}

// LoadRoom reads the room table. Column two carries "room:id"; rows whose
// scope cannot be split off are dropped.
func (l *Log) LoadRoom(ips, ids *store.RoomTable) error {
	return l.loadRows(l.roomPath, func(kind, idCol string, alts []string, expiresAt time.Time, reasons []string) {
		room, id, found := strings.Cut(idCol, ":")
		if !found || room == "" || id == "" {
			return
		}
		p := model.New(kind, id, expiresAt, reasons...)
		registerRoomKey(ips, ids, room, id, p)
		for _, key := range alts {
			registerRoomKey(ips, ids, room, key, p)
		}
	})
}

func (l *Log) loadRows(path string, row func(kind, idCol string, alts []string, expiresAt time.Time, reasons []string)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("persist: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	now := l.now()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		kind, idCol, alts, expiresAt, reasons, ok := parseRow(sc.Text())
		if !ok {
			continue
		}
		if !expiresAt.IsZero() && !now.Before(expiresAt) {
			continue
		}
		row(kind, idCol, alts, expiresAt, reasons)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("persist: read %s: %w", filepath.Base(path), err)
	}
	return nil
}

func registerKey(ips, ids *store.Table, key string, p *model.Punishment) {
	if model.IsValidUserID(key) {
		ids.Set(key, p)
	} else {
		ips.Set(key, p)
	}
}

func registerRoomKey(ips, ids *store.RoomTable, room, key string, p *model.Punishment) {
	if model.IsValidUserID(key) {
		ids.Set(room, key, p)
	} else {
		ips.Set(room, key, p)
	}
}

// SaveGlobal rewrites the whole global table: one merged row per distinct
// primary ID, coalescing every key from both tables into that row's alias
// list. Reserved-ID punishments are excluded.
func (l *Log) SaveGlobal(ips, ids *store.Table) error {
	rows := collectRows(func(visit func(groupKey string, p *model.Punishment, key string)) {
		ips.ForEach(func(key string, p *model.Punishment) { visit(p.ID, p, key) })
		ids.ForEach(func(key string, p *model.Punishment) { visit(p.ID, p, key) })
	})
	return l.rewrite(l.globalPath, punishmentHeader, rows)
}

// SaveRoom rewrites the whole room table, one merged row per (room, primary
// ID) pair.
func (l *Log) SaveRoom(ips, ids *store.RoomTable) error {
	rows := collectRows(func(visit func(groupKey string, p *model.Punishment, key string)) {
		ips.ForEach(func(room, key string, p *model.Punishment) { visit(room+":"+p.ID, p, key) })
		ids.ForEach(func(room, key string, p *model.Punishment) { visit(room+":"+p.ID, p, key) })
	})
	return l.rewrite(l.roomPath, punishmentHeader, rows)
}

// collectRows groups live entries by primary ID and renders merged rows.
// groupKey doubles as the row's second column; the alias list always
// excludes the punishment's own primary ID.
func collectRows(each func(visit func(groupKey string, p *model.Punishment, key string))) []string {
	type group struct {
		p    *model.Punishment
		keys map[string]bool
	}
	groups := make(map[string]*group)
	var order []string

	each(func(groupKey string, p *model.Punishment, key string) {
		if model.IsReserved(p.ID) {
			return
		}
		g, ok := groups[groupKey]
		if !ok {
			g = &group{p: p, keys: make(map[string]bool)}
			groups[groupKey] = g
			order = append(order, groupKey)
		}
		g.keys[key] = true
	})

	sort.Strings(order)
	rows := make([]string, 0, len(groups))
	for _, groupKey := range order {
		g := groups[groupKey]
		primary := g.p.ID
		alts := make([]string, 0, len(g.keys))
		for key := range g.keys {
			if key != primary {
				alts = append(alts, key)
			}
		}
		sort.Strings(alts)
		rows = append(rows, formatRow(g.p.Kind, groupKey, alts, g.p.ExpiresAt, g.p.Reasons))
	}
	return rows
}

// AppendGlobal appends one row for a freshly applied punishment. altKeys is
// the de-duplicated alias set collected during the cascade, without the
// primary ID itself. Reserved-ID punishments are not persisted.
func (l *Log) AppendGlobal(p *model.Punishment, altKeys []string) error {
	if model.IsReserved(p.ID) {
		return nil
	}
	return l.appendRow(l.globalPath, formatRow(p.Kind, p.ID, altKeys, p.ExpiresAt, p.Reasons))
}

// AppendRoom appends one row for a room punishment.
func (l *Log) AppendRoom(room string, p *model.Punishment, altKeys []string) error {
	if model.IsReserved(p.ID) {
		return nil
	}
	return l.appendRow(l.roomPath, formatRow(p.Kind, room+":"+p.ID, altKeys, p.ExpiresAt, p.Reasons))
}

func (l *Log) appendRow(path, row string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("persist: append %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil && fi.Size() == 0 {
		row = punishmentHeader + row
	}
	// One write per row; a crash loses at most this row.
	if _, err := f.WriteString(row); err != nil {
		return fmt.Errorf("persist: append %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveSharedIPs fully rewrites the shared-address file. The middle column is
// the literal type tag.
func (l *Log) SaveSharedIPs(reg *store.SharedIPRegistry) error {
	type entry struct{ ip, note string }
	var entries []entry
	reg.ForEach(func(ip, note string) { entries = append(entries, entry{ip, note}) })
	sort.Slice(entries, func(i, j int) bool { return entries[i].ip < entries[j].ip })

	rows := make([]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.ip+"\tSHARED\t"+e.note+"\r\n")
	}
	return l.rewrite(l.sharedPath, sharedIPHeader, rows)
}

// LoadSharedIPs reads the shared-address file into the registry.
func (l *Log) LoadSharedIPs(reg *store.SharedIPRegistry) error {
	f, err := os.Open(l.sharedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("persist: open %s: %w", SharedIPFile, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		cols := strings.Split(strings.TrimRight(sc.Text(), "\r\n"), "\t")
		if len(cols) < 2 || cols[0] == "Address" || cols[1] != "SHARED" {
			continue
		}
		note := ""
		if len(cols) > 2 {
			note = cols[2]
		}
		reg.Add(cols[0], note)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("persist: read %s: %w", SharedIPFile, err)
	}
	return nil
}

// rewrite atomically replaces path with header + rows.
func (l *Log) rewrite(path, header string, rows []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("persist: write %s: %w", filepath.Base(path), err)
	}
	w := bufio.NewWriter(f)
	w.WriteString(header)
	for _, row := range rows {
		w.WriteString(row)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("persist: write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persist: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persist: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
