package persist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/store"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testClock() func() time.Time {
	return func() time.Time { return t0 }
}

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	dir := t.TempDir()
	return NewLogWithClock(dir, testClock()), dir
}

func TestGlobalRoundTrip(t *testing.T) {
	log, _ := newTestLog(t)

	ips := store.NewTableWithClock(testClock())
	ids := store.NewTableWithClock(testClock())

	ban := model.New(model.KindBan, "alice", t0.Add(time.Hour), "spamming", "third strike")
	ids.Set("alice", ban)
	ids.Set("alicealt", ban)
	ips.Set("1.2.3.4", ban)

	perm := model.New(model.KindLock, "mallory", time.Time{}, "permanent")
	ids.Set("mallory", perm)

	if err := log.SaveGlobal(ips, ids); err != nil {
		t.Fatalf("SaveGlobal: %v", err)
	}

	ips2 := store.NewTableWithClock(testClock())
	ids2 := store.NewTableWithClock(testClock())
	if err := log.LoadGlobal(ips2, ids2); err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}

	for _, key := range []string{"alice", "alicealt"} {
		got := ids2.Get(key)
		if got == nil {
			t.Fatalf("key %q missing after reload", key)
		}
		if got.Kind != model.KindBan || got.ID != "alice" || !got.ExpiresAt.Equal(ban.ExpiresAt) {
			t.Errorf("key %q reloaded as %+v", key, got)
		}
		if got.ReasonText() != "spamming; third strike" {
			t.Errorf("key %q reasons = %v", key, got.Reasons)
		}
	}
	if got := ips2.Get("1.2.3.4"); got == nil || got.ID != "alice" {
		t.Errorf("address key reloaded as %+v", got)
	}
	if got := ids2.Get("mallory"); got == nil || !got.Permanent() {
		t.Errorf("permanent punishment reloaded as %+v", got)
	}
}

func TestLoadSkipsExpiredRows(t *testing.T) {
	log, dir := newTestLog(t)

	expired := formatRow(model.KindLock, "bob", nil, t0.Add(-time.Hour), []string{"old"})
	live := formatRow(model.KindLock, "carol", nil, t0.Add(time.Hour), []string{"new"})
	writeFile(t, filepath.Join(dir, GlobalFile), punishmentHeader+expired+live)

	ips := store.NewTableWithClock(testClock())
	ids := store.NewTableWithClock(testClock())
	if err := log.LoadGlobal(ips, ids); err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if ids.Has("bob") {
		t.Error("expired row was loaded")
	}
	if !ids.Has("carol") {
		t.Error("live row was not loaded")
	}
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	log, dir := newTestLog(t)

	content := punishmentHeader +
		"BAN\tonly-two-cols\r\n" +
		"BAN\talice\t\tnot-a-number\treason\r\n" +
		formatRow(model.KindBan, "dave", nil, time.Time{}, nil)
	writeFile(t, filepath.Join(dir, GlobalFile), content)

	ips := store.NewTableWithClock(testClock())
	ids := store.NewTableWithClock(testClock())
	if err := log.LoadGlobal(ips, ids); err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if ids.Has("alice") {
		t.Error("row with unparseable expiry was loaded")
	}
	if !ids.Has("dave") {
		t.Error("well-formed row after malformed rows was not loaded")
	}
}

func TestMissingFilesAreNoData(t *testing.T) {
	log, _ := newTestLog(t)
	ips := store.NewTableWithClock(testClock())
	ids := store.NewTableWithClock(testClock())
	if err := log.LoadGlobal(ips, ids); err != nil {
		t.Errorf("LoadGlobal on missing file: %v", err)
	}
	roomIPs := store.NewRoomTableWithClock(testClock())
	roomIDs := store.NewRoomTableWithClock(testClock())
	if err := log.LoadRoom(roomIPs, roomIDs); err != nil {
		t.Errorf("LoadRoom on missing file: %v", err)
	}
	if err := log.LoadSharedIPs(store.NewSharedIPRegistry()); err != nil {
		t.Errorf("LoadSharedIPs on missing file: %v", err)
	}
}

func TestReservedIDsNotPersisted(t *testing.T) {
	log, dir := newTestLog(t)

	ips := store.NewTableWithClock(testClock())
	ids := store.NewTableWithClock(testClock())
	ips.Set("1.2.3.*", model.New(model.KindBan, model.RangelockID, t0.Add(time.Hour)))
	ids.Set("alice", model.New(model.KindBan, "alice", t0.Add(time.Hour)))

	if err := log.SaveGlobal(ips, ids); err != nil {
		t.Fatalf("SaveGlobal: %v", err)
	}
	if err := log.AppendGlobal(model.New(model.KindBan, model.IPBanID, t0.Add(time.Hour)), nil); err != nil {
		t.Fatalf("AppendGlobal: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, GlobalFile))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	if strings.Contains(string(data), "#") {
		t.Errorf("reserved IDs leaked into the table:\n%s", data)
	}
	if !strings.Contains(string(data), "alice") {
		t.Error("user row missing from the table")
	}
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	log, dir := newTestLog(t)

	p1 := model.New(model.KindLock, "alice", t0.Add(time.Hour), "one")
	p2 := model.New(model.KindLock, "bob", t0.Add(time.Hour), "two")
	if err := log.AppendGlobal(p1, []string{"1.2.3.4"}); err != nil {
		t.Fatalf("AppendGlobal: %v", err)
	}
	if err := log.AppendGlobal(p2, nil); err != nil {
		t.Fatalf("AppendGlobal: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, GlobalFile))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\r\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "Punishment\t") {
		t.Errorf("missing header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "LOCK\talice\t1.2.3.4\t") {
		t.Errorf("unexpected row: %q", lines[1])
	}
}

func TestRoomRoundTripAndScopeSplit(t *testing.T) {
	log, dir := newTestLog(t)

	roomIPs := store.NewRoomTableWithClock(testClock())
	roomIDs := store.NewRoomTableWithClock(testClock())
	rb := model.New(model.KindRoomban, "bob", t0.Add(time.Hour), "trolling")
	roomIDs.Set("lobby", "bob", rb)
	roomIPs.Set("lobby", "5.6.7.8", rb)

	if err := log.SaveRoom(roomIPs, roomIDs); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}

	// Tack on a row with no room scope; it must be dropped on load.
	f, err := os.OpenFile(filepath.Join(dir, RoomFile), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open room table: %v", err)
	}
	f.WriteString(formatRow(model.KindRoomban, "scopeless", nil, t0.Add(time.Hour), nil))
	f.Close()

	ips2 := store.NewRoomTableWithClock(testClock())
	ids2 := store.NewRoomTableWithClock(testClock())
	if err := log.LoadRoom(ips2, ids2); err != nil {
		t.Fatalf("LoadRoom: %v", err)
	}

	got := ids2.Get("lobby", "bob")
	if got == nil || got.Kind != model.KindRoomban || got.Reason() != "trolling" {
		t.Fatalf("room row reloaded as %+v", got)
	}
	if ips2.Get("lobby", "5.6.7.8") == nil {
		t.Error("room address alias missing after reload")
	}
	found := false
	ids2.ForEach(func(room, key string, p *model.Punishment) {
		if p.ID == "scopeless" {
			found = true
		}
	})
	if found {
		t.Error("row with unsplittable scope was loaded")
	}
}

func TestSharedIPFile(t *testing.T) {
	log, dir := newTestLog(t)

	reg := store.NewSharedIPRegistry()
	reg.Add("5.6.7.8", "public library")
	reg.Add("9.9.9.9", "")

	if err := log.SaveSharedIPs(reg); err != nil {
		t.Fatalf("SaveSharedIPs: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, SharedIPFile))
	if err != nil {
		t.Fatalf("read shared file: %v", err)
	}
	if !strings.Contains(string(data), "5.6.7.8\tSHARED\tpublic library\r\n") {
		t.Errorf("unexpected shared file contents:\n%s", data)
	}

	reg2 := store.NewSharedIPRegistry()
	if err := log.LoadSharedIPs(reg2); err != nil {
		t.Fatalf("LoadSharedIPs: %v", err)
	}
	if !reg2.IsShared("5.6.7.8") || !reg2.IsShared("9.9.9.9") {
		t.Error("registry incomplete after reload")
	}
	if got := reg2.Note("5.6.7.8"); got != "public library" {
		t.Errorf("Note = %q", got)
	}
}

func TestExpiryEncoding(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
	}{
		{"finite", t0.Add(90 * time.Minute)},
		{"permanent", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExpiry(formatExpiry(tt.in))
			if err != nil {
				t.Fatalf("parseExpiry: %v", err)
			}
			if !got.Equal(tt.in) {
				t.Errorf("round trip %v -> %v", tt.in, got)
			}
		})
	}
	if formatExpiry(time.Time{}) != "Infinity" {
		t.Error("permanent expiry should serialize as Infinity")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
