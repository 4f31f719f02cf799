package model

import (
	"testing"
	"time"
)

func TestToID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "alice", "alice"},
		{"mixed case", "AlIcE", "alice"},
		{"spaces and punctuation", "Al ice!?", "alice"},
		{"digits kept", "user123", "user123"},
		{"unicode stripped", "ñoño", "oo"},
		{"everything stripped", "!!! ???", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToID(tt.input); got != tt.want {
				t.Errorf("ToID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidUserID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"alice", true},
		{"alice123", true},
		{"", false},
		{"Alice", false},
		{"1.2.3.4", false},
		{"1.2.3.*", false},
		{"#ipban", false},
		{"user_name", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsValidUserID(tt.input); got != tt.want {
				t.Errorf("IsValidUserID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStrongerKind(t *testing.T) {
	tests := []struct {
		name     string
		newKind  string
		oldKind  string
		want     string
	}{
		{"ban beats lock", KindLock, KindBan, KindBan},
		{"ban kept over namelock", KindNamelock, KindBan, KindBan},
		{"namelock beats lock", KindNamelock, KindLock, KindNamelock},
		{"new wins on tie", KindLock, KindLock, KindLock},
		{"unknown old kind loses", KindLock, "CUSTOM", KindLock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StrongerKind(tt.newKind, tt.oldKind); got != tt.want {
				t.Errorf("StrongerKind(%q, %q) = %q, want %q", tt.newKind, tt.oldKind, got, tt.want)
			}
		})
	}
}

func TestRegisterKind(t *testing.T) {
	RegisterKind("BATTLEBAN", KindInfo{Points: 4, RoomScoped: true})
	if got := KindPoints("BATTLEBAN"); got != 4 {
		t.Errorf("KindPoints(BATTLEBAN) = %d, want 4", got)
	}
	if got := KindPoints("NOSUCHKIND"); got != 0 {
		t.Errorf("KindPoints(NOSUCHKIND) = %d, want 0", got)
	}
}

func TestPunishmentExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	perm := New(KindBan, "alice", time.Time{}, "spam")
	if !perm.Permanent() {
		t.Error("zero expiry should be permanent")
	}
	if perm.Expired(now.Add(100 * 365 * 24 * time.Hour)) {
		t.Error("permanent punishment should never expire")
	}

	timed := New(KindLock, "bob", now.Add(time.Hour), "flooding", "second offense")
	if timed.Expired(now) {
		t.Error("punishment expired before its time")
	}
	if !timed.Expired(now.Add(time.Hour)) {
		t.Error("punishment still live at its expiry instant")
	}
	if got := timed.Reason(); got != "flooding" {
		t.Errorf("Reason() = %q, want %q", got, "flooding")
	}
	if got := timed.ReasonText(); got != "flooding; second offense" {
		t.Errorf("ReasonText() = %q", got)
	}
}
