package iprange

import (
	"strings"
	"testing"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/store"
)

func TestSearchPrefix(t *testing.T) {
	table := store.NewTable()
	hit := model.New(model.KindBan, "#rangelock", time.Now().Add(time.Hour), "range abuse")
	table.Set("1.2.3.*", hit)
	exact := model.New(model.KindBan, "#ipban", time.Now().Add(time.Hour))
	table.Set("9.9.9.9", exact)
	wide := model.New(model.KindLock, "#rangelock", time.Now().Add(time.Hour))
	table.Set("10.*", wide)

	tests := []struct {
		name string
		ip   string
		want *model.Punishment
	}{
		{"inside /24", "1.2.3.4", hit},
		{"inside /24 high", "1.2.3.99", hit},
		{"outside /24", "1.2.4.1", nil},
		{"exact match", "9.9.9.9", exact},
		{"near exact", "9.9.9.8", nil},
		{"inside /8", "10.20.30.40", wide},
		{"no match at all", "8.8.8.8", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SearchPrefix(table, tt.ip); got != tt.want {
				t.Errorf("SearchPrefix(%q) = %+v, want %+v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestWildcardKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.2.3.*", "1.2.3.*"},
		{"1.2.3", "1.2.3.*"},
		{"1.2", "1.2.*"},
		{"1.2.3.4", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := WildcardKey(tt.input); got != tt.want {
				t.Errorf("WildcardKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewChecker(t *testing.T) {
	check, err := NewChecker([]string{"1.2.0.0/16", "5.6.7.8", "11.12.*", ""})
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{"1.2.3.4", true},
		{"1.3.0.1", false},
		{"5.6.7.8", true},
		{"5.6.7.9", false},
		{"11.12.13.14", true},
		{"11.13.0.1", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := check(tt.ip); got != tt.want {
				t.Errorf("check(%q) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestNewCheckerRejectsGarbage(t *testing.T) {
	if _, err := NewChecker([]string{"1.2.0.0/99"}); err == nil {
		t.Error("expected error for bad CIDR")
	}
	if _, err := NewChecker([]string{"300.1.2.3"}); err == nil {
		t.Error("expected error for bad address")
	}
}

func TestReadRangeList(t *testing.T) {
	input := strings.Join([]string{
		"1.2.0.0/16 # school network",
		"",
		"# full-line comment",
		"  5.6.7.8  ",
		"9.10.*",
	}, "\n")

	got, err := ReadRangeList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadRangeList: %v", err)
	}
	want := []string{"1.2.0.0/16", "5.6.7.8", "9.10.*"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
