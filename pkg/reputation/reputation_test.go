package reputation

import (
	"context"
	"errors"
	"testing"
)

func TestBlocklistName(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		zone    string
		want    string
		wantErr bool
	}{
		{"simple", "1.2.3.4", "dnsbl.example.net", "4.3.2.1.dnsbl.example.net.", false},
		{"zone with trailing dot", "10.0.0.1", "bl.example.org.", "1.0.0.10.bl.example.org.", false},
		{"not an address", "nonsense", "bl.example.org", "", true},
		{"ipv6 rejected", "::1", "bl.example.org", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BlocklistName(tt.ip, tt.zone)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Fatalf("err = %v, want ErrInvalidAddress", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BlocklistName: %v", err)
			}
			if got != tt.want {
				t.Errorf("BlocklistName(%q) = %q, want %q", tt.ip, got, tt.want)
			}
		})
	}
}

func TestReverseLookupInvalidAddress(t *testing.T) {
	r := NewResolver([]string{"127.0.0.1:53"}, "")
	_, err := r.ReverseLookup(context.Background(), "not-an-ip")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress", err)
	}
}

func TestCheckBlocklistDisabled(t *testing.T) {
	// No zone configured: every address passes without any network traffic.
	r := NewResolver([]string{"127.0.0.1:53"}, "")
	listed, err := r.CheckBlocklist(context.Background(), "1.2.3.4")
	if err != nil {
		t.Fatalf("CheckBlocklist: %v", err)
	}
	if listed {
		t.Error("address reported listed with no zone configured")
	}
}
