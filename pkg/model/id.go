package model

import "strings"

// Identities are stored as IDs: the lowercase alphanumeric reduction of a
// display name. Anything that does not reduce to a valid ID (dotted
// addresses, wildcard prefixes) is treated as an address key.

// ReservedPrefix marks system-originated punishment IDs. Rows filed under a
// reserved ID (raw IP bans, rangelocks, host-filter hits) never enter the
// persisted user ledger.
const ReservedPrefix = "#"

// Reserved sentinel IDs for punishments not tied to a user identity.
const (
	IPBanID     = "#ipban"
	RangelockID = "#rangelock"
	DNSBLID     = "#dnsbl"
	HostFilter  = "#hostfilter"
)

// SharedIPID returns the sentinel ID for a punishment inherited through a
// shared address originally filed under id.
func SharedIPID(id string) string {
	return "#sharedip:" + id
}

// ToID reduces a display name to its canonical ID: lowercase letters and
// digits only. Returns "" if nothing survives.
func ToID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidUserID reports whether s is a canonical user ID (nonempty lowercase
// alphanumerics). Persistence uses this to route keys between the identity
// table and the address table.
func IsValidUserID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// IsReserved reports whether id is a system sentinel rather than a user ID.
func IsReserved(id string) bool {
	return strings.HasPrefix(id, ReservedPrefix)
}
