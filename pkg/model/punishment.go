// Package model defines the core domain types for the punishment registry.
package model

import (
	"strings"
	"time"
)

// Punishment is an immutable restriction placed on an identity or address.
// "Updating" a punishment always means storing a replacement value; code must
// never mutate a Punishment that is already referenced by a table.
type Punishment struct {
	Kind      string    // registered kind tag, e.g. "LOCK", "BAN", "ROOMBAN"
	ID        string    // primary identity, or a reserved "#..." sentinel
	ExpiresAt time.Time // zero = permanent
	Reasons   []string  // reason text plus any caller-defined extra fields
}

// New builds a punishment expiring at the given time. A zero expiry makes it
// permanent.
func New(kind, id string, expiresAt time.Time, reasons ...string) *Punishment {
	return &Punishment{Kind: kind, ID: id, ExpiresAt: expiresAt, Reasons: reasons}
}

// Permanent reports whether the punishment never expires.
func (p *Punishment) Permanent() bool {
	return p.ExpiresAt.IsZero()
}

// Expired reports whether the punishment has lapsed as of now.
func (p *Punishment) Expired(now time.Time) bool {
	return !p.Permanent() && !now.Before(p.ExpiresAt)
}

// Reason returns the primary reason text, or "" if none was given.
func (p *Punishment) Reason() string {
	if len(p.Reasons) == 0 {
		return ""
	}
	return p.Reasons[0]
}

// ReasonText joins all reason fields for display.
func (p *Punishment) ReasonText() string {
	return strings.Join(p.Reasons, "; ")
}
