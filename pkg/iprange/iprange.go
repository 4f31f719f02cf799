// Package iprange matches network addresses against punishment tables and
// configured address ranges.
//
// Coarse bans are stored as wildcard keys: "1.2.3.*" covers a /24-style
// block, "1.2.*" a /16, "1.*" an /8. CIDR-proper matching is handled by a
// Checker built once at load time; the tables themselves only ever see exact
// addresses and wildcard prefixes.
package iprange

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/store"
)

// SearchPrefix looks up ip in the table, first exactly, then under
// progressively coarser wildcard prefixes ("a.b.c.*", "a.b.*", "a.*").
// Returns the first hit or nil.
func SearchPrefix(t *store.Table, ip string) *model.Punishment {
	if p := t.Get(ip); p != nil {
		return p
	}
	prefix := ip
	for i := 0; i < 3; i++ {
		i := strings.LastIndexByte(prefix, '.')
		if i < 0 {
			break
		}
		prefix = prefix[:i]
		if p := t.Get(prefix + ".*"); p != nil {
			return p
		}
	}
	return nil
}

// WildcardKey converts a dotted range string into the table key used for
// coarse bans: "1.2.3.*" stays as-is, "1.2.3" becomes "1.2.3.*". An exact
// four-component address is returned unchanged.
func WildcardKey(s string) string {
	if strings.HasSuffix(s, ".*") {
		return s
	}
	if strings.Count(s, ".") < 3 {
		return s + ".*"
	}
	return s
}

// Checker reports whether an address falls inside a configured range set.
// It is built once at load time and is safe for concurrent use.
type Checker func(ip string) bool

// NewChecker builds a Checker from range strings. Each entry may be a CIDR
// ("1.2.0.0/16"), a plain address ("1.2.3.4"), or a trailing wildcard
// ("1.2.3.*"). Unparseable entries are reported, not silently dropped.
func NewChecker(ranges []string) (Checker, error) {
	var prefixes []netip.Prefix
	var wildcards []string
	for _, r := range ranges {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		switch {
		case strings.Contains(r, "/"):
			p, err := netip.ParsePrefix(r)
			if err != nil {
				return nil, fmt.Errorf("iprange: bad range %q: %w", r, err)
			}
			prefixes = append(prefixes, p.Masked())
		case strings.HasSuffix(r, ".*") || strings.Count(r, ".") < 3:
			wildcards = append(wildcards, strings.TrimSuffix(WildcardKey(r), "*"))
		default:
			addr, err := netip.ParseAddr(r)
			if err != nil {
				return nil, fmt.Errorf("iprange: bad address %q: %w", r, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}

	return func(ip string) bool {
		for _, w := range wildcards {
			if strings.HasPrefix(ip, w) {
				return true
			}
		}
		if len(prefixes) == 0 {
			return false
		}
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return false
		}
		for _, p := range prefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}, nil
}

// ReadRangeList parses a legacy flat address-ban list: one address or CIDR
// per line, with "#" starting a comment. Blank lines are skipped.
func ReadRangeList(r io.Reader) ([]string, error) {
	var ranges []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ranges = append(ranges, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("iprange: read range list: %w", err)
	}
	return ranges, nil
}

// LoadRangeList reads a legacy flat list file. A missing file is no data,
// not an error.
func LoadRangeList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("iprange: open range list: %w", err)
	}
	defer f.Close()
	return ReadRangeList(f)
}
