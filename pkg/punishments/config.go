package punishments

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use human-readable
// strings like "90s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config holds the registry's tunables.
type Config struct {
	// DataDir is where the punishment tables and shared-address file live.
	DataDir string `yaml:"data_dir"`

	// AppealURL is included in ban and lock notices.
	AppealURL string `yaml:"appeal_url"`

	// MonitorMinPunishments is how many public-room punishments a user
	// accumulates before the repeat-offender monitor starts scoring them.
	MonitorMinPunishments int `yaml:"monitor_min_punishments"`

	// AutolockPointThreshold is the summed kind score past which the
	// monitor escalates to a global lock.
	AutolockPointThreshold int `yaml:"autolock_point_threshold"`

	// AutolockEnabled gates monitor escalation; when false the monitor only
	// emits notices.
	AutolockEnabled bool `yaml:"autolock_enabled"`

	// BlocklistEnabled gates DNSBL consultation on connect.
	BlocklistEnabled bool `yaml:"blocklist_enabled"`

	// DNSBLZone is the blocklist zone queried when BlocklistEnabled is set.
	DNSBLZone string `yaml:"dnsbl_zone"`

	// FloodLimit and FloodWindow bound connection attempts per address
	// before the flood short-circuit provisionally rejects.
	FloodLimit  int      `yaml:"flood_limit"`
	FloodWindow Duration `yaml:"flood_window"`

	// RangebanFile is an optional legacy flat list of banned addresses and
	// CIDR ranges, one per line with # comments.
	RangebanFile string `yaml:"rangeban_file"`

	// ModlogPath is the moderation-log database path.
	ModlogPath string `yaml:"modlog_path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:                ".",
		MonitorMinPunishments:  3,
		AutolockPointThreshold: 8,
		AutolockEnabled:        true,
		FloodLimit:             8,
		FloodWindow:            Duration{time.Minute},
		ModlogPath:             "modlog.db",
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("punishments: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("punishments: parse config: %w", err)
	}
	return cfg, nil
}
