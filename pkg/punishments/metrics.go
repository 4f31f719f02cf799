package punishments

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Metrics tracks registry runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	Locks           atomic.Int64 // global locks applied
	Namelocks       atomic.Int64 // global namelocks applied
	Bans            atomic.Int64 // global bans applied
	RoomPunishments atomic.Int64 // room-scoped punishments applied
	Unpunishes      atomic.Int64 // punishments removed by staff
	Autolocks       atomic.Int64 // monitor- or system-issued locks

	RangeBlocks        atomic.Int64 // connections blocked by a range entry
	FloodRejections    atomic.Int64 // connections rejected by flood control
	SharedIPExemptions atomic.Int64 // punishments softened on shared addresses
	BlocklistHits      atomic.Int64 // DNSBL-listed addresses soft-locked
	MonitorNotices     atomic.Int64 // repeat-offender notices below threshold
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// MetricsSnapshot is a point-in-time view of all counters.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	Locks           int64 `json:"locks"`
	Namelocks       int64 `json:"namelocks"`
	Bans            int64 `json:"bans"`
	RoomPunishments int64 `json:"room_punishments"`
	Unpunishes      int64 `json:"unpunishes"`
	Autolocks       int64 `json:"autolocks"`

	RangeBlocks        int64 `json:"range_blocks"`
	FloodRejections    int64 `json:"flood_rejections"`
	SharedIPExemptions int64 `json:"shared_ip_exemptions"`
	BlocklistHits      int64 `json:"blocklist_hits"`
	MonitorNotices     int64 `json:"monitor_notices"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:             uptime.Truncate(time.Second).String(),
		UptimeSeconds:      int64(uptime.Seconds()),
		Locks:              m.Locks.Load(),
		Namelocks:          m.Namelocks.Load(),
		Bans:               m.Bans.Load(),
		RoomPunishments:    m.RoomPunishments.Load(),
		Unpunishes:         m.Unpunishes.Load(),
		Autolocks:          m.Autolocks.Load(),
		RangeBlocks:        m.RangeBlocks.Load(),
		FloodRejections:    m.FloodRejections.Load(),
		SharedIPExemptions: m.SharedIPExemptions.Load(),
		BlocklistHits:      m.BlocklistHits.Load(),
		MonitorNotices:     m.MonitorNotices.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
