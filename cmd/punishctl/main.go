// Command punishctl inspects and edits the punishment tables offline: search
// by user ID or address, file and lift punishments, manage shared addresses,
// import legacy address-ban lists and query the moderation log.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/iprange"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/logging"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/model"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/modlog"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/punishments"
	"github.com/ABC-Dragon-Buster/Pokemon-Showdown/pkg/version"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "YAML config file path")
		dataDir    = flag.String("data", "", "Data directory (overrides config)")

		search    = flag.String("search", "", "Search the tables for a user ID or address")
		punish    = flag.String("punish", "", "Punish a user ID")
		unpunish  = flag.String("unpunish", "", "Lift a punishment by user ID or address")
		kind      = flag.String("kind", "LOCK", "Punishment kind for -punish/-unpunish")
		room      = flag.String("room", "", "Scope -punish/-unpunish to one room")
		days      = flag.Int("days", 0, "Punishment length in days (0 = kind default)")
		forever   = flag.Bool("forever", false, "Make the punishment permanent")
		reason    = flag.String("reason", "", "Punishment reason")
		addShared = flag.String("add-shared", "", "Register a shared address")
		note      = flag.String("note", "", "Note for -add-shared")
		rmShared  = flag.String("remove-shared", "", "Unregister a shared address")
		shared    = flag.Bool("shared-ips", false, "List registered shared addresses")

		importBans = flag.String("import-ipbans", "", "Import a legacy flat address-ban list as permanent bans")
		logQuery   = flag.String("modlog", "", "Search the moderation log (use with -room, empty room = global)")
		logLimit   = flag.Int("modlog-limit", 20, "Maximum moderation-log lines to print")

		showStats   = flag.Bool("stats", false, "Print registry counters for this invocation as JSON")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	logLevel := flag.String("log-level", "warn", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println("punishctl", version.Full())
		return
	}

	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stderr,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	cfg, err := punishments.LoadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if *logQuery != "" {
		searchModlog(cfg, *room, *logQuery, *logLimit)
		return
	}

	reg := punishments.New(cfg, punishments.Dependencies{
		Identity: offlineIdentity{},
		Rooms:    offlineRooms{},
	})
	if err := reg.Load(); err != nil {
		fatal(err)
	}

	switch {
	case *search != "":
		keys, reasons := reg.Search(*search)
		if len(keys) == 0 {
			// Retry with the name reduced to a canonical ID, unless the
			// argument is an address.
			if id := model.ToID(*search); id != *search {
				keys, reasons = reg.Search(id)
			}
		}
		if len(keys) == 0 {
			fmt.Println("no punishments found")
			return
		}
		fmt.Printf("punished under %d keys: %s\n", len(keys), strings.Join(keys, ", "))
		if len(reasons) > 0 {
			fmt.Printf("reason: %s\n", strings.Join(reasons, "; "))
		}

	case *punish != "":
		doPunish(reg, *punish, *kind, *room, *days, *forever, *reason)

	case *unpunish != "":
		doUnpunish(reg, *unpunish, *kind, *room)

	case *addShared != "":
		if err := reg.AddSharedIP(*addShared, *note); err != nil {
			fatal(err)
		}
		fmt.Printf("registered %s as shared\n", *addShared)

	case *rmShared != "":
		if err := reg.RemoveSharedIP(*rmShared); err != nil {
			fatal(err)
		}
		fmt.Printf("unregistered %s\n", *rmShared)

	case *shared:
		entries := reg.SharedIPs()
		if len(entries) == 0 {
			fmt.Println("no shared addresses registered")
			return
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\n", e.IP, e.Note)
		}

	case *importBans != "":
		importLegacyBans(cfg, *importBans)

	default:
		flag.Usage()
		os.Exit(2)
	}

	if *showStats {
		fmt.Fprintln(os.Stderr, reg.Metrics().JSON())
	}
}

func doPunish(reg *punishments.Registry, id, kind, room string, days int, forever bool, reason string) {
	userid := model.ToID(id)
	if !model.IsValidUserID(userid) {
		fatal(fmt.Errorf("invalid user ID %q", id))
	}
	kind = strings.ToUpper(kind)
	if _, ok := model.Kind(kind); !ok {
		fatal(fmt.Errorf("unknown punishment kind %q", kind))
	}

	var expiresAt time.Time
	if !forever && days > 0 {
		expiresAt = time.Now().Add(time.Duration(days) * 24 * time.Hour)
	}
	var reasons []string
	if reason != "" {
		reasons = []string{reason}
	}
	p := model.New(kind, userid, expiresAt, reasons...)

	var err error
	if room != "" {
		_, err = reg.RoomPunishName(room, userid, p)
	} else {
		_, err = reg.PunishName(userid, p)
	}
	if err != nil {
		fatal(err)
	}
	scope := "globally"
	if room != "" {
		scope = "in " + room
	}
	fmt.Printf("filed %s on %s %s\n", kind, userid, scope)
}

func doUnpunish(reg *punishments.Registry, id, kind, room string) {
	kind = strings.ToUpper(kind)
	var (
		resolved string
		err      error
	)
	if room != "" {
		resolved, err = reg.RoomUnpunish(room, id, kind)
	} else {
		resolved, err = reg.Unpunish(id, kind)
	}
	if err != nil {
		fatal(err)
	}
	if resolved == "" {
		fmt.Printf("no %s found for %s\n", kind, id)
		return
	}
	fmt.Printf("lifted %s on %s\n", kind, resolved)
}

// importLegacyBans merges a flat address list into the configured rangeban
// file, which the registry loads at startup. Entries are validated, dotted
// prefixes normalized to wildcard form, and duplicates dropped.
func importLegacyBans(cfg punishments.Config, path string) {
	if cfg.RangebanFile == "" {
		fatal(fmt.Errorf("no rangeban_file configured to import into"))
	}
	incoming, err := iprange.LoadRangeList(path)
	if err != nil {
		fatal(err)
	}
	existing, err := iprange.LoadRangeList(cfg.RangebanFile)
	if err != nil {
		fatal(err)
	}

	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r] = true
		merged = append(merged, r)
	}
	added := 0
	for _, r := range incoming {
		if !strings.Contains(r, "/") {
			r = iprange.WildcardKey(r)
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		merged = append(merged, r)
		added++
	}

	// Reject the merged set before writing anything.
	if _, err := iprange.NewChecker(merged); err != nil {
		fatal(err)
	}
	out := strings.Join(merged, "\n") + "\n"
	if err := os.WriteFile(cfg.RangebanFile, []byte(out), 0o644); err != nil {
		fatal(err)
	}
	fmt.Printf("imported %d new entries into %s (%d total)\n", added, cfg.RangebanFile, len(merged))
}

func searchModlog(cfg punishments.Config, room, query string, limit int) {
	sink, err := modlog.NewSQLite(cfg.ModlogPath)
	if err != nil {
		fatal(err)
	}
	defer sink.Close()

	if room == "" {
		room = "global"
	}
	entries, err := sink.Search(room, query, limit)
	if err != nil {
		fatal(err)
	}
	for _, e := range entries {
		fmt.Printf("%s [%s] %s\n", e.At.Format(time.RFC3339), e.Room, e.Line)
	}
}

func fatal(err error) {
	slog.Error("punishctl", "err", err)
	os.Exit(1)
}

// offlineIdentity satisfies the registry's session lookups for a tool that
// runs with no server attached.
type offlineIdentity struct{}

func (offlineIdentity) Sessions(string) []punishments.Session     { return nil }
func (offlineIdentity) SessionsByIP(string) []punishments.Session { return nil }
func (offlineIdentity) SessionByConnection(string) (punishments.Session, bool) {
	return nil, false
}

type offlineRooms struct{}

func (offlineRooms) Parent(string) (string, bool) { return "", false }
func (offlineRooms) SubRooms(string) []string     { return nil }
func (offlineRooms) IsPrivate(string) bool        { return false }
func (offlineRooms) IsPersonal(string) bool       { return false }
func (offlineRooms) IsBattle(string) bool         { return false }
func (offlineRooms) RemoveUser(string, string)    {}
func (offlineRooms) MutedRooms(string) []string   { return nil }
