// Command heatcoredebug is a maintenance CLI over the store: seed
// zones/sensors/schedule from a JSON fixture, dump tables, or print a
// zone's learned gradient table. The operation is selected with the
// -cmd flag.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/thatsimonsguy/heatcore/internal/model"
	"github.com/thatsimonsguy/heatcore/internal/store"
)

type fixture struct {
	Zones    []model.Zone          `json:"zones"`
	Sensors  []model.Sensor        `json:"sensors"`
	Schedule []model.ScheduleEntry `json:"schedule"`
}

func main() {
	dbPath := flag.String("db", "data/state.db", "path to the sqlite store")
	cmd := flag.String("cmd", "", "seed | dump-zones | dump-schedule | gradients")
	fixturePath := flag.String("fixture", "", "path to a JSON fixture file (seed)")
	zoneID := flag.Int("zone", 0, "zone id (gradients)")
	flag.Parse()

	st, err := store.Open(*dbPath)
	if err != nil {
		fatal("failed to open store: %v", err)
	}
	defer st.Close()

	switch *cmd {
	case "seed":
		runSeed(st, *fixturePath)
	case "dump-zones":
		runDumpZones(st)
	case "dump-schedule":
		runDumpSchedule(st)
	case "gradients":
		runGradients(st, *zoneID)
	default:
		fatal("unknown -cmd %q: expected seed | dump-zones | dump-schedule | gradients", *cmd)
	}
}

func runSeed(st *store.Store, path string) {
	if path == "" {
		fatal("seed requires -fixture")
	}
	file, err := os.Open(path)
	if err != nil {
		fatal("failed to open fixture: %v", err)
	}
	defer file.Close()

	var fx fixture
	if err := json.NewDecoder(file).Decode(&fx); err != nil {
		fatal("failed to parse fixture: %v", err)
	}

	if err := st.SeedZonesAndSensors(fx.Zones, fx.Sensors); err != nil {
		fatal("failed to seed zones/sensors: %v", err)
	}
	for _, e := range fx.Schedule {
		if err := st.CreateScheduleEntry(e); err != nil {
			fatal("failed to seed schedule entry %+v: %v", e, err)
		}
	}
	fmt.Printf("seeded %d zones, %d sensors, %d schedule entries\n", len(fx.Zones), len(fx.Sensors), len(fx.Schedule))
}

func runDumpZones(st *store.Store) {
	zones, err := st.LoadZones()
	if err != nil {
		fatal("failed to load zones: %v", err)
	}
	dumpJSON(zones)
}

func runDumpSchedule(st *store.Store) {
	schedule, err := st.LoadSchedule()
	if err != nil {
		fatal("failed to load schedule: %v", err)
	}
	dumpJSON(schedule)
}

func runGradients(st *store.Store, zoneID int) {
	if zoneID == 0 {
		fatal("gradients requires -zone")
	}
	table, err := st.GradientTable(zoneID)
	if err != nil {
		fatal("failed to load gradient table for zone %d: %v", zoneID, err)
	}
	dumpJSON(table)
}

func dumpJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("failed to encode output: %v", err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
