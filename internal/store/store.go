// Package store is the SQL-backed persistence collaborator for zones,
// sensors, the weekly schedule, overrides, gradient samples, and the
// latest reported state per zone. Raw database/sql against sqlite3,
// fmt.Errorf wrapping at every call, explicit transactions for
// multi-statement writes.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS zones (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	boiler_relay TEXT NOT NULL,
	sensor_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sensors (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	locator TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS schedule_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	day INTEGER NOT NULL,
	hour INTEGER NOT NULL,
	minute INTEGER NOT NULL,
	zone INTEGER NOT NULL,
	target REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS target_overrides (
	zone INTEGER PRIMARY KEY,
	"end" TEXT NOT NULL,
	target REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS gradient_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	zone INTEGER NOT NULL,
	when_ts TEXT NOT NULL,
	delta REAL NOT NULL,
	gradient REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS reported_state (
	zone INTEGER PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store is the SQL persistence collaborator.
type Store struct {
	db *sql.DB
}

// Open opens (creating if missing) the sqlite3 database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.InitializeIfMissing(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitializeIfMissing creates the schema if it does not already exist.
func (s *Store) InitializeIfMissing() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SeedZonesAndSensors seeds the zones/sensors tables from configuration
// using INSERT OR REPLACE, so re-seeding on restart is idempotent.
func (s *Store) SeedZonesAndSensors(zones []model.Zone, sensors []model.Sensor) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, z := range zones {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO zones (id, name, boiler_relay, sensor_id) VALUES (?, ?, ?, ?)`,
			z.ID, z.Name, z.BoilerRelay, z.SensorID); err != nil {
			return fmt.Errorf("failed to seed zone %d: %w", z.ID, err)
		}
	}
	for _, sn := range sensors {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO sensors (id, name, locator) VALUES (?, ?, ?)`,
			sn.ID, sn.Name, sn.Locator); err != nil {
			return fmt.Errorf("failed to seed sensor %d: %w", sn.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}
	return nil
}

// LoadZones returns every configured zone.
func (s *Store) LoadZones() ([]model.Zone, error) {
	rows, err := s.db.Query(`SELECT id, name, boiler_relay, sensor_id FROM zones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		var z model.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.BoilerRelay, &z.SensorID); err != nil {
			return nil, fmt.Errorf("failed to scan zone row: %w", err)
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// LoadSensors returns every configured sensor.
func (s *Store) LoadSensors() ([]model.Sensor, error) {
	rows, err := s.db.Query(`SELECT id, name, locator FROM sensors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}
	defer rows.Close()

	var sensors []model.Sensor
	for rows.Next() {
		var sn model.Sensor
		if err := rows.Scan(&sn.ID, &sn.Name, &sn.Locator); err != nil {
			return nil, fmt.Errorf("failed to scan sensor row: %w", err)
		}
		sensors = append(sensors, sn)
	}
	return sensors, rows.Err()
}

// LoadSchedule returns the full weekly schedule.
func (s *Store) LoadSchedule() (model.FullSchedule, error) {
	rows, err := s.db.Query(`SELECT day, hour, minute, zone, target FROM schedule_entries`)
	if err != nil {
		return model.FullSchedule{}, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	var schedule model.FullSchedule
	for rows.Next() {
		var e model.ScheduleEntry
		if err := rows.Scan(&e.Day, &e.Time.Hour, &e.Time.Minute, &e.Zone, &e.Target); err != nil {
			return model.FullSchedule{}, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		schedule.Entries = append(schedule.Entries, e)
	}
	return schedule, rows.Err()
}

// CreateScheduleEntry inserts one schedule row, failing if its zone is
// not a known zone (enforces the "entry references an existing zone"
// invariant).
func (s *Store) CreateScheduleEntry(e model.ScheduleEntry) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM zones WHERE id = ?`, e.Zone).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check zone existence: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("schedule entry references unknown zone %d", e.Zone)
	}

	_, err := s.db.Exec(`INSERT INTO schedule_entries (day, hour, minute, zone, target) VALUES (?, ?, ?, ?, ?)`,
		e.Day, e.Time.Hour, e.Time.Minute, e.Zone, e.Target)
	if err != nil {
		return fmt.Errorf("failed to insert schedule entry: %w", err)
	}
	return nil
}

// LoadOverrides returns every stored override (expired or not; callers
// filter by End at evaluation time, per §4.5).
func (s *Store) LoadOverrides() ([]model.TargetOverride, error) {
	rows, err := s.db.Query(`SELECT zone, "end", target FROM target_overrides`)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var overrides []model.TargetOverride
	for rows.Next() {
		var o model.TargetOverride
		var end string
		if err := rows.Scan(&o.Zone, &end, &o.Target); err != nil {
			return nil, fmt.Errorf("failed to scan override row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return nil, fmt.Errorf("failed to parse override end time: %w", err)
		}
		o.End = parsed
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// SaveOverride replaces any existing override for the zone with this
// one, enforcing "at most one active override per zone" via
// DELETE-before-INSERT within a single transaction.
func (s *Store) SaveOverride(o model.TargetOverride) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin override transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM target_overrides WHERE zone = ?`, o.Zone); err != nil {
		return fmt.Errorf("failed to clear existing override for zone %d: %w", o.Zone, err)
	}
	if _, err := tx.Exec(`INSERT INTO target_overrides (zone, "end", target) VALUES (?, ?, ?)`,
		o.Zone, o.End.Format(time.RFC3339), o.Target); err != nil {
		return fmt.Errorf("failed to insert override for zone %d: %w", o.Zone, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit override transaction: %w", err)
	}
	return nil
}

// ClearOverride removes any override for the zone.
func (s *Store) ClearOverride(zone int) error {
	if _, err := s.db.Exec(`DELETE FROM target_overrides WHERE zone = ?`, zone); err != nil {
		return fmt.Errorf("failed to clear override for zone %d: %w", zone, err)
	}
	return nil
}

// InsertGradientSample persists one gradient sample.
func (s *Store) InsertGradientSample(sample model.GradientSample) error {
	_, err := s.db.Exec(`INSERT INTO gradient_samples (zone, when_ts, delta, gradient) VALUES (?, ?, ?, ?)`,
		sample.Zone, sample.When.Format(time.RFC3339), sample.Delta, sample.Gradient)
	if err != nil {
		return fmt.Errorf("failed to insert gradient sample for zone %d: %w", sample.Zone, err)
	}
	return nil
}

// GradientTable aggregates a zone's persisted samples into buckets via
// SQL GROUP BY/AVG, matching the §4.6 aggregation policy.
func (s *Store) GradientTable(zone int) (model.GradientTable, error) {
	rows, err := s.db.Query(`
		SELECT ROUND(delta * 2) / 2.0 AS bucket, AVG(gradient), COUNT(*)
		FROM gradient_samples
		WHERE zone = ?
		GROUP BY bucket
		ORDER BY bucket`, zone)
	if err != nil {
		return model.GradientTable{}, fmt.Errorf("failed to aggregate gradient table for zone %d: %w", zone, err)
	}
	defer rows.Close()

	var table model.GradientTable
	for rows.Next() {
		var b model.GradientBucket
		if err := rows.Scan(&b.Delta, &b.Gradient, &b.Count); err != nil {
			return model.GradientTable{}, fmt.Errorf("failed to scan gradient bucket: %w", err)
		}
		table.Buckets = append(table.Buckets, b)
	}
	return table, rows.Err()
}

// SaveReportedState upserts the latest reported state for a zone.
func (s *Store) SaveReportedState(zone int, payload string, updatedAt time.Time) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO reported_state (zone, payload, updated_at) VALUES (?, ?, ?)`,
		zone, payload, updatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save reported state for zone %d: %w", zone, err)
	}
	return nil
}

// LatestReportedState returns the last-saved reported-state payload for
// a zone, if any.
func (s *Store) LatestReportedState(zone int) (string, bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM reported_state WHERE zone = ?`, zone).Scan(&payload)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load reported state for zone %d: %w", zone, err)
	}
	return payload, true, nil
}
