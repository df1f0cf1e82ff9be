package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeedAndLoadZonesAndSensors(t *testing.T) {
	s := newTestStore(t)

	zones := []model.Zone{{ID: 1, Name: "living room", BoilerRelay: "0x01", SensorID: 1}}
	sensors := []model.Sensor{{ID: 1, Name: "living room sensor", Locator: "28-000001"}}
	require.NoError(t, s.SeedZonesAndSensors(zones, sensors))

	gotZones, err := s.LoadZones()
	require.NoError(t, err)
	require.Equal(t, zones, gotZones)

	gotSensors, err := s.LoadSensors()
	require.NoError(t, err)
	require.Equal(t, sensors, gotSensors)
}

func TestCreateScheduleEntry_RejectsUnknownZone(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateScheduleEntry(model.ScheduleEntry{Day: 0, Zone: 99, Target: 20})
	require.Error(t, err)
}

func TestCreateScheduleEntry_AndLoadSchedule(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SeedZonesAndSensors([]model.Zone{{ID: 1, Name: "z1", BoilerRelay: "r1", SensorID: 1}}, nil))

	require.NoError(t, s.CreateScheduleEntry(model.ScheduleEntry{
		Day: 0, Time: model.TimeOfDay{Hour: 12}, Zone: 1, Target: 20,
	}))

	schedule, err := s.LoadSchedule()
	require.NoError(t, err)
	require.Len(t, schedule.Entries, 1)
	require.Equal(t, 20.0, schedule.Entries[0].Target)
}

func TestSaveOverride_DeleteBeforeInsertEnforcesAtMostOnePerZone(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SeedZonesAndSensors([]model.Zone{{ID: 1}}, nil))

	now := time.Now()
	require.NoError(t, s.SaveOverride(model.TargetOverride{Zone: 1, End: now.Add(time.Hour), Target: 22}))
	require.NoError(t, s.SaveOverride(model.TargetOverride{Zone: 1, End: now.Add(2 * time.Hour), Target: 25}))

	overrides, err := s.LoadOverrides()
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	require.Equal(t, 25.0, overrides[0].Target)
}

func TestGradientTable_AggregatesViaSQL(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SeedZonesAndSensors([]model.Zone{{ID: 1}}, nil))

	now := time.Now()
	require.NoError(t, s.InsertGradientSample(model.GradientSample{Zone: 1, When: now, Delta: 5.0, Gradient: 1.0}))
	require.NoError(t, s.InsertGradientSample(model.GradientSample{Zone: 1, When: now, Delta: 5.2, Gradient: 3.0}))
	require.NoError(t, s.InsertGradientSample(model.GradientSample{Zone: 1, When: now, Delta: 10.0, Gradient: 2.0}))

	table, err := s.GradientTable(1)
	require.NoError(t, err)
	require.Len(t, table.Buckets, 2)
	require.Equal(t, 5.0, table.Buckets[0].Delta)
	require.Equal(t, 2, table.Buckets[0].Count)
	require.InDelta(t, 2.0, table.Buckets[0].Gradient, 1e-9)
}

func TestReportedState_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SeedZonesAndSensors([]model.Zone{{ID: 1}}, nil))

	_, ok, err := s.LatestReportedState(1)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SaveReportedState(1, `{"mode":"on"}`, time.Now()))

	payload, ok, err := s.LatestReportedState(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"mode":"on"}`, payload)
}
