package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

func jsonReader(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal test body: %v", err)
	}
	return bytes.NewReader(b)
}

type fakeStore struct {
	zones     []model.Zone
	sensors   []model.Sensor
	schedule  model.FullSchedule
	overrides []model.TargetOverride
	table     model.GradientTable

	insertedSamples []model.GradientSample
	savedStates     map[int]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{savedStates: map[int]string{}}
}

func (f *fakeStore) LoadZones() ([]model.Zone, error)       { return f.zones, nil }
func (f *fakeStore) LoadSensors() ([]model.Sensor, error)   { return f.sensors, nil }
func (f *fakeStore) LoadSchedule() (model.FullSchedule, error) { return f.schedule, nil }
func (f *fakeStore) LoadOverrides() ([]model.TargetOverride, error) { return f.overrides, nil }
func (f *fakeStore) GradientTable(zone int) (model.GradientTable, error) { return f.table, nil }
func (f *fakeStore) InsertGradientSample(sample model.GradientSample) error {
	f.insertedSamples = append(f.insertedSamples, sample)
	return nil
}
func (f *fakeStore) SaveReportedState(zone int, payload string, updatedAt time.Time) error {
	f.savedStates[zone] = payload
	return nil
}

func TestHandleSchedule_GroupsEntriesByDayAndFiltersExpiredOverrides(t *testing.T) {
	store := newFakeStore()
	store.schedule = model.FullSchedule{Entries: []model.ScheduleEntry{
		{Day: 0, Time: model.TimeOfDay{Hour: 12, Minute: 0}, Zone: 1, Target: 20},
	}}
	store.overrides = []model.TargetOverride{
		{Zone: 1, End: time.Now().Add(time.Hour), Target: 25},
		{Zone: 2, End: time.Now().Add(-time.Hour), Target: 30},
	}
	srv := New(store)

	req := httptest.NewRequest(http.MethodGet, "/schedule", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)

	overrides := body["target_override"].([]interface{})
	if len(overrides) != 1 {
		t.Fatalf("expected one active override, got %d", len(overrides))
	}

	schedule := body["schedule"].(map[string]interface{})
	if _, ok := schedule["0"]; !ok {
		t.Fatalf("expected day 0 in schedule, got %+v", schedule)
	}
}

func TestHandleZones_ReturnsWireShape(t *testing.T) {
	store := newFakeStore()
	store.zones = []model.Zone{{ID: 1, Name: "living room", BoilerRelay: "0x01", SensorID: 1}}
	srv := New(store)

	req := httptest.NewRequest(http.MethodGet, "/zones", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body []map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if len(body) != 1 || body[0]["name"] != "living room" {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestHandleGradientMeasurements_InsertsSample(t *testing.T) {
	store := newFakeStore()
	srv := New(store)

	req := httptest.NewRequest(http.MethodPost, "/zones/3/gradient_measurements",
		jsonReader(t, map[string]interface{}{"delta": 11, "gradient": 6.0}))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(store.insertedSamples) != 1 || store.insertedSamples[0].Zone != 3 {
		t.Fatalf("unexpected inserted samples: %+v", store.insertedSamples)
	}
}

func TestHandleReportedState_Saves(t *testing.T) {
	store := newFakeStore()
	srv := New(store)

	req := httptest.NewRequest(http.MethodPost, "/zones/1/reported_state",
		jsonReader(t, map[string]interface{}{"mode": "on"}))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := store.savedStates[1]; !ok {
		t.Fatal("expected reported state to be saved for zone 1")
	}
}

func TestHandleGradients_UnknownMethodRejected(t *testing.T) {
	store := newFakeStore()
	srv := New(store)

	req := httptest.NewRequest(http.MethodPost, "/zones/1/gradients", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
