// Package httpapi serves the control-plane HTTP contract (§6) over a
// Store: schedule, zones, sensors, gradient tables, gradient samples,
// and reported state. Built on net/http's ServeMux and encoding/json,
// matching boilerio/schedulerweb's route layout; serves the JSON that
// internal/schedulerclient's Client is built to consume.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

// Store is the narrow persistence surface the server needs.
type Store interface {
	LoadZones() ([]model.Zone, error)
	LoadSensors() ([]model.Sensor, error)
	LoadSchedule() (model.FullSchedule, error)
	LoadOverrides() ([]model.TargetOverride, error)
	GradientTable(zone int) (model.GradientTable, error)
	InsertGradientSample(sample model.GradientSample) error
	SaveReportedState(zone int, payload string, updatedAt time.Time) error
}

// Server implements http.Handler over a Store.
type Server struct {
	store Store
	mux   *http.ServeMux
	now   func() time.Time
}

// New builds a Server backed by store.
func New(store Store) *Server {
	s := &Server{store: store, mux: http.NewServeMux(), now: time.Now}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/schedule", s.handleSchedule)
	s.mux.HandleFunc("/zones", s.handleZones)
	s.mux.HandleFunc("/sensor", s.handleSensors)
	s.mux.HandleFunc("/zones/", s.handleZoneSubresource)
}

type scheduleDayEntryOut struct {
	When  string `json:"when"`
	Zones []struct {
		Zone int     `json:"zone"`
		Temp float64 `json:"temp"`
	} `json:"zones"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	schedule, err := s.store.LoadSchedule()
	if err != nil {
		writeError(w, err, "failed to load schedule")
		return
	}
	overrides, err := s.store.LoadOverrides()
	if err != nil {
		writeError(w, err, "failed to load overrides")
		return
	}

	byDayAndTime := map[int]map[string][]struct {
		Zone int     `json:"zone"`
		Temp float64 `json:"temp"`
	}{}
	for _, e := range schedule.Entries {
		when := fmt.Sprintf("%02d:%02d", e.Time.Hour, e.Time.Minute)
		if byDayAndTime[e.Day] == nil {
			byDayAndTime[e.Day] = map[string][]struct {
				Zone int     `json:"zone"`
				Temp float64 `json:"temp"`
			}{}
		}
		byDayAndTime[e.Day][when] = append(byDayAndTime[e.Day][when], struct {
			Zone int     `json:"zone"`
			Temp float64 `json:"temp"`
		}{Zone: e.Zone, Temp: e.Target})
	}

	out := map[string][]scheduleDayEntryOut{}
	for day, byTime := range byDayAndTime {
		key := strconv.Itoa(day)
		var entries []scheduleDayEntryOut
		for when, zones := range byTime {
			entries = append(entries, scheduleDayEntryOut{When: when, Zones: zones})
		}
		out[key] = entries
	}

	now := s.now()
	var activeOverrides []map[string]interface{}
	for _, o := range overrides {
		if o.End.After(now) {
			activeOverrides = append(activeOverrides, map[string]interface{}{
				"zone":  o.Zone,
				"temp":  o.Target,
				"until": o.End.Format("2006-01-02T15:04"),
			})
		}
	}

	writeJSON(w, map[string]interface{}{
		"schedule":        out,
		"target_override": activeOverrides,
	})
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	zones, err := s.store.LoadZones()
	if err != nil {
		writeError(w, err, "failed to load zones")
		return
	}
	out := make([]map[string]interface{}, 0, len(zones))
	for _, z := range zones {
		out = append(out, map[string]interface{}{
			"zone_id": z.ID, "name": z.Name, "boiler_relay": z.BoilerRelay, "sensor_id": z.SensorID,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sensors, err := s.store.LoadSensors()
	if err != nil {
		writeError(w, err, "failed to load sensors")
		return
	}
	out := make([]map[string]interface{}, 0, len(sensors))
	for _, sn := range sensors {
		out = append(out, map[string]interface{}{
			"sensor_id": sn.ID, "name": sn.Name, "locator": sn.Locator,
		})
	}
	writeJSON(w, out)
}

// handleZoneSubresource dispatches /zones/<id>/gradients,
// /zones/<id>/gradient_measurements, and /zones/<id>/reported_state.
func (s *Server) handleZoneSubresource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/zones/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	zoneID, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "invalid zone id", http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "gradients":
		s.handleGradients(w, r, zoneID)
	case "gradient_measurements":
		s.handleGradientMeasurements(w, r, zoneID)
	case "reported_state":
		s.handleReportedState(w, r, zoneID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGradients(w http.ResponseWriter, r *http.Request, zoneID int) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	table, err := s.store.GradientTable(zoneID)
	if err != nil {
		writeError(w, err, "failed to load gradient table")
		return
	}
	out := make([]map[string]interface{}, 0, len(table.Buckets))
	for _, b := range table.Buckets {
		out = append(out, map[string]interface{}{"delta": b.Delta, "gradient": b.Gradient, "npoints": b.Count})
	}
	writeJSON(w, out)
}

func (s *Server) handleGradientMeasurements(w http.ResponseWriter, r *http.Request, zoneID int) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		When     string  `json:"when"`
		Delta    float64 `json:"delta"`
		Gradient float64 `json:"gradient"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	when := s.now()
	if body.When != "" {
		parsed, err := time.Parse(time.RFC3339, body.When)
		if err != nil {
			http.Error(w, "invalid 'when' timestamp", http.StatusBadRequest)
			return
		}
		when = parsed
	}

	sample := model.GradientSample{Zone: zoneID, When: when, Delta: body.Delta, Gradient: body.Gradient}
	if err := s.store.InsertGradientSample(sample); err != nil {
		writeError(w, err, "failed to insert gradient sample")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleReportedState(w http.ResponseWriter, r *http.Request, zoneID int) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := jsonBody(r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.SaveReportedState(zoneID, string(body), s.now()); err != nil {
		writeError(w, err, "failed to save reported state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func jsonBody(r *http.Request) ([]byte, error) {
	var v interface{}
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}
