// Package schedulerclient is the core's outbound implementation of the
// control-plane HTTP contract (§6): fetching the schedule, zones,
// sensors and gradient tables, and posting gradient samples and reported
// state. A timeout-bound *http.Client with JSON marshal/unmarshal and
// wrapped errors, matching boilerio/scheduler.py / schedulerweb's wire
// contract.
package schedulerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

// Timeout is the per-call budget mandated by §5.
const Timeout = 10 * time.Second

// BasicAuth holds optional HTTP-basic credentials, grounded on
// boilerio/monitor.py main()'s HTTPBasicAuth usage.
type BasicAuth struct {
	Username string
	Password string
}

// Client is the HTTP scheduler client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       *BasicAuth
}

// New builds a Client against baseURL, with optional basic auth.
func New(baseURL string, auth *BasicAuth) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: Timeout},
		baseURL:    baseURL,
		auth:       auth,
	}
}

type scheduleDayEntry struct {
	When  string `json:"when"`
	Zones []struct {
		Zone int     `json:"zone"`
		Temp float64 `json:"temp"`
	} `json:"zones"`
}

type scheduleResponse struct {
	Schedule       map[string][]scheduleDayEntry `json:"schedule"`
	TargetOverride []struct {
		Zone  int     `json:"zone"`
		Temp  float64 `json:"temp"`
		Until string  `json:"until"`
	} `json:"target_override"`
}

// FetchSchedule retrieves GET /schedule and decodes it into a
// FullSchedule plus the active overrides.
func (c *Client) FetchSchedule(ctx context.Context) (model.FullSchedule, []model.TargetOverride, error) {
	var resp scheduleResponse
	if err := c.getJSON(ctx, "/schedule", &resp); err != nil {
		return model.FullSchedule{}, nil, err
	}

	var schedule model.FullSchedule
	for dayStr, entries := range resp.Schedule {
		var day int
		if _, err := fmt.Sscanf(dayStr, "%d", &day); err != nil {
			return model.FullSchedule{}, nil, fmt.Errorf("invalid schedule day key %q: %w", dayStr, err)
		}
		for _, e := range entries {
			var hour, minute int
			if _, err := fmt.Sscanf(e.When, "%d:%d", &hour, &minute); err != nil {
				return model.FullSchedule{}, nil, fmt.Errorf("invalid schedule time %q: %w", e.When, err)
			}
			for _, z := range e.Zones {
				schedule.Entries = append(schedule.Entries, model.ScheduleEntry{
					Day:    day,
					Time:   model.TimeOfDay{Hour: hour, Minute: minute},
					Zone:   z.Zone,
					Target: z.Temp,
				})
			}
		}
	}

	var overrides []model.TargetOverride
	for _, o := range resp.TargetOverride {
		until, err := time.Parse("2006-01-02T15:04", o.Until)
		if err != nil {
			return model.FullSchedule{}, nil, fmt.Errorf("invalid override until %q: %w", o.Until, err)
		}
		overrides = append(overrides, model.TargetOverride{Zone: o.Zone, End: until, Target: o.Temp})
	}

	return schedule, overrides, nil
}

type zoneResponse struct {
	ZoneID      int    `json:"zone_id"`
	Name        string `json:"name"`
	BoilerRelay string `json:"boiler_relay"`
	SensorID    int    `json:"sensor_id"`
}

// FetchZones retrieves GET /zones.
func (c *Client) FetchZones(ctx context.Context) ([]model.Zone, error) {
	var resp []zoneResponse
	if err := c.getJSON(ctx, "/zones", &resp); err != nil {
		return nil, err
	}
	zones := make([]model.Zone, 0, len(resp))
	for _, z := range resp {
		zones = append(zones, model.Zone{ID: z.ZoneID, Name: z.Name, BoilerRelay: z.BoilerRelay, SensorID: z.SensorID})
	}
	return zones, nil
}

type sensorResponse struct {
	SensorID int    `json:"sensor_id"`
	Name     string `json:"name"`
	Locator  string `json:"locator"`
}

// FetchSensors retrieves GET /sensor.
func (c *Client) FetchSensors(ctx context.Context) ([]model.Sensor, error) {
	var resp []sensorResponse
	if err := c.getJSON(ctx, "/sensor", &resp); err != nil {
		return nil, err
	}
	sensors := make([]model.Sensor, 0, len(resp))
	for _, s := range resp {
		sensors = append(sensors, model.Sensor{ID: s.SensorID, Name: s.Name, Locator: s.Locator})
	}
	return sensors, nil
}

type gradientResponse struct {
	Delta    float64 `json:"delta"`
	Gradient float64 `json:"gradient"`
	NPoints  int     `json:"npoints"`
}

// FetchGradients retrieves GET /zones/<id>/gradients.
func (c *Client) FetchGradients(ctx context.Context, zoneID int) (model.GradientTable, error) {
	var resp []gradientResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/zones/%d/gradients", zoneID), &resp); err != nil {
		return model.GradientTable{}, err
	}
	table := model.GradientTable{}
	for _, r := range resp {
		table.Buckets = append(table.Buckets, model.GradientBucket{Delta: r.Delta, Gradient: r.Gradient, Count: r.NPoints})
	}
	return table, nil
}

// PostGradientSample posts POST /zones/<id>/gradient_measurements.
func (c *Client) PostGradientSample(ctx context.Context, zoneID int, sample model.GradientSample) error {
	body := map[string]interface{}{
		"when":     sample.When.Format(time.RFC3339),
		"delta":    sample.Delta,
		"gradient": sample.Gradient,
	}
	return c.postJSON(ctx, fmt.Sprintf("/zones/%d/gradient_measurements", zoneID), body)
}

// PostReportedState posts POST /zones/<id>/reported_state.
func (c *Client) PostReportedState(ctx context.Context, zoneID int, state model.DeviceReportedState) error {
	return c.postJSON(ctx, fmt.Sprintf("/zones/%d/reported_state", zoneID), state)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) applyAuth(req *http.Request) {
	if c.auth != nil {
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	}
}
