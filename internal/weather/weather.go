// Package weather provides a TTL-caching wrapper over an upstream
// outside-temperature source, and an OpenWeather-style HTTP client.
package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

// ErrUnavailable is returned when there is no cached record and the
// first refresh fails.
type ErrUnavailable struct {
	Cause error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("weather service unavailable: %v", e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// Source fetches a fresh weather record. Implementations block; callers
// should pass a context.Context-bound http.Client where appropriate.
type Source interface {
	FetchWeather() (model.WeatherRecord, error)
}

// DefaultCacheTTL matches the original hourly refresh interval.
const DefaultCacheTTL = time.Hour

// CachedWeather wraps a Source with a TTL cache. On refresh failure it
// returns the stale record rather than propagating the error, except on
// the very first call when there is no cached record yet.
type CachedWeather struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	last       *model.WeatherRecord
	lastUpdate time.Time
}

// New builds a CachedWeather with the default TTL.
func New(source Source) *CachedWeather {
	return &CachedWeather{source: source, ttl: DefaultCacheTTL, now: time.Now}
}

// NewWithTTL builds a CachedWeather with an explicit TTL and clock,
// used in tests.
func NewWithTTL(source Source, ttl time.Duration, nowFn func() time.Time) *CachedWeather {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &CachedWeather{source: source, ttl: ttl, now: nowFn}
}

// GetWeather returns the cached record if still fresh, otherwise
// attempts a refresh. A refresh failure returns the stale record if one
// exists; otherwise it returns ErrUnavailable.
func (c *CachedWeather) GetWeather() (model.WeatherRecord, error) {
	now := c.now()
	if c.last != nil && !c.lastUpdate.Add(c.ttl).Before(now) {
		return *c.last, nil
	}

	record, err := c.source.FetchWeather()
	if err != nil {
		if c.last != nil {
			return *c.last, nil
		}
		return model.WeatherRecord{}, &ErrUnavailable{Cause: err}
	}

	c.last = &record
	c.lastUpdate = now
	return record, nil
}

// OpenWeatherClient fetches current conditions from an OpenWeather-style
// HTTP endpoint, with a per-call 10s timeout.
type OpenWeatherClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	location   string
}

// NewOpenWeatherClient builds a client against the given base URL
// (override in tests; defaults to the real OpenWeather API).
func NewOpenWeatherClient(baseURL, apiKey, location string) *OpenWeatherClient {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	return &OpenWeatherClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		location:   location,
	}
}

type openWeatherResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

// FetchWeather implements Source.
func (c *OpenWeatherClient) FetchWeather() (model.WeatherRecord, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return model.WeatherRecord{}, fmt.Errorf("invalid weather base URL: %w", err)
	}
	q := u.Query()
	q.Set("q", c.location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	u.RawQuery = q.Encode()

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return model.WeatherRecord{}, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.WeatherRecord{}, fmt.Errorf("weather service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.WeatherRecord{}, fmt.Errorf("failed to decode weather response: %w", err)
	}

	return model.WeatherRecord{
		When:        time.Now(),
		Temperature: parsed.Main.Temp,
		Location:    c.location,
	}, nil
}
