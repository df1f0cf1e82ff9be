// Package config loads and validates the daemon's configuration: a
// JSON file for the bulk of the settings, flags for paths and log
// level, decoded and then validated; invalid configuration panics at
// startup.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
)

// ZoneConfig seeds a zone's identity and message-bus wiring.
type ZoneConfig struct {
	ZoneID      int    `json:"zone_id"`
	Name        string `json:"name"`
	BoilerRelay string `json:"boiler_relay"`
	SensorID    int    `json:"sensor_id"`
}

// SensorConfig seeds a sensor's message-bus locator.
type SensorConfig struct {
	SensorID int    `json:"sensor_id"`
	Name     string `json:"name"`
	Locator  string `json:"locator"`
}

// MQTTConfig holds the message-bus connection settings.
type MQTTConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
}

// WeatherConfig holds the outside-temperature source settings.
type WeatherConfig struct {
	APIKey   string `json:"api_key"`
	Location string `json:"location"`
}

// DatadogConfig holds the metrics sink settings.
type DatadogConfig struct {
	AgentAddr string   `json:"agent_addr"`
	Namespace string   `json:"namespace"`
	Tags      []string `json:"tags"`
}

// Config is the daemon's full runtime configuration.
type Config struct {
	ConfigFile    string
	StateFile     string
	ZoneCacheFile string
	DBPath        string
	LogLevel      zerolog.Level

	ControlPlaneURL      string `json:"control_plane_url" config:"required"`
	ControlPlaneUser     string `json:"control_plane_user"`
	ControlPlanePassword string `json:"control_plane_password"`

	MQTT    MQTTConfig    `json:"mqtt"`
	Weather WeatherConfig `json:"weather"`
	Datadog DatadogConfig `json:"datadog"`

	Zones   []ZoneConfig   `json:"zones"`
	Sensors []SensorConfig `json:"sensors"`
}

// Load parses flags, reads and decodes the config file, and validates
// it. Panics on any failure; this process is not meant to run with bad
// configuration.
func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to the daemon config file")
	flag.StringVar(&cfg.StateFile, "state-file", "data/state.db", "Path to the sqlite store")
	flag.StringVar(&cfg.ZoneCacheFile, "zone-cache-file", "data/zones.json", "Path to the local zone/sensor fallback cache")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)
	cfg.DBPath = cfg.StateFile

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("failed to open config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("failed to parse config file: " + err.Error())
	}

	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "heatcore"
	}

	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// validate scans Config's string fields tagged `config:"required"` for
// zero values, then checks zone/sensor reference integrity and
// relay/ID uniqueness.
func (cfg *Config) validate() {
	var missingFields []string

	v := reflect.ValueOf(*cfg)
	t := reflect.TypeOf(*cfg)
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Tag.Get("config") != "required" {
			continue
		}
		if v.Field(i).String() == "" {
			missingFields = append(missingFields, t.Field(i).Tag.Get("json"))
		}
	}
	if len(missingFields) > 0 {
		panic("missing required config fields: " + strings.Join(missingFields, ", "))
	}
	if cfg.MQTT.Host == "" {
		panic("missing required config fields: mqtt.host")
	}

	var problems []string

	sensorsByID := map[int]SensorConfig{}
	for _, s := range cfg.Sensors {
		if existing, ok := sensorsByID[s.SensorID]; ok {
			problems = append(problems, fmt.Sprintf("duplicate sensor_id %d (%s and %s)", s.SensorID, existing.Name, s.Name))
			continue
		}
		sensorsByID[s.SensorID] = s
	}

	usedRelays := map[string]string{}
	zoneNames := map[int]string{}
	for _, z := range cfg.Zones {
		if existing, ok := zoneNames[z.ZoneID]; ok {
			problems = append(problems, fmt.Sprintf("duplicate zone_id %d (%s and %s)", z.ZoneID, existing, z.Name))
		}
		zoneNames[z.ZoneID] = z.Name

		if other, ok := usedRelays[z.BoilerRelay]; ok {
			problems = append(problems, fmt.Sprintf("zones %s and %s both use boiler_relay %s", other, z.Name, z.BoilerRelay))
		} else {
			usedRelays[z.BoilerRelay] = z.Name
		}

		if _, ok := sensorsByID[z.SensorID]; !ok {
			problems = append(problems, fmt.Sprintf("zone %s references unknown sensor_id %d", z.Name, z.SensorID))
		}
	}

	if len(problems) > 0 {
		panic("invalid configuration: " + strings.Join(problems, "; "))
	}
}
