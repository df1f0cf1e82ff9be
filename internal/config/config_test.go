package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected zerolog.Level
	}{
		{"default to info", "", zerolog.InfoLevel},
		{"debug", "debug", zerolog.DebugLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"unknown", "weird", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := parseLogLevel(tt.input)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func validConfig() Config {
	return Config{
		ControlPlaneURL: "http://control-plane.local",
		MQTT:            MQTTConfig{Host: "broker.local"},
		Sensors: []SensorConfig{
			{SensorID: 1, Name: "living room", Locator: "28-000001"},
		},
		Zones: []ZoneConfig{
			{ZoneID: 1, Name: "living room", BoilerRelay: "0x01", SensorID: 1},
		},
	}
}

func TestConfigValidate_AcceptsAValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NotPanics(t, func() { cfg.validate() })
}

func TestConfigValidate_MissingControlPlaneURL(t *testing.T) {
	cfg := validConfig()
	cfg.ControlPlaneURL = ""

	assert.PanicsWithValue(t,
		"missing required config fields: control_plane_url",
		func() { cfg.validate() },
	)
}

func TestConfigValidate_MissingMQTTHost(t *testing.T) {
	cfg := validConfig()
	cfg.MQTT.Host = ""

	assert.PanicsWithValue(t,
		"missing required config fields: mqtt.host",
		func() { cfg.validate() },
	)
}

func TestConfigValidate_DuplicateZoneID(t *testing.T) {
	cfg := validConfig()
	cfg.Zones = append(cfg.Zones, ZoneConfig{ZoneID: 1, Name: "bedroom", BoilerRelay: "0x02", SensorID: 1})

	assert.Panics(t, func() { cfg.validate() })
}

func TestConfigValidate_DuplicateBoilerRelay(t *testing.T) {
	cfg := validConfig()
	cfg.Zones = append(cfg.Zones, ZoneConfig{ZoneID: 2, Name: "bedroom", BoilerRelay: "0x01", SensorID: 1})

	assert.Panics(t, func() { cfg.validate() })
}

func TestConfigValidate_UnknownSensorReference(t *testing.T) {
	cfg := validConfig()
	cfg.Zones[0].SensorID = 99

	assert.Panics(t, func() { cfg.validate() })
}

func TestConfigValidate_DuplicateSensorID(t *testing.T) {
	cfg := validConfig()
	cfg.Sensors = append(cfg.Sensors, SensorConfig{SensorID: 1, Name: "duplicate", Locator: "28-000002"})

	assert.Panics(t, func() { cfg.validate() })
}
