// Package model holds the plain data types shared across the heating
// core: zones and sensors, schedule entries and overrides, and the
// reported-state snapshot published to the control plane.
package model

import "time"

// ThermostatMode is the state of a per-zone thermostat state machine.
type ThermostatMode string

const (
	ModeStale ThermostatMode = "stale"
	ModeOn    ThermostatMode = "on"
	ModePWM   ThermostatMode = "pwm"
	ModeOff   ThermostatMode = "off"
)

// BoilerCommand is the symbolic command published to the boiler relay.
type BoilerCommand string

const (
	CommandOn  BoilerCommand = "O"
	CommandOff BoilerCommand = "X"
)

// Zone is an independently controlled heating area.
type Zone struct {
	ID          int    `json:"zone_id"`
	Name        string `json:"name"`
	BoilerRelay string `json:"boiler_relay"`
	SensorID    int    `json:"sensor_id"`
}

// Sensor is a temperature sensor subscribed to on the message bus.
type Sensor struct {
	ID      int    `json:"sensor_id"`
	Name    string `json:"name"`
	Locator string `json:"locator"`
}

// TempReading is a single temperature sample.
type TempReading struct {
	When time.Time
	Temp float64
}

// ScheduleEntry is one weekly schedule row. Day 0 is Monday.
type ScheduleEntry struct {
	Day    int
	Time   TimeOfDay
	Zone   int
	Target float64
}

// TimeOfDay is a wall-clock time within a day, minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	if t.Hour != other.Hour {
		return t.Hour < other.Hour
	}
	return t.Minute < other.Minute
}

// Compare returns -1, 0, or 1 as t is before, equal to, or after other.
func (t TimeOfDay) Compare(other TimeOfDay) int {
	switch {
	case t.Before(other):
		return -1
	case other.Before(t):
		return 1
	default:
		return 0
	}
}

// Midnight is 00:00.
var Midnight = TimeOfDay{Hour: 0, Minute: 0}

// FullSchedule is the complete weekly schedule, unsorted on construction;
// callers that need ordering use the accessors on schedule.Policy.
type FullSchedule struct {
	Entries []ScheduleEntry
}

// TargetOverride is a temporary target replacing the schedule until End.
type TargetOverride struct {
	Zone   int
	End    time.Time
	Target float64
}

// TemperatureSetting derives the PWM band around a center target.
type TemperatureSetting struct {
	Target   float64
	Width    float64 // default 0.6
}

// DefaultZoneWidth is the default PWM deadband width in degrees C.
const DefaultZoneWidth = 0.6

// NewTemperatureSetting builds a TemperatureSetting with the default width.
func NewTemperatureSetting(target float64) TemperatureSetting {
	return TemperatureSetting{Target: target, Width: DefaultZoneWidth}
}

// ZoneMin is the lower bound of the PWM deadband, inclusive.
func (s TemperatureSetting) ZoneMin() float64 {
	return s.Target - s.Width/2
}

// ZoneMax is the upper bound of the PWM deadband, inclusive.
func (s TemperatureSetting) ZoneMax() float64 {
	return s.Target + s.Width/2
}

// GradientSample is one observed indoor warm-rate measurement.
type GradientSample struct {
	Zone     int
	When     time.Time
	Delta    float64
	Gradient float64
}

// GradientBucket is one row of a per-zone GradientTable.
type GradientBucket struct {
	Delta    float64
	Gradient float64
	Count    int
}

// GradientTable is the bucketed learning output for a zone.
type GradientTable struct {
	Buckets []GradientBucket
}

// DeviceReportedState is the per-zone snapshot published to the control
// plane after each tick that changes it.
type DeviceReportedState struct {
	When             time.Time      `json:"when"`
	Zone             int            `json:"zone"`
	Mode             ThermostatMode `json:"mode"`
	Target           *float64       `json:"target"`
	CurrentTemp      *float64       `json:"current_temp"`
	OutsideTemp      *float64       `json:"outside_temp"`
	DutyCycle        float64        `json:"duty_cycle"`
	TimeToTargetSecs *float64       `json:"time_to_target_seconds"`
	TargetOverridden bool           `json:"target_overridden"`
}

// Equal reports whether two reported states carry the same observable
// fields, ignoring the timestamp (used to decide whether to republish).
func (s DeviceReportedState) Equal(o DeviceReportedState) bool {
	if s.Zone != o.Zone || s.Mode != o.Mode || s.DutyCycle != o.DutyCycle || s.TargetOverridden != o.TargetOverridden {
		return false
	}
	if !floatPtrEqual(s.Target, o.Target) || !floatPtrEqual(s.CurrentTemp, o.CurrentTemp) ||
		!floatPtrEqual(s.OutsideTemp, o.OutsideTemp) || !floatPtrEqual(s.TimeToTargetSecs, o.TimeToTargetSecs) {
		return false
	}
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return *a == *b
}

// WeatherRecord is a single cached outside-temperature observation.
type WeatherRecord struct {
	When        time.Time
	Temperature float64
	Location    string
}
