// Package thermostat implements the per-zone state machine that turns a
// temperature reading and a target into a boiler command: bang-bang far
// from target, PID-driven PWM near it, and a fail-safe stale state.
package thermostat

import (
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
	"github.com/thatsimonsguy/heatcore/internal/pid"
	"github.com/thatsimonsguy/heatcore/internal/pwm"
)

const (
	StalePeriod = 600 * time.Second
	PWMPeriod   = 600 * time.Second
)

// BoilerActuator is the narrow interface the thermostat drives; in
// production it is a boiler command debouncer (internal/debouncer).
type BoilerActuator interface {
	On()
	Off()
}

// StateChangeFunc is invoked whenever the thermostat's mode or duty
// cycle changes.
type StateChangeFunc func(mode model.ThermostatMode, dutyCycle float64)

// Thermostat is a stateful per-zone controller.
type Thermostat struct {
	boiler   BoilerActuator
	onChange StateChangeFunc

	setting  *model.TemperatureSetting
	reading  *model.TempReading
	pidCtrl  *pid.PID
	pwmCtrl  *pwm.PWM

	measurementBegin *time.Time

	mode      model.ThermostatMode
	dutyCycle float64
}

// New builds a Thermostat with no target and no reading: it starts
// Stale.
func New(boiler BoilerActuator, onChange StateChangeFunc) *Thermostat {
	return &Thermostat{
		boiler:   boiler,
		onChange: onChange,
		mode:     model.ModeStale,
	}
}

// Mode returns the thermostat's current mode.
func (t *Thermostat) Mode() model.ThermostatMode {
	return t.mode
}

// DutyCycle returns the thermostat's current duty cycle: the PWM duty
// in the PWM state, 1 in On, and 0 in Off and Stale.
func (t *Thermostat) DutyCycle() float64 {
	return t.dutyCycle
}

// MeasurementBegin returns the start of the current PWM measurement
// window, if the thermostat has ever entered PWM mode.
func (t *Thermostat) MeasurementBegin() (time.Time, bool) {
	if t.measurementBegin == nil {
		return time.Time{}, false
	}
	return *t.measurementBegin, true
}

// Target returns the current target temperature, if any.
func (t *Thermostat) Target() (float64, bool) {
	if t.setting == nil {
		return 0, false
	}
	return t.setting.Target, true
}

// SetTargetTemperature updates the target. A no-op if unchanged;
// otherwise resets the PID with the new setpoint.
func (t *Thermostat) SetTargetTemperature(target float64) {
	if t.setting != nil && t.setting.Target == target {
		return
	}
	setting := model.NewTemperatureSetting(target)
	t.setting = &setting
	if t.pidCtrl == nil {
		t.pidCtrl = pid.New(target)
	} else {
		t.pidCtrl.Reset(target)
	}
}

// ClearTarget drops the current target. A no-op if there already is
// none. The next IntervalElapsed forces Stale, since a nil setting
// always takes that branch.
func (t *Thermostat) ClearTarget() {
	if t.setting == nil {
		return
	}
	t.setting = nil
}

// UpdateTemperature records a new sensor reading.
func (t *Thermostat) UpdateTemperature(reading model.TempReading) {
	t.reading = &reading
}

// IntervalElapsed runs one tick of the state machine at the given
// instant and returns the resulting mode.
func (t *Thermostat) IntervalElapsed(now time.Time) model.ThermostatMode {
	if t.reading == nil || t.setting == nil || t.reading.When.Before(now.Add(-StalePeriod)) {
		t.enterStale()
		return t.mode
	}

	value := t.reading.Temp
	switch {
	case value < t.setting.ZoneMin():
		t.enterOn()
	case value >= t.setting.ZoneMin() && value <= t.setting.ZoneMax():
		t.enterPWM(now, value)
	default:
		t.enterOff()
	}
	return t.mode
}

func (t *Thermostat) enterStale() {
	t.boiler.Off()
	t.notify(model.ModeStale, 0)
}

func (t *Thermostat) enterOn() {
	t.boiler.On()
	t.notify(model.ModeOn, 1)
}

func (t *Thermostat) enterOff() {
	t.boiler.Off()
	t.notify(model.ModeOff, 0)
}

func (t *Thermostat) enterPWM(now time.Time, reading float64) {
	fresh := t.measurementBegin == nil || t.measurementBegin.Add(PWMPeriod).Before(now)
	if fresh {
		begin := now
		t.measurementBegin = &begin
		duty := t.pidCtrl.Update(reading)
		if t.pwmCtrl == nil {
			t.pwmCtrl = pwm.New(boilerActuatorAdapter{t.boiler}, duty, PWMPeriod)
		} else {
			t.pwmCtrl.SetDutyCycle(duty)
		}
	}
	t.pwmCtrl.Update(now)
	t.notify(model.ModePWM, t.pwmCtrl.DutyCycle())
}

func (t *Thermostat) notify(mode model.ThermostatMode, duty float64) {
	changed := mode != t.mode || duty != t.dutyCycle
	t.mode = mode
	t.dutyCycle = duty
	if changed && t.onChange != nil {
		t.onChange(mode, duty)
	}
}

// boilerActuatorAdapter adapts a BoilerActuator to pwm.Actuator (they
// share the same On/Off shape; kept distinct so the thermostat package
// does not leak a pwm.Actuator-typed field to its own callers).
type boilerActuatorAdapter struct {
	boiler BoilerActuator
}

func (a boilerActuatorAdapter) On()  { a.boiler.On() }
func (a boilerActuatorAdapter) Off() { a.boiler.Off() }
