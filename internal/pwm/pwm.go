// Package pwm implements pulse-width-modulation of an on/off actuator:
// it holds an actuator "on" for a fraction of each fixed period.
package pwm

import "time"

// Actuator receives on/off commands from a PWM cycle.
type Actuator interface {
	On()
	Off()
}

// PWM drives an Actuator with a duty cycle over a fixed period.
type PWM struct {
	actuator Actuator
	period   time.Duration

	dutyCycle   float64
	cycleStart  time.Time
	haveCycle   bool
	onPeriod    time.Duration
	active      bool
}

// New builds a PWM with an initial duty cycle and period.
func New(actuator Actuator, dutyCycle float64, period time.Duration) *PWM {
	return &PWM{
		actuator:  actuator,
		period:    period,
		dutyCycle: clamp01(dutyCycle),
	}
}

// Active reports whether the actuator is currently commanded on.
func (p *PWM) Active() bool {
	return p.active
}

// DutyCycle returns the currently configured duty cycle.
func (p *PWM) DutyCycle() float64 {
	return p.dutyCycle
}

// SetDutyCycle changes the duty cycle and forces a fresh cycle on the
// next Update: a mid-cycle duty change resets cycle_start rather than
// applying the new duty within the cycle already in progress.
func (p *PWM) SetDutyCycle(d float64) {
	p.dutyCycle = clamp01(d)
	p.haveCycle = false
}

// Update advances the PWM state machine to the given instant, issuing
// On()/Off() commands on the actuator as cycle boundaries are crossed.
func (p *PWM) Update(now time.Time) {
	if !p.haveCycle || !now.Before(p.cycleStart.Add(p.period)) {
		p.cycleStart = now
		p.haveCycle = true
		p.onPeriod = time.Duration(float64(p.period) * p.dutyCycle)
		if p.onPeriod > 0 {
			p.actuator.On()
			p.active = true
		} else {
			p.actuator.Off()
			p.active = false
		}
		return
	}

	if p.active && !now.Before(p.cycleStart.Add(p.onPeriod)) {
		p.actuator.Off()
		p.active = false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
