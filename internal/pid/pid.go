// Package pid implements the proportional-integral-derivative controller
// that drives the thermostat's PWM duty cycle near a target temperature.
package pid

// Default gains match the tuned values carried over from the original
// heating-loop prototype.
const (
	DefaultKp = 2.8
	DefaultKi = 0.3
	DefaultKd = 1.8

	// MinOutput is the threshold below which output collapses to zero.
	MinOutput = 0.15
)

// PID is a stateful controller. Derivative is taken on the process value
// rather than on the error, which avoids a derivative spike when the
// setpoint changes.
type PID struct {
	Kp, Ki, Kd float64
	setpoint   float64
	minOutput  float64

	integral float64
	lastPV   float64
	havePV   bool
}

// New builds a PID with the default gains and minimum output.
func New(setpoint float64) *PID {
	return NewWithGains(setpoint, DefaultKp, DefaultKi, DefaultKd)
}

// NewWithGains builds a PID with explicit gains and the default minimum
// output.
func NewWithGains(setpoint, kp, ki, kd float64) *PID {
	return &PID{
		Kp:        kp,
		Ki:        ki,
		Kd:        kd,
		setpoint:  setpoint,
		minOutput: MinOutput,
	}
}

// Setpoint returns the controller's current setpoint.
func (p *PID) Setpoint() float64 {
	return p.setpoint
}

// Reset sets a new setpoint and zeroes the integrator and derivative
// history, but preserves the last process value so derivative continuity
// holds across the setpoint change.
func (p *PID) Reset(setpoint float64) {
	p.setpoint = setpoint
	p.integral = 0
}

// Update feeds a new process value and returns the controller output,
// clamped to {0} ∪ [MinOutput, 1].
func (p *PID) Update(pv float64) float64 {
	if !p.havePV {
		p.lastPV = pv
		p.havePV = true
	}

	error := p.setpoint - pv

	p.integral += p.Ki * error
	p.integral = clamp(p.integral, -1, 1)

	diff := pv - p.lastPV
	p.lastPV = pv

	raw := p.Kp*error + p.integral - p.Kd*diff

	if raw < p.minOutput {
		return 0
	}
	return min(raw, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
