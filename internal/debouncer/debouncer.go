// Package debouncer wraps a boiler command sink so that repeated
// identical commands are collapsed, while guaranteeing the command is
// eventually reissued over a lossy transport.
package debouncer

import (
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

// ReissueTimeout is the maximum interval between republications of an
// unchanged command.
const ReissueTimeout = 120 * time.Second

// Sink publishes a boiler command. Implementations are typically a
// message-bus publisher (internal/mqtt).
type Sink interface {
	Publish(cmd model.BoilerCommand) error
}

// Debouncer is the §4.4 boiler command debouncer. It also satisfies
// thermostat.BoilerActuator via On()/Off().
type Debouncer struct {
	sink Sink
	now  func() time.Time

	lastCmd     model.BoilerCommand
	lastCmdTime time.Time
	haveCmd     bool
}

// New builds a Debouncer publishing through sink. nowFn defaults to
// time.Now if nil.
func New(sink Sink, nowFn func() time.Time) *Debouncer {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Debouncer{sink: sink, now: nowFn}
}

// Command publishes cmd iff it differs from the last published command,
// or the last publication is older than ReissueTimeout.
func (d *Debouncer) Command(cmd model.BoilerCommand) error {
	now := d.now()
	if d.haveCmd && cmd == d.lastCmd && now.Sub(d.lastCmdTime) < ReissueTimeout {
		return nil
	}
	if err := d.sink.Publish(cmd); err != nil {
		return err
	}
	d.lastCmd = cmd
	d.lastCmdTime = now
	d.haveCmd = true
	return nil
}

// On is a thermostat.BoilerActuator adapter for CommandOn.
func (d *Debouncer) On() { _ = d.Command(model.CommandOn) }

// Off is a thermostat.BoilerActuator adapter for CommandOff.
func (d *Debouncer) Off() { _ = d.Command(model.CommandOff) }
