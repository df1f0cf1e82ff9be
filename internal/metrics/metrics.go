// Package metrics emits per-zone gauges and counters to Datadog via an
// injectable client, so zone controllers can be tested without a real
// agent.
package metrics

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

// Sink is the narrow surface zone controllers emit metrics through.
type Sink interface {
	Gauge(name string, value float64, tags ...string)
	Count(name string, value int64, tags ...string)
}

// Client wraps a DogStatsD connection.
type Client struct {
	dogstatsd *statsd.Client
}

// New connects to the Datadog agent at addr. A failed connection logs
// a warning and returns a Client whose calls are silently no-ops, so a
// missing agent never breaks zone control.
func New(addr, namespace string, tags []string) *Client {
	dogstatsd, err := statsd.New(addr)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create DogStatsD client, metrics disabled")
		return &Client{}
	}
	dogstatsd.Namespace = namespace
	dogstatsd.Tags = tags

	log.Info().Str("addr", addr).Str("namespace", namespace).Strs("tags", tags).Msg("datadog metrics initialized")
	return &Client{dogstatsd: dogstatsd}
}

// Gauge implements Sink.
func (c *Client) Gauge(name string, value float64, tags ...string) {
	if c.dogstatsd == nil {
		return
	}
	if err := c.dogstatsd.Gauge(name, value, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("failed to emit gauge metric")
	}
}

// Count implements Sink.
func (c *Client) Count(name string, value int64, tags ...string) {
	if c.dogstatsd == nil {
		return
	}
	if err := c.dogstatsd.Count(name, value, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("failed to emit count metric")
	}
}

// PublishSink is the narrow surface a debouncer.Sink exposes; declared
// here rather than imported to avoid a dependency on internal/debouncer.
type PublishSink interface {
	Publish(cmd model.BoilerCommand) error
}

// CountingSink wraps a PublishSink and counts each command that
// actually reaches the transport, i.e. each one the debouncer decided
// was not a repeat. Errors still propagate to the caller unchanged.
type CountingSink struct {
	sink    PublishSink
	metrics Sink
	zone    string
}

// WrapSink builds a CountingSink bound to a zone tag.
func WrapSink(sink PublishSink, m Sink, zone string) CountingSink {
	return CountingSink{sink: sink, metrics: m, zone: zone}
}

// Publish implements debouncer.Sink.
func (c CountingSink) Publish(cmd model.BoilerCommand) error {
	if err := c.sink.Publish(cmd); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.Count(DebouncedCommand, 1, "zone:"+c.zone, "command:"+string(cmd))
	}
	return nil
}

// Metric names emitted by the zone controller.
const (
	DutyCycle        = "heatcore.zone.duty_cycle"
	IndoorTemp       = "heatcore.zone.indoor_temp"
	OutsideTemp      = "heatcore.zone.outside_temp"
	TimeToTarget     = "heatcore.zone.time_to_target_seconds"
	GradientSamples  = "heatcore.zone.gradient_samples"
	DebouncedCommand = "heatcore.zone.boiler_commands"
)
