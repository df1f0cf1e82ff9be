// Package zonecontroller implements the per-zone orchestrator (§4.8):
// on each tick it resolves the target from the schedule policy, drives
// the thermostat, refreshes the gradient table and outside weather,
// computes time-to-target, and publishes the reported state on change.
package zonecontroller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heatcore/internal/gradient"
	"github.com/thatsimonsguy/heatcore/internal/metrics"
	"github.com/thatsimonsguy/heatcore/internal/model"
	"github.com/thatsimonsguy/heatcore/internal/schedule"
	"github.com/thatsimonsguy/heatcore/internal/thermostat"
)

// GradientSource fetches a zone's current gradient table from the
// control-plane (schedulerclient).
type GradientSource interface {
	FetchGradients(ctx context.Context, zoneID int) (model.GradientTable, error)
}

// GradientSampler records newly observed gradient samples.
type GradientSampler interface {
	PostGradientSample(ctx context.Context, zoneID int, sample model.GradientSample) error
}

// WeatherSource returns the current cached outside temperature.
type WeatherSource interface {
	GetWeather() (model.WeatherRecord, error)
}

// StatePublisher publishes a zone's reported state on change.
type StatePublisher interface {
	PostReportedState(ctx context.Context, zoneID int, state model.DeviceReportedState) error
}

// GradientTableRefreshInterval bounds how often the zone controller
// refetches the gradient table from the control plane.
const GradientTableRefreshInterval = 5 * time.Minute

// Controller is a single zone's per-tick orchestrator.
type Controller struct {
	zone model.Zone

	mu sync.Mutex

	thermostat *thermostat.Thermostat
	gradient   *gradient.Monitor
	weather    WeatherSource

	gradientSource  GradientSource
	gradientSampler GradientSampler
	publisher       StatePublisher
	metrics         metrics.Sink

	gradientTable       model.GradientTable
	lastGradientRefresh time.Time

	lastPublished *model.DeviceReportedState

	currentTemp *float64
}

// New builds a Controller for zone. metricsSink may be nil, in which
// case metrics are skipped.
func New(
	zone model.Zone,
	therm *thermostat.Thermostat,
	monitor *gradient.Monitor,
	weather WeatherSource,
	gradientSource GradientSource,
	gradientSampler GradientSampler,
	publisher StatePublisher,
	metricsSink metrics.Sink,
) *Controller {
	return &Controller{
		zone:            zone,
		thermostat:      therm,
		gradient:        monitor,
		weather:         weather,
		gradientSource:  gradientSource,
		gradientSampler: gradientSampler,
		publisher:       publisher,
		metrics:         metricsSink,
	}
}

func (c *Controller) zoneTag() string {
	return c.zone.Name
}

// UpdateTemperature is the sensor-update callback (§6, `sensor.<locator>`).
// It is mutually exclusive with Iteration via mu (§5).
func (c *Controller) UpdateTemperature(reading model.TempReading, when time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	temp := reading.Temp
	c.currentTemp = &temp
	c.thermostat.UpdateTemperature(reading)

	if sample, ok := c.gradient.TemperatureUpdate(reading.Temp, when); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.gradientSampler.PostGradientSample(ctx, c.zone.ID, model.GradientSample{
			Zone: c.zone.ID, When: when, Delta: sample.Delta, Gradient: sample.Gradient,
		}); err != nil {
			log.Error().Err(err).Int("zone", c.zone.ID).Msg("failed to post gradient sample")
		}
		if c.metrics != nil {
			c.metrics.Count(metrics.GradientSamples, 1, "zone:"+c.zoneTag())
		}
	}
}

// BoilerEdge is the boiler on/off edge callback, folded into the
// gradient monitor.
func (c *Controller) BoilerEdge(on bool, when time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.gradient.BoilerOn(when)
	} else {
		c.gradient.BoilerOff(when)
	}
}

// Iteration runs one tick (§4.8 steps 1-8). Two ticks for the same zone
// never overlap (mu); a sensor update is mutually exclusive with a tick.
func (c *Controller) Iteration(ctx context.Context, policy *schedule.Policy, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, haveTarget := policy.Target(now, c.zone.ID)
	_, overridden := policy.TargetOverridden(now, c.zone.ID)

	if haveTarget {
		if current, ok := c.thermostat.Target(); !ok || current != target {
			c.thermostat.SetTargetTemperature(target)
		}
	} else {
		c.thermostat.ClearTarget()
	}

	if now.Sub(c.lastGradientRefresh) >= GradientTableRefreshInterval {
		if table, err := c.gradientSource.FetchGradients(ctx, c.zone.ID); err != nil {
			log.Error().Err(err).Int("zone", c.zone.ID).Msg("failed to refresh gradient table, keeping previous")
		} else {
			c.gradientTable = table
			c.lastGradientRefresh = now
		}
	}

	mode := c.thermostat.IntervalElapsed(now)

	var outsideTemp *float64
	if record, err := c.weather.GetWeather(); err != nil {
		log.Warn().Err(err).Int("zone", c.zone.ID).Msg("weather unavailable, time-to-target will be unset")
	} else {
		t := record.Temperature
		outsideTemp = &t
		c.gradient.SetOutsideTemperature(t)
	}

	var timeToTarget *float64
	if mode != model.ModeStale && c.currentTemp != nil && outsideTemp != nil && haveTarget && target > *c.currentTemp {
		if d, ok := gradient.TimeToTarget(c.gradientTable, *c.currentTemp, target, *outsideTemp); ok {
			secs := d.Seconds()
			timeToTarget = &secs
		}
	}

	var targetPtr *float64
	if haveTarget {
		t := target
		targetPtr = &t
	}

	state := model.DeviceReportedState{
		When:             now,
		Zone:             c.zone.ID,
		Mode:             mode,
		Target:           targetPtr,
		CurrentTemp:      c.currentTemp,
		OutsideTemp:      outsideTemp,
		DutyCycle:        c.thermostat.DutyCycle(),
		TimeToTargetSecs: timeToTarget,
		TargetOverridden: overridden,
	}

	if c.lastPublished == nil || !state.Equal(*c.lastPublished) {
		if err := c.publisher.PostReportedState(ctx, c.zone.ID, state); err != nil {
			log.Error().Err(err).Int("zone", c.zone.ID).Msg("failed to publish reported state")
		}
		published := state
		c.lastPublished = &published
	}

	if c.metrics != nil {
		tag := "zone:" + c.zoneTag()
		c.metrics.Gauge(metrics.DutyCycle, state.DutyCycle, tag)
		if state.CurrentTemp != nil {
			c.metrics.Gauge(metrics.IndoorTemp, *state.CurrentTemp, tag)
		}
		if state.OutsideTemp != nil {
			c.metrics.Gauge(metrics.OutsideTemp, *state.OutsideTemp, tag)
		}
		if state.TimeToTargetSecs != nil {
			c.metrics.Gauge(metrics.TimeToTarget, *state.TimeToTargetSecs, tag)
		}
	}
}
