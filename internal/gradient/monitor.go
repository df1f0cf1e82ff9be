// Package gradient implements the per-zone heating-gradient learner: it
// samples how fast the building warms up, indexed by indoor-outdoor
// temperature delta, while the boiler is on.
package gradient

import (
	"math"
	"sort"
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

const (
	// DefaultWarmup is the time after boiler-on before the first sample
	// is captured.
	DefaultWarmup = 600 * time.Second
	// CaptureWindow is the minimum elapsed time between the first and
	// second sample of a measurement.
	CaptureWindow = 10 * time.Minute
)

type captureMode int

const (
	captureFirst captureMode = iota
	captureInterval
)

// Sample is the (delta, gradient) pair emitted when a measurement
// window completes.
type Sample struct {
	Delta    float64
	Gradient float64
}

// Monitor is a single zone's gradient learner.
type Monitor struct {
	warmup time.Duration

	mode captureMode

	boilerOnTime *time.Time

	firstTemp *float64
	firstTime *time.Time

	outsideTemp *float64
}

// New builds a Monitor with the default warmup interval.
func New() *Monitor {
	return &Monitor{warmup: DefaultWarmup, mode: captureFirst}
}

// NewWithWarmup builds a Monitor with an explicit warmup interval, used
// in tests.
func NewWithWarmup(warmup time.Duration) *Monitor {
	return &Monitor{warmup: warmup, mode: captureFirst}
}

// SetOutsideTemperature records the latest known outside temperature.
func (m *Monitor) SetOutsideTemperature(value float64) {
	m.outsideTemp = &value
}

// BoilerOn records a boiler-on edge; a no-op if already on.
func (m *Monitor) BoilerOn(when time.Time) {
	if m.boilerOnTime == nil {
		t := when
		m.boilerOnTime = &t
	}
}

// BoilerOff clears the boiler-on edge.
func (m *Monitor) BoilerOff(time.Time) {
	m.boilerOnTime = nil
}

// TemperatureUpdate feeds a new indoor reading and returns a sample if a
// measurement window just completed.
func (m *Monitor) TemperatureUpdate(temp float64, when time.Time) (Sample, bool) {
	if m.boilerOnTime == nil || m.outsideTemp == nil {
		return Sample{}, false
	}

	switch m.mode {
	case captureFirst:
		if when.Sub(*m.boilerOnTime) > m.warmup {
			t := temp
			ft := when
			m.firstTemp = &t
			m.firstTime = &ft
			m.mode = captureInterval
		}
		return Sample{}, false

	case captureInterval:
		if when.Sub(*m.firstTime) > CaptureWindow {
			deltaTemp := temp - *m.firstTemp
			deltaTimeHours := when.Sub(*m.firstTime).Hours()
			sample := Sample{
				Delta:    *m.firstTemp - *m.outsideTemp,
				Gradient: deltaTemp / deltaTimeHours,
			}
			m.mode = captureFirst
			return sample, true
		}
		return Sample{}, false
	}
	return Sample{}, false
}

// Bucket rounds a delta to the nearest half-degree, matching the
// GradientTable aggregation key.
func Bucket(delta float64) float64 {
	return math.Round(2*delta) / 2
}

// AggregateTable builds a GradientTable from a flat list of samples,
// bucketed by half-degree rounding and averaged, sorted by bucket. This
// mirrors the SQL GROUP BY/AVG aggregation internal/store performs over
// persisted samples.
func AggregateTable(samples []model.GradientSample) model.GradientTable {
	type acc struct {
		sum   float64
		count int
	}
	buckets := map[float64]*acc{}
	for _, s := range samples {
		key := Bucket(s.Delta)
		a, ok := buckets[key]
		if !ok {
			a = &acc{}
			buckets[key] = a
		}
		a.sum += s.Gradient
		a.count++
	}

	keys := make([]float64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	table := model.GradientTable{}
	for _, k := range keys {
		a := buckets[k]
		table.Buckets = append(table.Buckets, model.GradientBucket{
			Delta:    k,
			Gradient: a.sum / float64(a.count),
			Count:    a.count,
		})
	}
	return table
}
