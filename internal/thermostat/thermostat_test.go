package thermostat

import (
	"testing"
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

type fakeBoiler struct {
	onCount, offCount int
	commanded         string
}

func (f *fakeBoiler) On()  { f.onCount++; f.commanded = "on" }
func (f *fakeBoiler) Off() { f.offCount++; f.commanded = "off" }

func TestIntervalElapsed_NoReadingIsStale(t *testing.T) {
	now := time.Now()
	b := &fakeBoiler{}
	therm := New(b, nil)
	therm.SetTargetTemperature(20)

	mode := therm.IntervalElapsed(now)

	if mode != model.ModeStale {
		t.Fatalf("expected Stale, got %v", mode)
	}
	if b.commanded != "off" {
		t.Fatalf("expected boiler off, got %v", b.commanded)
	}
}

func TestIntervalElapsed_NoTargetIsStale(t *testing.T) {
	now := time.Now()
	b := &fakeBoiler{}
	therm := New(b, nil)
	therm.UpdateTemperature(model.TempReading{When: now, Temp: 18})

	if mode := therm.IntervalElapsed(now); mode != model.ModeStale {
		t.Fatalf("expected Stale, got %v", mode)
	}
}

func TestIntervalElapsed_StaleReadingOverridesEverything(t *testing.T) {
	now := time.Now()
	b := &fakeBoiler{}
	therm := New(b, nil)
	therm.SetTargetTemperature(20)
	therm.UpdateTemperature(model.TempReading{When: now.Add(-StalePeriod - time.Second), Temp: 10})

	if mode := therm.IntervalElapsed(now); mode != model.ModeStale {
		t.Fatalf("expected Stale for an old reading, got %v", mode)
	}
	if b.commanded != "off" {
		t.Fatal("expected fail-safe off on stale reading")
	}
}

func TestIntervalElapsed_BelowZoneMinTurnsOn(t *testing.T) {
	now := time.Now()
	b := &fakeBoiler{}
	therm := New(b, nil)
	therm.SetTargetTemperature(20)
	therm.UpdateTemperature(model.TempReading{When: now, Temp: 19})

	if mode := therm.IntervalElapsed(now); mode != model.ModeOn {
		t.Fatalf("expected On, got %v", mode)
	}
	if therm.DutyCycle() != 1 {
		t.Fatalf("expected duty 1, got %v", therm.DutyCycle())
	}
}

func TestIntervalElapsed_AboveZoneMaxTurnsOff(t *testing.T) {
	now := time.Now()
	b := &fakeBoiler{}
	therm := New(b, nil)
	therm.SetTargetTemperature(20)
	therm.UpdateTemperature(model.TempReading{When: now, Temp: 21})

	if mode := therm.IntervalElapsed(now); mode != model.ModeOff {
		t.Fatalf("expected Off, got %v", mode)
	}
}

func TestIntervalElapsed_ExactZoneMinIsClosedIntervalPWM(t *testing.T) {
	// The PWM range is the closed interval [zone_min, zone_max].
	now := time.Now()
	b := &fakeBoiler{}
	therm := New(b, nil)
	therm.SetTargetTemperature(20)
	zoneMin := model.NewTemperatureSetting(20).ZoneMin()
	therm.UpdateTemperature(model.TempReading{When: now, Temp: zoneMin})

	if mode := therm.IntervalElapsed(now); mode != model.ModePWM {
		t.Fatalf("expected PWM at exactly zone_min, got %v", mode)
	}
}

func TestIntervalElapsed_FreshPWMSetsMeasurementBeginToNow(t *testing.T) {
	now := time.Now()
	b := &fakeBoiler{}
	therm := New(b, nil)
	therm.SetTargetTemperature(20)
	therm.UpdateTemperature(model.TempReading{When: now, Temp: 20.0})

	mode := therm.IntervalElapsed(now)
	if mode != model.ModePWM {
		t.Fatalf("expected PWM, got %v", mode)
	}
	begin, ok := therm.MeasurementBegin()
	if !ok || !begin.Equal(now) {
		t.Fatalf("expected measurement_begin == now, got %v (ok=%v)", begin, ok)
	}
}

func TestSetTargetTemperature_NoopWhenUnchanged(t *testing.T) {
	b := &fakeBoiler{}
	therm := New(b, nil)
	therm.SetTargetTemperature(20)
	therm.UpdateTemperature(model.TempReading{When: time.Now(), Temp: 19.8})
	therm.IntervalElapsed(time.Now())

	therm.SetTargetTemperature(20) // no-op

	target, ok := therm.Target()
	if !ok || target != 20 {
		t.Fatalf("expected target still 20, got %v", target)
	}
}

func TestClearTarget_ForcesStaleOnNextInterval(t *testing.T) {
	now := time.Now()
	b := &fakeBoiler{}
	therm := New(b, nil)
	therm.SetTargetTemperature(20)
	therm.UpdateTemperature(model.TempReading{When: now, Temp: 19})
	if mode := therm.IntervalElapsed(now); mode != model.ModeOn {
		t.Fatalf("expected On before clearing target, got %v", mode)
	}

	therm.ClearTarget()

	if _, ok := therm.Target(); ok {
		t.Fatal("expected no target after ClearTarget")
	}
	if mode := therm.IntervalElapsed(now); mode != model.ModeStale {
		t.Fatalf("expected Stale once the target is cleared, got %v", mode)
	}
	if b.commanded != "off" {
		t.Fatalf("expected boiler off once stale, got %v", b.commanded)
	}
}

func TestClearTarget_NoopWhenAlreadyUnset(t *testing.T) {
	b := &fakeBoiler{}
	therm := New(b, nil)

	therm.ClearTarget()

	if _, ok := therm.Target(); ok {
		t.Fatal("expected no target")
	}
}

func TestIntervalElapsed_StateChangeCallbackFiresOnlyOnChange(t *testing.T) {
	now := time.Now()
	b := &fakeBoiler{}
	var calls []model.ThermostatMode
	therm := New(b, func(mode model.ThermostatMode, duty float64) {
		calls = append(calls, mode)
	})
	therm.SetTargetTemperature(20)
	therm.UpdateTemperature(model.TempReading{When: now, Temp: 21})

	therm.IntervalElapsed(now)
	therm.IntervalElapsed(now.Add(time.Second))

	if len(calls) != 1 {
		t.Fatalf("expected exactly one callback invocation, got %d", len(calls))
	}
}
