package metrics

import (
	"testing"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

type fakeSink struct {
	gauges map[string]float64
	counts map[string]int64
}

func newFakeSink() *fakeSink {
	return &fakeSink{gauges: map[string]float64{}, counts: map[string]int64{}}
}

func (f *fakeSink) Gauge(name string, value float64, tags ...string) { f.gauges[name] = value }
func (f *fakeSink) Count(name string, value int64, tags ...string)   { f.counts[name] += value }

type fakePublishSink struct {
	published []model.BoilerCommand
	err       error
}

func (f *fakePublishSink) Publish(cmd model.BoilerCommand) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, cmd)
	return nil
}

func TestCountingSink_CountsOnSuccessfulPublish(t *testing.T) {
	sink := &fakePublishSink{}
	m := newFakeSink()
	wrapped := WrapSink(sink, m, "living-room")

	if err := wrapped.Publish(model.CommandOn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.counts[DebouncedCommand] != 1 {
		t.Fatalf("expected one counted command, got %d", m.counts[DebouncedCommand])
	}
}

func TestCountingSink_DoesNotCountOnPublishError(t *testing.T) {
	sink := &fakePublishSink{err: errBoom}
	m := newFakeSink()
	wrapped := WrapSink(sink, m, "living-room")

	if err := wrapped.Publish(model.CommandOn); err == nil {
		t.Fatal("expected the underlying publish error to propagate")
	}
	if m.counts[DebouncedCommand] != 0 {
		t.Fatalf("expected no count on failure, got %d", m.counts[DebouncedCommand])
	}
}

func TestCountingSink_ToleratesNilMetricsSink(t *testing.T) {
	sink := &fakePublishSink{}
	wrapped := WrapSink(sink, nil, "living-room")

	if err := wrapped.Publish(model.CommandOff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}
