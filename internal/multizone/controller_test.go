package multizone

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
	"github.com/thatsimonsguy/heatcore/internal/schedule"
)

type fakeSource struct {
	sched     model.FullSchedule
	overrides []model.TargetOverride
	err       error
	calls     int
}

func (f *fakeSource) FetchSchedule(ctx context.Context) (model.FullSchedule, []model.TargetOverride, error) {
	f.calls++
	return f.sched, f.overrides, f.err
}

type fakeZone struct {
	ticks []time.Time
}

func (f *fakeZone) Iteration(ctx context.Context, policy *schedule.Policy, now time.Time) {
	f.ticks = append(f.ticks, now)
}

func TestTick_SkipsWithoutAnInitialPolicy(t *testing.T) {
	src := &fakeSource{err: errors.New("control plane unreachable")}
	zone := &fakeZone{}
	c := New(src, []ZoneController{zone})

	c.Tick(context.Background(), time.Now())

	if len(zone.ticks) != 0 {
		t.Fatal("expected no zone ticks without a loaded policy")
	}
}

func TestTick_RefreshesOnFirstCallThenForwardsToZones(t *testing.T) {
	src := &fakeSource{sched: model.FullSchedule{Entries: []model.ScheduleEntry{
		{Day: 0, Time: model.Midnight, Zone: 1, Target: 20},
	}}}
	zone := &fakeZone{}
	c := New(src, []ZoneController{zone})

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Tick(context.Background(), now)

	if src.calls != 1 {
		t.Fatalf("expected one schedule fetch, got %d", src.calls)
	}
	if len(zone.ticks) != 1 {
		t.Fatalf("expected one zone tick, got %d", len(zone.ticks))
	}
}

func TestTick_DoesNotRefetchWithinInterval(t *testing.T) {
	src := &fakeSource{}
	zone := &fakeZone{}
	c := New(src, []ZoneController{zone})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Tick(context.Background(), base)
	c.Tick(context.Background(), base.Add(30*time.Second))

	if src.calls != 1 {
		t.Fatalf("expected the second tick to reuse the cached policy, got %d fetches", src.calls)
	}
	if len(zone.ticks) != 2 {
		t.Fatalf("expected both ticks to reach the zone, got %d", len(zone.ticks))
	}
}

func TestTick_RefetchesAfterRefreshInterval(t *testing.T) {
	src := &fakeSource{}
	zone := &fakeZone{}
	c := New(src, []ZoneController{zone})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Tick(context.Background(), base)
	c.Tick(context.Background(), base.Add(ScheduleRefreshInterval+time.Second))

	if src.calls != 2 {
		t.Fatalf("expected a refetch once the refresh interval elapsed, got %d", src.calls)
	}
}

func TestTick_KeepsPreviousPolicyWhenRefreshFails(t *testing.T) {
	src := &fakeSource{sched: model.FullSchedule{Entries: []model.ScheduleEntry{
		{Day: 0, Time: model.Midnight, Zone: 1, Target: 20},
	}}}
	zone := &fakeZone{}
	c := New(src, []ZoneController{zone})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Tick(context.Background(), base)

	src.err = errors.New("transient failure")
	c.Tick(context.Background(), base.Add(ScheduleRefreshInterval+time.Second))

	if len(zone.ticks) != 2 {
		t.Fatalf("expected the zone to still tick using the stale policy, got %d", len(zone.ticks))
	}
}
