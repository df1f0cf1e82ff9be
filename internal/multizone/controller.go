// Package multizone owns the fleet of per-zone controllers: it keeps a
// lock-free snapshot of the current schedule policy, refreshes it on a
// fixed interval (and on demand, e.g. an MQTT schedule-changed event),
// and forwards each outer tick to every zone controller.
package multizone

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heatcore/internal/model"
	"github.com/thatsimonsguy/heatcore/internal/schedule"
)

// ScheduleSource fetches the full schedule plus active overrides from
// the control plane.
type ScheduleSource interface {
	FetchSchedule(ctx context.Context) (model.FullSchedule, []model.TargetOverride, error)
}

// ZoneController is the narrow surface multizone needs from a zone's
// orchestrator.
type ZoneController interface {
	Iteration(ctx context.Context, policy *schedule.Policy, now time.Time)
}

// ScheduleRefreshInterval is the SCHEDULER_UPDATE_INTERVAL (§4.9).
const ScheduleRefreshInterval = 60 * time.Second

// Controller fans a shared schedule policy and a 1Hz tick out to every
// zone controller.
type Controller struct {
	source ScheduleSource
	zones  []ZoneController

	policy atomic.Pointer[schedule.Policy]

	lastRefresh time.Time
}

// New builds a Controller over the given zone controllers.
func New(source ScheduleSource, zones []ZoneController) *Controller {
	return &Controller{source: source, zones: zones}
}

// RefreshPolicy fetches the schedule and atomically swaps the policy
// snapshot read by Tick. Safe to call concurrently with Tick (§5).
func (c *Controller) RefreshPolicy(ctx context.Context, now time.Time) error {
	sched, overrides, err := c.source.FetchSchedule(ctx)
	if err != nil {
		return err
	}
	c.policy.Store(schedule.New(sched, overrides))
	c.lastRefresh = now
	return nil
}

// Tick runs one outer iteration: it refreshes the policy if the refresh
// interval has elapsed, then forwards now to every zone controller
// using whatever policy snapshot is currently available. If no
// snapshot has ever been loaded, the tick is skipped entirely and
// logged, since no zone can resolve a target without one.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	if now.Sub(c.lastRefresh) >= ScheduleRefreshInterval {
		if err := c.RefreshPolicy(ctx, now); err != nil {
			log.Error().Err(err).Msg("failed to refresh schedule policy, keeping previous snapshot")
		}
	}

	policy := c.policy.Load()
	if policy == nil {
		log.Warn().Msg("no schedule policy available yet, skipping tick")
		return
	}

	for _, zc := range c.zones {
		zc.Iteration(ctx, policy, now)
	}
}

// Run drives Tick once per second until ctx is cancelled, matching the
// original daemon's 1Hz control loop.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Tick(ctx, now)
		}
	}
}
