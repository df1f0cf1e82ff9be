// Package schedule resolves a target temperature for a zone at a given
// instant from a weekly schedule plus temporary overrides.
package schedule

import (
	"sort"
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

// Policy is an immutable snapshot of a FullSchedule plus overrides.
// Rebuilt on each refresh; safe to share read-only across zone
// controllers (see internal/multizone's atomic pointer swap).
type Policy struct {
	schedule  model.FullSchedule
	overrides []model.TargetOverride
}

// New builds a Policy from a schedule and its active overrides.
func New(schedule model.FullSchedule, overrides []model.TargetOverride) *Policy {
	return &Policy{schedule: schedule, overrides: overrides}
}

// TargetOverridden reports whether zone has an active override at now.
func (p *Policy) TargetOverridden(now time.Time, zone int) (model.TargetOverride, bool) {
	for _, o := range p.overrides {
		if o.Zone == zone && o.End.After(now) {
			return o, true
		}
	}
	return model.TargetOverride{}, false
}

// Target resolves (now, zone) to a target temperature, or false if
// neither an override nor the schedule covers this instant.
func (p *Policy) Target(now time.Time, zone int) (float64, bool) {
	if o, ok := p.TargetOverridden(now, zone); ok {
		return o.Target, true
	}

	dow := isoWeekday(now)
	day := p.GetDay(dow, zone)
	if len(day) == 0 {
		return 0, false
	}

	tod := model.TimeOfDay{Hour: now.Hour(), Minute: now.Minute()}

	var best *model.ScheduleEntry
	for i := range day {
		e := day[i]
		if e.Time.Compare(tod) <= 0 {
			if best == nil || best.Time.Before(e.Time) {
				entry := e
				best = &entry
			}
		}
	}
	if best == nil {
		return 0, false
	}
	return best.Target, true
}

// GetDay implements the carry-forward rule: a zone's target before its
// first entry-of-the-day is the target of the most recent earlier entry,
// or the week's last entry wrapping around.
func (p *Policy) GetDay(dow int, zone int) []model.ScheduleEntry {
	var zoneEntries []model.ScheduleEntry
	for _, e := range p.schedule.Entries {
		if e.Zone == zone {
			zoneEntries = append(zoneEntries, e)
		}
	}
	if len(zoneEntries) == 0 {
		return nil
	}
	sort.Slice(zoneEntries, func(i, j int) bool {
		return entryLess(zoneEntries[i], zoneEntries[j])
	})

	var dayEntries []model.ScheduleEntry
	for _, e := range zoneEntries {
		if e.Day == dow {
			dayEntries = append(dayEntries, e)
		}
	}

	var candidateBeginning float64
	found := false
	for _, e := range zoneEntries {
		if e.Day < dow {
			candidateBeginning = e.Target
			found = true
		}
	}
	if !found {
		last := zoneEntries[len(zoneEntries)-1]
		candidateBeginning = last.Target
	}

	if len(dayEntries) > 0 && dayEntries[0].Time == model.Midnight {
		return dayEntries
	}

	prefixed := make([]model.ScheduleEntry, 0, len(dayEntries)+1)
	prefixed = append(prefixed, model.ScheduleEntry{
		Day:    dow,
		Time:   model.Midnight,
		Zone:   zone,
		Target: candidateBeginning,
	})
	prefixed = append(prefixed, dayEntries...)
	return prefixed
}

func entryLess(a, b model.ScheduleEntry) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	return a.Time.Before(b.Time)
}

// isoWeekday maps time.Weekday (Sunday=0) to the schedule's Monday=0 scheme.
func isoWeekday(t time.Time) int {
	w := int(t.Weekday())
	return (w + 6) % 7
}
