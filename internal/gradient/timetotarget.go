package gradient

import (
	"math"
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

// TimeToTarget implements §4.7: given the thermostat is heating, a
// reading, a target, and an outside temperature, estimate how long until
// the target is reached using the nearest gradient bucket. Returns false
// if the preconditions aren't met or the table has no rows.
func TimeToTarget(table model.GradientTable, reading, target, outsideTemp float64) (time.Duration, bool) {
	if target <= reading {
		return 0, false
	}
	if len(table.Buckets) == 0 {
		return 0, false
	}

	deltaT := reading - outsideTemp

	best := table.Buckets[0]
	bestDiff := math.Abs(best.Delta - deltaT)
	for _, b := range table.Buckets[1:] {
		diff := math.Abs(b.Delta - deltaT)
		if diff < bestDiff {
			best = b
			bestDiff = diff
		}
	}

	if best.Gradient <= 0 {
		return 0, false
	}

	hours := (target - reading) / best.Gradient
	return time.Duration(hours * float64(time.Hour)), true
}
