package gradient

import (
	"testing"
	"time"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

func TestTimeToTarget_WorkedExample(t *testing.T) {
	table := model.GradientTable{Buckets: []model.GradientBucket{
		{Delta: 5, Gradient: 1.0, Count: 1},
	}}

	got, ok := TimeToTarget(table, 15, 20, 5)
	if !ok {
		t.Fatal("expected an estimate")
	}
	if got != 5*time.Hour {
		t.Fatalf("expected 5h, got %v", got)
	}
}

func TestTimeToTarget_NoneWhenAlreadyAtOrAboveTarget(t *testing.T) {
	table := model.GradientTable{Buckets: []model.GradientBucket{{Delta: 5, Gradient: 1.0}}}
	if _, ok := TimeToTarget(table, 20, 20, 5); ok {
		t.Fatal("expected no estimate when reading == target")
	}
}

func TestTimeToTarget_NoneWithEmptyTable(t *testing.T) {
	if _, ok := TimeToTarget(model.GradientTable{}, 15, 20, 5); ok {
		t.Fatal("expected no estimate with an empty gradient table")
	}
}

func TestTimeToTarget_PicksNearestBucket(t *testing.T) {
	table := model.GradientTable{Buckets: []model.GradientBucket{
		{Delta: 0, Gradient: 2.0},
		{Delta: 10, Gradient: 4.0},
	}}
	// deltaT = 15 - 8 = 7, closer to bucket 10.
	got, ok := TimeToTarget(table, 15, 20, 8)
	if !ok {
		t.Fatal("expected an estimate")
	}
	want := time.Duration((20 - 15) / 4.0 * float64(time.Hour))
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
