package paths

import (
	"errors"
	"math"
	"testing"

	"github.com/fieldscout/fieldscout/pkg/core"
	"github.com/fieldscout/fieldscout/pkg/environment"
)

var testRegion = core.Extent{Xmin: 0, Xmax: 10, Ymin: 0, Ymax: 10}

// wallWorld blocks everything, for boxed-in scenarios.
type wallWorld struct{}

func (wallWorld) Blocked(x, y float64) bool { return true }
func (wallWorld) Extent() core.Extent       { return testRegion }

func TestNewValidation(t *testing.T) {
	if _, err := New("dubins"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("New(dubins) error = %v, want ErrUnknownStrategy", err)
	}
	if _, err := New(Straight, WithFrontierSize(0)); err == nil {
		t.Error("zero frontier size accepted")
	}
	if _, err := New(Arc, WithSampleStep(5), WithHorizon(1.5)); err == nil {
		t.Error("sample step longer than horizon accepted")
	}
	if _, err := New(EqualArc, WithTurningRadius(-1)); err == nil {
		t.Error("negative turning radius accepted")
	}
}

func TestStraightFansFromPose(t *testing.T) {
	g, err := New(Straight, WithFrontierSize(5), WithHorizon(1.5), WithSampleStep(0.5))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pose := core.Pose{X: 5, Y: 5, Heading: 0}
	trajs := g.Generate(pose, 0, environment.FreeWorld{Region: testRegion})
	if len(trajs) != 5 {
		t.Fatalf("got %d candidates, want 5", len(trajs))
	}
	for i, traj := range trajs {
		if len(traj) != 4 {
			t.Errorf("candidate %d has %d waypoints, want the pose plus 3 samples", i, len(traj))
		}
		if traj[0].X != pose.X || traj[0].Y != pose.Y {
			t.Errorf("candidate %d does not start at the pose: %+v", i, traj[0])
		}
		d := pose.DistanceTo(traj[1])
		if math.Abs(d-0.5) > 1e-9 {
			t.Errorf("candidate %d's first step is %v from the pose, want one sample step (0.5)", i, d)
		}
		for j, wp := range traj[1:] {
			if wp.X == pose.X && wp.Y == pose.Y {
				t.Errorf("candidate %d re-samples the current pose", i)
			}
			if wp.Heading != traj[1].Heading {
				t.Errorf("candidate %d changes heading at waypoint %d along a straight ray", i, j+1)
			}
		}
	}
}

func TestStraightTruncatesAtBoundary(t *testing.T) {
	g, err := New(Straight, WithFrontierSize(9), WithHorizon(1.5), WithSampleStep(0.5))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pose := core.Pose{X: 9.9, Y: 5, Heading: 0}
	trajs := g.Generate(pose, 0, environment.FreeWorld{Region: testRegion})
	if len(trajs) == 0 {
		t.Fatal("no candidates near the boundary; backward rays should survive")
	}
	if len(trajs) == 9 {
		t.Error("forward rays were not truncated at the boundary")
	}
	for i, traj := range trajs {
		for _, wp := range traj {
			if !testRegion.Contains(wp.X, wp.Y) {
				t.Errorf("candidate %d waypoint (%v, %v) is outside the region", i, wp.X, wp.Y)
			}
		}
	}
}

func TestBoxedInReturnsNoCandidates(t *testing.T) {
	for _, s := range []Strategy{Straight, Arc, EqualArc} {
		g, err := New(s)
		if err != nil {
			t.Fatalf("New(%s): %v", s, err)
		}
		trajs := g.Generate(core.Pose{X: 5, Y: 5}, 0, wallWorld{})
		if len(trajs) != 0 {
			t.Errorf("%s produced %d candidates in a fully blocked world, want 0", s, len(trajs))
		}
	}
}

func TestArcConstantCurvature(t *testing.T) {
	g, err := New(Arc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pose := core.Pose{X: 5, Y: 5, Heading: math.Pi / 4}
	trajs := g.Generate(pose, 0, environment.FreeWorld{Region: testRegion})
	if len(trajs) != 10 {
		t.Fatalf("got %d candidates, want 10", len(trajs))
	}
	for i, traj := range trajs {
		if len(traj) < 2 {
			continue
		}
		d0 := normalizeAngle(traj[1].Heading - traj[0].Heading)
		for j := 2; j < len(traj); j++ {
			d := normalizeAngle(traj[j].Heading - traj[j-1].Heading)
			if math.Abs(d-d0) > 1e-9 {
				t.Errorf("candidate %d heading increments vary: %v vs %v", i, d, d0)
				break
			}
		}
	}
}

func TestArcReachesFrontierGoal(t *testing.T) {
	step := 0.1
	horizon := 1.5
	g, err := New(Arc, WithHorizon(horizon), WithSampleStep(step))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pose := core.Pose{X: 5, Y: 5, Heading: 0}
	trajs := g.Generate(pose, 0, environment.FreeWorld{Region: testRegion})
	offsets := fanOffsets(10)
	if len(trajs) != len(offsets) {
		t.Fatalf("got %d candidates for %d offsets", len(trajs), len(offsets))
	}
	for i, traj := range trajs {
		goalX := pose.X + horizon*math.Cos(pose.Heading+offsets[i])
		goalY := pose.Y + horizon*math.Sin(pose.Heading+offsets[i])
		last := traj[len(traj)-1]
		gap := math.Hypot(last.X-goalX, last.Y-goalY)
		if gap > step+1e-9 {
			t.Errorf("candidate %d ends %v short of its frontier goal", i, gap)
		}
	}
}

func TestEqualArcUniformLength(t *testing.T) {
	free := environment.FreeWorld{Region: testRegion}
	pose := core.Pose{X: 5, Y: 5, Heading: 0}

	arc, err := New(Arc)
	if err != nil {
		t.Fatalf("New(Arc): %v", err)
	}
	unequal := arc.Generate(pose, 0, free)
	varied := false
	for _, traj := range unequal[1:] {
		if len(traj) != len(unequal[0]) {
			varied = true
			break
		}
	}
	if !varied {
		t.Error("arc candidates all have equal waypoint counts; expected sharper arcs to run longer")
	}

	equal, err := New(EqualArc)
	if err != nil {
		t.Fatalf("New(EqualArc): %v", err)
	}
	equalized := equal.Generate(pose, 0, free)
	if len(equalized) == 0 {
		t.Fatal("equal-arc produced no candidates")
	}
	for i, traj := range equalized[1:] {
		if len(traj) != len(equalized[0]) {
			t.Errorf("equal-arc candidate %d has %d waypoints, want %d", i+1, len(traj), len(equalized[0]))
		}
	}
}

func TestArcSkipsGoalsInsideTurningRadius(t *testing.T) {
	g, err := New(Arc, WithHorizon(1.5), WithTurningRadius(1.2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	trajs := g.Generate(core.Pose{X: 5, Y: 5}, 0, environment.FreeWorld{Region: testRegion})
	if len(trajs) != 2 {
		t.Errorf("got %d candidates, want the 2 shallow bearings a 1.2 turning radius allows", len(trajs))
	}
}

func TestFanOffsets(t *testing.T) {
	if got := fanOffsets(1); len(got) != 1 || got[0] != 0 {
		t.Errorf("fanOffsets(1) = %v, want [0]", got)
	}
	got := fanOffsets(10)
	if got[0] != -fanHalfAngle || got[len(got)-1] != fanHalfAngle {
		t.Errorf("fan does not span +-%v: %v", fanHalfAngle, got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Errorf("offsets not ascending at %d: %v", i, got)
		}
	}
}
