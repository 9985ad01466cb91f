package paths

import (
	"math"

	"github.com/fieldscout/fieldscout/pkg/core"
)

type straightGen struct {
	p params
}

// Generate fans radial rays out from the pose. Every candidate starts at
// the pose itself (the agent's convention: the first waypoint is occupied,
// not re-observed); later waypoints are spaced one sample step apart and
// each ray is cut at the first waypoint that leaves the region or hits an
// obstacle. Rays with no waypoint beyond the start are dropped.
func (g *straightGen) Generate(pose core.Pose, _ int, w core.World) []core.Trajectory {
	out := make([]core.Trajectory, 0, g.p.frontierSize)
	for _, offset := range fanOffsets(g.p.frontierSize) {
		dir := normalizeAngle(pose.Heading + offset)
		traj := core.Trajectory{{X: pose.X, Y: pose.Y, Heading: pose.Heading}}
		for s := g.p.sampleStep; s <= g.p.horizon+1e-9; s += g.p.sampleStep {
			x := pose.X + s*math.Cos(dir)
			y := pose.Y + s*math.Sin(dir)
			if !admissible(w, x, y) {
				break
			}
			traj = append(traj, core.Pose{X: x, Y: y, Heading: dir})
		}
		if len(traj) > 1 {
			out = append(out, traj)
		}
	}
	return out
}
