package paths

import (
	"math"

	"github.com/fieldscout/fieldscout/pkg/core"
)

type arcGen struct {
	p        params
	equalize bool
}

// Generate fans constant-curvature arcs toward the frontier goals. Each arc
// leaves the pose tangent to the current heading and passes through a goal
// placed horizon away at the fan bearing; sharper bearings give longer,
// more curved paths. Goals inside the platform's turning radius are
// skipped. With equalize set, every arc is truncated to the shortest one's
// length before sampling.
func (g *arcGen) Generate(pose core.Pose, _ int, w core.World) []core.Trajectory {
	type arc struct {
		kappa  float64
		length float64
	}
	arcs := make([]arc, 0, g.p.frontierSize)
	for _, alpha := range fanOffsets(g.p.frontierSize) {
		if math.Abs(alpha) < 1e-9 {
			arcs = append(arcs, arc{kappa: 0, length: g.p.horizon})
			continue
		}
		sin := math.Sin(alpha)
		// Chord c at bearing alpha: the tangent arc turns 2*alpha over
		// radius c/(2 sin alpha) and runs c*alpha/sin(alpha) long.
		radius := g.p.horizon / (2 * math.Abs(sin))
		if radius < g.p.turningRadius {
			continue
		}
		arcs = append(arcs, arc{
			kappa:  2 * sin / g.p.horizon,
			length: g.p.horizon * alpha / sin,
		})
	}
	if len(arcs) == 0 {
		return nil
	}

	if g.equalize {
		shortest := arcs[0].length
		for _, a := range arcs[1:] {
			if a.length < shortest {
				shortest = a.length
			}
		}
		for i := range arcs {
			arcs[i].length = shortest
		}
	}

	out := make([]core.Trajectory, 0, len(arcs))
	for _, a := range arcs {
		traj := sampleArc(pose, a.kappa, a.length, g.p.sampleStep, w)
		if len(traj) > 0 {
			out = append(out, traj)
		}
	}
	return out
}

// sampleArc walks the arc in sampleStep increments of arc length, starting
// from the pose itself and cutting at the first inadmissible waypoint.
// Waypoint headings follow the tangent so the next iteration's fan stays
// continuous. Arcs with no waypoint beyond the start come back empty.
func sampleArc(pose core.Pose, kappa, length, step float64, w core.World) core.Trajectory {
	traj := core.Trajectory{{X: pose.X, Y: pose.Y, Heading: pose.Heading}}
	for s := step; s <= length+1e-9; s += step {
		var x, y, heading float64
		if math.Abs(kappa) < 1e-9 {
			x = pose.X + s*math.Cos(pose.Heading)
			y = pose.Y + s*math.Sin(pose.Heading)
			heading = pose.Heading
		} else {
			heading = pose.Heading + kappa*s
			x = pose.X + (math.Sin(heading)-math.Sin(pose.Heading))/kappa
			y = pose.Y - (math.Cos(heading)-math.Cos(pose.Heading))/kappa
		}
		if !admissible(w, x, y) {
			break
		}
		traj = append(traj, core.Pose{X: x, Y: y, Heading: normalizeAngle(heading)})
	}
	if len(traj) < 2 {
		return nil
	}
	return traj
}
