package core

import (
	"math"
)

// Pose is the vehicle's position and heading in the plane. Heading is in
// radians and only matters to curvature-constrained path generators;
// distance accounting uses X and Y alone.
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// DistanceTo returns the Euclidean distance between two poses, ignoring heading.
func (p Pose) DistanceTo(q Pose) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Trajectory is an ordered sequence of waypoints. It is immutable once
// produced by a generator or planner.
type Trajectory []Pose

// Last returns the final waypoint. It panics on an empty trajectory; callers
// are expected to have checked emptiness when a trajectory came from outside.
func (tr Trajectory) Last() Pose {
	return tr[len(tr)-1]
}

// PathLength returns the total Euclidean length of the trajectory walked from
// start, including the implicit segment from start to the first waypoint.
func (tr Trajectory) PathLength(start Pose) float64 {
	var dist float64
	prev := start
	for _, wp := range tr {
		dist += prev.DistanceTo(wp)
		prev = wp
	}
	return dist
}

// Extent is the rectangular bound of the explorable environment.
type Extent struct {
	Xmin float64
	Xmax float64
	Ymin float64
	Ymax float64
}

// Contains reports whether (x, y) lies inside the extent.
func (e Extent) Contains(x, y float64) bool {
	return x >= e.Xmin && x <= e.Xmax && y >= e.Ymin && y <= e.Ymax
}

// CandidateSet is the menu of trajectories considered in one iteration,
// with the score assigned to each candidate index. It is built once per
// iteration and discarded after the best candidate is chosen.
type CandidateSet struct {
	Trajectories []Trajectory
	Scores       map[int]float64
}

// Termination describes how a run ended.
type Termination int

const (
	// TerminatedExhausted means the run used its full iteration budget.
	TerminatedExhausted Termination = iota
	// TerminatedNoCandidates means the generator produced no admissible
	// trajectory and the run stopped early. This is a normal outcome.
	TerminatedNoCandidates
)

func (t Termination) String() string {
	switch t {
	case TerminatedExhausted:
		return "exhausted"
	case TerminatedNoCandidates:
		return "no-candidates"
	default:
		return "unknown"
	}
}

// StepRecord is the per-iteration performance data handed to metric sinks.
type StepRecord struct {
	Run             string // run identifier
	Iteration       int    // planning iteration index
	Belief          Belief // read-only view of the belief at decision time
	Pose            Pose   // pose before executing the chosen trajectory
	Chosen          Trajectory
	Value           float64   // score of the chosen trajectory
	PredictedLoc    []float64 // argmax of the posterior mean
	PredictedVal    float64   // posterior mean at PredictedLoc
	RunningMax      float64   // best value actually observed so far
	RunningMaxLoc   Pose
	MaximaValues    []float64   // sampled posterior maxima (MES family), nil otherwise
	MaximaLocations [][]float64 // locations of the sampled maxima
	Distance        float64     // accumulated path length before this step
}
