package core

import (
	"errors"
)

// ErrNoCandidates signals that no admissible trajectory exists at the
// current pose. The planning loop treats it as a normal early termination,
// never as a failure.
var ErrNoCandidates = errors.New("no candidate trajectories")

// Sampler measures the environment. Implementations are expected to be a
// pure function of location and time up to their configured sensor noise.
type Sampler interface {
	// Sample returns one observed value per location. Locations have the
	// belief's dimensionality: {x, y} or {x, y, t}.
	Sample(locs [][]float64, t int) ([]float64, error)
}

// Belief is the read/query surface of the probabilistic world model.
type Belief interface {
	// Add folds a batch of observations into the model.
	Add(locs [][]float64, vals []float64) error
	// Predict returns the posterior mean and variance at each location.
	Predict(locs [][]float64) (mean []float64, variance []float64, err error)
	// Len returns the number of observations incorporated so far.
	Len() int
	// Locations returns a copy of the observed locations, in insertion order.
	Locations() [][]float64
	// Values returns a copy of the observed values, in insertion order.
	Values() []float64
}

// Generator produces the finite set of admissible trajectories reachable
// from a pose. An empty result is legitimate and ends the run.
type Generator interface {
	Generate(pose Pose, t int, w World) []Trajectory
}

// World is the feasibility context trajectories are checked against.
type World interface {
	// Blocked reports whether (x, y) is inside an obstacle.
	Blocked(x, y float64) bool
	// Extent returns the rectangular bound of the explorable region.
	Extent() Extent
}

// Sink records per-step performance data. Sink failures are reported to the
// caller but must not abort a run.
type Sink interface {
	Record(rec StepRecord) error
}

// Exporter persists the final set of observed locations and values when a
// run terminates.
type Exporter interface {
	Export(locs [][]float64, vals []float64) error
}
