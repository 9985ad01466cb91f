// Package reward scores candidate trajectories against the current belief.
// Evaluators are pure: they never mutate the belief, and they report "cannot
// score" as NaN instead of panicking, so the agent can fall back to random
// selection when every candidate is unscorable.
package reward

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/fieldscout/fieldscout/pkg/core"
)

// Variant selects an acquisition function.
type Variant string

const (
	// MeanUCB sums posterior mean plus a confidence-scheduled standard
	// deviation bonus over the trajectory.
	MeanUCB Variant = "mean-ucb"
	// InfoGain scores the mutual information between the trajectory's
	// waypoints and the field.
	InfoGain Variant = "info-gain"
	// ExpImprove sums expected improvement over the running best value.
	ExpImprove Variant = "exp-improve"
	// MES scores reduction in entropy of the field maximum, against maxima
	// sampled jointly from the posterior.
	MES Variant = "mes"
	// Gumbel is MES with maxima drawn from a Gumbel approximation of the
	// posterior max distribution instead of joint draws.
	Gumbel Variant = "gumbel"
)

// ErrUnknownVariant reports a variant tag outside the closed set.
var ErrUnknownVariant = errors.New("unknown reward variant")

// Model is the belief surface evaluators query. *belief.Model satisfies it.
type Model interface {
	Predict(locs [][]float64) (mean, variance []float64, err error)
	Cov(locs [][]float64) (*mat.SymDense, error)
	SamplePosterior(locs [][]float64, n int, rng *rand.Rand) ([][]float64, error)
	Len() int
	Dimension() int
	Noise() float64
}

// MaximaSample is a draw of candidate global maxima from the posterior.
// Target carries the full grid values of the highest-scoring draw; the
// Gumbel path produces values only.
type MaximaSample struct {
	Values    []float64
	Locations [][]float64
	Target    []float64
}

// Params carries the variant-specific inputs built fresh each iteration.
// Best is the expected-improvement baseline (history or single scalar);
// Maxima feeds the max-value entropy family.
type Params struct {
	Best   []float64
	Maxima *MaximaSample
}

// Evaluator scores trajectories under one variant.
type Evaluator struct {
	variant  Variant
	goalOnly bool
	useCost  bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithGoalOnly scores only the trajectory's final waypoint.
func WithGoalOnly(v bool) Option { return func(e *Evaluator) { e.goalOnly = v } }

// WithCost divides scores by trajectory path length, penalizing detours.
func WithCost(v bool) Option { return func(e *Evaluator) { e.useCost = v } }

// New returns an evaluator for the variant tag.
func New(v Variant, opts ...Option) (*Evaluator, error) {
	switch v {
	case MeanUCB, InfoGain, ExpImprove, MES, Gumbel:
	default:
		return nil, fmt.Errorf("reward: %w: %q", ErrUnknownVariant, v)
	}
	e := &Evaluator{variant: v}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Variant returns the evaluator's tag.
func (e *Evaluator) Variant() Variant { return e.variant }

// NeedsMaxima reports whether Evaluate requires Params.Maxima.
func (e *Evaluator) NeedsMaxima() bool { return e.variant == MES || e.variant == Gumbel }

// NeedsBest reports whether Evaluate requires Params.Best.
func (e *Evaluator) NeedsBest() bool { return e.variant == ExpImprove }

// Evaluate scores one candidate trajectory at time t. NaN means the
// candidate cannot be scored under the current belief and parameters.
func (e *Evaluator) Evaluate(t int, traj core.Trajectory, m Model, p Params) float64 {
	locs := e.queryLocations(traj, t, m.Dimension())
	if len(locs) == 0 {
		return math.NaN()
	}
	var score float64
	switch e.variant {
	case MeanUCB:
		score = meanUCB(t, locs, m)
	case InfoGain:
		score = infoGain(locs, m)
	case ExpImprove:
		score = expectedImprovement(locs, m, p.Best)
	case MES, Gumbel:
		score = maxValueEntropy(locs, m, p.Maxima)
	}
	if e.useCost {
		length := traj.PathLength(traj[0])
		if length > 0 {
			score /= length
		}
	}
	return score
}

// queryLocations widens waypoints to the belief's dimensionality, keeping
// only the final waypoint in goal-only mode.
func (e *Evaluator) queryLocations(traj core.Trajectory, t, dim int) [][]float64 {
	if len(traj) == 0 {
		return nil
	}
	waypoints := traj
	if e.goalOnly {
		waypoints = core.Trajectory{traj[len(traj)-1]}
	}
	locs := make([][]float64, len(waypoints))
	for i, wp := range waypoints {
		if dim == 3 {
			locs[i] = []float64{wp.X, wp.Y, float64(t)}
		} else {
			locs[i] = []float64{wp.X, wp.Y}
		}
	}
	return locs
}
