// Package paths generates the candidate trajectories the agent chooses
// between. Each strategy fans a fixed number of headings out from the
// current pose and samples waypoints along the resulting path, truncating
// at the region boundary or the first obstacle.
package paths

import (
	"errors"
	"fmt"
	"math"

	"github.com/fieldscout/fieldscout/pkg/core"
)

// Strategy selects a candidate-generation scheme.
type Strategy string

const (
	// Straight fans radial rays out from the pose.
	Straight Strategy = "straight"
	// Arc fans constant-curvature arcs that reach the frontier goals
	// tangent to the current heading.
	Arc Strategy = "arc"
	// EqualArc is Arc with every candidate truncated to the length of the
	// shortest, so cost-blind rewards compare like with like.
	EqualArc Strategy = "equal-arc"
)

// ErrUnknownStrategy reports a strategy tag outside the closed set.
var ErrUnknownStrategy = errors.New("unknown path strategy")

// fanHalfAngle is the half-width of the frontier fan in radians, just shy
// of letting candidates double straight back.
const fanHalfAngle = 2.35

type params struct {
	frontierSize  int
	horizon       float64
	turningRadius float64
	sampleStep    float64
}

// Option configures a generator at construction time.
type Option func(*params)

// WithFrontierSize sets how many candidate trajectories each call fans out.
func WithFrontierSize(n int) Option { return func(p *params) { p.frontierSize = n } }

// WithHorizon sets the straight-line distance from the pose to each
// frontier goal.
func WithHorizon(d float64) Option { return func(p *params) { p.horizon = d } }

// WithTurningRadius sets the tightest arc the platform can follow. Goals
// needing a tighter turn are skipped.
func WithTurningRadius(r float64) Option { return func(p *params) { p.turningRadius = r } }

// WithSampleStep sets the spacing between consecutive waypoints.
func WithSampleStep(s float64) Option { return func(p *params) { p.sampleStep = s } }

// New returns the generator for a strategy tag. Defaults mirror the survey
// platform: 10 candidates, 1.5 horizon, 0.11 turning radius, 0.1 step.
func New(s Strategy, opts ...Option) (core.Generator, error) {
	p := params{
		frontierSize:  10,
		horizon:       1.5,
		turningRadius: 0.11,
		sampleStep:    0.1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.frontierSize < 1 {
		return nil, fmt.Errorf("paths: frontier size must be at least 1, got %d", p.frontierSize)
	}
	if p.horizon <= 0 {
		return nil, fmt.Errorf("paths: horizon must be positive, got %v", p.horizon)
	}
	if p.sampleStep <= 0 || p.sampleStep > p.horizon {
		return nil, fmt.Errorf("paths: sample step must be in (0, horizon], got %v", p.sampleStep)
	}
	if p.turningRadius <= 0 {
		return nil, fmt.Errorf("paths: turning radius must be positive, got %v", p.turningRadius)
	}

	switch s {
	case Straight:
		return &straightGen{p: p}, nil
	case Arc:
		return &arcGen{p: p}, nil
	case EqualArc:
		return &arcGen{p: p, equalize: true}, nil
	default:
		return nil, fmt.Errorf("paths: %w: %q", ErrUnknownStrategy, s)
	}
}

// fanOffsets returns frontier bearings relative to the current heading,
// spread evenly across the fan.
func fanOffsets(n int) []float64 {
	if n == 1 {
		return []float64{0}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = -fanHalfAngle + float64(i)*2*fanHalfAngle/float64(n-1)
	}
	return out
}

func admissible(w core.World, x, y float64) bool {
	return w.Extent().Contains(x, y) && !w.Blocked(x, y)
}

// normalizeAngle maps an angle into (-pi, pi].
func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
