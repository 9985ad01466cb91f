// Package environment provides the ground truth the agent explores: scalar
// fields drawn from a Gaussian process prior or rebuilt from exported
// datasets, plus the obstacle geometry candidate trajectories are checked
// against.
package environment

import (
	"fmt"
	"math/rand"

	"github.com/fieldscout/fieldscout/internal/grid"
	"github.com/fieldscout/fieldscout/pkg/belief"
	"github.com/fieldscout/fieldscout/pkg/core"
)

// interpNoise keeps the ground-truth interpolator numerically factorizable
// while staying far below any sensor noise worth simulating.
const interpNoise = 1e-6

// Field is a sampleable scalar field. Synthetic fields are one joint draw
// from a GP prior on a grid, interpolated by a near-noiseless GP fit, so
// the ground truth is smooth and consistent with the kernel the agent
// assumes. A Field is owned by one run and is not safe for concurrent use.
type Field struct {
	extent core.Extent
	noise  float64
	vx, vy float64
	rng    *rand.Rand

	interp *belief.Model
	maxVal float64
	maxLoc []float64

	gridSize    int
	lengthscale float64
	variance    float64
}

// Option configures a Field at construction time.
type Option func(*Field)

// WithExtent sets the rectangular region the field covers.
func WithExtent(e core.Extent) Option { return func(f *Field) { f.extent = e } }

// WithGridSize sets the per-axis resolution of the ground-truth grid.
func WithGridSize(n int) Option { return func(f *Field) { f.gridSize = n } }

// WithLengthscale sets the prior lengthscale the field is drawn from.
func WithLengthscale(l float64) Option { return func(f *Field) { f.lengthscale = l } }

// WithVariance sets the prior signal variance the field is drawn from.
func WithVariance(v float64) Option { return func(f *Field) { f.variance = v } }

// WithSensorNoise sets the standard deviation of the additive noise Sample
// applies to every measurement.
func WithSensorNoise(sd float64) Option { return func(f *Field) { f.noise = sd } }

// WithDrift makes the field translate at (vx, vy) per unit time, so
// time-aware runs see a moving phenomenon.
func WithDrift(vx, vy float64) Option { return func(f *Field) { f.vx, f.vy = vx, vy } }

// WithRand sets the random source used for the prior draw and for sensor
// noise.
func WithRand(rng *rand.Rand) Option { return func(f *Field) { f.rng = rng } }

// New draws a synthetic field. Defaults match the survey trials: a 10x10
// region on a 20x20 grid, RBF prior with lengthscale 1 and variance 100,
// sensor noise 1.
func New(opts ...Option) (*Field, error) {
	f := &Field{
		extent:      core.Extent{Xmin: 0, Xmax: 10, Ymin: 0, Ymax: 10},
		noise:       1.0,
		gridSize:    20,
		lengthscale: 1.0,
		variance:    100.0,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(0))
	}
	if f.gridSize < 2 {
		return nil, fmt.Errorf("environment: grid size must be at least 2, got %d", f.gridSize)
	}
	if f.noise < 0 {
		return nil, fmt.Errorf("environment: sensor noise must not be negative, got %v", f.noise)
	}

	mesh := grid.Mesh2D(f.extent, f.gridSize, f.gridSize)
	prior, err := belief.New(
		belief.WithDimension(2),
		belief.WithExtent(f.extent),
		belief.WithLengthscale(f.lengthscale),
		belief.WithVariance(f.variance),
		belief.WithNoise(interpNoise),
	)
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	draws, err := prior.SamplePosterior(mesh, 1, f.rng)
	if err != nil {
		return nil, fmt.Errorf("environment: draw ground truth: %w", err)
	}
	if err := f.setTruth(mesh, draws[0], prior); err != nil {
		return nil, err
	}
	return f, nil
}

// FromDataset rebuilds a field from previously observed locations and
// values, interpolating between them with a near-noiseless GP. Locations
// may be {x, y} or {x, y, t}; the width fixes how the field is queried.
func FromDataset(locs [][]float64, vals []float64, opts ...Option) (*Field, error) {
	if len(locs) == 0 {
		return nil, fmt.Errorf("environment: dataset is empty")
	}
	if len(locs) != len(vals) {
		return nil, fmt.Errorf("environment: %d locations for %d values", len(locs), len(vals))
	}
	f := &Field{
		extent:      core.Extent{Xmin: 0, Xmax: 10, Ymin: 0, Ymax: 10},
		noise:       1.0,
		gridSize:    20,
		lengthscale: 1.0,
		variance:    100.0,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(0))
	}
	interp, err := belief.New(
		belief.WithDimension(len(locs[0])),
		belief.WithExtent(f.extent),
		belief.WithLengthscale(f.lengthscale),
		belief.WithVariance(f.variance),
		belief.WithNoise(interpNoise),
	)
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := f.setTruth(locs, vals, interp); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Field) setTruth(locs [][]float64, vals []float64, interp *belief.Model) error {
	if err := interp.Add(locs, vals); err != nil {
		return fmt.Errorf("environment: build interpolator: %w", err)
	}
	f.interp = interp
	f.maxVal = vals[0]
	f.maxLoc = []float64{locs[0][0], locs[0][1]}
	for i, v := range vals {
		if v > f.maxVal {
			f.maxVal = v
			f.maxLoc = []float64{locs[i][0], locs[i][1]}
		}
	}
	return nil
}

// Sample measures the field at each location, applying drift and additive
// sensor noise. Locations are {x, y} (time taken from t) or {x, y, t}.
func (f *Field) Sample(locs [][]float64, t int) ([]float64, error) {
	queries := make([][]float64, len(locs))
	for i, loc := range locs {
		if len(loc) < 2 {
			return nil, fmt.Errorf("environment: location %d has %d coordinates, need at least x and y", i, len(loc))
		}
		when := float64(t)
		if len(loc) > 2 {
			when = loc[2]
		}
		q := []float64{loc[0] - f.vx*when, loc[1] - f.vy*when}
		if f.interp.Dimension() == 3 {
			q = append(q, when)
		}
		queries[i] = q
	}
	mean, _, err := f.interp.Predict(queries)
	if err != nil {
		return nil, fmt.Errorf("environment: sample: %w", err)
	}
	for i := range mean {
		if f.noise > 0 {
			mean[i] += f.rng.NormFloat64() * f.noise
		}
	}
	return mean, nil
}

// Truth returns the noiseless field value at (x, y) at time t.
func (f *Field) Truth(x, y float64, t int) (float64, error) {
	q := []float64{x - f.vx*float64(t), y - f.vy*float64(t)}
	if f.interp.Dimension() == 3 {
		q = append(q, float64(t))
	}
	mean, _, err := f.interp.Predict([][]float64{q})
	if err != nil {
		return 0, fmt.Errorf("environment: truth: %w", err)
	}
	return mean[0], nil
}

// MaxValue returns the ground-truth maximum over the generating grid or
// dataset at time zero.
func (f *Field) MaxValue() float64 { return f.maxVal }

// MaxLocation returns the {x, y} location of the ground-truth maximum.
func (f *Field) MaxLocation() []float64 {
	return append([]float64(nil), f.maxLoc...)
}

// Extent returns the region the field covers.
func (f *Field) Extent() core.Extent { return f.extent }

var _ core.Sampler = (*Field)(nil)
