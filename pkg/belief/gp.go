// Package belief implements the Gaussian process world model the agent
// plans against. The model keeps every observation it has ever been given,
// answers posterior queries through a Cholesky factorization of the kernel
// matrix, and supports joint posterior sampling for max-value entropy
// rewards.
package belief

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/fieldscout/fieldscout/pkg/core"
)

// ErrInvalidDimension reports a location whose coordinate count does not
// match the model dimension.
var ErrInvalidDimension = errors.New("location dimension mismatch")

const posteriorJitter = 1e-10

// Model is a zero-mean Gaussian process regressor. It is not safe for
// concurrent use; the planner works on clones, never on the live model.
type Model struct {
	dim    int
	kern   kernel
	noise  float64
	extent core.Extent

	locs [][]float64
	vals []float64

	// Factorization of K+sigma^2 I over locs, built lazily and discarded
	// whenever observations or hyperparameters change.
	chol  *mat.Cholesky
	alpha *mat.VecDense
}

// Option configures a Model at construction time.
type Option func(*Model)

// WithDimension sets the input dimension: 2 for {x, y}, 3 for {x, y, t}.
func WithDimension(d int) Option { return func(m *Model) { m.dim = d } }

// WithKernel selects the covariance function, KernelRBF or KernelMatern32.
func WithKernel(name string) Option { return func(m *Model) { m.kern.name = name } }

// WithLengthscale sets the kernel lengthscale.
func WithLengthscale(l float64) Option { return func(m *Model) { m.kern.lengthscale = l } }

// WithVariance sets the kernel signal variance.
func WithVariance(v float64) Option { return func(m *Model) { m.kern.variance = v } }

// WithNoise sets the observation noise variance.
func WithNoise(n float64) Option { return func(m *Model) { m.noise = n } }

// WithExtent records the explorable region the model describes.
func WithExtent(e core.Extent) Option { return func(m *Model) { m.extent = e } }

// New builds an empty model. Defaults match the field trials this project
// grew out of: dimension 2, RBF kernel, lengthscale 1, variance 100,
// noise 1.
func New(opts ...Option) (*Model, error) {
	m := &Model{
		dim:   2,
		kern:  kernel{name: KernelRBF, lengthscale: 1.0, variance: 100.0},
		noise: 1.0,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dim != 2 && m.dim != 3 {
		return nil, fmt.Errorf("belief: dimension must be 2 or 3, got %d", m.dim)
	}
	if err := m.kern.validate(); err != nil {
		return nil, fmt.Errorf("belief: %w", err)
	}
	if m.noise <= 0 {
		return nil, fmt.Errorf("belief: noise must be positive, got %v", m.noise)
	}
	return m, nil
}

// Dimension returns the input dimension the model was built with.
func (m *Model) Dimension() int { return m.dim }

// Noise returns the observation noise variance.
func (m *Model) Noise() float64 { return m.noise }

// Extent returns the explorable region recorded at construction.
func (m *Model) Extent() core.Extent { return m.extent }

// Len returns the number of observations incorporated so far.
func (m *Model) Len() int { return len(m.vals) }

// Locations returns a copy of the observed locations in insertion order.
func (m *Model) Locations() [][]float64 {
	out := make([][]float64, len(m.locs))
	for i, l := range m.locs {
		out[i] = append([]float64(nil), l...)
	}
	return out
}

// Values returns a copy of the observed values in insertion order.
func (m *Model) Values() []float64 {
	return append([]float64(nil), m.vals...)
}

// Add folds a batch of observations into the model. The whole batch is
// rejected if any location's width differs from the model dimension, so a
// failed Add leaves the model unchanged.
func (m *Model) Add(locs [][]float64, vals []float64) error {
	if len(locs) != len(vals) {
		return fmt.Errorf("belief: %d locations for %d values", len(locs), len(vals))
	}
	for _, loc := range locs {
		if len(loc) != m.dim {
			return fmt.Errorf("belief: %w: got %d coordinates, model dimension is %d",
				ErrInvalidDimension, len(loc), m.dim)
		}
	}
	for i, loc := range locs {
		m.locs = append(m.locs, append([]float64(nil), loc...))
		m.vals = append(m.vals, vals[i])
	}
	m.invalidate()
	return nil
}

// Predict returns the posterior mean and variance at each query location.
// An empty model answers with the prior: mean 0, variance equal to the
// kernel variance.
func (m *Model) Predict(locs [][]float64) (mean, variance []float64, err error) {
	if err := m.checkDims(locs); err != nil {
		return nil, nil, err
	}
	mean = make([]float64, len(locs))
	variance = make([]float64, len(locs))
	if m.Len() == 0 {
		for i := range variance {
			variance[i] = m.kern.variance
		}
		return mean, variance, nil
	}
	if err := m.factorize(); err != nil {
		return nil, nil, err
	}
	n := len(m.locs)
	ks := mat.NewVecDense(n, nil)
	sol := mat.NewVecDense(n, nil)
	for i, q := range locs {
		for j, x := range m.locs {
			ks.SetVec(j, m.kern.eval(q, x))
		}
		mean[i] = mat.Dot(ks, m.alpha)
		if err := m.chol.SolveVecTo(sol, ks); err != nil {
			return nil, nil, fmt.Errorf("belief: posterior solve: %w", err)
		}
		v := m.kern.eval(q, q) - mat.Dot(ks, sol)
		if v < 0 {
			v = 0
		}
		variance[i] = v
	}
	return mean, variance, nil
}

// Cov returns the full posterior covariance over the query locations.
func (m *Model) Cov(locs [][]float64) (*mat.SymDense, error) {
	if err := m.checkDims(locs); err != nil {
		return nil, err
	}
	q := len(locs)
	out := mat.NewSymDense(q, nil)
	for i := 0; i < q; i++ {
		for j := i; j < q; j++ {
			out.SetSym(i, j, m.kern.eval(locs[i], locs[j]))
		}
	}
	if m.Len() == 0 {
		return out, nil
	}
	if err := m.factorize(); err != nil {
		return nil, err
	}
	n := len(m.locs)
	kxa := mat.NewDense(n, q, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < q; j++ {
			kxa.Set(i, j, m.kern.eval(m.locs[i], locs[j]))
		}
	}
	var sol mat.Dense
	if err := m.chol.SolveTo(&sol, kxa); err != nil {
		return nil, fmt.Errorf("belief: posterior solve: %w", err)
	}
	var red mat.Dense
	red.Mul(kxa.T(), &sol)
	for i := 0; i < q; i++ {
		for j := i; j < q; j++ {
			// Average the off-diagonal pair so floating point noise cannot
			// break symmetry.
			out.SetSym(i, j, out.At(i, j)-0.5*(red.At(i, j)+red.At(j, i)))
		}
	}
	return out, nil
}

// SamplePosterior returns n joint draws from the posterior over the query
// locations. Each draw is one function sample evaluated at every location.
func (m *Model) SamplePosterior(locs [][]float64, n int, rng *rand.Rand) ([][]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("belief: sample count must be positive, got %d", n)
	}
	mean, _, err := m.Predict(locs)
	if err != nil {
		return nil, err
	}
	cov, err := m.Cov(locs)
	if err != nil {
		return nil, err
	}
	q := cov.SymmetricDim()
	var chol mat.Cholesky
	jit := posteriorJitter
	for {
		jittered := mat.NewSymDense(q, nil)
		jittered.CopySym(cov)
		for i := 0; i < q; i++ {
			jittered.SetSym(i, i, jittered.At(i, i)+jit)
		}
		if chol.Factorize(jittered) {
			break
		}
		jit *= 100
		if jit > 1e-2 {
			return nil, errors.New("belief: posterior covariance not positive definite")
		}
	}
	var l mat.TriDense
	chol.LTo(&l)

	draws := make([][]float64, n)
	z := mat.NewVecDense(q, nil)
	lz := mat.NewVecDense(q, nil)
	for k := 0; k < n; k++ {
		for i := 0; i < q; i++ {
			z.SetVec(i, rng.NormFloat64())
		}
		lz.MulVec(&l, z)
		row := make([]float64, q)
		for i := 0; i < q; i++ {
			row[i] = mean[i] + lz.AtVec(i)
		}
		draws[k] = row
	}
	return draws, nil
}

// Clone returns a deep copy sharing no state with the receiver. The copy
// rebuilds its factorization on first use.
func (m *Model) Clone() *Model {
	c := &Model{
		dim:    m.dim,
		kern:   m.kern,
		noise:  m.noise,
		extent: m.extent,
		vals:   append([]float64(nil), m.vals...),
	}
	c.locs = make([][]float64, len(m.locs))
	for i, l := range m.locs {
		c.locs[i] = append([]float64(nil), l...)
	}
	return c
}

func (m *Model) invalidate() {
	m.chol = nil
	m.alpha = nil
}

func (m *Model) checkDims(locs [][]float64) error {
	for _, loc := range locs {
		if len(loc) != m.dim {
			return fmt.Errorf("belief: %w: got %d coordinates, model dimension is %d",
				ErrInvalidDimension, len(loc), m.dim)
		}
	}
	return nil
}

func (m *Model) factorize() error {
	if m.chol != nil {
		return nil
	}
	n := len(m.locs)
	gram := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := m.kern.eval(m.locs[i], m.locs[j])
			if i == j {
				v += m.noise
			}
			gram.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(gram) {
		return errors.New("belief: kernel matrix not positive definite")
	}
	y := mat.NewVecDense(n, append([]float64(nil), m.vals...))
	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, y); err != nil {
		return fmt.Errorf("belief: factorize: %w", err)
	}
	m.chol = &chol
	m.alpha = alpha
	return nil
}

var _ core.Belief = (*Model)(nil)

// logMarginalLikelihood scores hyperparameters against a training set. Used
// by Fit; exposed through no public surface.
func logMarginalLikelihood(locs [][]float64, vals []float64, k kernel, noise float64) float64 {
	n := len(locs)
	gram := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := k.eval(locs[i], locs[j])
			if i == j {
				v += noise
			}
			gram.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(gram) {
		return math.Inf(-1)
	}
	y := mat.NewVecDense(n, append([]float64(nil), vals...))
	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, y); err != nil {
		return math.Inf(-1)
	}
	return -0.5*mat.Dot(y, alpha) - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
}
