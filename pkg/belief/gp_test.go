package belief

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
)

func newTestModel(t *testing.T, opts ...Option) *Model {
	t.Helper()
	m, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestPredictPrior(t *testing.T) {
	m := newTestModel(t, WithVariance(100), WithLengthscale(1), WithNoise(1))
	mean, variance, err := m.Predict([][]float64{{1, 2}, {5, 5}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := range mean {
		if mean[i] != 0 {
			t.Errorf("prior mean[%d] = %v, want 0", i, mean[i])
		}
		if variance[i] != 100 {
			t.Errorf("prior variance[%d] = %v, want 100", i, variance[i])
		}
	}
}

func TestPosteriorAtObservedPoint(t *testing.T) {
	m := newTestModel(t, WithVariance(100), WithLengthscale(1), WithNoise(1))
	if err := m.Add([][]float64{{2, 3}}, []float64{5}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	mean, variance, err := m.Predict([][]float64{{2, 3}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	// Single observation: mean shrinks toward the value by k/(k+noise),
	// variance drops from the prior by the same factor.
	wantMean := 5 * 100.0 / 101.0
	wantVar := 100.0 / 101.0
	if math.Abs(mean[0]-wantMean) > 1e-9 {
		t.Errorf("posterior mean = %v, want %v", mean[0], wantMean)
	}
	if math.Abs(variance[0]-wantVar) > 1e-9 {
		t.Errorf("posterior variance = %v, want %v", variance[0], wantVar)
	}

	// Far from the data the posterior reverts to the prior.
	mean, variance, err = m.Predict([][]float64{{80, 80}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if math.Abs(mean[0]) > 1e-6 {
		t.Errorf("far-field mean = %v, want ~0", mean[0])
	}
	if math.Abs(variance[0]-100) > 1e-6 {
		t.Errorf("far-field variance = %v, want ~100", variance[0])
	}
}

func TestAddDimensionMismatch(t *testing.T) {
	m := newTestModel(t, WithDimension(2))
	err := m.Add([][]float64{{1, 2}, {3, 4, 5}}, []float64{1, 2})
	if !errors.Is(err, ErrInvalidDimension) {
		t.Fatalf("Add error = %v, want ErrInvalidDimension", err)
	}
	if m.Len() != 0 {
		t.Errorf("failed Add left %d observations in the model, want 0", m.Len())
	}

	if err := m.Add([][]float64{{1, 2}}, []float64{1, 2}); err == nil {
		t.Error("Add with mismatched batch lengths succeeded, want error")
	}
}

func TestUnknownKernelRejected(t *testing.T) {
	if _, err := New(WithKernel("periodic")); err == nil {
		t.Fatal("New with unknown kernel succeeded, want error")
	}
	if _, err := New(WithDimension(4)); err == nil {
		t.Fatal("New with dimension 4 succeeded, want error")
	}
	if _, err := New(WithNoise(0)); err == nil {
		t.Fatal("New with zero noise succeeded, want error")
	}
}

func TestObservationRoundTrip(t *testing.T) {
	opts := []Option{WithVariance(100), WithLengthscale(1.5), WithNoise(1)}
	m := newTestModel(t, opts...)
	locs := [][]float64{{0, 0}, {1, 0.5}, {2, 2}, {3.5, 1}, {4, 4}}
	vals := []float64{1.2, -0.7, 3.4, 0.1, 2.2}
	if err := m.Add(locs, vals); err != nil {
		t.Fatalf("Add: %v", err)
	}

	fresh := newTestModel(t, opts...)
	if err := fresh.Add(m.Locations(), m.Values()); err != nil {
		t.Fatalf("Add exported observations: %v", err)
	}

	queries := [][]float64{{0.5, 0.5}, {2, 1}, {3, 3}, {10, 10}}
	m1, v1, err := m.Predict(queries)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	m2, v2, err := fresh.Predict(queries)
	if err != nil {
		t.Fatalf("Predict on rebuilt model: %v", err)
	}
	for i := range queries {
		if math.Abs(m1[i]-m2[i]) > 1e-9 {
			t.Errorf("mean[%d]: %v vs %v", i, m1[i], m2[i])
		}
		if math.Abs(v1[i]-v2[i]) > 1e-9 {
			t.Errorf("variance[%d]: %v vs %v", i, v1[i], v2[i])
		}
	}
}

func TestAccessorsCopy(t *testing.T) {
	m := newTestModel(t)
	if err := m.Add([][]float64{{1, 1}}, []float64{2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	locs := m.Locations()
	locs[0][0] = 99
	vals := m.Values()
	vals[0] = 99
	if got := m.Locations(); got[0][0] != 1 {
		t.Errorf("mutating Locations() result changed the model: %v", got[0])
	}
	if got := m.Values(); got[0] != 2 {
		t.Errorf("mutating Values() result changed the model: %v", got[0])
	}
}

func TestCloneIsolation(t *testing.T) {
	m := newTestModel(t)
	if err := m.Add([][]float64{{1, 1}, {2, 2}}, []float64{1, 2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	c := m.Clone()
	if err := c.Add([][]float64{{3, 3}}, []float64{7}); err != nil {
		t.Fatalf("Add to clone: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("original Len = %d after writing to clone, want 2", m.Len())
	}
	if c.Len() != 3 {
		t.Errorf("clone Len = %d, want 3", c.Len())
	}

	query := [][]float64{{3, 3}}
	om, _, err := m.Predict(query)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	cm, _, err := c.Predict(query)
	if err != nil {
		t.Fatalf("Predict on clone: %v", err)
	}
	if om[0] == cm[0] {
		t.Error("clone and original agree at the clone's new observation; expected them to differ")
	}
}

func TestCovMatchesPredictOnDiagonal(t *testing.T) {
	m := newTestModel(t, WithLengthscale(2))
	if err := m.Add([][]float64{{0, 0}, {1, 1}, {2, 0}}, []float64{1, 2, 3}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	queries := [][]float64{{0.5, 0.5}, {1.5, 0.5}}
	_, variance, err := m.Predict(queries)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	cov, err := m.Cov(queries)
	if err != nil {
		t.Fatalf("Cov: %v", err)
	}
	for i := range queries {
		if math.Abs(cov.At(i, i)-variance[i]) > 1e-9 {
			t.Errorf("Cov diagonal [%d] = %v, Predict variance = %v", i, cov.At(i, i), variance[i])
		}
	}
	if math.Abs(cov.At(0, 1)-cov.At(1, 0)) > 1e-12 {
		t.Errorf("Cov not symmetric: %v vs %v", cov.At(0, 1), cov.At(1, 0))
	}
}

func TestSamplePosterior(t *testing.T) {
	m := newTestModel(t, WithVariance(100), WithLengthscale(1), WithNoise(1))
	if err := m.Add([][]float64{{2, 2}}, []float64{10}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	rng := rand.New(rand.NewSource(42))
	queries := [][]float64{{2, 2}, {6, 6}}
	draws, err := m.SamplePosterior(queries, 200, rng)
	if err != nil {
		t.Fatalf("SamplePosterior: %v", err)
	}
	if len(draws) != 200 {
		t.Fatalf("draw count = %d, want 200", len(draws))
	}
	var sum float64
	for _, d := range draws {
		if len(d) != len(queries) {
			t.Fatalf("draw width = %d, want %d", len(d), len(queries))
		}
		sum += d[0]
	}
	got := sum / float64(len(draws))
	want := 10 * 100.0 / 101.0
	// Posterior std at the observed point is just under 1; 200 draws put
	// the sample mean well inside +-0.5 of the true mean.
	if math.Abs(got-want) > 0.5 {
		t.Errorf("sample mean at observed point = %v, want %v +- 0.5", got, want)
	}

	if _, err := m.SamplePosterior(queries, 0, rng); err == nil {
		t.Error("SamplePosterior with n=0 succeeded, want error")
	}
}

func TestMatern32Posterior(t *testing.T) {
	m := newTestModel(t, WithKernel(KernelMatern32), WithVariance(4), WithLengthscale(1), WithNoise(0.1))
	if err := m.Add([][]float64{{1, 1}}, []float64{3}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, variance, err := m.Predict([][]float64{{1, 1}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if variance[0] >= 4 {
		t.Errorf("matern posterior variance = %v, want below the prior 4", variance[0])
	}

	if err := m.Fit([][]float64{{1, 1}, {2, 2}}, []float64{1, 2}); err == nil {
		t.Error("Fit on a matern model succeeded, want error")
	}
}

func TestFitImprovesLikelihood(t *testing.T) {
	m := newTestModel(t, WithVariance(100), WithLengthscale(0.3), WithNoise(0.5))
	var locs [][]float64
	var vals []float64
	for i := 0; i < 20; i++ {
		x := float64(i) * 0.5
		locs = append(locs, []float64{x, 0})
		vals = append(vals, 3*math.Sin(x/2))
	}
	before := logMarginalLikelihood(locs, vals, m.kern, m.noise)

	if err := m.Fit(locs, vals); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	after := logMarginalLikelihood(locs, vals, m.kern, m.noise)
	if after < before {
		t.Errorf("Fit lowered the log marginal likelihood: %v -> %v", before, after)
	}
	if m.kern.variance >= 100 {
		t.Errorf("fitted variance = %v, want below the deliberately inflated 100", m.kern.variance)
	}
	if m.Len() != 0 {
		t.Errorf("Fit folded the training set into the model: Len = %d, want 0", m.Len())
	}
}

func TestKernelSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	m := newTestModel(t, WithKernel(KernelMatern32), WithVariance(7), WithLengthscale(2.5), WithNoise(0.25))
	if err := m.SaveKernel(path); err != nil {
		t.Fatalf("SaveKernel: %v", err)
	}

	loaded := newTestModel(t)
	if err := loaded.LoadKernel(path); err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}
	if loaded.kern != m.kern {
		t.Errorf("loaded kernel = %+v, want %+v", loaded.kern, m.kern)
	}
	if loaded.noise != m.noise {
		t.Errorf("loaded noise = %v, want %v", loaded.noise, m.noise)
	}

	if err := loaded.LoadKernel(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadKernel on a missing file succeeded, want error")
	}
}
