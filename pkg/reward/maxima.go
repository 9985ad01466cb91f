package reward

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fieldscout/fieldscout/internal/grid"
	"github.com/fieldscout/fieldscout/pkg/core"
)

// maximaGridSide is the per-axis resolution of the feasible grid maxima are
// sampled over.
const maximaGridSide = 30

// ErrNoFeasibleGrid reports a world so obstructed that no grid point
// survives the feasibility filter.
var ErrNoFeasibleGrid = errors.New("no feasible grid points to sample maxima over")

// feasibleGrid meshes the world's extent, drops blocked cells and widens to
// the belief's dimensionality.
func feasibleGrid(m Model, w core.World, t int) ([][]float64, error) {
	mesh := grid.Mesh2D(w.Extent(), maximaGridSide, maximaGridSide)
	open := mesh[:0]
	for _, pt := range mesh {
		if !w.Blocked(pt[0], pt[1]) {
			open = append(open, pt)
		}
	}
	if len(open) == 0 {
		return nil, ErrNoFeasibleGrid
	}
	if m.Dimension() == 3 {
		open = grid.WithTime(open, t)
	}
	return open, nil
}

// SampleMaxima draws n candidate global maxima by jointly sampling the
// posterior over the feasible grid and taking each draw's peak. Target is
// the full grid sample of the highest-peaked draw.
func SampleMaxima(m Model, w core.World, t, n int, rng *rand.Rand) (*MaximaSample, error) {
	if n <= 0 {
		return nil, fmt.Errorf("reward: maxima sample count must be positive, got %d", n)
	}
	pts, err := feasibleGrid(m, w, t)
	if err != nil {
		return nil, err
	}
	draws, err := m.SamplePosterior(pts, n, rng)
	if err != nil {
		return nil, fmt.Errorf("reward: sample posterior maxima: %w", err)
	}
	out := &MaximaSample{
		Values:    make([]float64, n),
		Locations: make([][]float64, n),
	}
	bestDraw := 0
	for k, draw := range draws {
		arg := 0
		for i, v := range draw {
			if v > draw[arg] {
				arg = i
			}
		}
		out.Values[k] = draw[arg]
		out.Locations[k] = append([]float64(nil), pts[arg]...)
		if draw[arg] > out.Values[bestDraw] {
			bestDraw = k
		}
	}
	out.Target = append([]float64(nil), draws[bestDraw]...)
	return out, nil
}

// SampleMaximaGumbel draws n candidate global maxima from a Gumbel fit to
// the posterior max distribution: the max CDF is approximated by the
// product of per-point marginals, three quantiles are located by bisection,
// a Gumbel is fit through them and sampled by inverse CDF. Cheaper than
// joint draws; produces values only.
func SampleMaximaGumbel(m Model, w core.World, t, n int, rng *rand.Rand) (*MaximaSample, error) {
	if n <= 0 {
		return nil, fmt.Errorf("reward: maxima sample count must be positive, got %d", n)
	}
	pts, err := feasibleGrid(m, w, t)
	if err != nil {
		return nil, err
	}
	mean, variance, err := m.Predict(pts)
	if err != nil {
		return nil, fmt.Errorf("reward: predict over maxima grid: %w", err)
	}
	sd := make([]float64, len(variance))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range variance {
		s := math.Sqrt(v)
		if s < 1e-9 {
			s = 1e-9
		}
		sd[i] = s
		if l := mean[i] - 6*s; l < lo {
			lo = l
		}
		if h := mean[i] + 6*s; h > hi {
			hi = h
		}
	}

	maxCDF := func(y float64) float64 {
		p := 1.0
		for i := range mean {
			p *= distuv.UnitNormal.CDF((y - mean[i]) / sd[i])
			if p == 0 {
				return 0
			}
		}
		return p
	}
	quantile := func(q float64) float64 {
		a, b := lo, hi
		for i := 0; i < 60; i++ {
			mid := 0.5 * (a + b)
			if maxCDF(mid) < q {
				a = mid
			} else {
				b = mid
			}
		}
		return 0.5 * (a + b)
	}

	y25 := quantile(0.25)
	y50 := quantile(0.50)
	y75 := quantile(0.75)
	// Gumbel quantile y(q) = loc - scale ln(-ln q); solve from the quartiles.
	scale := (y75 - y25) / (math.Log(-math.Log(0.25)) - math.Log(-math.Log(0.75)))
	loc := y50 + scale*math.Log(-math.Log(0.5))

	out := &MaximaSample{Values: make([]float64, n)}
	for k := range out.Values {
		u := rng.Float64()
		if u < 1e-12 {
			u = 1e-12
		}
		out.Values[k] = loc - scale*math.Log(-math.Log(u))
	}
	return out, nil
}
