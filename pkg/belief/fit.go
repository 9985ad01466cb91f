package belief

import (
	"fmt"
	"math"
)

const (
	fitRounds     = 3
	fitGridSide   = 7
	fitInitialLog = math.Ln2 * 2 // each round spans x/4 .. x4 around the center
)

// Fit tunes the lengthscale and signal variance against a training set by
// maximizing the log marginal likelihood over a log-space grid, refined
// around the best cell each round. Only the RBF kernel is fittable; the
// training set is not folded into the model, it only shapes the kernel.
func (m *Model) Fit(locs [][]float64, vals []float64) error {
	if m.kern.name != KernelRBF {
		return fmt.Errorf("belief: only %s kernels support fitting, model uses %s",
			KernelRBF, m.kern.name)
	}
	if len(locs) != len(vals) {
		return fmt.Errorf("belief: %d locations for %d values", len(locs), len(vals))
	}
	if len(locs) < 2 {
		return fmt.Errorf("belief: fitting needs at least 2 observations, got %d", len(locs))
	}
	if err := m.checkDims(locs); err != nil {
		return err
	}

	bestLen := m.kern.lengthscale
	bestVar := m.kern.variance
	best := math.Inf(-1)
	span := fitInitialLog
	for round := 0; round < fitRounds; round++ {
		centerLen, centerVar := bestLen, bestVar
		for i := 0; i < fitGridSide; i++ {
			ls := centerLen * logStep(i, span)
			for j := 0; j < fitGridSide; j++ {
				v := centerVar * logStep(j, span)
				score := logMarginalLikelihood(locs, vals, kernel{
					name:        KernelRBF,
					lengthscale: ls,
					variance:    v,
				}, m.noise)
				if score > best {
					best = score
					bestLen = ls
					bestVar = v
				}
			}
		}
		span /= 2
	}
	if math.IsInf(best, -1) {
		return fmt.Errorf("belief: no admissible hyperparameters for %d training points", len(locs))
	}

	m.kern.lengthscale = bestLen
	m.kern.variance = bestVar
	m.invalidate()
	return nil
}

// logStep maps grid index i to a multiplier in [e^-span, e^span].
func logStep(i int, span float64) float64 {
	frac := float64(i)/float64(fitGridSide-1)*2 - 1
	return math.Exp(frac * span)
}
