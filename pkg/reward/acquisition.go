package reward

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ucbDelta and ucbDim parameterize the confidence schedule
// beta_t = 2 log(d pi^2 (t+1)^2 / (6 delta)).
const (
	ucbDelta = 0.9
	ucbDim   = 20.0
)

func meanUCB(t int, locs [][]float64, m Model) float64 {
	mean, variance, err := m.Predict(locs)
	if err != nil {
		return math.NaN()
	}
	pit := math.Pi * math.Pi * float64(t+1) * float64(t+1) / 6.0
	beta := 2 * math.Log(ucbDim*pit/ucbDelta)
	root := math.Sqrt(beta)
	var sum float64
	for i := range mean {
		sum += mean[i] + root*math.Sqrt(variance[i])
	}
	return sum
}

// infoGain is the mutual information between the waypoints and the field:
// 1/2 log det(I + sigma^-2 Cov).
func infoGain(locs [][]float64, m Model) float64 {
	cov, err := m.Cov(locs)
	if err != nil {
		return math.NaN()
	}
	noise := m.Noise()
	if noise <= 0 {
		return math.NaN()
	}
	n := cov.SymmetricDim()
	scaled := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := cov.At(i, j) / noise
			if i == j {
				v++
			}
			scaled.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(scaled) {
		return math.NaN()
	}
	return 0.5 * chol.LogDet()
}

func expectedImprovement(locs [][]float64, m Model, best []float64) float64 {
	if len(best) == 0 {
		return math.NaN()
	}
	eta := best[0]
	for _, b := range best[1:] {
		if b > eta {
			eta = b
		}
	}
	mean, variance, err := m.Predict(locs)
	if err != nil {
		return math.NaN()
	}
	var sum float64
	for i := range mean {
		diff := mean[i] - eta
		sd := math.Sqrt(variance[i])
		if sd == 0 {
			if diff > 0 {
				sum += diff
			}
			continue
		}
		z := diff / sd
		sum += diff*distuv.UnitNormal.CDF(z) + sd*distuv.UnitNormal.Prob(z)
	}
	return sum
}

// maxValueEntropy averages, over the sampled maxima, the per-waypoint
// entropy reduction gamma phi(gamma) / (2 Phi(gamma)) - ln Phi(gamma) with
// gamma = (max - mean) / sd.
func maxValueEntropy(locs [][]float64, m Model, maxima *MaximaSample) float64 {
	if maxima == nil || len(maxima.Values) == 0 {
		return math.NaN()
	}
	mean, variance, err := m.Predict(locs)
	if err != nil {
		return math.NaN()
	}
	var sum float64
	for _, mv := range maxima.Values {
		for i := range mean {
			sd := math.Sqrt(variance[i])
			if sd < 1e-12 {
				// A fully determined waypoint carries no entropy about the max.
				continue
			}
			gamma := (mv - mean[i]) / sd
			cdf := distuv.UnitNormal.CDF(gamma)
			if cdf <= 0 {
				continue
			}
			sum += gamma*distuv.UnitNormal.Prob(gamma)/(2*cdf) - math.Log(cdf)
		}
	}
	return sum / float64(len(maxima.Values))
}
