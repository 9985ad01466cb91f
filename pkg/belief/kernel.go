package belief

import (
	"fmt"
	"math"
)

// Kernel names accepted by New, Fit and LoadKernel.
const (
	KernelRBF      = "rbf"
	KernelMatern32 = "matern32"
)

// kernel is a stationary covariance function over R^d, tagged by name so it
// can round-trip through a snapshot file.
type kernel struct {
	name        string
	lengthscale float64
	variance    float64
}

func (k kernel) validate() error {
	switch k.name {
	case KernelRBF, KernelMatern32:
	default:
		return fmt.Errorf("unknown kernel %q", k.name)
	}
	if k.lengthscale <= 0 {
		return fmt.Errorf("lengthscale must be positive, got %v", k.lengthscale)
	}
	if k.variance <= 0 {
		return fmt.Errorf("variance must be positive, got %v", k.variance)
	}
	return nil
}

func (k kernel) eval(a, b []float64) float64 {
	r := euclidean(a, b)
	switch k.name {
	case KernelMatern32:
		s := math.Sqrt(3) * r / k.lengthscale
		return k.variance * (1 + s) * math.Exp(-s)
	default:
		h := r / k.lengthscale
		return k.variance * math.Exp(-0.5*h*h)
	}
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
