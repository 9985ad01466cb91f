// Package grid holds the small discretization helpers shared by the belief
// model, the planning agent and the synthetic environments.
package grid

import (
	"github.com/fieldscout/fieldscout/pkg/core"
)

// Linspace returns n evenly spaced values from lo to hi inclusive.
// n < 2 collapses to a single point at lo.
func Linspace(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi // avoid drift on the endpoint
	return out
}

// Mesh2D returns the row-major list of {x, y} points of an nx-by-ny grid
// spanning the extent.
func Mesh2D(e core.Extent, nx, ny int) [][]float64 {
	xs := Linspace(e.Xmin, e.Xmax, nx)
	ys := Linspace(e.Ymin, e.Ymax, ny)
	pts := make([][]float64, 0, nx*ny)
	for _, y := range ys {
		for _, x := range xs {
			pts = append(pts, []float64{x, y})
		}
	}
	return pts
}

// WithTime widens 2-D points to {x, y, t}. Points already carrying a third
// coordinate are copied unchanged.
func WithTime(pts [][]float64, t int) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		if len(p) >= 3 {
			q := make([]float64, len(p))
			copy(q, p)
			out[i] = q
			continue
		}
		out[i] = []float64{p[0], p[1], float64(t)}
	}
	return out
}
