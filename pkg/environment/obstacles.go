package environment

import (
	"math/rand"

	"github.com/fieldscout/fieldscout/pkg/core"
)

// FreeWorld is an obstacle-free region.
type FreeWorld struct {
	Region core.Extent
}

func (w FreeWorld) Blocked(x, y float64) bool { return false }

func (w FreeWorld) Extent() core.Extent { return w.Region }

// Rect is an axis-aligned obstacle. Boundaries count as blocked.
type Rect struct {
	Xmin, Xmax float64
	Ymin, Ymax float64
}

func (r Rect) contains(x, y float64) bool {
	return x >= r.Xmin && x <= r.Xmax && y >= r.Ymin && y <= r.Ymax
}

// BlockWorld is a region scattered with rectangular obstacles.
type BlockWorld struct {
	Region core.Extent
	Blocks []Rect
}

func (w BlockWorld) Blocked(x, y float64) bool {
	for _, b := range w.Blocks {
		if b.contains(x, y) {
			return true
		}
	}
	return false
}

func (w BlockWorld) Extent() core.Extent { return w.Region }

// RandomBlocks builds a BlockWorld with n blocks of size w x h placed
// uniformly inside the region. Blocks that would cover the avoid pose are
// re-rolled so the agent never starts inside an obstacle. Placement gives
// up after 100 rejected rolls per block, so a pathological geometry yields
// fewer blocks rather than a hang.
func RandomBlocks(region core.Extent, n int, w, h float64, avoid core.Pose, rng *rand.Rand) BlockWorld {
	world := BlockWorld{Region: region, Blocks: make([]Rect, 0, n)}
	for attempts := 0; len(world.Blocks) < n && attempts < 100*n; attempts++ {
		x := region.Xmin + rng.Float64()*(region.Xmax-region.Xmin-w)
		y := region.Ymin + rng.Float64()*(region.Ymax-region.Ymin-h)
		b := Rect{Xmin: x, Xmax: x + w, Ymin: y, Ymax: y + h}
		if b.contains(avoid.X, avoid.Y) {
			continue
		}
		world.Blocks = append(world.Blocks, b)
	}
	return world
}

var (
	_ core.World = FreeWorld{}
	_ core.World = BlockWorld{}
)
