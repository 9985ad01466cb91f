package search

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/fieldscout/fieldscout/pkg/core"
	"github.com/fieldscout/fieldscout/pkg/reward"
)

// node is one tree position: the trajectory that leads into it and the pose
// at its end. remaining holds generated candidates not yet admitted as
// children.
type node struct {
	traj      core.Trajectory
	pose      core.Pose
	visits    int
	total     float64
	children  []*node
	remaining []core.Trajectory
	expanded  bool
}

func (n *node) mean() float64 {
	if n.visits == 0 {
		return math.NaN()
	}
	return n.total / float64(n.visits)
}

// simulate runs one iteration: descend up to rollout depth, scoring each
// traversed trajectory against a fresh belief snapshot that absorbs
// posterior-mean pseudo-observations between levels, then credit the whole
// return to every node on the path.
func (p *Planner) simulate(root *node, req Request, params reward.Params) {
	bel := req.Snapshot()
	cur := root
	path := make([]*node, 0, p.depth)
	var total float64
	for d := 0; d < p.depth; d++ {
		child := p.descend(cur, req, req.Time+d)
		if child == nil {
			break
		}
		score := p.eval.Evaluate(req.Time+d, child.traj, bel, params)
		if !math.IsNaN(score) {
			// Unscorable segments contribute nothing rather than poisoning
			// the whole rollout.
			total += score
		}
		path = append(path, child)
		if d+1 < p.depth {
			p.pseudoObserve(bel, child.traj, req.Time+d)
		}
		cur = child
	}
	root.visits++
	for _, n := range path {
		n.visits++
		n.total += total
	}
}

// descend picks the next node below n: admit a new child while the policy's
// width allows it, otherwise take the UCB1 argmax of the existing children.
// Returns nil at a dead end.
func (p *Planner) descend(n *node, req Request, t int) *node {
	if !n.expanded {
		n.remaining = p.gen.Generate(n.pose, t, req.World)
		n.expanded = true
	}
	width := len(n.children) + len(n.remaining)
	if p.policy == DPW {
		if w := int(math.Ceil(p.dpwK * math.Pow(float64(n.visits+1), p.dpwAlpha))); w < width {
			width = w
		}
	}
	if len(n.children) < width && len(n.remaining) > 0 {
		i := req.Rng.Intn(len(n.remaining))
		traj := n.remaining[i]
		n.remaining[i] = n.remaining[len(n.remaining)-1]
		n.remaining = n.remaining[:len(n.remaining)-1]
		child := &node{traj: traj, pose: traj.Last()}
		n.children = append(n.children, child)
		return child
	}
	if len(n.children) == 0 {
		return nil
	}
	lnN := math.Log(float64(n.visits) + 1)
	best := n.children[0]
	bestScore := math.Inf(-1)
	for _, ch := range n.children {
		score := ch.mean() + p.explore*math.Sqrt(lnN/float64(ch.visits))
		if score > bestScore {
			bestScore = score
			best = ch
		}
	}
	return best
}

// bestChild returns the root child with the highest mean value, breaking
// ties uniformly at random. With every mean NaN it falls back to a uniform
// choice, so an exhausted budget still yields a trajectory.
func (p *Planner) bestChild(root *node, rng *rand.Rand) *node {
	best := math.Inf(-1)
	var ties []*node
	for _, ch := range root.children {
		m := ch.mean()
		if math.IsNaN(m) {
			continue
		}
		switch {
		case m > best+1e-12:
			best = m
			ties = ties[:0]
			ties = append(ties, ch)
		case m >= best-1e-12:
			ties = append(ties, ch)
		}
	}
	if len(ties) == 0 {
		return root.children[rng.Intn(len(root.children))]
	}
	return ties[rng.Intn(len(ties))]
}

// pseudoObserve folds the posterior mean at the trajectory's waypoints into
// the rollout belief, standing in for the observations a real execution
// would collect. The occupied first waypoint is skipped, matching the live
// collection rule.
func (p *Planner) pseudoObserve(bel Belief, traj core.Trajectory, t int) {
	if len(traj) < 2 {
		return
	}
	locs := make([][]float64, 0, len(traj)-1)
	for _, wp := range traj[1:] {
		if bel.Dimension() == 3 {
			locs = append(locs, []float64{wp.X, wp.Y, float64(t)})
		} else {
			locs = append(locs, []float64{wp.X, wp.Y})
		}
	}
	mean, _, err := bel.Predict(locs)
	if err != nil {
		p.logger.Debug("rollout pseudo-observation skipped", slog.String("error", err.Error()))
		return
	}
	if err := bel.Add(locs, mean); err != nil {
		p.logger.Debug("rollout pseudo-observation skipped", slog.String("error", err.Error()))
	}
}
