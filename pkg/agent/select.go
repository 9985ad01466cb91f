package agent

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/fieldscout/fieldscout/pkg/core"
	"github.com/fieldscout/fieldscout/pkg/reward"
	"github.com/fieldscout/fieldscout/pkg/search"
)

// maximaDraws is how many posterior maxima the entropy-family variants
// sample per iteration.
const maximaDraws = 3

// buildParams assembles the variant's reward parameter for iteration t.
// Myopic entropy-family selection samples posterior maxima fresh and caches
// them for logging; under lookahead the planner draws its own from the
// snapshot. Expected improvement uses the running-max history myopically
// and the single current scalar under lookahead.
func (a *Agent) buildParams(t int, lookahead bool) (reward.Params, error) {
	switch a.eval.Variant() {
	case reward.MES:
		if lookahead {
			return reward.Params{}, nil
		}
		maxima, err := reward.SampleMaxima(a.bel, a.world, t, maximaDraws, a.rng)
		if err != nil {
			return reward.Params{}, fmt.Errorf("sample posterior maxima: %w", err)
		}
		a.maxima = maxima
		return reward.Params{Maxima: maxima}, nil
	case reward.Gumbel:
		if lookahead {
			return reward.Params{}, nil
		}
		maxima, err := reward.SampleMaximaGumbel(a.bel, a.world, t, maximaDraws, a.rng)
		if err != nil {
			return reward.Params{}, fmt.Errorf("sample posterior maxima: %w", err)
		}
		a.maxima = maxima
		return reward.Params{Maxima: maxima}, nil
	case reward.ExpImprove:
		if lookahead || len(a.maxHist) == 0 {
			return reward.Params{Best: []float64{a.maxVal}}, nil
		}
		return reward.Params{Best: append([]float64(nil), a.maxHist...)}, nil
	default:
		return reward.Params{}, nil
	}
}

// ChooseTrajectory scores every candidate reachable from the current pose
// and returns the best, breaking ties uniformly at random. When every score
// is NaN the choice falls back to uniform random over all candidates; the
// fallback is logged, never silent. An empty candidate set returns
// core.ErrNoCandidates.
func (a *Agent) ChooseTrajectory(t int) (core.Trajectory, float64, *core.CandidateSet, error) {
	params, err := a.buildParams(t, false)
	if err != nil {
		return nil, 0, nil, err
	}

	cands := a.gen.Generate(a.pose, t, a.world)
	if len(cands) == 0 {
		return nil, 0, nil, core.ErrNoCandidates
	}

	scores := make([]float64, len(cands))
	set := &core.CandidateSet{
		Trajectories: cands,
		Scores:       make(map[int]float64, len(cands)),
	}
	best := math.NaN()
	for i, c := range cands {
		s := a.eval.Evaluate(t, c, a.bel, params)
		scores[i] = s
		set.Scores[i] = s
		if !math.IsNaN(s) && (math.IsNaN(best) || s > best) {
			best = s
		}
	}

	var pick int
	if math.IsNaN(best) {
		// Degenerate scoring: every candidate came back NaN.
		pick = a.rng.Intn(len(cands))
		a.logger.Warn("all candidate scores are NaN, selecting uniformly at random",
			slog.Int("iteration", t),
			slog.Int("candidates", len(cands)),
			slog.String("variant", string(a.eval.Variant())),
		)
	} else {
		var ties []int
		for i, s := range scores {
			if s == best {
				ties = append(ties, i)
			}
		}
		pick = ties[a.rng.Intn(len(ties))]
	}
	return cands[pick], scores[pick], set, nil
}

// lookahead delegates selection to the tree-search planner on a cloned
// belief, then adopts the planner's maxima sample so entropy-family logging
// stays consistent with myopic runs.
func (a *Agent) lookahead(t int) (core.Trajectory, float64, error) {
	params, err := a.buildParams(t, true)
	if err != nil {
		return nil, 0, err
	}
	res, err := a.planner.Plan(search.Request{
		Snapshot: func() search.Belief { return a.bel.Clone() },
		Pose:     a.pose,
		Time:     t,
		World:    a.world,
		Params:   params,
		Rng:      a.rng,
	})
	if err != nil {
		return nil, 0, err
	}
	a.maxima = res.Maxima
	return res.Chosen, res.Value, nil
}
