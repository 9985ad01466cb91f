// Package search provides the lookahead planner: Monte Carlo tree search
// over candidate trajectories. Rollouts run against cloned belief snapshots
// that absorb posterior-mean pseudo-observations, so multi-step value
// estimates account for what the agent would learn along the way without
// ever touching the live model.
package search

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/fieldscout/fieldscout/pkg/core"
	"github.com/fieldscout/fieldscout/pkg/reward"
)

// Policy selects the tree's expansion rule.
type Policy string

const (
	// UCT admits every candidate child before exploiting.
	UCT Policy = "uct"
	// DPW caps children at ceil(k N^alpha), widening as visits accumulate.
	DPW Policy = "dpw"
)

// ErrUnknownPolicy reports a policy tag outside the closed set.
var ErrUnknownPolicy = errors.New("unknown tree policy")

// defaultMaximaDraws is how many posterior maxima the planner samples when
// an entropy-family request arrives without them.
const defaultMaximaDraws = 3

// Belief is the rollout surface: posterior queries plus the pseudo
// observation fold-in. *belief.Model satisfies it.
type Belief interface {
	reward.Model
	Add(locs [][]float64, vals []float64) error
}

// Request is one planning invocation. Snapshot must return a fresh copy of
// the live belief on every call; the planner never sees the live model.
type Request struct {
	Snapshot func() Belief
	Pose     core.Pose
	Time     int
	World    core.World
	Params   reward.Params
	Rng      *rand.Rand
}

// Result carries the planner's choice plus everything the agent logs.
type Result struct {
	Chosen   core.Trajectory
	Value    float64
	Explored []core.Trajectory
	Values   []float64
	Maxima   *reward.MaximaSample
}

// Planner runs budgeted tree search. Safe to reuse across iterations; each
// Plan call builds a fresh tree.
type Planner struct {
	budget   int
	depth    int
	explore  float64
	policy   Policy
	dpwK     float64
	dpwAlpha float64
	gen      core.Generator
	eval     *reward.Evaluator
	logger   *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithBudget sets the number of tree-search iterations per Plan call.
func WithBudget(n int) Option { return func(p *Planner) { p.budget = n } }

// WithRolloutDepth sets how many trajectories deep a rollout simulates.
func WithRolloutDepth(d int) Option { return func(p *Planner) { p.depth = d } }

// WithExploration sets the UCB1 exploration constant.
func WithExploration(c float64) Option { return func(p *Planner) { p.explore = c } }

// WithPolicy selects the expansion rule, UCT or DPW.
func WithPolicy(pol Policy) Option { return func(p *Planner) { p.policy = pol } }

// WithWidening sets the DPW cap parameters k and alpha.
func WithWidening(k, alpha float64) Option {
	return func(p *Planner) { p.dpwK, p.dpwAlpha = k, alpha }
}

// WithLogger sets the planner's logger.
func WithLogger(l *slog.Logger) Option { return func(p *Planner) { p.logger = l } }

// New builds a planner around a candidate generator and an evaluator.
func New(gen core.Generator, eval *reward.Evaluator, opts ...Option) (*Planner, error) {
	if gen == nil {
		return nil, errors.New("search: candidate generator is required")
	}
	if eval == nil {
		return nil, errors.New("search: reward evaluator is required")
	}
	p := &Planner{
		budget:   250,
		depth:    3,
		explore:  math.Sqrt2,
		policy:   UCT,
		dpwK:     1,
		dpwAlpha: 0.5,
		gen:      gen,
		eval:     eval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	switch p.policy {
	case UCT, DPW:
	default:
		return nil, fmt.Errorf("search: %w: %q", ErrUnknownPolicy, p.policy)
	}
	if p.budget < 1 {
		return nil, fmt.Errorf("search: budget must be at least 1, got %d", p.budget)
	}
	if p.depth < 1 {
		return nil, fmt.Errorf("search: rollout depth must be at least 1, got %d", p.depth)
	}
	if p.dpwK <= 0 || p.dpwAlpha <= 0 || p.dpwAlpha > 1 {
		return nil, fmt.Errorf("search: widening needs k > 0 and alpha in (0, 1], got k=%v alpha=%v", p.dpwK, p.dpwAlpha)
	}
	return p, nil
}

// Plan searches from the request's pose and returns the best root
// trajectory found within budget. Exhausting the budget is not an error:
// the highest-valued root child so far is returned. A pose with no
// candidates at all returns core.ErrNoCandidates.
func (p *Planner) Plan(req Request) (*Result, error) {
	if req.Snapshot == nil {
		return nil, errors.New("search: request needs a belief snapshot factory")
	}
	if req.Rng == nil {
		return nil, errors.New("search: request needs a random source")
	}
	if req.World == nil {
		return nil, errors.New("search: request needs a world")
	}

	rootCands := p.gen.Generate(req.Pose, req.Time, req.World)
	if len(rootCands) == 0 {
		return nil, core.ErrNoCandidates
	}

	params := req.Params
	if p.eval.NeedsMaxima() && params.Maxima == nil {
		maxima, err := p.sampleMaxima(req)
		if err != nil {
			return nil, fmt.Errorf("search: sample maxima: %w", err)
		}
		params.Maxima = maxima
	}

	root := &node{pose: req.Pose, expanded: true, remaining: rootCands}
	for i := 0; i < p.budget; i++ {
		p.simulate(root, req, params)
	}

	chosen := p.bestChild(root, req.Rng)
	explored := make([]core.Trajectory, len(root.children))
	values := make([]float64, len(root.children))
	for i, ch := range root.children {
		explored[i] = ch.traj
		values[i] = ch.mean()
	}
	p.logger.Debug("lookahead complete",
		slog.Int("time", req.Time),
		slog.Int("root_children", len(root.children)),
		slog.Float64("value", chosen.mean()),
	)
	return &Result{
		Chosen:   chosen.traj,
		Value:    chosen.mean(),
		Explored: explored,
		Values:   values,
		Maxima:   params.Maxima,
	}, nil
}

func (p *Planner) sampleMaxima(req Request) (*reward.MaximaSample, error) {
	if p.eval.Variant() == reward.Gumbel {
		return reward.SampleMaximaGumbel(req.Snapshot(), req.World, req.Time, defaultMaximaDraws, req.Rng)
	}
	return reward.SampleMaxima(req.Snapshot(), req.World, req.Time, defaultMaximaDraws, req.Rng)
}
