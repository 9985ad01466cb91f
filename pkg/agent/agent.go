// Package agent implements the planning agent. It owns the belief model and
// the pose: every iteration it estimates where the field's maximum sits,
// selects a trajectory (myopically or through the lookahead planner),
// records metrics, executes the trajectory against the environment, and
// folds the resulting observations back into the belief.
package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/fieldscout/fieldscout/internal/export"
	"github.com/fieldscout/fieldscout/pkg/belief"
	"github.com/fieldscout/fieldscout/pkg/config"
	"github.com/fieldscout/fieldscout/pkg/core"
	"github.com/fieldscout/fieldscout/pkg/environment"
	"github.com/fieldscout/fieldscout/pkg/reward"
	"github.com/fieldscout/fieldscout/pkg/search"
)

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateDone
)

// Planner is the lookahead seam. *search.Planner satisfies it.
type Planner interface {
	Plan(req search.Request) (*search.Result, error)
}

// Deps carries the agent's collaborators. Sampler and Generator are
// required; everything else gets a sensible default when nil.
type Deps struct {
	Sampler   core.Sampler
	Generator core.Generator
	World     core.World
	Planner   Planner
	Evaluator *reward.Evaluator
	Sink      core.Sink
	Exporter  core.Exporter
	Logger    *slog.Logger
	Rng       *rand.Rand
}

// Agent is the planning agent. Construct with New; a zero Agent is not
// usable. The agent is not safe for concurrent use: the planning loop is
// strictly sequential because every iteration's scoring depends on the
// belief produced by all prior iterations.
type Agent struct {
	id     string
	cfg    config.Run
	logger *slog.Logger
	rng    *rand.Rand

	bel     *belief.Model
	sampler core.Sampler
	world   core.World
	gen     core.Generator
	planner Planner
	eval    *reward.Evaluator

	sink     core.Sink
	exporter core.Exporter

	pose     core.Pose
	state    runState
	history  []core.Trajectory
	distance float64

	// Running max of actually observed values, with its location. The
	// history holds each strict improvement in order, for the expected
	// improvement baseline.
	maxVal  float64
	maxLoc  core.Pose
	maxHist []float64

	// Latest posterior maxima sample, kept so logging matches between
	// myopic and lookahead runs. Nil outside the entropy-family variants.
	maxima *reward.MaximaSample
}

// New validates the configuration, resolves the belief's kernel
// hyperparameters and builds the agent. Construction is all-or-nothing:
// any failure leaves nothing running.
func New(cfg config.Run, deps Deps) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Sampler == nil {
		return nil, errors.New("agent: environment sampler is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("agent: candidate generator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := deps.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	world := deps.World
	if world == nil {
		world = environment.FreeWorld{Region: cfg.Extent}
	}

	bel, err := buildBelief(cfg, logger)
	if err != nil {
		return nil, err
	}

	eval := deps.Evaluator
	if eval == nil {
		eval, err = reward.New(reward.Variant(cfg.Reward.Variant),
			reward.WithGoalOnly(cfg.Reward.GoalOnly),
			reward.WithCost(cfg.Reward.UseCost),
		)
		if err != nil {
			return nil, fmt.Errorf("agent: %w", err)
		}
	}

	planner := deps.Planner
	if planner == nil && cfg.Planning.Mode == config.ModeLookahead {
		planner, err = search.New(deps.Generator, eval,
			search.WithBudget(cfg.Planning.Budget),
			search.WithRolloutDepth(cfg.Planning.Depth),
			search.WithPolicy(search.Policy(cfg.Planning.Policy)),
			search.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("agent: build planner: %w", err)
		}
	}

	return &Agent{
		id:       "run-" + uuid.NewString(),
		cfg:      cfg,
		logger:   logger,
		rng:      rng,
		bel:      bel,
		sampler:  deps.Sampler,
		world:    world,
		gen:      deps.Generator,
		planner:  planner,
		eval:     eval,
		sink:     deps.Sink,
		exporter: deps.Exporter,
		pose:     core.Pose{X: cfg.Start.X, Y: cfg.Start.Y, Heading: cfg.Start.Heading},
		maxVal:   math.Inf(-1),
	}, nil
}

// buildBelief constructs the model and resolves its kernel hyperparameters
// through exactly one source: fit on the prior and kernel datasets jointly,
// fit on the kernel dataset alone, load a saved kernel, or keep the
// configured values. A prior dataset folds in as observations afterwards.
func buildBelief(cfg config.Run, logger *slog.Logger) (*belief.Model, error) {
	m, err := belief.New(
		belief.WithDimension(cfg.Dimension),
		belief.WithExtent(cfg.Extent),
		belief.WithKernel(cfg.Kernel.Name),
		belief.WithLengthscale(cfg.Kernel.Lengthscale),
		belief.WithVariance(cfg.Kernel.Variance),
		belief.WithNoise(cfg.Kernel.Noise),
	)
	if err != nil {
		return nil, fmt.Errorf("agent: build belief: %w", err)
	}

	var kernLocs [][]float64
	var kernVals []float64
	if cfg.Kernel.DatasetFile != "" {
		kernLocs, kernVals, err = export.ReadColumnarFile(cfg.Kernel.DatasetFile)
		if err != nil {
			return nil, fmt.Errorf("agent: kernel dataset: %w", err)
		}
	}
	var priorLocs [][]float64
	var priorVals []float64
	if cfg.Kernel.PriorFile != "" {
		priorLocs, priorVals, err = export.ReadColumnarFile(cfg.Kernel.PriorFile)
		if err != nil {
			return nil, fmt.Errorf("agent: prior dataset: %w", err)
		}
	}

	fittable := cfg.Kernel.Name == belief.KernelRBF
	switch {
	case len(kernLocs) > 0 && len(priorLocs) > 0 && fittable:
		locs := make([][]float64, 0, len(priorLocs)+len(kernLocs))
		locs = append(append(locs, priorLocs...), kernLocs...)
		vals := make([]float64, 0, len(priorVals)+len(kernVals))
		vals = append(append(vals, priorVals...), kernVals...)
		if err := m.Fit(locs, vals); err != nil {
			return nil, fmt.Errorf("agent: fit kernel: %w", err)
		}
	case len(kernLocs) > 0 && fittable:
		if err := m.Fit(kernLocs, kernVals); err != nil {
			return nil, fmt.Errorf("agent: fit kernel: %w", err)
		}
	case cfg.Kernel.SnapshotFile != "":
		if err := m.LoadKernel(cfg.Kernel.SnapshotFile); err != nil {
			return nil, fmt.Errorf("agent: load kernel: %w", err)
		}
	default:
		if len(kernLocs) > 0 {
			logger.Warn("kernel dataset ignored, kernel does not support fitting",
				slog.String("kernel", cfg.Kernel.Name))
		}
	}

	if len(priorLocs) > 0 {
		if err := m.Add(priorLocs, priorVals); err != nil {
			return nil, fmt.Errorf("agent: fold prior dataset: %w", err)
		}
	}
	return m, nil
}

// ID returns the run identifier.
func (a *Agent) ID() string { return a.id }

// Pose returns the agent's current pose.
func (a *Agent) Pose() core.Pose { return a.pose }

// Distance returns the accumulated path length.
func (a *Agent) Distance() float64 { return a.distance }

// Belief returns the live belief model.
func (a *Agent) Belief() *belief.Model { return a.bel }
