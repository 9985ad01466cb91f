// Package experiment wires complete runs: the ground-truth field, the
// obstacle world, the candidate generator, metric sinks and the agent,
// then scores the outcome against the field's known maximum. Sweep fans
// whole grids of trials out over a bounded worker pool.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/fieldscout/fieldscout/internal/export"
	"github.com/fieldscout/fieldscout/pkg/agent"
	"github.com/fieldscout/fieldscout/pkg/config"
	"github.com/fieldscout/fieldscout/pkg/core"
	"github.com/fieldscout/fieldscout/pkg/environment"
	"github.com/fieldscout/fieldscout/pkg/metrics"
	"github.com/fieldscout/fieldscout/pkg/paths"
)

// Summary scores a finished run against the ground truth only the
// experiment knows. Regret is the gap between the field's true maximum and
// the best value the agent actually observed.
type Summary struct {
	TrueMax    float64
	TrueMaxLoc []float64
	RunningMax float64
	Regret     float64
	MeanValue  float64
	Iterations int
	Distance   float64
}

// Outcome bundles one run's result with its summary.
type Outcome struct {
	RunID   string
	Variant string
	Seed    int64
	Result  *agent.Result
	Summary Summary
}

// Experiment owns one configured run. Build with New, execute once with
// Run; a second Run fails the way a second agent run does.
type Experiment struct {
	cfg       config.Run
	logger    *slog.Logger
	field     *environment.Field
	ag        *agent.Agent
	collector *metrics.Collector
	stats     *metrics.CSVSink
}

// New validates the configuration and assembles the field, world,
// generator, sinks and agent for one run. The seed drives a single source
// shared by the field draw and the agent.
func New(cfg config.Run, logger *slog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	field, err := buildField(cfg, rng)
	if err != nil {
		return nil, err
	}
	world := buildWorld(cfg)

	gen, err := paths.New(paths.Strategy(cfg.Paths.Strategy),
		paths.WithFrontierSize(cfg.Paths.FrontierSize),
		paths.WithHorizon(cfg.Paths.Horizon),
		paths.WithTurningRadius(cfg.Paths.TurningRadius),
		paths.WithSampleStep(cfg.Paths.SampleStep),
	)
	if err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}

	collector := metrics.NewCollector(0)
	sinks := []core.Sink{collector, metrics.NewLogSink(logger)}
	var stats *metrics.CSVSink
	if cfg.Output.StatsFile != "" {
		stats, err = metrics.NewCSVFile(cfg.Output.StatsFile)
		if err != nil {
			return nil, fmt.Errorf("experiment: %w", err)
		}
		sinks = append(sinks, stats)
	}
	var exporter core.Exporter
	if cfg.Output.ObservationsFile != "" {
		exporter = export.File(cfg.Output.ObservationsFile)
	}

	ag, err := agent.New(cfg, agent.Deps{
		Sampler:   field,
		Generator: gen,
		World:     world,
		Sink:      metrics.Tee(sinks...),
		Exporter:  exporter,
		Logger:    logger,
		Rng:       rng,
	})
	if err != nil {
		if stats != nil {
			stats.Close()
		}
		return nil, err
	}

	return &Experiment{
		cfg:       cfg,
		logger:    logger,
		field:     field,
		ag:        ag,
		collector: collector,
		stats:     stats,
	}, nil
}

// buildField draws a fresh synthetic field, or rebuilds one from a saved
// truth dump when the configuration names a dataset.
func buildField(cfg config.Run, rng *rand.Rand) (*environment.Field, error) {
	opts := []environment.Option{
		environment.WithExtent(cfg.Extent),
		environment.WithGridSize(cfg.World.GridSize),
		environment.WithLengthscale(cfg.World.Lengthscale),
		environment.WithVariance(cfg.World.Variance),
		environment.WithSensorNoise(cfg.World.Noise),
		environment.WithDrift(cfg.World.DriftX, cfg.World.DriftY),
		environment.WithRand(rng),
	}
	if cfg.World.DatasetFile != "" {
		locs, vals, err := export.ReadColumnarFile(cfg.World.DatasetFile)
		if err != nil {
			return nil, fmt.Errorf("experiment: world dataset: %w", err)
		}
		f, err := environment.FromDataset(locs, vals, opts...)
		if err != nil {
			return nil, fmt.Errorf("experiment: %w", err)
		}
		return f, nil
	}
	f, err := environment.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}
	return f, nil
}

func buildWorld(cfg config.Run) core.World {
	if len(cfg.World.Obstacles) == 0 {
		return environment.FreeWorld{Region: cfg.Extent}
	}
	blocks := make([]environment.Rect, len(cfg.World.Obstacles))
	for i, r := range cfg.World.Obstacles {
		blocks[i] = environment.Rect{Xmin: r.Xmin, Xmax: r.Xmax, Ymin: r.Ymin, Ymax: r.Ymax}
	}
	return environment.BlockWorld{Region: cfg.Extent, Blocks: blocks}
}

// Field returns the ground-truth field, for rendering and tests.
func (e *Experiment) Field() *environment.Field { return e.field }

// Run executes the run, closes the stats file and scores the outcome.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	res, err := e.ag.Run(ctx)
	if e.stats != nil {
		if cerr := e.stats.Close(); cerr != nil {
			e.logger.Warn("closing stats file failed", slog.String("error", cerr.Error()))
		}
		e.stats = nil
	}
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		RunID:   res.RunID,
		Variant: e.cfg.Reward.Variant,
		Seed:    e.cfg.Seed,
		Result:  res,
		Summary: e.summarize(res),
	}
	e.logger.Info("experiment complete",
		slog.String("run", out.RunID),
		slog.String("variant", out.Variant),
		slog.Int64("seed", out.Seed),
		slog.Float64("true_max", out.Summary.TrueMax),
		slog.Float64("running_max", out.Summary.RunningMax),
		slog.Float64("regret", out.Summary.Regret),
		slog.Float64("distance", out.Summary.Distance),
	)
	return out, nil
}

func (e *Experiment) summarize(res *agent.Result) Summary {
	var sum float64
	n := 0
	for _, rec := range e.collector.Records() {
		if !math.IsNaN(rec.Value) {
			sum += rec.Value
			n++
		}
	}
	mean := math.NaN()
	if n > 0 {
		mean = sum / float64(n)
	}
	return Summary{
		TrueMax:    e.field.MaxValue(),
		TrueMaxLoc: e.field.MaxLocation(),
		RunningMax: res.RunningMax,
		Regret:     e.field.MaxValue() - res.RunningMax,
		MeanValue:  mean,
		Iterations: res.Iterations,
		Distance:   res.Distance,
	}
}
