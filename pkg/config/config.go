// Package config defines the run configuration surface. Everything is
// validated eagerly at load time so nothing downstream has to re-check
// variant tags or ranges.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fieldscout/fieldscout/pkg/core"
	"github.com/fieldscout/fieldscout/pkg/paths"
	"github.com/fieldscout/fieldscout/pkg/reward"
	"github.com/fieldscout/fieldscout/pkg/search"
)

// ErrInvalid wraps every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Planning modes.
const (
	ModeMyopic    = "myopic"
	ModeLookahead = "lookahead"
)

// Run is one complete run configuration.
type Run struct {
	Name       string         `yaml:"name"`
	Seed       int64          `yaml:"seed"`
	Iterations int            `yaml:"iterations"`
	Dimension  int            `yaml:"dimension"`
	Extent     core.Extent    `yaml:"extent"`
	Start      Pose           `yaml:"start"`
	Reward     RewardConfig   `yaml:"reward"`
	Paths      PathsConfig    `yaml:"paths"`
	Planning   PlanningConfig `yaml:"planning"`
	Kernel     KernelConfig   `yaml:"kernel"`
	World      WorldConfig    `yaml:"world"`
	Output     OutputConfig   `yaml:"output"`
	Logging    LogConfig      `yaml:"logging"`
}

// Pose is the starting pose.
type Pose struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Heading float64 `yaml:"heading"`
}

// RewardConfig selects the acquisition function.
type RewardConfig struct {
	Variant  string `yaml:"variant"`
	GoalOnly bool   `yaml:"goal_only"`
	UseCost  bool   `yaml:"use_cost"`
}

// PathsConfig selects the candidate generator.
type PathsConfig struct {
	Strategy      string  `yaml:"strategy"`
	FrontierSize  int     `yaml:"frontier_size"`
	Horizon       float64 `yaml:"horizon"`
	TurningRadius float64 `yaml:"turning_radius"`
	SampleStep    float64 `yaml:"sample_step"`
}

// PlanningConfig selects myopic or lookahead action selection.
type PlanningConfig struct {
	Mode   string `yaml:"mode"`
	Policy string `yaml:"policy"`
	Budget int    `yaml:"budget"`
	Depth  int    `yaml:"rollout_depth"`
}

// KernelConfig carries the belief hyperparameters and their optional
// sources. DatasetFile holds kernel-training observations, PriorFile holds
// observations folded in at construction, SnapshotFile holds a previously
// saved kernel.
type KernelConfig struct {
	Name         string  `yaml:"name"`
	Lengthscale  float64 `yaml:"lengthscale"`
	Variance     float64 `yaml:"variance"`
	Noise        float64 `yaml:"noise"`
	SnapshotFile string  `yaml:"snapshot_file"`
	DatasetFile  string  `yaml:"dataset_file"`
	PriorFile    string  `yaml:"prior_file"`
}

// WorldConfig shapes the synthetic ground-truth field. DatasetFile, when
// set, rebuilds the field from a saved truth dump instead of drawing a
// fresh one.
type WorldConfig struct {
	GridSize    int     `yaml:"grid_size"`
	Lengthscale float64 `yaml:"lengthscale"`
	Variance    float64 `yaml:"variance"`
	Noise       float64 `yaml:"noise"`
	DriftX      float64 `yaml:"drift_x"`
	DriftY      float64 `yaml:"drift_y"`
	DatasetFile string  `yaml:"dataset_file"`
	Obstacles   []Rect  `yaml:"obstacles"`
}

// Rect is an axis-aligned obstacle.
type Rect struct {
	Xmin float64 `yaml:"xmin"`
	Xmax float64 `yaml:"xmax"`
	Ymin float64 `yaml:"ymin"`
	Ymax float64 `yaml:"ymax"`
}

// OutputConfig names the run's artifacts. Empty paths disable the artifact.
type OutputConfig struct {
	StatsFile        string `yaml:"stats_file"`
	ObservationsFile string `yaml:"observations_file"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level to slog. Unset means Info.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the baseline configuration: a 2-D myopic mean-ucb run on
// a 10x10 synthetic field.
func Default() Run {
	return Run{
		Name:       "fieldscout",
		Seed:       0,
		Iterations: 50,
		Dimension:  2,
		Extent:     core.Extent{Xmin: 0, Xmax: 10, Ymin: 0, Ymax: 10},
		Start:      Pose{X: 5, Y: 5},
		Reward:     RewardConfig{Variant: string(reward.MeanUCB)},
		Paths: PathsConfig{
			Strategy:      string(paths.Straight),
			FrontierSize:  10,
			Horizon:       1.5,
			TurningRadius: 0.11,
			SampleStep:    0.1,
		},
		Planning: PlanningConfig{
			Mode:   ModeMyopic,
			Policy: string(search.UCT),
			Budget: 250,
			Depth:  3,
		},
		Kernel: KernelConfig{
			Name:        "rbf",
			Lengthscale: 1,
			Variance:    100,
			Noise:       1,
		},
		World: WorldConfig{
			GridSize:    20,
			Lengthscale: 1,
			Variance:    100,
			Noise:       1,
		},
		Logging: LogConfig{Level: "info"},
	}
}

// Load reads a YAML run configuration layered over Default and validates it.
func Load(path string) (Run, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Run{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Run{}, err
	}
	return cfg, nil
}

// Validate checks every field eagerly. All failures wrap ErrInvalid.
func (c Run) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalid, c.Iterations)
	}
	if c.Dimension != 2 && c.Dimension != 3 {
		return fmt.Errorf("%w: dimension must be 2 or 3, got %d", ErrInvalid, c.Dimension)
	}
	if c.Extent.Xmax <= c.Extent.Xmin || c.Extent.Ymax <= c.Extent.Ymin {
		return fmt.Errorf("%w: degenerate extent %+v", ErrInvalid, c.Extent)
	}
	switch reward.Variant(c.Reward.Variant) {
	case reward.MeanUCB, reward.InfoGain, reward.ExpImprove, reward.MES, reward.Gumbel:
	default:
		return fmt.Errorf("%w: unknown reward variant %q", ErrInvalid, c.Reward.Variant)
	}
	switch paths.Strategy(c.Paths.Strategy) {
	case paths.Straight, paths.Arc, paths.EqualArc:
	default:
		return fmt.Errorf("%w: unknown path strategy %q", ErrInvalid, c.Paths.Strategy)
	}
	if c.Paths.FrontierSize < 1 {
		return fmt.Errorf("%w: frontier size must be positive, got %d", ErrInvalid, c.Paths.FrontierSize)
	}
	if c.Paths.Horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive, got %v", ErrInvalid, c.Paths.Horizon)
	}
	if c.Paths.SampleStep <= 0 || c.Paths.SampleStep > c.Paths.Horizon {
		return fmt.Errorf("%w: sample step must lie in (0, horizon], got %v", ErrInvalid, c.Paths.SampleStep)
	}
	if c.Paths.TurningRadius <= 0 {
		return fmt.Errorf("%w: turning radius must be positive, got %v", ErrInvalid, c.Paths.TurningRadius)
	}
	switch c.Planning.Mode {
	case ModeMyopic, ModeLookahead:
	default:
		return fmt.Errorf("%w: unknown planning mode %q", ErrInvalid, c.Planning.Mode)
	}
	switch search.Policy(c.Planning.Policy) {
	case search.UCT, search.DPW:
	default:
		return fmt.Errorf("%w: unknown tree policy %q", ErrInvalid, c.Planning.Policy)
	}
	if c.Planning.Budget < 1 {
		return fmt.Errorf("%w: computation budget must be positive, got %d", ErrInvalid, c.Planning.Budget)
	}
	if c.Planning.Depth < 1 {
		return fmt.Errorf("%w: rollout depth must be positive, got %d", ErrInvalid, c.Planning.Depth)
	}
	switch c.Kernel.Name {
	case "rbf", "matern32":
	default:
		return fmt.Errorf("%w: unknown kernel %q", ErrInvalid, c.Kernel.Name)
	}
	if c.Kernel.Lengthscale <= 0 || c.Kernel.Variance <= 0 || c.Kernel.Noise <= 0 {
		return fmt.Errorf("%w: kernel hyperparameters must be positive", ErrInvalid)
	}
	if c.Kernel.DatasetFile != "" && c.Kernel.SnapshotFile != "" {
		return fmt.Errorf("%w: kernel dataset and kernel snapshot are conflicting hyperparameter sources", ErrInvalid)
	}
	if c.World.GridSize < 2 {
		return fmt.Errorf("%w: world grid size must be at least 2, got %d", ErrInvalid, c.World.GridSize)
	}
	if c.World.Lengthscale <= 0 || c.World.Variance <= 0 {
		return fmt.Errorf("%w: world hyperparameters must be positive", ErrInvalid)
	}
	if c.World.Noise < 0 {
		return fmt.Errorf("%w: world sensor noise must be non-negative, got %v", ErrInvalid, c.World.Noise)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Logging.Level)
	}
	return nil
}
