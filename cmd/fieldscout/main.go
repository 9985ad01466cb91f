package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fieldscout/fieldscout/internal/export"
	"github.com/fieldscout/fieldscout/internal/grid"
	"github.com/fieldscout/fieldscout/pkg/config"
	"github.com/fieldscout/fieldscout/pkg/environment"
	"github.com/fieldscout/fieldscout/pkg/experiment"
	"github.com/fieldscout/fieldscout/pkg/reward"
)

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	root := &cobra.Command{
		Use:   "fieldscout",
		Short: "Fieldscout plans informative sensing paths over an unknown scalar field using a GP belief and acquisition-driven trajectory selection.",
	}
	root.AddCommand(newRunCmd(), newSweepCmd(), newWorldCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the named YAML file, falling back to FIELDSCOUT_CONFIG
// and then to the built-in defaults.
func loadConfig(path string) (config.Run, error) {
	if path == "" {
		path = os.Getenv("FIELDSCOUT_CONFIG")
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg config.Run) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Logging.SlogLevel(),
	}))
}

// signalContext cancels the returned context on interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		seed       int64
		variant    string
		mode       string
		iterations int
		budget     int
		statsFile  string
		obsFile    string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single planning experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if flags.Changed("variant") {
				cfg.Reward.Variant = variant
			}
			if flags.Changed("mode") {
				cfg.Planning.Mode = mode
			}
			if flags.Changed("iterations") {
				cfg.Iterations = iterations
			}
			if flags.Changed("budget") {
				cfg.Planning.Budget = budget
			}
			if flags.Changed("stats") {
				cfg.Output.StatsFile = statsFile
			}
			if flags.Changed("observations") {
				cfg.Output.ObservationsFile = obsFile
			}
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			} else if lvl := os.Getenv("FIELDSCOUT_LOG"); lvl != "" {
				cfg.Logging.Level = lvl
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			e, err := experiment.New(cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			out, err := e.Run(ctx)
			if err != nil {
				return err
			}
			printOutcome(out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML run configuration")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().StringVar(&variant, "variant", "", "reward variant (mean-ucb | info-gain | exp-improve | mes | gumbel)")
	cmd.Flags().StringVar(&mode, "mode", "", "planning mode (myopic | lookahead)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "planning iterations")
	cmd.Flags().IntVar(&budget, "budget", 0, "lookahead computation budget")
	cmd.Flags().StringVar(&statsFile, "stats", "", "per-iteration stats CSV path")
	cmd.Flags().StringVar(&obsFile, "observations", "", "final observation dump path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug | info | warn | error)")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var (
		configPath string
		variants   []string
		seeds      []int64
		trials     int
		parallel   int
		statsFile  string
		obsFile    string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a grid of experiments across reward variants and seeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("stats") {
				cfg.Output.StatsFile = statsFile
			}
			if flags.Changed("observations") {
				cfg.Output.ObservationsFile = obsFile
			}
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			} else if lvl := os.Getenv("FIELDSCOUT_LOG"); lvl != "" {
				cfg.Logging.Level = lvl
			}
			if len(seeds) == 0 {
				for s := 0; s < trials; s++ {
					seeds = append(seeds, int64(s))
				}
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			outs, err := experiment.Sweep(ctx, cfg, experiment.Grid(variants, seeds), parallel, newLogger(cfg))
			if err != nil {
				return err
			}
			printSweep(variants, outs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML run configuration")
	cmd.Flags().StringSliceVar(&variants, "variants", []string{
		string(reward.MeanUCB),
		string(reward.InfoGain),
		string(reward.ExpImprove),
		string(reward.MES),
		string(reward.Gumbel),
	}, "reward variants to sweep")
	cmd.Flags().Int64SliceVar(&seeds, "seeds", nil, "explicit seeds (overrides --trials)")
	cmd.Flags().IntVar(&trials, "trials", 3, "number of seeds per variant when --seeds is unset")
	cmd.Flags().IntVar(&parallel, "parallel", runtime.NumCPU(), "maximum concurrent trials")
	cmd.Flags().StringVar(&statsFile, "stats", "", "per-iteration stats CSV path (suffixed per trial)")
	cmd.Flags().StringVar(&obsFile, "observations", "", "final observation dump path (suffixed per trial)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug | info | warn | error)")
	return cmd
}

func newWorldCmd() *cobra.Command {
	var (
		configPath string
		seed       int64
		outPath    string
	)
	cmd := &cobra.Command{
		Use:   "world",
		Short: "Draw a ground-truth field and save it for reproducible runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(cfg.Seed))
			field, err := environment.New(
				environment.WithExtent(cfg.Extent),
				environment.WithGridSize(cfg.World.GridSize),
				environment.WithLengthscale(cfg.World.Lengthscale),
				environment.WithVariance(cfg.World.Variance),
				environment.WithSensorNoise(cfg.World.Noise),
				environment.WithDrift(cfg.World.DriftX, cfg.World.DriftY),
				environment.WithRand(rng),
			)
			if err != nil {
				return err
			}

			pts := grid.Mesh2D(cfg.Extent, cfg.World.GridSize, cfg.World.GridSize)
			vals := make([]float64, len(pts))
			for i, p := range pts {
				v, err := field.Truth(p[0], p[1], 0)
				if err != nil {
					return fmt.Errorf("evaluate truth at (%v, %v): %w", p[0], p[1], err)
				}
				vals[i] = v
			}
			if err := export.WriteColumnarFile(outPath, pts, vals); err != nil {
				return err
			}
			fmt.Printf("wrote %d ground-truth points to %s (max %.4f at (%.2f, %.2f))\n",
				len(pts), outPath, field.MaxValue(), field.MaxLocation()[0], field.MaxLocation()[1])
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML run configuration")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for the field draw")
	cmd.Flags().StringVar(&outPath, "out", "world.txt", "dataset file to write")
	return cmd
}

func printOutcome(out *experiment.Outcome) {
	fmt.Printf("run %s\n", out.RunID)
	fmt.Printf("  variant      %s (seed %d)\n", out.Variant, out.Seed)
	fmt.Printf("  iterations   %d (%s)\n", out.Summary.Iterations, out.Result.Termination)
	fmt.Printf("  distance     %.3f\n", out.Summary.Distance)
	fmt.Printf("  running max  %.4f at (%.2f, %.2f)\n",
		out.Summary.RunningMax, out.Result.RunningMaxLoc.X, out.Result.RunningMaxLoc.Y)
	fmt.Printf("  true max     %.4f (regret %.4f)\n", out.Summary.TrueMax, out.Summary.Regret)
}

// printSweep lists every trial and then aggregates regret and distance per
// variant, in the order the variants were requested.
func printSweep(variants []string, outs []*experiment.Outcome) {
	for _, out := range outs {
		fmt.Printf("%-12s seed %-4d regret %8.4f  distance %8.3f  iterations %d\n",
			out.Variant, out.Seed, out.Summary.Regret, out.Summary.Distance, out.Summary.Iterations)
	}
	fmt.Println()
	for _, v := range variants {
		var regret, dist float64
		n := 0
		for _, out := range outs {
			if out.Variant != v {
				continue
			}
			regret += out.Summary.Regret
			dist += out.Summary.Distance
			n++
		}
		if n == 0 {
			continue
		}
		fmt.Printf("%-12s mean regret %8.4f  mean distance %8.3f  over %d seeds\n",
			v, regret/float64(n), dist/float64(n), n)
	}
}
