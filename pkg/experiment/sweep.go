package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fieldscout/fieldscout/pkg/config"
)

// Trial names one run in a sweep: a reward variant paired with a seed.
// An empty variant keeps the base configuration's.
type Trial struct {
	Variant string
	Seed    int64
}

// Grid crosses variants with seeds, variants outermost.
func Grid(variants []string, seeds []int64) []Trial {
	trials := make([]Trial, 0, len(variants)*len(seeds))
	for _, v := range variants {
		for _, s := range seeds {
			trials = append(trials, Trial{Variant: v, Seed: s})
		}
	}
	return trials
}

// Sweep runs one experiment per trial over the base configuration, at most
// parallel at a time. Output file names get a per-trial suffix so
// concurrent runs never share an artifact. Results keep trial order; the
// first failure cancels the remaining trials.
func Sweep(ctx context.Context, base config.Run, trials []Trial, parallel int, logger *slog.Logger) ([]*Outcome, error) {
	if len(trials) == 0 {
		return nil, errors.New("experiment: sweep needs at least one trial")
	}
	if parallel < 1 {
		parallel = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]*Outcome, len(trials))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, tr := range trials {
		i, tr := i, tr
		g.Go(func() error {
			cfg := base
			cfg.Seed = tr.Seed
			if tr.Variant != "" {
				cfg.Reward.Variant = tr.Variant
			}
			tag := fmt.Sprintf("-%s-s%d", cfg.Reward.Variant, cfg.Seed)
			cfg.Output.StatsFile = suffixPath(base.Output.StatsFile, tag)
			cfg.Output.ObservationsFile = suffixPath(base.Output.ObservationsFile, tag)

			e, err := New(cfg, logger.With(slog.Int("trial", i)))
			if err != nil {
				return fmt.Errorf("trial %d (%s, seed %d): %w", i, cfg.Reward.Variant, cfg.Seed, err)
			}
			o, err := e.Run(ctx)
			if err != nil {
				return fmt.Errorf("trial %d (%s, seed %d): %w", i, cfg.Reward.Variant, cfg.Seed, err)
			}
			out[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// suffixPath inserts a tag before the file extension. Empty paths stay
// empty so disabled artifacts stay disabled.
func suffixPath(path, tag string) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + tag + ext
}
