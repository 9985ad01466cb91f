package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Run)
	}{
		{"zero iterations", func(c *Run) { c.Iterations = 0 }},
		{"dimension out of range", func(c *Run) { c.Dimension = 4 }},
		{"degenerate extent", func(c *Run) { c.Extent.Xmax = c.Extent.Xmin }},
		{"unknown reward variant", func(c *Run) { c.Reward.Variant = "thompson" }},
		{"unknown path strategy", func(c *Run) { c.Paths.Strategy = "spiral" }},
		{"zero frontier", func(c *Run) { c.Paths.FrontierSize = 0 }},
		{"step beyond horizon", func(c *Run) { c.Paths.SampleStep = c.Paths.Horizon * 2 }},
		{"unknown planning mode", func(c *Run) { c.Planning.Mode = "reactive" }},
		{"unknown tree policy", func(c *Run) { c.Planning.Policy = "beam" }},
		{"zero budget", func(c *Run) { c.Planning.Budget = 0 }},
		{"zero depth", func(c *Run) { c.Planning.Depth = 0 }},
		{"unknown kernel", func(c *Run) { c.Kernel.Name = "periodic" }},
		{"negative noise", func(c *Run) { c.Kernel.Noise = -1 }},
		{"conflicting kernel sources", func(c *Run) {
			c.Kernel.DatasetFile = "train.txt"
			c.Kernel.SnapshotFile = "kernel.yaml"
		}},
		{"tiny world grid", func(c *Run) { c.World.GridSize = 1 }},
		{"unknown log level", func(c *Run) { c.Logging.Level = "trace" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	doc := `
name: survey-east
seed: 42
iterations: 20
reward:
  variant: mes
planning:
  mode: lookahead
  rollout_depth: 5
world:
  drift_x: 0.25
`
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "survey-east" || cfg.Seed != 42 || cfg.Iterations != 20 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Reward.Variant != "mes" || cfg.Planning.Mode != ModeLookahead || cfg.Planning.Depth != 5 {
		t.Errorf("nested overrides not applied: %+v", cfg)
	}
	if cfg.World.DriftX != 0.25 {
		t.Errorf("drift override not applied: %v", cfg.World.DriftX)
	}
	// Untouched fields keep their defaults.
	if cfg.Dimension != 2 || cfg.Paths.FrontierSize != 10 || cfg.Planning.Budget != 250 {
		t.Errorf("defaults lost under layering: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("iterations: -3\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("Load = %v, want ErrInvalid", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestLogLevelMapping(t *testing.T) {
	if got := (LogConfig{Level: "debug"}).SlogLevel(); got.String() != "DEBUG" {
		t.Errorf("debug mapped to %v", got)
	}
	if got := (LogConfig{}).SlogLevel(); got.String() != "INFO" {
		t.Errorf("unset level mapped to %v", got)
	}
}
