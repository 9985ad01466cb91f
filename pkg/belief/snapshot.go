package belief

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// kernelSnapshot is the on-disk form of a trained kernel.
type kernelSnapshot struct {
	Kernel      string  `yaml:"kernel"`
	Lengthscale float64 `yaml:"lengthscale"`
	Variance    float64 `yaml:"variance"`
	Noise       float64 `yaml:"noise"`
}

// SaveKernel writes the model's kernel hyperparameters to path so a later
// run can reuse them without retraining.
func (m *Model) SaveKernel(path string) error {
	data, err := yaml.Marshal(kernelSnapshot{
		Kernel:      m.kern.name,
		Lengthscale: m.kern.lengthscale,
		Variance:    m.kern.variance,
		Noise:       m.noise,
	})
	if err != nil {
		return fmt.Errorf("belief: encode kernel snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("belief: write kernel snapshot: %w", err)
	}
	return nil
}

// LoadKernel replaces the model's kernel hyperparameters with a snapshot
// written by SaveKernel. Observations already added are kept and re-scored
// under the loaded kernel.
func (m *Model) LoadKernel(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("belief: read kernel snapshot: %w", err)
	}
	var snap kernelSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("belief: decode kernel snapshot %s: %w", path, err)
	}
	k := kernel{name: snap.Kernel, lengthscale: snap.Lengthscale, variance: snap.Variance}
	if err := k.validate(); err != nil {
		return fmt.Errorf("belief: kernel snapshot %s: %w", path, err)
	}
	if snap.Noise <= 0 {
		return fmt.Errorf("belief: kernel snapshot %s: noise must be positive, got %v", path, snap.Noise)
	}
	m.kern = k
	m.noise = snap.Noise
	m.invalidate()
	return nil
}
