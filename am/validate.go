package am

import (
	"math"

	"github.com/teranos/traitmint/compose"
	"github.com/teranos/traitmint/distribution"
	"github.com/teranos/traitmint/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return errors.NewConfigurationError("canvas must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}

	if c.Catalog.Root == "" {
		return errors.NewConfigurationError("catalog.root cannot be empty")
	}
	if len(c.Catalog.Extensions) == 0 {
		return errors.NewConfigurationError("catalog.extensions cannot be empty")
	}

	if len(c.Groups) == 0 {
		return errors.NewConfigurationError("at least one [[groups]] entry is required")
	}
	seen := make(map[string]bool, len(c.Groups))
	sum := 0.0
	for _, g := range c.Groups {
		if g.Name == "" {
			return errors.NewConfigurationError("group name cannot be empty")
		}
		if seen[g.Name] {
			return errors.NewConfigurationError("group %q configured more than once", g.Name)
		}
		seen[g.Name] = true
		if g.Weight < 0 {
			return errors.NewConfigurationError("group %q weight must be >= 0, got %v", g.Name, g.Weight)
		}
		sum += g.Weight
	}
	if math.Abs(sum-1) > distribution.WeightTolerance {
		return errors.NewConfigurationError("group weights must sum to 1, got %v", sum)
	}

	// Amount: 0 is not a batch
	if c.Generate.Amount <= 0 {
		return errors.NewConfigurationError("generate.amount must be > 0, got %d", c.Generate.Amount)
	}
	if c.Generate.StartID < 0 {
		return errors.NewConfigurationError("generate.start_id must be >= 0, got %d", c.Generate.StartID)
	}
	if c.Generate.OutputDir == "" {
		return errors.NewConfigurationError("generate.output_dir cannot be empty")
	}
	if c.Generate.Quality < 1 || c.Generate.Quality > 100 {
		return errors.NewConfigurationError("generate.quality must be in 1..100, got %d", c.Generate.Quality)
	}
	if _, err := compose.ParseFormat(c.Generate.Format); err != nil {
		return err
	}
	// Workers: 0 = hardware default, negative = invalid
	if c.Generate.Workers < 0 {
		return errors.NewConfigurationError("generate.workers must be >= 0, got %d", c.Generate.Workers)
	}
	if c.Generate.MaxAttempts < 0 {
		return errors.NewConfigurationError("generate.max_attempts must be >= 0, got %d", c.Generate.MaxAttempts)
	}
	if c.Generate.CacheSize < 0 {
		return errors.NewConfigurationError("generate.cache_size must be >= 0, got %d", c.Generate.CacheSize)
	}

	return nil
}
