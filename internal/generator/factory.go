package generator

import (
	"fmt"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// NewGeneratorFromConfig creates a PlanGenerator based on the generator config type.
func NewGeneratorFromConfig(cfg config.GeneratorConfig, logger tidy.Logger, clock tidy.Clock) (tidy.PlanGenerator, error) {
	switch cfg.Type {
	case "ollama", "":
		return NewOllamaGenerator(cfg.Model, logger, clock)
	case "static":
		return NewStaticGenerator(clock), nil
	default:
		return nil, fmt.Errorf("unknown generator type: %s", cfg.Type)
	}
}
