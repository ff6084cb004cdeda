// Package pipeline implements the mock AI generation pipeline: a simulated
// admission step with a transient overload failure mode, followed by a
// deterministic image composition step.
package pipeline

import (
	"context"
	"fmt"
)

// Result is the outcome of a successful generation.
type Result struct {
	OutputPath string
	Params     Params
}

type Generator struct {
	simulator *Simulator
	composer  *Composer
}

func New(outputDir string, opts ...SimulatorOption) *Generator {
	return &Generator{
		simulator: NewSimulator(opts...),
		composer:  &Composer{OutputDir: outputDir},
	}
}

// Generate runs the admission simulation and, if admitted, composes the
// derived image from the upload at inputPath. Overload is reported as
// ErrModelOverloaded; composition failures are generic errors.
func (g *Generator) Generate(ctx context.Context, inputPath, prompt string) (Result, error) {
	if err := g.simulator.Run(ctx); err != nil {
		return Result{}, err
	}

	outPath, params, err := g.composer.Compose(inputPath, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("compose image: %w", err)
	}

	return Result{OutputPath: outPath, Params: params}, nil
}
