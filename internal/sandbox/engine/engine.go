package engine

import (
	"context"

	"codoleet/internal/sandbox/result"
	"codoleet/internal/sandbox/spec"
)

// Engine executes a RunSpec inside an isolated sandbox.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}
