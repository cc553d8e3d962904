// Package sandbox runs one piece of submitted code against one input inside
// an isolated environment. Nothing is reused between runs: every call stages
// into a fresh working directory and tears it down afterwards.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"codoleet/internal/harness"
	"codoleet/internal/sandbox/engine"
	"codoleet/internal/sandbox/result"
	"codoleet/internal/sandbox/spec"
	pkgerrors "codoleet/pkg/errors"
	"codoleet/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const compileWallTimeMS = 10000

// Config controls the sandbox adapter.
type Config struct {
	WorkRoot string        `yaml:"work_root"`
	Engine   engine.Config `yaml:"engine"`
}

// Adapter stages code through the language harness and executes it with the
// sandbox engine.
type Adapter struct {
	engine   engine.Engine
	registry *harness.Registry
	workRoot string
}

// NewAdapter creates an adapter with a real engine.
func NewAdapter(cfg Config) (*Adapter, error) {
	eng, err := engine.NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	return NewAdapterWithEngine(eng, harness.NewRegistry(), cfg.WorkRoot), nil
}

// NewAdapterWithEngine creates an adapter with the given engine. Used by tests.
func NewAdapterWithEngine(eng engine.Engine, registry *harness.Registry, workRoot string) *Adapter {
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	return &Adapter{engine: eng, registry: registry, workRoot: workRoot}
}

// Execute runs code against one input and returns its stdout. Failures come
// back as coded errors: SandboxTimeout when the wall clock limit is exceeded,
// SandboxRuntimeError when the program itself fails, SandboxProvisionFailed
// when the environment could not be set up.
func (a *Adapter) Execute(ctx context.Context, code, language, input string, limits spec.ResourceLimit) (string, error) {
	h, err := a.registry.Get(language)
	if err != nil {
		return "", err
	}

	workDir, err := os.MkdirTemp(a.workRoot, "run-")
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.SandboxProvisionFailed, "create work dir")
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn(ctx, "remove work dir failed", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	plan, err := h.Stage(workDir, code)
	if err != nil {
		// Harness errors already carrying a code describe the submission
		// itself; only uncoded failures mean the environment broke.
		var coded *pkgerrors.Error
		if errors.As(err, &coded) {
			return "", err
		}
		return "", pkgerrors.Wrapf(err, pkgerrors.SandboxProvisionFailed, "stage submission")
	}

	runID := uuid.NewString()

	if len(plan.CompileCommand) > 0 {
		if err := a.compile(ctx, runID, workDir, plan, limits); err != nil {
			return "", err
		}
	}

	runSpec := spec.RunSpec{
		SubmissionID: runID,
		TestID:       "case",
		Language:     language,
		WorkDir:      workDir,
		Command:      plan.RunCommand[0],
		Args:         plan.RunCommand[1:],
		Stdin:        input,
		Limits:       limits,
	}
	res, err := a.engine.Run(ctx, runSpec)
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.SandboxProvisionFailed, "run submission")
	}
	if res.TimedOut {
		return "", pkgerrors.Newf(pkgerrors.SandboxTimeout, "execution exceeded %dms", limits.WallTimeMS)
	}
	if res.OOMKilled {
		return "", pkgerrors.New(pkgerrors.SandboxRuntimeError).WithMessage("out of memory")
	}
	if res.ExitCode != 0 {
		return "", pkgerrors.Newf(pkgerrors.SandboxRuntimeError, "%s", runtimeMessage(res))
	}
	return res.Stdout, nil
}

func (a *Adapter) compile(ctx context.Context, runID, workDir string, plan harness.Plan, limits spec.ResourceLimit) error {
	compileLimits := limits
	compileLimits.WallTimeMS = compileWallTimeMS
	compileLimits.OutputBytes = 0

	res, err := a.engine.Run(ctx, spec.RunSpec{
		SubmissionID: runID,
		TestID:       "compile",
		WorkDir:      workDir,
		Command:      plan.CompileCommand[0],
		Args:         plan.CompileCommand[1:],
		Limits:       compileLimits,
	})
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.SandboxProvisionFailed, "run compiler")
	}
	if res.ExitCode != 0 {
		diagnostic := strings.TrimSpace(res.Stderr)
		if diagnostic == "" {
			diagnostic = fmt.Sprintf("compiler exited with status %d", res.ExitCode)
		}
		return pkgerrors.Newf(pkgerrors.CompilationFailed, "%s", diagnostic)
	}
	return nil
}

func runtimeMessage(res result.RunResult) string {
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		return fmt.Sprintf("exit status %d", res.ExitCode)
	}
	return msg
}
