package evaluator

import (
	"context"
	"time"

	"codoleet/internal/harness"
	"codoleet/internal/sandbox/spec"
	pkgerrors "codoleet/pkg/errors"
)

// Executor runs code against a single input and returns its output.
// Implemented by the sandbox adapter.
type Executor interface {
	Execute(ctx context.Context, code, language, input string, limits spec.ResourceLimit) (string, error)
}

// Service grades code against test cases. It persists nothing; the verdict
// is a pure function of its inputs plus sandbox side effects.
type Service struct {
	exec   Executor
	limits spec.ResourceLimit
	now    func() time.Time
}

// NewService creates an evaluator with the given per-case limits.
func NewService(exec Executor, limits spec.ResourceLimit) *Service {
	if limits.WallTimeMS <= 0 {
		limits = spec.DefaultLimits()
	}
	return &Service{exec: exec, limits: limits, now: time.Now}
}

// Evaluate runs every test case in order and folds the per-case outcomes
// into an overall status:
//
//   - a sandbox timeout, or a measured runtime strictly over the limit,
//     sets time_limit_exceeded; a run taking exactly the limit does not.
//   - a mismatched output sets wrong_answer only while the status is still
//     accepted, so it never downgrades time_limit_exceeded.
//   - a runtime error sets runtime_error unconditionally, masking anything
//     recorded by earlier cases.
//
// Cases keep executing after a failure so the client sees every result.
// Only a sandbox provisioning failure aborts the run, with the results
// collected so far.
func (s *Service) Evaluate(ctx context.Context, code, language string, cases []TestCase) Report {
	status := StatusAccepted
	results := make([]TestResult, 0, len(cases))
	var total int64

	for _, tc := range cases {
		start := s.now()
		out, err := s.exec.Execute(ctx, code, language, tc.Input, s.limits)
		elapsed := s.now().Sub(start).Milliseconds()
		total += elapsed

		res := TestResult{
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			Runtime:        elapsed,
		}

		switch {
		case err != nil && pkgerrors.GetCode(err) == pkgerrors.SandboxTimeout:
			status = StatusTimeLimitExceeded
		case err != nil:
			res.Error = errorMessage(err)
			status = StatusRuntimeError
			if pkgerrors.GetCode(err) == pkgerrors.SandboxProvisionFailed {
				results = append(results, res)
				return Report{Status: status, TestResults: results, TotalRuntime: total}
			}
		default:
			res.ActualOutput = out
			res.Passed = harness.Match(tc.ExpectedOutput, out)
			if elapsed > s.limits.WallTimeMS {
				status = StatusTimeLimitExceeded
			} else if !res.Passed && status == StatusAccepted {
				status = StatusWrongAnswer
			}
		}

		results = append(results, res)
	}

	return Report{Status: status, TestResults: results, TotalRuntime: total}
}

func errorMessage(err error) string {
	if customErr := pkgerrors.GetError(err); customErr != nil {
		return customErr.Message
	}
	return err.Error()
}
