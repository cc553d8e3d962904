package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"codoleet/internal/harness"
	"codoleet/internal/sandbox"
	"codoleet/internal/sandbox/result"
	"codoleet/internal/sandbox/spec"
	pkgerrors "codoleet/pkg/errors"
)

type caseOutcome struct {
	out       string
	err       error
	runtimeMS int64
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) advance(ms int64) {
	c.t = c.t.Add(time.Duration(ms) * time.Millisecond)
}

// scriptedExecutor returns a fixed outcome per input and advances the shared
// clock by the outcome's runtime.
type scriptedExecutor struct {
	clock    *fakeClock
	outcomes map[string]caseOutcome
	calls    []string
}

func (e *scriptedExecutor) Execute(ctx context.Context, code, language, input string, limits spec.ResourceLimit) (string, error) {
	e.calls = append(e.calls, input)
	oc := e.outcomes[input]
	e.clock.advance(oc.runtimeMS)
	return oc.out, oc.err
}

func newTestService(outcomes map[string]caseOutcome) (*Service, *scriptedExecutor) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	exec := &scriptedExecutor{clock: clock, outcomes: outcomes}
	svc := NewService(exec, spec.ResourceLimit{WallTimeMS: 5000})
	svc.now = clock.Now
	return svc, exec
}

func TestEvaluateAllCasesPass(t *testing.T) {
	cases := []TestCase{
		{Input: "[2,7,11,15], 9", ExpectedOutput: "[0,1]"},
		{Input: "[3,2,4], 6", ExpectedOutput: "[1,2]"},
		{Input: "[3,3], 6", ExpectedOutput: "[0,1]"},
		{Input: "[1,2,3], 5", ExpectedOutput: "[1,2]"},
	}
	outcomes := map[string]caseOutcome{}
	for _, tc := range cases {
		outcomes[tc.Input] = caseOutcome{out: tc.ExpectedOutput + "\n", runtimeMS: 10}
	}
	svc, _ := newTestService(outcomes)

	report := svc.Evaluate(context.Background(), "code", "javascript", cases)

	if report.Status != StatusAccepted {
		t.Fatalf("status = %s", report.Status)
	}
	if len(report.TestResults) != 4 {
		t.Fatalf("expected 4 results, got %d", len(report.TestResults))
	}
	for i, res := range report.TestResults {
		if !res.Passed {
			t.Errorf("result %d should pass", i)
		}
		if res.Input != cases[i].Input {
			t.Errorf("result %d out of order: %q", i, res.Input)
		}
	}
	if report.TotalRuntime != 40 {
		t.Fatalf("totalRuntime = %d", report.TotalRuntime)
	}
}

func TestEvaluateWrongAnswerOnSecondCase(t *testing.T) {
	cases := []TestCase{
		{Input: "a", ExpectedOutput: "1"},
		{Input: "b", ExpectedOutput: "2"},
		{Input: "c", ExpectedOutput: "3"},
	}
	svc, exec := newTestService(map[string]caseOutcome{
		"a": {out: "1", runtimeMS: 5},
		"b": {out: "999", runtimeMS: 5},
		"c": {out: "3", runtimeMS: 5},
	})

	report := svc.Evaluate(context.Background(), "code", "javascript", cases)

	if report.Status != StatusWrongAnswer {
		t.Fatalf("status = %s", report.Status)
	}
	if !report.TestResults[0].Passed {
		t.Error("case 1 should pass")
	}
	if report.TestResults[1].Passed {
		t.Error("case 2 should fail")
	}
	if !report.TestResults[2].Passed {
		t.Error("case 3 should pass")
	}
	if len(exec.calls) != 3 {
		t.Fatalf("all cases should run, got %d", len(exec.calls))
	}
}

func TestEvaluateRuntimeErrorKeepsRunningCases(t *testing.T) {
	cases := []TestCase{
		{Input: "a", ExpectedOutput: "1"},
		{Input: "b", ExpectedOutput: "2"},
	}
	svc, exec := newTestService(map[string]caseOutcome{
		"a": {err: pkgerrors.Newf(pkgerrors.SandboxRuntimeError, "TypeError: boom"), runtimeMS: 3},
		"b": {out: "2", runtimeMS: 3},
	})

	report := svc.Evaluate(context.Background(), "code", "javascript", cases)

	if report.Status != StatusRuntimeError {
		t.Fatalf("status = %s", report.Status)
	}
	if report.TestResults[0].Error == "" {
		t.Fatal("first result should carry the error message")
	}
	if report.TestResults[0].Error != "TypeError: boom" {
		t.Fatalf("error = %q", report.TestResults[0].Error)
	}
	if len(exec.calls) != 2 {
		t.Fatal("remaining cases should still run")
	}
	if !report.TestResults[1].Passed {
		t.Fatal("second case should still be graded")
	}
}

func TestEvaluateRuntimeErrorOverwritesWrongAnswer(t *testing.T) {
	cases := []TestCase{
		{Input: "a", ExpectedOutput: "1"},
		{Input: "b", ExpectedOutput: "2"},
	}
	svc, _ := newTestService(map[string]caseOutcome{
		"a": {out: "wrong"},
		"b": {err: pkgerrors.Newf(pkgerrors.SandboxRuntimeError, "crash")},
	})

	report := svc.Evaluate(context.Background(), "code", "javascript", cases)

	if report.Status != StatusRuntimeError {
		t.Fatalf("later runtime error must mask wrong_answer, got %s", report.Status)
	}
}

func TestEvaluateWrongAnswerDoesNotOverwriteTimeLimit(t *testing.T) {
	cases := []TestCase{
		{Input: "slow", ExpectedOutput: "1"},
		{Input: "wrong", ExpectedOutput: "2"},
	}
	svc, _ := newTestService(map[string]caseOutcome{
		"slow":  {err: pkgerrors.Newf(pkgerrors.SandboxTimeout, "execution exceeded 5000ms"), runtimeMS: 5100},
		"wrong": {out: "999", runtimeMS: 5},
	})

	report := svc.Evaluate(context.Background(), "code", "javascript", cases)

	if report.Status != StatusTimeLimitExceeded {
		t.Fatalf("wrong_answer must not downgrade time_limit_exceeded, got %s", report.Status)
	}
	if len(report.TestResults) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.TestResults))
	}
}

func TestEvaluateDeadlineBoundary(t *testing.T) {
	cases := []TestCase{{Input: "a", ExpectedOutput: "1"}}

	// Exactly at the limit is not exceeded.
	svc, _ := newTestService(map[string]caseOutcome{
		"a": {out: "1", runtimeMS: 5000},
	})
	report := svc.Evaluate(context.Background(), "code", "javascript", cases)
	if report.Status != StatusAccepted {
		t.Fatalf("exactly at the limit should be accepted, got %s", report.Status)
	}

	// One millisecond over is.
	svc, _ = newTestService(map[string]caseOutcome{
		"a": {out: "1", runtimeMS: 5001},
	})
	report = svc.Evaluate(context.Background(), "code", "javascript", cases)
	if report.Status != StatusTimeLimitExceeded {
		t.Fatalf("one ms over the limit should be time_limit_exceeded, got %s", report.Status)
	}
}

func TestEvaluateProvisionFailureAbortsRun(t *testing.T) {
	cases := []TestCase{
		{Input: "a", ExpectedOutput: "1"},
		{Input: "b", ExpectedOutput: "2"},
		{Input: "c", ExpectedOutput: "3"},
	}
	svc, exec := newTestService(map[string]caseOutcome{
		"a": {out: "1"},
		"b": {err: pkgerrors.Newf(pkgerrors.SandboxProvisionFailed, "create work dir")},
	})

	report := svc.Evaluate(context.Background(), "code", "javascript", cases)

	if report.Status != StatusRuntimeError {
		t.Fatalf("status = %s", report.Status)
	}
	if len(report.TestResults) != 2 {
		t.Fatalf("run should abort after the provisioning failure, got %d results", len(report.TestResults))
	}
	if len(exec.calls) != 2 {
		t.Fatalf("third case should not run, got %d calls", len(exec.calls))
	}
}

func TestEvaluateMissingSolutionGradesEveryCase(t *testing.T) {
	cases := []TestCase{
		{Input: "a", ExpectedOutput: "1"},
		{Input: "b", ExpectedOutput: "2"},
		{Input: "c", ExpectedOutput: "3"},
	}
	exec := sandbox.NewAdapterWithEngine(&stuckEngine{}, harness.NewRegistry(), t.TempDir())
	svc := NewService(exec, spec.ResourceLimit{WallTimeMS: 5000})

	report := svc.Evaluate(context.Background(), "const answer = 42;", "javascript", cases)

	if report.Status != StatusRuntimeError {
		t.Fatalf("status = %s", report.Status)
	}
	if len(report.TestResults) != 3 {
		t.Fatalf("every case should get a result, got %d", len(report.TestResults))
	}
	for i, res := range report.TestResults {
		if res.Error == "" {
			t.Errorf("result %d should carry the error message", i)
		}
	}
}

// stuckEngine errors on every run; staging is expected to reject the
// submission before the engine is reached.
type stuckEngine struct{}

func (e *stuckEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	return result.RunResult{}, errors.New("engine should not run")
}

func TestEvaluateIsIdempotent(t *testing.T) {
	cases := []TestCase{
		{Input: "a", ExpectedOutput: "1"},
		{Input: "b", ExpectedOutput: "2"},
	}
	outcomes := map[string]caseOutcome{
		"a": {out: "1", runtimeMS: 7},
		"b": {out: "nope", runtimeMS: 7},
	}

	svc1, _ := newTestService(outcomes)
	svc2, _ := newTestService(outcomes)
	first := svc1.Evaluate(context.Background(), "code", "javascript", cases)
	second := svc2.Evaluate(context.Background(), "code", "javascript", cases)

	if first.Status != second.Status {
		t.Fatalf("status differs: %s vs %s", first.Status, second.Status)
	}
	for i := range first.TestResults {
		if first.TestResults[i].Passed != second.TestResults[i].Passed {
			t.Fatalf("case %d pass/fail differs", i)
		}
	}
}

func TestEvaluateEmptyCases(t *testing.T) {
	svc, _ := newTestService(nil)
	report := svc.Evaluate(context.Background(), "code", "javascript", nil)
	if report.Status != StatusAccepted {
		t.Fatalf("status = %s", report.Status)
	}
	if len(report.TestResults) != 0 || report.TotalRuntime != 0 {
		t.Fatal("empty input should produce an empty report")
	}
}
