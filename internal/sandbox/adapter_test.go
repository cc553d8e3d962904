package sandbox

import (
	"context"
	"strings"
	"testing"

	"codoleet/internal/harness"
	"codoleet/internal/sandbox/result"
	"codoleet/internal/sandbox/spec"
	pkgerrors "codoleet/pkg/errors"
)

type fakeEngine struct {
	results []result.RunResult
	err     error
	specs   []spec.RunSpec
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	f.specs = append(f.specs, runSpec)
	if f.err != nil {
		return result.RunResult{}, f.err
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

func newTestAdapter(t *testing.T, eng *fakeEngine) *Adapter {
	t.Helper()
	return NewAdapterWithEngine(eng, harness.NewRegistry(), t.TempDir())
}

func TestExecuteReturnsStdout(t *testing.T) {
	eng := &fakeEngine{results: []result.RunResult{{Stdout: "5\n", WallTimeMS: 12}}}
	adapter := newTestAdapter(t, eng)

	out, err := adapter.Execute(context.Background(), "function solution(a, b) { return a + b; }", "javascript", "2, 3", spec.DefaultLimits())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "5\n" {
		t.Fatalf("stdout = %q", out)
	}

	if len(eng.specs) != 1 {
		t.Fatalf("expected one run, got %d", len(eng.specs))
	}
	runSpec := eng.specs[0]
	if runSpec.Command != "node" {
		t.Fatalf("command = %q", runSpec.Command)
	}
	if runSpec.Stdin != "2, 3" {
		t.Fatalf("stdin = %q", runSpec.Stdin)
	}
}

func TestExecuteClassifiesTimeout(t *testing.T) {
	eng := &fakeEngine{results: []result.RunResult{{TimedOut: true, ExitCode: -1, WallTimeMS: 5100}}}
	adapter := newTestAdapter(t, eng)

	_, err := adapter.Execute(context.Background(), "function solution() { for(;;); }", "javascript", "", spec.DefaultLimits())
	if pkgerrors.GetCode(err) != pkgerrors.SandboxTimeout {
		t.Fatalf("expected SandboxTimeout, got %v", pkgerrors.GetCode(err))
	}
}

func TestExecuteClassifiesRuntimeError(t *testing.T) {
	eng := &fakeEngine{results: []result.RunResult{{ExitCode: 1, Stderr: "TypeError: boom"}}}
	adapter := newTestAdapter(t, eng)

	_, err := adapter.Execute(context.Background(), "function solution() { throw new TypeError('boom'); }", "javascript", "", spec.DefaultLimits())
	if pkgerrors.GetCode(err) != pkgerrors.SandboxRuntimeError {
		t.Fatalf("expected SandboxRuntimeError, got %v", pkgerrors.GetCode(err))
	}
	if !strings.Contains(err.Error(), "TypeError: boom") {
		t.Fatalf("error should carry stderr, got %q", err.Error())
	}
}

func TestExecuteClassifiesOOM(t *testing.T) {
	eng := &fakeEngine{results: []result.RunResult{{ExitCode: 137, OOMKilled: true}}}
	adapter := newTestAdapter(t, eng)

	_, err := adapter.Execute(context.Background(), "function solution() {}", "javascript", "", spec.DefaultLimits())
	if pkgerrors.GetCode(err) != pkgerrors.SandboxRuntimeError {
		t.Fatalf("expected SandboxRuntimeError, got %v", pkgerrors.GetCode(err))
	}
}

func TestExecuteCompilesCppFirst(t *testing.T) {
	eng := &fakeEngine{results: []result.RunResult{{ExitCode: 0}, {Stdout: "42\n"}}}
	adapter := newTestAdapter(t, eng)

	out, err := adapter.Execute(context.Background(), "#include <iostream>\nint main() { std::cout << 42; }", "cpp", "", spec.DefaultLimits())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "42\n" {
		t.Fatalf("stdout = %q", out)
	}

	if len(eng.specs) != 2 {
		t.Fatalf("expected compile then run, got %d runs", len(eng.specs))
	}
	if eng.specs[0].Command != "g++" {
		t.Fatalf("first command = %q", eng.specs[0].Command)
	}
	if eng.specs[0].TestID != "compile" {
		t.Fatalf("compile test id = %q", eng.specs[0].TestID)
	}
	if eng.specs[1].Command != "./main" {
		t.Fatalf("second command = %q", eng.specs[1].Command)
	}
}

func TestExecuteSurfacesCompilerDiagnostic(t *testing.T) {
	eng := &fakeEngine{results: []result.RunResult{{ExitCode: 1, Stderr: "main.cpp:1: error: expected ';'"}}}
	adapter := newTestAdapter(t, eng)

	_, err := adapter.Execute(context.Background(), "int main() { return 0 }", "cpp", "", spec.DefaultLimits())
	if pkgerrors.GetCode(err) != pkgerrors.CompilationFailed {
		t.Fatalf("expected CompilationFailed, got %v", pkgerrors.GetCode(err))
	}
	if !strings.Contains(err.Error(), "expected ';'") {
		t.Fatalf("error should carry the diagnostic, got %q", err.Error())
	}
	if len(eng.specs) != 1 {
		t.Fatalf("run should not happen after failed compile, got %d runs", len(eng.specs))
	}
}

func TestExecuteClassifiesMissingSolution(t *testing.T) {
	eng := &fakeEngine{}
	adapter := newTestAdapter(t, eng)

	_, err := adapter.Execute(context.Background(), "const answer = 42;", "javascript", "", spec.DefaultLimits())
	if pkgerrors.GetCode(err) != pkgerrors.SandboxRuntimeError {
		t.Fatalf("expected SandboxRuntimeError, got %v", pkgerrors.GetCode(err))
	}
	if len(eng.specs) != 0 {
		t.Fatal("engine should not run when staging rejects the submission")
	}
}

func TestExecuteRejectsUnknownLanguage(t *testing.T) {
	eng := &fakeEngine{}
	adapter := newTestAdapter(t, eng)

	_, err := adapter.Execute(context.Background(), "print(1)", "python", "", spec.DefaultLimits())
	if pkgerrors.GetCode(err) != pkgerrors.LanguageNotSupported {
		t.Fatalf("expected LanguageNotSupported, got %v", pkgerrors.GetCode(err))
	}
	if len(eng.specs) != 0 {
		t.Fatal("engine should not run for unsupported language")
	}
}
