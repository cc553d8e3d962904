package harness

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	pkgerrors "codoleet/pkg/errors"
)

func TestRegistryResolvesKnownLanguages(t *testing.T) {
	registry := NewRegistry()

	for _, tag := range []string{"cpp", "javascript", "JavaScript", " CPP "} {
		if _, err := registry.Get(tag); err != nil {
			t.Fatalf("Get(%q): %v", tag, err)
		}
	}

	if got := registry.Supported(); !reflect.DeepEqual(got, []string{"cpp", "javascript"}) {
		t.Fatalf("Supported() = %v", got)
	}
}

func TestRegistryRejectsUnknownLanguage(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("python")
	if err == nil {
		t.Fatal("expected error for unsupported language")
	}
	if pkgerrors.GetCode(err) != pkgerrors.LanguageNotSupported {
		t.Fatalf("expected LanguageNotSupported, got %v", pkgerrors.GetCode(err))
	}
}

func TestJavascriptStageAppendsDriver(t *testing.T) {
	workDir := t.TempDir()
	h := &jsHarness{}

	plan, err := h.Stage(workDir, "function solution(a, b) { return a + b; }")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if plan.CompileCommand != nil {
		t.Fatalf("javascript should not compile, got %v", plan.CompileCommand)
	}
	if !reflect.DeepEqual(plan.RunCommand, []string{"node", "main.js"}) {
		t.Fatalf("RunCommand = %v", plan.RunCommand)
	}

	data, err := os.ReadFile(filepath.Join(workDir, "main.js"))
	if err != nil {
		t.Fatalf("read staged source: %v", err)
	}
	source := string(data)
	if !strings.Contains(source, "function solution(a, b)") {
		t.Fatal("staged source should contain the submission")
	}
	if !strings.Contains(source, "solution(...__args)") {
		t.Fatal("staged source should contain the driver call")
	}
	if !strings.Contains(source, "JSON.parse") {
		t.Fatal("driver should parse JSON arguments")
	}
}

func TestJavascriptStageRequiresSolution(t *testing.T) {
	h := &jsHarness{}
	_, err := h.Stage(t.TempDir(), "console.log('hi')")
	if err == nil {
		t.Fatal("expected error when no solution function is defined")
	}
	if pkgerrors.GetCode(err) != pkgerrors.SandboxRuntimeError {
		t.Fatalf("expected SandboxRuntimeError, got %v", pkgerrors.GetCode(err))
	}
}

func TestCppStageWritesProgram(t *testing.T) {
	workDir := t.TempDir()
	h := &cppHarness{}

	plan, err := h.Stage(workDir, "#include <iostream>\nint main() { return 0; }")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(plan.CompileCommand) == 0 || plan.CompileCommand[0] != "g++" {
		t.Fatalf("CompileCommand = %v", plan.CompileCommand)
	}
	if !reflect.DeepEqual(plan.RunCommand, []string{"./main"}) {
		t.Fatalf("RunCommand = %v", plan.RunCommand)
	}
	if _, err := os.Stat(filepath.Join(workDir, "main.cpp")); err != nil {
		t.Fatalf("staged source missing: %v", err)
	}
}

func TestMatchTrimsWhitespace(t *testing.T) {
	cases := []struct {
		expected string
		actual   string
		want     bool
	}{
		{"5", "5\n", true},
		{"  [1,2]  ", "[1,2]", true},
		{"5", "6", false},
		{"hello world", "hello  world", false},
	}
	for _, tc := range cases {
		if got := Match(tc.expected, tc.actual); got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.expected, tc.actual, got, tc.want)
		}
	}
}
