package harness

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	cppSourceFile = "main.cpp"
	cppBinaryFile = "main"
)

// cppHarness runs C++ submissions as complete programs: compiled with g++,
// test input on stdin, answer on stdout.
type cppHarness struct{}

func (h *cppHarness) Stage(workDir, code string) (Plan, error) {
	if err := os.WriteFile(filepath.Join(workDir, cppSourceFile), []byte(code), 0600); err != nil {
		return Plan{}, fmt.Errorf("write source: %w", err)
	}
	return Plan{
		CompileCommand: []string{"g++", "-O2", "-std=c++17", "-o", cppBinaryFile, cppSourceFile},
		RunCommand:     []string{"./" + cppBinaryFile},
	}, nil
}
