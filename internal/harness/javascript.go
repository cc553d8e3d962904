package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "codoleet/pkg/errors"
)

const jsMainFile = "main.js"

// jsDriver is appended after the submitted code. The submission must define
// a function named solution. Arguments arrive as one comma-separated line on
// stdin; each segment is JSON when it parses, a raw string otherwise.
const jsDriver = `
const __raw = require('fs').readFileSync(0, 'utf8');
const __args = __raw.split(',').map((part) => {
	const trimmed = part.trim();
	try {
		return JSON.parse(trimmed);
	} catch (_) {
		return trimmed;
	}
});
const __result = solution(...__args);
if (typeof __result === 'object' && __result !== null) {
	console.log(JSON.stringify(__result));
} else {
	console.log(__result);
}
`

type jsHarness struct{}

func (h *jsHarness) Stage(workDir, code string) (Plan, error) {
	// The submission is at fault here, not the environment; the coded error
	// makes the evaluator record it per case like any other runtime failure.
	if !strings.Contains(code, "solution") {
		return Plan{}, pkgerrors.Newf(pkgerrors.SandboxRuntimeError, "solution is not defined")
	}
	source := code + "\n" + jsDriver
	if err := os.WriteFile(filepath.Join(workDir, jsMainFile), []byte(source), 0600); err != nil {
		return Plan{}, fmt.Errorf("write source: %w", err)
	}
	return Plan{
		RunCommand: []string{"node", jsMainFile},
	}, nil
}
