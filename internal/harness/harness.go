// Package harness stages submitted code for sandboxed execution. Each
// supported language knows how to lay out a working directory and which
// commands compile and run it.
package harness

import (
	"sort"
	"strings"

	pkgerrors "codoleet/pkg/errors"
)

// Plan describes how to build and run one staged submission. CompileCommand
// is nil for interpreted languages.
type Plan struct {
	CompileCommand []string
	RunCommand     []string
}

// Harness writes the submitted code into workDir and returns the plan.
type Harness interface {
	Stage(workDir, code string) (Plan, error)
}

// Registry maps language tags to harnesses.
type Registry struct {
	byTag map[string]Harness
}

// NewRegistry returns a registry with the built-in languages.
func NewRegistry() *Registry {
	return &Registry{byTag: map[string]Harness{
		"cpp":        &cppHarness{},
		"javascript": &jsHarness{},
	}}
}

// Get resolves a language tag. Tags are matched case-insensitively.
func (r *Registry) Get(language string) (Harness, error) {
	tag := strings.ToLower(strings.TrimSpace(language))
	h, ok := r.byTag[tag]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.LanguageNotSupported, "unsupported language: %s", language)
	}
	return h, nil
}

// Supported lists the registered language tags.
func (r *Registry) Supported() []string {
	tags := make([]string, 0, len(r.byTag))
	for tag := range r.byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Match reports whether actual output answers the expected output. Both
// sides are compared after trimming surrounding whitespace.
func Match(expected, actual string) bool {
	return strings.TrimSpace(expected) == strings.TrimSpace(actual)
}
