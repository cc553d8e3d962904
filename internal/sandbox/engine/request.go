package engine

import "codoleet/internal/sandbox/spec"

type initRequest struct {
	RunSpec    spec.RunSpec
	StdinPath  string
	StdoutPath string
	StderrPath string
	EnableNs   bool
}
