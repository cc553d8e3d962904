// Package result defines raw sandbox execution results.
package result

// RunResult captures what one sandboxed run produced.
type RunResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	WallTimeMS int64
	TimedOut   bool
	OOMKilled  bool
}
