// Package spec defines the execution specification and resource limits.
package spec

// ResourceLimit describes hard limits enforced on one sandboxed run.
type ResourceLimit struct {
	WallTimeMS  int64
	MemoryMB    int64
	CPUShares   int64
	PIDs        int64
	OutputBytes int64
}

// DefaultLimits are the per-test-case limits applied when the caller does not
// override them: 5 seconds of wall time, 128 MB of memory, half a CPU.
func DefaultLimits() ResourceLimit {
	return ResourceLimit{
		WallTimeMS:  5000,
		MemoryMB:    128,
		CPUShares:   512,
		PIDs:        64,
		OutputBytes: 1 << 20,
	}
}

// RunSpec is the unified execution specification for one task.
type RunSpec struct {
	SubmissionID string
	TestID       string
	Language     string
	WorkDir      string
	Command      string
	Args         []string
	Env          []string
	Stdin        string
	Limits       ResourceLimit
}
