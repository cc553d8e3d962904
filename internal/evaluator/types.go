// Package evaluator grades submitted code against a problem's test cases.
package evaluator

// Status is the lifecycle state of a submission.
type Status string

const (
	StatusPending           Status = "pending"
	StatusAccepted          Status = "accepted"
	StatusWrongAnswer       Status = "wrong_answer"
	StatusRuntimeError      Status = "runtime_error"
	StatusTimeLimitExceeded Status = "time_limit_exceeded"
)

// Terminal reports whether the status ends the submission lifecycle.
func (s Status) Terminal() bool {
	return s != "" && s != StatusPending
}

// TestCase is one (input, expected output) pair belonging to a problem.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	IsHidden       bool   `json:"isHidden,omitempty"`
}

// TestResult records the outcome of running one test case. Results keep the
// order of the test cases they were produced from; clients render them
// positionally.
type TestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	Passed         bool   `json:"passed"`
	Runtime        int64  `json:"runtime"`
	Error          string `json:"error,omitempty"`
}

// Report is the outcome of one full evaluation run.
type Report struct {
	Status       Status       `json:"status"`
	TestResults  []TestResult `json:"testResults"`
	TotalRuntime int64        `json:"totalRuntime"`
}
