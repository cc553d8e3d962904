// Package model defines the submission record and its wire shapes.
package model

import (
	"time"

	"codoleet/internal/evaluator"
)

// Submission is one user's attempt at a problem. It is created in pending
// and written exactly once more when evaluation completes; no other
// component mutates it.
type Submission struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"userId"`
	ProblemID   string                 `json:"problemId"`
	Language    string                 `json:"language"`
	Code        string                 `json:"code"`
	Status      evaluator.Status       `json:"status"`
	Runtime     int64                  `json:"runtime"`
	Memory      int64                  `json:"memory"`
	TestResults []evaluator.TestResult `json:"testResults"`
	SubmittedAt time.Time              `json:"submittedAt"`
}

// EvaluationTask is the queue message handing a submission to the
// evaluation workers.
type EvaluationTask struct {
	SubmissionID string `json:"submissionId"`
}

// UpdateEvent is the payload of the submission-updated push event.
type UpdateEvent struct {
	SubmissionID string                 `json:"submissionId"`
	Status       evaluator.Status       `json:"status"`
	Runtime      int64                  `json:"runtime"`
	TestResults  []evaluator.TestResult `json:"testResults"`
	Submission   *Submission            `json:"submission"`
}
