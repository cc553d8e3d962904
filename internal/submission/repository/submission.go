// Package repository persists submissions in MySQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"codoleet/internal/common/db"
	"codoleet/internal/evaluator"
	"codoleet/internal/submission/model"
)

var ErrSubmissionNotFound = errors.New("submission not found")

const defaultListLimit = 50

// SubmissionRepository defines submission persistence operations.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *model.Submission) error
	GetByID(ctx context.Context, submissionID string) (*model.Submission, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Submission, error)

	// FinishEvaluation writes the terminal verdict. The update only applies
	// while the row is still pending; the returned bool reports whether this
	// call performed the transition.
	FinishEvaluation(ctx context.Context, submissionID string, status evaluator.Status, runtime int64, results []evaluator.TestResult) (bool, error)
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL.
// The database is resolved through the provider on every call so the
// connection can be swapped without rebuilding the repository.
type MySQLSubmissionRepository struct {
	dbProvider db.Provider
}

func NewSubmissionRepository(provider db.Provider) SubmissionRepository {
	return &MySQLSubmissionRepository{dbProvider: provider}
}

const submissionColumns = "submission_id, user_id, problem_id, language, source_code, status, runtime, memory, test_results, submitted_at"

// Create inserts a submission record in pending state.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, submission *model.Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	if submission.ID == "" {
		return errors.New("submission id is required")
	}
	if submission.UserID == "" {
		return errors.New("user id is required")
	}
	if submission.ProblemID == "" {
		return errors.New("problem id is required")
	}
	if submission.Status == "" {
		submission.Status = evaluator.StatusPending
	}

	database, err := db.CurrentDatabase(r.dbProvider)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO submissions
		(submission_id, user_id, problem_id, language, source_code, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = database.Exec(
		ctx,
		query,
		submission.ID,
		submission.UserID,
		submission.ProblemID,
		submission.Language,
		submission.Code,
		string(submission.Status),
		submission.SubmittedAt,
	)
	return err
}

// GetByID retrieves a submission by id.
func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, errors.New("submission id is required")
	}
	database, err := db.CurrentDatabase(r.dbProvider)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + submissionColumns + " FROM submissions WHERE submission_id = ? LIMIT 1"
	row := database.QueryRow(ctx, query, submissionID)
	submission, err := scanSubmission(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

// ListByUser returns the user's submissions, newest first.
func (r *MySQLSubmissionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Submission, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	database, err := db.CurrentDatabase(r.dbProvider)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + submissionColumns + " FROM submissions WHERE user_id = ? ORDER BY submitted_at DESC LIMIT ?"
	rows, err := database.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]*model.Submission, 0)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return submissions, nil
}

// FinishEvaluation transitions a pending submission to its terminal status.
func (r *MySQLSubmissionRepository) FinishEvaluation(ctx context.Context, submissionID string, status evaluator.Status, runtime int64, results []evaluator.TestResult) (bool, error) {
	if submissionID == "" {
		return false, errors.New("submission id is required")
	}
	if !status.Terminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}
	if results == nil {
		results = []evaluator.TestResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return false, fmt.Errorf("encode test results: %w", err)
	}

	database, err := db.CurrentDatabase(r.dbProvider)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE submissions
		SET status = ?, runtime = ?, test_results = ?
		WHERE submission_id = ? AND status = 'pending'
	`
	res, err := database.Exec(ctx, query, string(status), runtime, string(payload), submissionID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row scanner) (*model.Submission, error) {
	submission := &model.Submission{}
	var status string
	var testResults *string
	if err := row.Scan(
		&submission.ID,
		&submission.UserID,
		&submission.ProblemID,
		&submission.Language,
		&submission.Code,
		&status,
		&submission.Runtime,
		&submission.Memory,
		&testResults,
		&submission.SubmittedAt,
	); err != nil {
		return nil, err
	}
	submission.Status = evaluator.Status(status)
	submission.TestResults = []evaluator.TestResult{}
	if testResults != nil && *testResults != "" {
		if err := json.Unmarshal([]byte(*testResults), &submission.TestResults); err != nil {
			return nil, fmt.Errorf("decode test results: %w", err)
		}
	}
	return submission, nil
}
