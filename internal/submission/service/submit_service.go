// Package service orchestrates the submission pipeline: intake, queue
// handoff, evaluation, the terminal write and the verdict push.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"codoleet/internal/common/cache"
	"codoleet/internal/common/mq"
	"codoleet/internal/common/storage"
	"codoleet/internal/delivery"
	"codoleet/internal/evaluator"
	"codoleet/internal/harness"
	"codoleet/internal/problem"
	"codoleet/internal/submission/model"
	"codoleet/internal/submission/repository"
	appErr "codoleet/pkg/errors"
	"codoleet/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dispatchKeyPrefix   = "dispatch:"
	defaultDispatchTTL  = 10 * time.Minute
	defaultMaxCodeBytes = 64 * 1024
	defaultSourcePrefix = "submissions"
)

// Catalog fetches problems with their full test case sets.
type Catalog interface {
	GetProblem(ctx context.Context, id string) (problem.Problem, error)
}

// EvaluatorClient grades a submission against test cases.
type EvaluatorClient interface {
	Evaluate(ctx context.Context, code, language string, cases []evaluator.TestCase) (evaluator.Report, error)
}

// EventPublisher pushes verdict events to a user's sessions.
type EventPublisher interface {
	Publish(ctx context.Context, userID string, event delivery.Event) error
}

// Config holds submission service dependencies and settings.
type Config struct {
	Repo      repository.SubmissionRepository
	Cache     cache.Cache
	MQ        mq.MessageQueue
	Storage   storage.ObjectStorage
	Catalog   Catalog
	Evaluator EvaluatorClient
	Delivery  EventPublisher
	Languages *harness.Registry

	TaskTopic    string
	SourceBucket string
	MaxCodeBytes int
	DispatchTTL  time.Duration
}

// SubmissionService handles intake and runs evaluations.
type SubmissionService struct {
	repo      repository.SubmissionRepository
	cache     cache.Cache
	mq        mq.MessageQueue
	storage   storage.ObjectStorage
	catalog   Catalog
	evaluator EvaluatorClient
	delivery  EventPublisher
	languages *harness.Registry

	taskTopic    string
	sourceBucket string
	maxCodeBytes int
	dispatchTTL  time.Duration
}

// SubmitInput describes one submission request.
type SubmitInput struct {
	ProblemID string
	Code      string
	Language  string
}

// NewSubmissionService creates a submission service.
func NewSubmissionService(cfg Config) (*SubmissionService, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.MQ == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("problem catalog is required")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.Delivery == nil {
		return nil, fmt.Errorf("delivery publisher is required")
	}
	if cfg.TaskTopic == "" {
		return nil, fmt.Errorf("task topic is required")
	}
	if cfg.SourceBucket == "" {
		return nil, fmt.Errorf("source bucket is required")
	}
	if cfg.Languages == nil {
		cfg.Languages = harness.NewRegistry()
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	if cfg.DispatchTTL <= 0 {
		cfg.DispatchTTL = defaultDispatchTTL
	}
	return &SubmissionService{
		repo:         cfg.Repo,
		cache:        cfg.Cache,
		mq:           cfg.MQ,
		storage:      cfg.Storage,
		catalog:      cfg.Catalog,
		evaluator:    cfg.Evaluator,
		delivery:     cfg.Delivery,
		languages:    cfg.Languages,
		taskTopic:    cfg.TaskTopic,
		sourceBucket: cfg.SourceBucket,
		maxCodeBytes: cfg.MaxCodeBytes,
		dispatchTTL:  cfg.DispatchTTL,
	}, nil
}

// Submit creates a pending submission and hands it to the evaluation queue.
// It returns as soon as the handoff is durable; evaluation latency never
// blocks intake.
func (s *SubmissionService) Submit(ctx context.Context, userID string, input SubmitInput) (*model.Submission, error) {
	if userID == "" {
		return nil, appErr.New(appErr.Unauthorized)
	}
	if strings.TrimSpace(input.ProblemID) == "" {
		return nil, appErr.ValidationError("problem_id", "required")
	}
	if strings.TrimSpace(input.Code) == "" {
		return nil, appErr.ValidationError("code", "required")
	}
	if len(input.Code) > s.maxCodeBytes {
		return nil, appErr.New(appErr.CodeTooLarge).WithMessagef("source code exceeds %d bytes", s.maxCodeBytes)
	}
	language := strings.ToLower(strings.TrimSpace(input.Language))
	if _, err := s.languages.Get(language); err != nil {
		return nil, err
	}

	submission := &model.Submission{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProblemID:   strings.TrimSpace(input.ProblemID),
		Language:    language,
		Code:        input.Code,
		Status:      evaluator.StatusPending,
		TestResults: []evaluator.TestResult{},
		SubmittedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, appErr.Wrapf(err, appErr.SubmissionCreateFailed, "create submission failed")
	}

	s.archiveSource(ctx, submission)

	if err := s.publishTask(ctx, submission.ID); err != nil {
		return nil, err
	}
	return submission, nil
}

// Get returns one submission by id.
func (s *SubmissionService) Get(ctx context.Context, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}
	submission, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return nil, appErr.New(appErr.SubmissionNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}
	return submission, nil
}

// ListByUser returns the user's submission history, newest first.
func (s *SubmissionService) ListByUser(ctx context.Context, userID string) ([]*model.Submission, error) {
	if userID == "" {
		return nil, appErr.ValidationError("user_id", "required")
	}
	submissions, err := s.repo.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list submissions failed")
	}
	return submissions, nil
}

// HandleEvaluationTask is the queue handler for evaluation tasks.
func (s *SubmissionService) HandleEvaluationTask(ctx context.Context, message *mq.Message) error {
	var task model.EvaluationTask
	if err := json.Unmarshal(message.Body, &task); err != nil || task.SubmissionID == "" {
		logger.Error(ctx, "drop malformed evaluation task",
			zap.String("message_id", message.ID), zap.Error(err))
		return nil
	}
	return s.RunEvaluation(ctx, task.SubmissionID)
}

// RunEvaluation performs one evaluation run end to end: fetch the problem's
// test cases, grade, write the terminal verdict once and push the event.
// A dispatch guard plus the conditional terminal write make re-deliveries
// of the same task harmless.
func (s *SubmissionService) RunEvaluation(ctx context.Context, submissionID string) error {
	acquired, err := s.cache.TryLock(ctx, dispatchKeyPrefix+submissionID, s.dispatchTTL)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "acquire dispatch guard failed")
	}
	if !acquired {
		logger.Info(ctx, "evaluation already dispatched",
			zap.String("submission_id", submissionID))
		return nil
	}

	submission, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		s.releaseDispatch(ctx, submissionID)
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			logger.Warn(ctx, "evaluation task for unknown submission",
				zap.String("submission_id", submissionID))
			return nil
		}
		return appErr.Wrapf(err, appErr.DatabaseError, "load submission failed")
	}
	if submission.Status != evaluator.StatusPending {
		return nil
	}

	prob, err := s.catalog.GetProblem(ctx, submission.ProblemID)
	if err != nil {
		logger.Error(ctx, "problem fetch failed, failing run",
			zap.String("submission_id", submissionID),
			zap.String("problem_id", submission.ProblemID),
			zap.Error(err))
		return s.finish(ctx, submission, evaluator.Report{
			Status:      evaluator.StatusRuntimeError,
			TestResults: []evaluator.TestResult{},
		})
	}

	report, err := s.evaluator.Evaluate(ctx, submission.Code, submission.Language, prob.TestCases)
	if err != nil {
		logger.Error(ctx, "evaluation failed, failing run",
			zap.String("submission_id", submissionID), zap.Error(err))
		return s.finish(ctx, submission, evaluator.Report{
			Status:      evaluator.StatusRuntimeError,
			TestResults: []evaluator.TestResult{},
		})
	}
	return s.finish(ctx, submission, report)
}

// finish writes the terminal verdict and, when this call performed the
// transition, publishes exactly one submission-updated event.
func (s *SubmissionService) finish(ctx context.Context, submission *model.Submission, report evaluator.Report) error {
	transitioned, err := s.repo.FinishEvaluation(ctx, submission.ID, report.Status, report.TotalRuntime, report.TestResults)
	if err != nil {
		s.releaseDispatch(ctx, submission.ID)
		return appErr.Wrapf(err, appErr.SubmissionUpdateFailed, "finish evaluation failed")
	}
	if !transitioned {
		logger.Info(ctx, "submission already finalized",
			zap.String("submission_id", submission.ID))
		return nil
	}

	submission.Status = report.Status
	submission.Runtime = report.TotalRuntime
	submission.TestResults = report.TestResults
	if submission.TestResults == nil {
		submission.TestResults = []evaluator.TestResult{}
	}

	payload, err := json.Marshal(model.UpdateEvent{
		SubmissionID: submission.ID,
		Status:       submission.Status,
		Runtime:      submission.Runtime,
		TestResults:  submission.TestResults,
		Submission:   submission,
	})
	if err != nil {
		logger.Error(ctx, "encode update event failed",
			zap.String("submission_id", submission.ID), zap.Error(err))
		return nil
	}
	event := delivery.Event{Event: delivery.EventSubmissionUpdated, Data: payload}
	if err := s.delivery.Publish(ctx, submission.UserID, event); err != nil {
		logger.Warn(ctx, "publish update event failed",
			zap.String("submission_id", submission.ID), zap.Error(err))
	}
	return nil
}

func (s *SubmissionService) publishTask(ctx context.Context, submissionID string) error {
	body, err := json.Marshal(model.EvaluationTask{SubmissionID: submissionID})
	if err != nil {
		return appErr.Wrapf(err, appErr.QueuePublishFail, "encode evaluation task failed")
	}
	message := mq.NewMessage(body)
	message.ID = submissionID
	if err := s.mq.Publish(ctx, s.taskTopic, message); err != nil {
		return appErr.Wrapf(err, appErr.QueuePublishFail, "publish evaluation task failed")
	}
	return nil
}

// archiveSource keeps a copy of the submitted code in object storage.
// Archival is best-effort and never fails intake.
func (s *SubmissionService) archiveSource(ctx context.Context, submission *model.Submission) {
	key := fmt.Sprintf("%s/%s.%s", defaultSourcePrefix, submission.ID, sourceExtension(submission.Language))
	reader := io.NopCloser(strings.NewReader(submission.Code))
	defer reader.Close()
	err := s.storage.PutObject(ctx, s.sourceBucket, key, reader, int64(len(submission.Code)), "text/plain; charset=utf-8")
	if err != nil {
		logger.Warn(ctx, "archive source failed",
			zap.String("submission_id", submission.ID),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (s *SubmissionService) releaseDispatch(ctx context.Context, submissionID string) {
	if err := s.cache.Unlock(ctx, dispatchKeyPrefix+submissionID); err != nil {
		logger.Warn(ctx, "release dispatch guard failed",
			zap.String("submission_id", submissionID), zap.Error(err))
	}
}

func sourceExtension(language string) string {
	switch language {
	case "cpp":
		return "cpp"
	case "javascript":
		return "js"
	default:
		return "txt"
	}
}
