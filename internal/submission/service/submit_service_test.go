package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"codoleet/internal/common/cache"
	"codoleet/internal/common/mq"
	"codoleet/internal/common/storage"
	"codoleet/internal/delivery"
	"codoleet/internal/evaluator"
	"codoleet/internal/problem"
	"codoleet/internal/submission/model"
	"codoleet/internal/submission/repository"
	pkgerrors "codoleet/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeRepo struct {
	store     map[string]*model.Submission
	createErr error
	finishErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{store: make(map[string]*model.Submission)}
}

func (r *fakeRepo) Create(ctx context.Context, submission *model.Submission) error {
	if r.createErr != nil {
		return r.createErr
	}
	copied := *submission
	r.store[submission.ID] = &copied
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, submissionID string) (*model.Submission, error) {
	submission, ok := r.store[submissionID]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	copied := *submission
	return &copied, nil
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Submission, error) {
	var out []*model.Submission
	for _, submission := range r.store {
		if submission.UserID == userID {
			copied := *submission
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepo) FinishEvaluation(ctx context.Context, submissionID string, status evaluator.Status, runtime int64, results []evaluator.TestResult) (bool, error) {
	if r.finishErr != nil {
		return false, r.finishErr
	}
	submission, ok := r.store[submissionID]
	if !ok || submission.Status != evaluator.StatusPending {
		return false, nil
	}
	submission.Status = status
	submission.Runtime = runtime
	submission.TestResults = results
	return true, nil
}

type fakeCatalog struct {
	prob  problem.Problem
	err   error
	calls int
}

func (c *fakeCatalog) GetProblem(ctx context.Context, id string) (problem.Problem, error) {
	c.calls++
	if c.err != nil {
		return problem.Problem{}, c.err
	}
	return c.prob, nil
}

type fakeEvaluator struct {
	report evaluator.Report
	err    error
	calls  int
}

func (e *fakeEvaluator) Evaluate(ctx context.Context, code, language string, cases []evaluator.TestCase) (evaluator.Report, error) {
	e.calls++
	if e.err != nil {
		return evaluator.Report{}, e.err
	}
	return e.report, nil
}

type publishedEvent struct {
	userID string
	event  delivery.Event
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, userID string, event delivery.Event) error {
	p.events = append(p.events, publishedEvent{userID: userID, event: event})
	return nil
}

type fakeStorage struct {
	keys []string
	err  error
}

func (s *fakeStorage) PutObject(ctx context.Context, bucket, objectKey string, reader storage.ObjectReader, sizeBytes int64, contentType string) error {
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, objectKey)
	return nil
}

func (s *fakeStorage) GetObject(ctx context.Context, bucket, objectKey string) (storage.ObjectReader, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStorage) StatObject(ctx context.Context, bucket, objectKey string) (storage.ObjectStat, error) {
	return storage.ObjectStat{}, errors.New("not implemented")
}

func (s *fakeStorage) RemoveObjects(ctx context.Context, bucket string, keys []string) error {
	return nil
}

type fakeQueue struct {
	published []*mq.Message
	err       error
}

func (q *fakeQueue) Publish(ctx context.Context, topic string, message *mq.Message) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, message)
	return nil
}

func (q *fakeQueue) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	return nil
}

func (q *fakeQueue) Subscribe(ctx context.Context, topic string, handler mq.HandlerFunc) error {
	return nil
}

func (q *fakeQueue) SubscribeWithOptions(ctx context.Context, topic string, handler mq.HandlerFunc, opts *mq.SubscribeOptions) error {
	return nil
}

func (q *fakeQueue) SubscribeLimited(ctx context.Context, topic string, handler mq.HandlerFunc, opts *mq.SubscribeOptions, limiter mq.FetchLimiter) error {
	return nil
}

func (q *fakeQueue) Start() error                  { return nil }
func (q *fakeQueue) Stop() error                   { return nil }
func (q *fakeQueue) Ping(ctx context.Context) error { return nil }
func (q *fakeQueue) Close() error                  { return nil }

type testEnv struct {
	service   *SubmissionService
	repo      *fakeRepo
	catalog   *fakeCatalog
	evaluator *fakeEvaluator
	publisher *fakePublisher
	storage   *fakeStorage
	queue     *fakeQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	env := &testEnv{
		repo: newFakeRepo(),
		catalog: &fakeCatalog{prob: problem.Problem{
			ID: "two-sum",
			TestCases: []evaluator.TestCase{
				{Input: "[2,7], 9", ExpectedOutput: "[0,1]"},
				{Input: "[3,3], 6", ExpectedOutput: "[0,1]", IsHidden: true},
			},
		}},
		evaluator: &fakeEvaluator{report: evaluator.Report{
			Status: evaluator.StatusAccepted,
			TestResults: []evaluator.TestResult{
				{Input: "[2,7], 9", ExpectedOutput: "[0,1]", ActualOutput: "[0,1]", Passed: true, Runtime: 10},
				{Input: "[3,3], 6", ExpectedOutput: "[0,1]", ActualOutput: "[0,1]", Passed: true, Runtime: 12},
			},
			TotalRuntime: 22,
		}},
		publisher: &fakePublisher{},
		storage:   &fakeStorage{},
		queue:     &fakeQueue{},
	}

	svc, err := NewSubmissionService(Config{
		Repo:         env.repo,
		Cache:        c,
		MQ:           env.queue,
		Storage:      env.storage,
		Catalog:      env.catalog,
		Evaluator:    env.evaluator,
		Delivery:     env.publisher,
		TaskTopic:    "evaluation-tasks",
		SourceBucket: "submissions",
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	env.service = svc
	return env
}

func (env *testEnv) submit(t *testing.T) *model.Submission {
	t.Helper()
	submission, err := env.service.Submit(context.Background(), "user-1", SubmitInput{
		ProblemID: "two-sum",
		Code:      "function solution(nums, target) { return [0,1]; }",
		Language:  "javascript",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return submission
}

func TestSubmitCreatesPendingAndPublishesTask(t *testing.T) {
	env := newTestEnv(t)
	submission := env.submit(t)

	if submission.Status != evaluator.StatusPending {
		t.Fatalf("status = %s", submission.Status)
	}
	if len(submission.TestResults) != 0 {
		t.Fatal("pending submission must have no test results")
	}
	if submission.SubmittedAt.IsZero() {
		t.Fatal("submitted_at should be set")
	}

	if len(env.queue.published) != 1 {
		t.Fatalf("expected one queued task, got %d", len(env.queue.published))
	}
	var task model.EvaluationTask
	if err := json.Unmarshal(env.queue.published[0].Body, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.SubmissionID != submission.ID {
		t.Fatalf("task submission id = %s", task.SubmissionID)
	}

	if len(env.storage.keys) != 1 {
		t.Fatalf("expected one archived source, got %d", len(env.storage.keys))
	}
	want := fmt.Sprintf("submissions/%s.js", submission.ID)
	if env.storage.keys[0] != want {
		t.Fatalf("archive key = %s, want %s", env.storage.keys[0], want)
	}
}

func TestSubmitRejectsUnsupportedLanguage(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Submit(context.Background(), "user-1", SubmitInput{
		ProblemID: "two-sum",
		Code:      "print(1)",
		Language:  "python",
	})
	if pkgerrors.GetCode(err) != pkgerrors.LanguageNotSupported {
		t.Fatalf("expected LanguageNotSupported, got %v", pkgerrors.GetCode(err))
	}
	if len(env.queue.published) != 0 {
		t.Fatal("nothing should be queued")
	}
}

func TestSubmitSurvivesArchivalFailure(t *testing.T) {
	env := newTestEnv(t)
	env.storage.err = errors.New("minio down")

	submission := env.submit(t)
	if submission.Status != evaluator.StatusPending {
		t.Fatalf("status = %s", submission.Status)
	}
	if len(env.queue.published) != 1 {
		t.Fatal("task should still be queued when archival fails")
	}
}

func TestRunEvaluationPersistsVerdictAndPublishesOnce(t *testing.T) {
	env := newTestEnv(t)
	submission := env.submit(t)

	if err := env.service.RunEvaluation(context.Background(), submission.ID); err != nil {
		t.Fatalf("RunEvaluation: %v", err)
	}

	stored := env.repo.store[submission.ID]
	if stored.Status != evaluator.StatusAccepted {
		t.Fatalf("status = %s", stored.Status)
	}
	if stored.Runtime != 22 {
		t.Fatalf("runtime = %d", stored.Runtime)
	}
	if len(stored.TestResults) != 2 {
		t.Fatalf("results = %d", len(stored.TestResults))
	}

	if len(env.publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(env.publisher.events))
	}
	got := env.publisher.events[0]
	if got.userID != "user-1" {
		t.Fatalf("event user = %s", got.userID)
	}
	if got.event.Event != delivery.EventSubmissionUpdated {
		t.Fatalf("event name = %s", got.event.Event)
	}
	var payload model.UpdateEvent
	if err := json.Unmarshal(got.event.Data, &payload); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if payload.SubmissionID != submission.ID || payload.Status != evaluator.StatusAccepted {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Submission == nil || payload.Submission.Status != evaluator.StatusAccepted {
		t.Fatal("payload should embed the updated submission")
	}
}

func TestRunEvaluationCatalogFailure(t *testing.T) {
	env := newTestEnv(t)
	submission := env.submit(t)
	env.catalog.err = errors.New("connection refused")

	if err := env.service.RunEvaluation(context.Background(), submission.ID); err != nil {
		t.Fatalf("RunEvaluation: %v", err)
	}

	stored := env.repo.store[submission.ID]
	if stored.Status != evaluator.StatusRuntimeError {
		t.Fatalf("status = %s", stored.Status)
	}
	if len(stored.TestResults) != 0 {
		t.Fatal("no test results expected")
	}
	if env.evaluator.calls != 0 {
		t.Fatal("evaluator must not be called when the fetch fails")
	}
	if len(env.publisher.events) != 1 {
		t.Fatalf("exactly one event expected, got %d", len(env.publisher.events))
	}
}

func TestRunEvaluationGuardsDoubleDispatch(t *testing.T) {
	env := newTestEnv(t)
	submission := env.submit(t)

	if err := env.service.RunEvaluation(context.Background(), submission.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := env.service.RunEvaluation(context.Background(), submission.ID); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if env.catalog.calls != 1 {
		t.Fatalf("catalog should be fetched once, got %d", env.catalog.calls)
	}
	if len(env.publisher.events) != 1 {
		t.Fatalf("exactly one event expected, got %d", len(env.publisher.events))
	}
}

func TestRunEvaluationReleasesGuardOnPersistFailure(t *testing.T) {
	env := newTestEnv(t)
	submission := env.submit(t)
	env.repo.finishErr = errors.New("mysql gone away")

	err := env.service.RunEvaluation(context.Background(), submission.ID)
	if pkgerrors.GetCode(err) != pkgerrors.SubmissionUpdateFailed {
		t.Fatalf("expected SubmissionUpdateFailed, got %v", pkgerrors.GetCode(err))
	}
	if len(env.publisher.events) != 0 {
		t.Fatal("no event expected for a failed write")
	}

	// The guard must have been released so a redelivery can retry.
	env.repo.finishErr = nil
	if err := env.service.RunEvaluation(context.Background(), submission.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if env.catalog.calls != 2 {
		t.Fatalf("retry should re-fetch the problem, got %d calls", env.catalog.calls)
	}
	if env.repo.store[submission.ID].Status != evaluator.StatusAccepted {
		t.Fatal("retry should settle the submission")
	}
	if len(env.publisher.events) != 1 {
		t.Fatalf("exactly one event expected, got %d", len(env.publisher.events))
	}
}

func TestRunEvaluationSkipsTerminalSubmission(t *testing.T) {
	env := newTestEnv(t)
	submission := env.submit(t)
	env.repo.store[submission.ID].Status = evaluator.StatusAccepted

	if err := env.service.RunEvaluation(context.Background(), submission.ID); err != nil {
		t.Fatalf("RunEvaluation: %v", err)
	}
	if env.catalog.calls != 0 {
		t.Fatal("terminal submission must not be re-evaluated")
	}
	if len(env.publisher.events) != 0 {
		t.Fatal("no event expected")
	}
}

func TestHandleEvaluationTaskDropsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	message := mq.NewMessage([]byte("not json"))
	if err := env.service.HandleEvaluationTask(context.Background(), message); err != nil {
		t.Fatalf("malformed task must not be retried: %v", err)
	}
	if env.catalog.calls != 0 {
		t.Fatal("nothing should run for a malformed task")
	}
}

func TestHandleEvaluationTaskRunsSubmission(t *testing.T) {
	env := newTestEnv(t)
	submission := env.submit(t)

	body, _ := json.Marshal(model.EvaluationTask{SubmissionID: submission.ID})
	if err := env.service.HandleEvaluationTask(context.Background(), mq.NewMessage(body)); err != nil {
		t.Fatalf("HandleEvaluationTask: %v", err)
	}
	if env.repo.store[submission.ID].Status != evaluator.StatusAccepted {
		t.Fatal("submission should be evaluated")
	}
}

func TestRunEvaluationUnknownSubmission(t *testing.T) {
	env := newTestEnv(t)
	if err := env.service.RunEvaluation(context.Background(), "missing"); err != nil {
		t.Fatalf("unknown submission must not error: %v", err)
	}
	if len(env.publisher.events) != 0 {
		t.Fatal("no event expected")
	}
}
