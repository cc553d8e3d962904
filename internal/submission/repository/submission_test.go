package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"codoleet/internal/common/db"
	"codoleet/internal/evaluator"
	"codoleet/internal/submission/model"
)

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type execCall struct {
	query string
	args  []interface{}
}

// fakeDatabase records Exec calls and returns a canned result. Queries are
// not needed by these tests.
type fakeDatabase struct {
	execs    []execCall
	affected int64
}

func (f *fakeDatabase) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	return fakeResult{affected: f.affected}, nil
}

func (f *fakeDatabase) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, db.ErrNoRows
}

func (f *fakeDatabase) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return nil
}

func (f *fakeDatabase) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	return nil
}

func (f *fakeDatabase) BeginTx(ctx context.Context) (db.Transaction, error) { return nil, nil }
func (f *fakeDatabase) Ping(ctx context.Context) error                      { return nil }
func (f *fakeDatabase) Close() error                                        { return nil }

func TestCreateResolvesDatabaseFromProvider(t *testing.T) {
	database := &fakeDatabase{affected: 1}
	repo := NewSubmissionRepository(db.NewManager(database))

	err := repo.Create(context.Background(), &model.Submission{
		ID:          "sub-1",
		UserID:      "user-1",
		ProblemID:   "two-sum",
		Language:    "javascript",
		Code:        "function solution() {}",
		SubmittedAt: time.Unix(1_700_000_000, 0),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(database.execs) != 1 {
		t.Fatalf("expected one insert, got %d", len(database.execs))
	}
	if !strings.Contains(database.execs[0].query, "INSERT INTO submissions") {
		t.Fatalf("unexpected query: %q", database.execs[0].query)
	}
}

func TestFinishEvaluationReportsTransition(t *testing.T) {
	database := &fakeDatabase{affected: 1}
	repo := NewSubmissionRepository(db.NewManager(database))

	transitioned, err := repo.FinishEvaluation(context.Background(), "sub-1", evaluator.StatusAccepted, 40, nil)
	if err != nil {
		t.Fatalf("FinishEvaluation: %v", err)
	}
	if !transitioned {
		t.Fatal("expected the transition to be reported")
	}

	database.affected = 0
	transitioned, err = repo.FinishEvaluation(context.Background(), "sub-1", evaluator.StatusAccepted, 40, nil)
	if err != nil {
		t.Fatalf("FinishEvaluation: %v", err)
	}
	if transitioned {
		t.Fatal("a settled submission must not report a transition")
	}
}

func TestRepositoryFailsWithoutDatabase(t *testing.T) {
	repo := NewSubmissionRepository(nil)

	if err := repo.Create(context.Background(), &model.Submission{
		ID:        "sub-1",
		UserID:    "user-1",
		ProblemID: "two-sum",
	}); err == nil {
		t.Fatal("expected error when no provider is configured")
	}
	if _, err := repo.GetByID(context.Background(), "sub-1"); err == nil {
		t.Fatal("expected error when no provider is configured")
	}
}

func TestRepositoryFollowsProviderSwap(t *testing.T) {
	first := &fakeDatabase{affected: 1}
	second := &fakeDatabase{affected: 1}
	manager := db.NewManager(first)
	repo := NewSubmissionRepository(manager)

	submission := &model.Submission{
		ID:          "sub-1",
		UserID:      "user-1",
		ProblemID:   "two-sum",
		Language:    "javascript",
		SubmittedAt: time.Unix(1_700_000_000, 0),
	}
	if err := repo.Create(context.Background(), submission); err != nil {
		t.Fatalf("Create: %v", err)
	}

	manager.Swap(second)
	if err := repo.Create(context.Background(), submission); err != nil {
		t.Fatalf("Create after swap: %v", err)
	}

	if len(first.execs) != 1 || len(second.execs) != 1 {
		t.Fatalf("writes = %d/%d, want one on each database", len(first.execs), len(second.execs))
	}
}
