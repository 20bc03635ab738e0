package analyze

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"log/slog"

	"github.com/avikal/resumeai/internal/domain"
	"github.com/avikal/resumeai/internal/llm"
	"github.com/avikal/resumeai/internal/repository"
	"github.com/avikal/resumeai/pkg/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type userRepoMock struct {
	getByIDFunc    func(ctx context.Context, id string) (*domain.User, error)
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	createFunc     func(ctx context.Context, user *domain.User) error
}

func (m userRepoMock) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m userRepoMock) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(ctx, email)
	}
	return nil, repository.ErrNotFound
}

func (m userRepoMock) CreateUser(ctx context.Context, user *domain.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

type analysisRepoMock struct {
	recordFunc func(ctx context.Context, analysis *domain.Analysis, limit int) (int, error)
	listFunc   func(ctx context.Context, userID string, limit int) ([]domain.Analysis, error)
}

func (m *analysisRepoMock) RecordAnalysis(ctx context.Context, analysis *domain.Analysis, limit int) (int, error) {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, analysis, limit)
	}
	return 0, errors.New("unexpected RecordAnalysis call")
}

func (m *analysisRepoMock) ListAnalysesByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID, limit)
	}
	return nil, nil
}

type completerMock struct {
	mu       sync.Mutex
	calls    int
	complete func(ctx context.Context, prompt string) (string, error)
}

func (m *completerMock) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.complete != nil {
		return m.complete(ctx, prompt)
	}
	return "", errors.New("unexpected Complete call")
}

func (m *completerMock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testUser(count int) *domain.User {
	return &domain.User{ID: "user-1", Email: "jordan@example.com", UsageCount: count}
}

func testConfig() config.APIConfig {
	return config.APIConfig{FreeTierLimit: 3, MaxResumeChars: 12000, ExcerptChars: 500, LLMAttempts: 3}
}

const fencedCompletion = "```json\n" + `{"overall_score":72,"score_verdict":"Good","strengths":["clear"],"weaknesses":["vague"],"ats_issues":[],"improved_bullets":[],"recommendations":["add metrics"]}` + "\n```"

func TestAnalyzeHappyPath(t *testing.T) {
	users := userRepoMock{
		getByIDFunc: func(_ context.Context, id string) (*domain.User, error) {
			if id != "user-1" {
				t.Fatalf("unexpected user lookup: %s", id)
			}
			return testUser(1), nil
		},
	}
	var stored *domain.Analysis
	analyses := &analysisRepoMock{
		recordFunc: func(_ context.Context, analysis *domain.Analysis, limit int) (int, error) {
			if limit != 3 {
				t.Fatalf("unexpected limit: %d", limit)
			}
			stored = analysis
			return 2, nil
		},
	}
	completer := &completerMock{
		complete: func(_ context.Context, prompt string) (string, error) {
			return fencedCompletion, nil
		},
	}
	svc := New(users, analyses, completer, newLogger(), testConfig())

	result, err := svc.Analyze(context.Background(), "user-1", validResumeText(), "backend engineer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict.OverallScore != 72 {
		t.Fatalf("expected recovered score 72, got %d", result.Verdict.OverallScore)
	}
	if result.RemainingUses != 1 {
		t.Fatalf("expected 1 remaining use, got %d", result.RemainingUses)
	}
	if stored == nil {
		t.Fatalf("expected analysis to be persisted")
	}
	if stored.UserID != "user-1" {
		t.Fatalf("unexpected owner: %s", stored.UserID)
	}
	if len(stored.ResumeExcerpt) > 500 {
		t.Fatalf("excerpt not bounded: %d bytes", len(stored.ResumeExcerpt))
	}
}

func TestAnalyzeQuotaPreCheck(t *testing.T) {
	users := userRepoMock{
		getByIDFunc: func(_ context.Context, _ string) (*domain.User, error) {
			return testUser(3), nil
		},
	}
	completer := &completerMock{}
	svc := New(users, &analysisRepoMock{}, completer, newLogger(), testConfig())

	_, err := svc.Analyze(context.Background(), "user-1", validResumeText(), "")
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if quotaErr.Used != 3 || quotaErr.Limit != 3 {
		t.Fatalf("unexpected quota state: %d/%d", quotaErr.Used, quotaErr.Limit)
	}
	if completer.callCount() != 0 {
		t.Fatalf("model must not be called once quota is exhausted")
	}
}

func TestAnalyzeGateRejectionSkipsModel(t *testing.T) {
	users := userRepoMock{
		getByIDFunc: func(_ context.Context, _ string) (*domain.User, error) {
			return testUser(0), nil
		},
	}
	completer := &completerMock{}
	svc := New(users, &analysisRepoMock{}, completer, newLogger(), testConfig())

	_, err := svc.Analyze(context.Background(), "user-1", "too short", "")
	var gateErr *GateError
	if !errors.As(err, &gateErr) {
		t.Fatalf("expected GateError, got %v", err)
	}
	if gateErr.Reason == "" {
		t.Fatalf("expected human-readable reason")
	}
	if completer.callCount() != 0 {
		t.Fatalf("gate rejection must not spend a model call")
	}
}

func TestAnalyzeRetriesThenUnavailable(t *testing.T) {
	users := userRepoMock{
		getByIDFunc: func(_ context.Context, _ string) (*domain.User, error) {
			return testUser(0), nil
		},
	}
	completer := &completerMock{
		complete: func(_ context.Context, _ string) (string, error) {
			return "", errors.New("upstream 503")
		},
	}
	recorded := false
	analyses := &analysisRepoMock{
		recordFunc: func(_ context.Context, _ *domain.Analysis, _ int) (int, error) {
			recorded = true
			return 1, nil
		},
	}
	svc := New(users, analyses, completer, newLogger(), testConfig())

	_, err := svc.Analyze(context.Background(), "user-1", validResumeText(), "")
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if completer.callCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", completer.callCount())
	}
	if recorded {
		t.Fatalf("failed analysis must not be persisted")
	}
}

func TestAnalyzeMalformedOutputWritesNothing(t *testing.T) {
	users := userRepoMock{
		getByIDFunc: func(_ context.Context, _ string) (*domain.User, error) {
			return testUser(0), nil
		},
	}
	completer := &completerMock{
		complete: func(_ context.Context, _ string) (string, error) {
			return "I am unable to produce JSON today.", nil
		},
	}
	recorded := false
	analyses := &analysisRepoMock{
		recordFunc: func(_ context.Context, _ *domain.Analysis, _ int) (int, error) {
			recorded = true
			return 1, nil
		},
	}
	svc := New(users, analyses, completer, newLogger(), testConfig())

	_, err := svc.Analyze(context.Background(), "user-1", validResumeText(), "")
	if !errors.Is(err, llm.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
	if recorded {
		t.Fatalf("malformed output must not consume quota or write a record")
	}
}

// ledgerMock mimics the store's guarded increment: check and bump are a
// single atomic step, the way the postgres implementation does it.
type ledgerMock struct {
	mu    sync.Mutex
	count int
}

func (l *ledgerMock) RecordAnalysis(_ context.Context, _ *domain.Analysis, limit int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count >= limit {
		return 0, repository.ErrQuotaExhausted
	}
	l.count++
	return l.count, nil
}

func (l *ledgerMock) ListAnalysesByUser(_ context.Context, _ string, _ int) ([]domain.Analysis, error) {
	return nil, nil
}

func TestAnalyzeConcurrentLastSlot(t *testing.T) {
	ledger := &ledgerMock{count: 2}
	users := userRepoMock{
		getByIDFunc: func(_ context.Context, _ string) (*domain.User, error) {
			// Both requests observe usage below the ceiling.
			return testUser(2), nil
		},
	}
	completer := &completerMock{
		complete: func(_ context.Context, _ string) (string, error) {
			return fencedCompletion, nil
		},
	}
	svc := New(users, ledger, completer, newLogger(), testConfig())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Analyze(context.Background(), "user-1", validResumeText(), "")
		}(i)
	}
	wg.Wait()

	successes, quotaDenied := 0, 0
	for _, err := range errs {
		var quotaErr *QuotaError
		switch {
		case err == nil:
			successes++
		case errors.As(err, &quotaErr):
			quotaDenied++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || quotaDenied != 1 {
		t.Fatalf("expected exactly one success and one quota denial, got %d/%d", successes, quotaDenied)
	}
	if ledger.count != 3 {
		t.Fatalf("expected final usage_count == limit, got %d", ledger.count)
	}
}

func TestHistoryUnknownUser(t *testing.T) {
	svc := New(userRepoMock{}, &analysisRepoMock{}, &completerMock{}, newLogger(), testConfig())
	_, err := svc.History(context.Background(), "nope")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
