package analyze

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"log/slog"

	"github.com/google/uuid"

	"github.com/avikal/resumeai/internal/domain"
	"github.com/avikal/resumeai/internal/llm"
	"github.com/avikal/resumeai/internal/repository"
	"github.com/avikal/resumeai/pkg/config"
)

// ErrModelUnavailable indicates the completion provider failed for every
// attempt in the retry budget. Safe for the caller to retry later.
var ErrModelUnavailable = errors.New("analyze: model unavailable")

// GateError is a resume-gate rejection. User-correctable; the reason is
// surfaced verbatim.
type GateError struct {
	Reason string
}

func (e *GateError) Error() string { return e.Reason }

// QuotaError reports free-tier exhaustion together with current state.
type QuotaError struct {
	Used  int
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("analyze: usage limit reached (%d/%d)", e.Used, e.Limit)
}

// Service orchestrates resume analysis.
type Service struct {
	users     repository.UserRepository
	analyses  repository.AnalysisRepository
	completer llm.Completer
	rubric    llm.Rubric
	logger    *slog.Logger
	cfg       config.APIConfig
	now       func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, analyses repository.AnalysisRepository, completer llm.Completer, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{
		users:     users,
		analyses:  analyses,
		completer: completer,
		rubric:    llm.DefaultRubric,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Result is a completed analysis.
type Result struct {
	AnalysisID    string
	Verdict       domain.Verdict
	RemainingUses int
}

// Analyze runs the full pipeline: quota pre-check, resume gate, model
// call with bounded retry, JSON recovery, then a transactional
// persist-and-increment. Quota is only consumed when everything before
// it succeeded, so a failed analysis never burns a use and no partial
// record is ever written.
func (s Service) Analyze(ctx context.Context, userID, resumeText, roleTarget string) (*Result, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := s.limit()
	if user.UsageCount >= limit {
		return nil, &QuotaError{Used: user.UsageCount, Limit: limit}
	}

	if verdict := CheckResume(resumeText); !verdict.Valid {
		return nil, &GateError{Reason: verdict.Reason}
	}

	prompt := s.rubric.BuildPrompt(truncate(resumeText, s.maxResumeChars()), roleTarget)
	raw, err := s.complete(ctx, user.ID, prompt)
	if err != nil {
		return nil, err
	}

	verdict, err := llm.ParseVerdict(raw)
	if err != nil {
		s.logger.Error("model output unusable",
			"user_id", user.ID,
			"raw_excerpt", truncate(raw, 200),
			"error", err,
		)
		return nil, err
	}

	record := domain.Analysis{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		ResumeExcerpt: truncate(resumeText, s.excerptChars()),
		Verdict:       *verdict,
		CreatedAt:     s.now().UTC(),
	}
	newCount, err := s.analyses.RecordAnalysis(ctx, &record, limit)
	if err != nil {
		if errors.Is(err, repository.ErrQuotaExhausted) {
			return nil, &QuotaError{Used: limit, Limit: limit}
		}
		return nil, err
	}
	s.logger.Info("analysis stored", "user_id", user.ID, "analysis_id", record.ID, "score", verdict.OverallScore)
	return &Result{
		AnalysisID:    record.ID,
		Verdict:       *verdict,
		RemainingUses: limit - newCount,
	}, nil
}

// History returns the user's analyses, most recent first.
func (s Service) History(ctx context.Context, userID string) ([]domain.Analysis, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.analyses.ListAnalysesByUser(ctx, userID, s.historyLimit())
}

// complete calls the model with an explicit bounded retry. Only the
// external call is retried; everything around it runs once.
func (s Service) complete(ctx context.Context, userID, prompt string) (string, error) {
	attempts := s.cfg.LLMAttempts
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := s.completer.Complete(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		s.logger.Warn("completion attempt failed", "user_id", userID, "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: after %d attempts: %v", ErrModelUnavailable, attempts, lastErr)
}

func (s Service) limit() int {
	if s.cfg.FreeTierLimit > 0 {
		return s.cfg.FreeTierLimit
	}
	return 3
}

func (s Service) maxResumeChars() int {
	if s.cfg.MaxResumeChars > 0 {
		return s.cfg.MaxResumeChars
	}
	return 12000
}

func (s Service) excerptChars() int {
	if s.cfg.ExcerptChars > 0 {
		return s.cfg.ExcerptChars
	}
	return 500
}

func (s Service) historyLimit() int {
	if s.cfg.HistoryLimit > 0 {
		return s.cfg.HistoryLimit
	}
	return 50
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
