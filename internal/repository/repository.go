package repository

import (
	"context"

	"github.com/avikal/resumeai/internal/domain"
)

// UserRepository persists accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// ChallengeRepository manages magic-link challenges. A user holds at most
// one challenge; Upsert replaces any prior row.
type ChallengeRepository interface {
	UpsertChallenge(ctx context.Context, challenge *domain.LoginChallenge) error
	GetChallengeByToken(ctx context.Context, token string) (*domain.LoginChallenge, error)
	// ConsumeChallenge deletes the challenge with the given token and
	// returns its user id. A token already consumed by a concurrent
	// verification yields ErrNotFound.
	ConsumeChallenge(ctx context.Context, token string) (string, error)
}

// AnalysisRepository stores analysis records and the usage counter that
// guards them.
type AnalysisRepository interface {
	// RecordAnalysis persists the record and increments the owner's
	// usage counter in one transaction. The increment is guarded: when
	// usage_count is already at limit the transaction rolls back and
	// ErrQuotaExhausted is returned, leaving no record behind. On
	// success the new counter value is returned.
	RecordAnalysis(ctx context.Context, analysis *domain.Analysis, limit int) (int, error)
	ListAnalysesByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error)
}
