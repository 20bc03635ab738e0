package account

import (
	"context"

	"log/slog"

	"github.com/avikal/resumeai/internal/domain"
	"github.com/avikal/resumeai/internal/repository"
)

// Service exposes account lookups.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	limit  int
}

// New constructs a Service with the free-tier ceiling it reports.
func New(users repository.UserRepository, logger *slog.Logger, limit int) Service {
	return Service{users: users, logger: logger, limit: limit}
}

// Summary is the externally visible account state.
type Summary struct {
	ID         string
	Email      string
	UsageCount int
	UsageLimit int
}

// Get returns the account summary for an id.
func (s Service) Get(ctx context.Context, id string) (*Summary, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return summarize(user, s.limit), nil
}

func summarize(user *domain.User, limit int) *Summary {
	return &Summary{
		ID:         user.ID,
		Email:      user.Email,
		UsageCount: user.UsageCount,
		UsageLimit: limit,
	}
}
