package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/avikal/resumeai/internal/domain"
	"github.com/avikal/resumeai/internal/repository"
	"github.com/avikal/resumeai/pkg/config"
	jwtpkg "github.com/avikal/resumeai/pkg/jwt"
)

var (
	ErrEmailInvalid = errors.New("auth: email invalid")
	ErrTokenInvalid = errors.New("auth: token invalid")
	ErrTokenExpired = errors.New("auth: token expired")
)

// Service handles magic-link authentication.
type Service struct {
	users      repository.UserRepository
	challenges repository.ChallengeRepository
	logger     *slog.Logger
	cfg        config.APIConfig
	now        func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, challenges repository.ChallengeRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, challenges: challenges, logger: logger, cfg: cfg, now: time.Now}
}

// Challenge is the outcome of a magic-link request.
type Challenge struct {
	Token     string
	Email     string
	ExpiresIn time.Duration
}

// Session identifies a verified user together with quota state.
type Session struct {
	UserID      string
	Email       string
	UsageCount  int
	UsageLimit  int
	AccessToken string
}

// RequestLogin mints a magic-link challenge for the email, creating the
// account on first contact. A fresh challenge supersedes any prior one
// for the same account, so only the latest token is ever verifiable.
func (s Service) RequestLogin(ctx context.Context, email string) (*Challenge, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return nil, ErrEmailInvalid
	}

	user, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		user = &domain.User{
			ID:        uuid.NewString(),
			Email:     normalized,
			CreatedAt: s.now().UTC(),
		}
		switch err := s.users.CreateUser(ctx, user); {
		case err == nil:
			s.logger.Info("account created", "user_id", user.ID)
		case errors.Is(err, repository.ErrAlreadyExists):
			// A concurrent first login inserted the row between our
			// lookup and the insert. Use the winner's account.
			user, err = s.users.GetUserByEmail(ctx, normalized)
			if err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	ttl := s.cfg.MagicLinkTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := s.now().UTC()
	challenge := domain.LoginChallenge{
		UserID:    user.ID,
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.challenges.UpsertChallenge(ctx, &challenge); err != nil {
		return nil, err
	}
	s.logger.Info("magic link issued", "user_id", user.ID)
	return &Challenge{Token: token, Email: normalized, ExpiresIn: ttl}, nil
}

// VerifyLogin exchanges a magic-link token for a session. The token is
// single-use: a successful exchange consumes it, and a raced duplicate
// exchange fails with ErrTokenInvalid. Expired tokens are left on file
// and replaced by the next issuance.
func (s Service) VerifyLogin(ctx context.Context, token string) (*Session, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, ErrTokenInvalid
	}
	challenge, err := s.challenges.GetChallengeByToken(ctx, trimmed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if challenge.Expired(s.now()) {
		return nil, ErrTokenExpired
	}
	userID, err := s.challenges.ConsumeChallenge(ctx, trimmed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	accessToken, err := jwtpkg.GenerateToken(user.ID, user.Email, s.cfg.JWTSecret, s.accessTokenTTL())
	if err != nil {
		return nil, err
	}
	s.logger.Info("user verified", "user_id", user.ID)
	return &Session{
		UserID:      user.ID,
		Email:       user.Email,
		UsageCount:  user.UsageCount,
		UsageLimit:  s.cfg.FreeTierLimit,
		AccessToken: accessToken,
	}, nil
}

// Authorize validates a bearer token and returns the associated user.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, ErrTokenInvalid
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	return user, nil
}

func (s Service) accessTokenTTL() time.Duration {
	if s.cfg.AccessTokenTTL > 0 {
		return s.cfg.AccessTokenTTL
	}
	return time.Hour
}

// randomToken returns a URL-safe token with 256 bits of entropy.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate magic-link token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
