package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/avikal/resumeai/internal/domain"
	"github.com/avikal/resumeai/internal/repository"
	"github.com/avikal/resumeai/pkg/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		JWTSecret:      "test-secret",
		AccessTokenTTL: time.Hour,
		MagicLinkTTL:   time.Hour,
		FreeTierLimit:  3,
	}
}

type userRepoMock struct {
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	getByIDFunc    func(ctx context.Context, id string) (*domain.User, error)
	createFunc     func(ctx context.Context, user *domain.User) error
}

func (m userRepoMock) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(ctx, email)
	}
	return nil, repository.ErrNotFound
}

func (m userRepoMock) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m userRepoMock) CreateUser(ctx context.Context, user *domain.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

// challengeStore is an in-memory ChallengeRepository with the same
// supersede-and-consume behavior as the postgres implementation.
type challengeStore struct {
	byUser map[string]domain.LoginChallenge
}

func newChallengeStore() *challengeStore {
	return &challengeStore{byUser: make(map[string]domain.LoginChallenge)}
}

func (s *challengeStore) UpsertChallenge(_ context.Context, challenge *domain.LoginChallenge) error {
	s.byUser[challenge.UserID] = *challenge
	return nil
}

func (s *challengeStore) GetChallengeByToken(_ context.Context, token string) (*domain.LoginChallenge, error) {
	for _, c := range s.byUser {
		if c.Token == token {
			found := c
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *challengeStore) ConsumeChallenge(_ context.Context, token string) (string, error) {
	for userID, c := range s.byUser {
		if c.Token == token {
			delete(s.byUser, userID)
			return userID, nil
		}
	}
	return "", repository.ErrNotFound
}

func fixedUser() *domain.User {
	return &domain.User{ID: "user-1", Email: "jordan@example.com", UsageCount: 1}
}

func existingUserRepo() userRepoMock {
	return userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			if email == "jordan@example.com" {
				return fixedUser(), nil
			}
			return nil, repository.ErrNotFound
		},
		getByIDFunc: func(_ context.Context, id string) (*domain.User, error) {
			if id == "user-1" {
				return fixedUser(), nil
			}
			return nil, repository.ErrNotFound
		},
	}
}

func TestRequestLoginCreatesAccountOnFirstContact(t *testing.T) {
	var created *domain.User
	users := userRepoMock{
		createFunc: func(_ context.Context, user *domain.User) error {
			created = user
			return nil
		},
	}
	store := newChallengeStore()
	svc := New(users, store, newLogger(), testConfig())

	challenge, err := svc.RequestLogin(context.Background(), "New.Person@Example.com ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatalf("expected account creation")
	}
	if created.Email != "new.person@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if challenge.Token == "" {
		t.Fatalf("expected token")
	}
	if len(challenge.Token) < 43 {
		t.Fatalf("token too short for 32 bytes of entropy: %d chars", len(challenge.Token))
	}
	if challenge.ExpiresIn != time.Hour {
		t.Fatalf("unexpected ttl: %v", challenge.ExpiresIn)
	}
}

func TestRequestLoginLostCreateRaceUsesExistingAccount(t *testing.T) {
	// Two first logins race: our lookup misses, our insert loses the
	// uniqueness race, and the winner's account must be reused.
	lookups := 0
	users := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			lookups++
			if lookups == 1 {
				return nil, repository.ErrNotFound
			}
			return &domain.User{ID: "winner-1", Email: email}, nil
		},
		createFunc: func(_ context.Context, _ *domain.User) error {
			return repository.ErrAlreadyExists
		},
	}
	store := newChallengeStore()
	svc := New(users, store, newLogger(), testConfig())

	challenge, err := svc.RequestLogin(context.Background(), "jordan@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if challenge.Token == "" {
		t.Fatalf("expected token")
	}
	if got := store.byUser["winner-1"]; got.Token != challenge.Token {
		t.Fatalf("challenge should belong to the existing account, got %+v", got)
	}
}

func TestRequestLoginRejectsBadEmail(t *testing.T) {
	svc := New(userRepoMock{}, newChallengeStore(), newLogger(), testConfig())
	if _, err := svc.RequestLogin(context.Background(), "not-an-email"); !errors.Is(err, ErrEmailInvalid) {
		t.Fatalf("expected ErrEmailInvalid, got %v", err)
	}
}

func TestVerifyLoginHappyPath(t *testing.T) {
	store := newChallengeStore()
	svc := New(existingUserRepo(), store, newLogger(), testConfig())

	challenge, err := svc.RequestLogin(context.Background(), "jordan@example.com")
	if err != nil {
		t.Fatalf("request login: %v", err)
	}
	session, err := svc.VerifyLogin(context.Background(), challenge.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.UserID != "user-1" || session.Email != "jordan@example.com" {
		t.Fatalf("unexpected identity: %+v", session)
	}
	if session.UsageCount != 1 || session.UsageLimit != 3 {
		t.Fatalf("expected quota state in session, got %d/%d", session.UsageCount, session.UsageLimit)
	}
	if session.AccessToken == "" {
		t.Fatalf("expected access token")
	}
}

func TestVerifyLoginTokenIsSingleUse(t *testing.T) {
	store := newChallengeStore()
	svc := New(existingUserRepo(), store, newLogger(), testConfig())

	challenge, err := svc.RequestLogin(context.Background(), "jordan@example.com")
	if err != nil {
		t.Fatalf("request login: %v", err)
	}
	if _, err := svc.VerifyLogin(context.Background(), challenge.Token); err != nil {
		t.Fatalf("first verification: %v", err)
	}
	if _, err := svc.VerifyLogin(context.Background(), challenge.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on reuse, got %v", err)
	}
}

func TestVerifyLoginSecondIssuanceSupersedesFirst(t *testing.T) {
	store := newChallengeStore()
	svc := New(existingUserRepo(), store, newLogger(), testConfig())

	first, err := svc.RequestLogin(context.Background(), "jordan@example.com")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := svc.RequestLogin(context.Background(), "jordan@example.com")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if first.Token == second.Token {
		t.Fatalf("expected distinct tokens")
	}
	if _, err := svc.VerifyLogin(context.Background(), first.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected superseded token to be invalid, got %v", err)
	}
	if _, err := svc.VerifyLogin(context.Background(), second.Token); err != nil {
		t.Fatalf("latest token should verify: %v", err)
	}
}

func TestVerifyLoginExpiredToken(t *testing.T) {
	store := newChallengeStore()
	svc := New(existingUserRepo(), store, newLogger(), testConfig())

	current := time.Now()
	svc.now = func() time.Time { return current }

	challenge, err := svc.RequestLogin(context.Background(), "jordan@example.com")
	if err != nil {
		t.Fatalf("request login: %v", err)
	}
	current = current.Add(2 * time.Hour)
	if _, err := svc.VerifyLogin(context.Background(), challenge.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	// Expired token stays on file until the next issuance replaces it.
	if _, err := store.GetChallengeByToken(context.Background(), challenge.Token); err != nil {
		t.Fatalf("expired challenge should not be consumed: %v", err)
	}
}

func TestVerifyLoginUnknownToken(t *testing.T) {
	svc := New(existingUserRepo(), newChallengeStore(), newLogger(), testConfig())
	if _, err := svc.VerifyLogin(context.Background(), "never-issued"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthorizeRoundTrip(t *testing.T) {
	store := newChallengeStore()
	svc := New(existingUserRepo(), store, newLogger(), testConfig())

	challenge, err := svc.RequestLogin(context.Background(), "jordan@example.com")
	if err != nil {
		t.Fatalf("request login: %v", err)
	}
	session, err := svc.VerifyLogin(context.Background(), challenge.Token)
	if err != nil {
		t.Fatalf("verify login: %v", err)
	}
	user, err := svc.Authorize(context.Background(), session.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user: %s", user.ID)
	}
}

func TestAuthorizeGarbageToken(t *testing.T) {
	svc := New(existingUserRepo(), newChallengeStore(), newLogger(), testConfig())
	if _, err := svc.Authorize(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
