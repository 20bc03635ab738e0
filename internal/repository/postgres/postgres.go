package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avikal/resumeai/internal/domain"
	"github.com/avikal/resumeai/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository      = (*Repository)(nil)
	_ repository.ChallengeRepository = (*Repository)(nil)
	_ repository.AnalysisRepository  = (*Repository)(nil)
)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, usage_count, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, user.ID, strings.ToLower(strings.TrimSpace(user.Email)), user.UsageCount, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, usage_count, created_at FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, usage_count, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.UsageCount, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpsertChallenge stores a magic-link challenge, replacing any prior one
// held by the same user.
func (r *Repository) UpsertChallenge(ctx context.Context, challenge *domain.LoginChallenge) error {
	if challenge == nil || strings.TrimSpace(challenge.Token) == "" {
		return repository.ErrInvalidArgument
	}
	const query = `INSERT INTO login_challenges (user_id, token, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			token = EXCLUDED.token,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at`
	_, err := r.pool.Exec(ctx, query,
		challenge.UserID,
		challenge.Token,
		challenge.IssuedAt.UTC(),
		challenge.ExpiresAt.UTC(),
	)
	return err
}

// GetChallengeByToken fetches a challenge via its token.
func (r *Repository) GetChallengeByToken(ctx context.Context, token string) (*domain.LoginChallenge, error) {
	const query = `SELECT user_id, token, issued_at, expires_at FROM login_challenges WHERE token = $1`
	row := r.pool.QueryRow(ctx, query, strings.TrimSpace(token))
	var c domain.LoginChallenge
	if err := row.Scan(&c.UserID, &c.Token, &c.IssuedAt, &c.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ConsumeChallenge deletes the challenge row so the token is single-use.
// The guarded DELETE means exactly one of two racing verifications wins.
func (r *Repository) ConsumeChallenge(ctx context.Context, token string) (string, error) {
	const query = `DELETE FROM login_challenges WHERE token = $1 RETURNING user_id`
	row := r.pool.QueryRow(ctx, query, strings.TrimSpace(token))
	var userID string
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return userID, nil
}

// RecordAnalysis persists an analysis record and bumps the owner's usage
// counter in one transaction. The UPDATE carries the quota guard so the
// check and the increment are a single atomic statement; when it matches
// no row the whole transaction rolls back and nothing is persisted.
func (r *Repository) RecordAnalysis(ctx context.Context, analysis *domain.Analysis, limit int) (int, error) {
	if analysis == nil {
		return 0, repository.ErrInvalidArgument
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const increment = `UPDATE users
		SET usage_count = usage_count + 1
		WHERE id = $1 AND usage_count < $2
		RETURNING usage_count`
	var newCount int
	if err := tx.QueryRow(ctx, increment, analysis.UserID, limit).Scan(&newCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrQuotaExhausted
		}
		return 0, err
	}

	const insert = `INSERT INTO analyses (id, user_id, resume_excerpt, verdict, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insert,
		analysis.ID,
		analysis.UserID,
		analysis.ResumeExcerpt,
		analysis.Verdict,
		analysis.CreatedAt.UTC(),
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newCount, nil
}

// ListAnalysesByUser returns analyses most recent first.
func (r *Repository) ListAnalysesByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	const query = `SELECT id, user_id, resume_excerpt, verdict, created_at
		FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []domain.Analysis
	for rows.Next() {
		var a domain.Analysis
		if err := rows.Scan(&a.ID, &a.UserID, &a.ResumeExcerpt, &a.Verdict, &a.CreatedAt); err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
