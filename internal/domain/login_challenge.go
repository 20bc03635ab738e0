package domain

import "time"

// LoginChallenge is a single-use magic-link token bound to one user.
// A user holds at most one challenge at a time; issuing a new one
// replaces whatever was on file.
type LoginChallenge struct {
	UserID    string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge is expired relative to now.
func (c LoginChallenge) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return now.UTC().After(c.ExpiresAt.UTC())
}
