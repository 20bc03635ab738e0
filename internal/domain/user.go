package domain

import "time"

// User represents an account identified by email.
type User struct {
	ID         string
	Email      string
	UsageCount int
	CreatedAt  time.Time
}
