package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrInvalidArgument indicates a malformed write.
var ErrInvalidArgument = errors.New("repository: invalid argument")

// ErrAlreadyExists indicates an insert lost a uniqueness race.
var ErrAlreadyExists = errors.New("repository: already exists")

// ErrQuotaExhausted indicates a guarded usage increment found the counter
// already at its ceiling.
var ErrQuotaExhausted = errors.New("repository: quota exhausted")
