package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrPasswordMismatch indicates the supplied password does not match the
	// stored hash. Kept separate from ErrNotFound internally; callers collapse
	// the two before answering clients.
	ErrPasswordMismatch = errors.New("repository: password mismatch")
)
