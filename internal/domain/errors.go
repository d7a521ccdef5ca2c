package domain

import "errors"

var (
	// ErrValidation marks rejected input; surfaced synchronously, never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing order row.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a lost race on delivery state (conditional update or lease).
	ErrConflict = errors.New("conflict")
)
