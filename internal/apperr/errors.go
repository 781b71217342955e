// Package apperr defines sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidResponse = errors.New("invalid model response")
	ErrEmptyChangeSet  = errors.New("empty change set")
)
