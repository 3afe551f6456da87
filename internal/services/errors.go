package services

import (
	"errors"

	"github.com/quickcart/apiserver/internal/auth"
	"github.com/quickcart/apiserver/internal/store"
)

var (
	// ErrValidation marks malformed input. Use ValidationError to carry a message.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a unique record already exists.
	ErrConflict = errors.New("user already exists")

	// ErrUnauthorized is returned for bad credentials.
	ErrUnauthorized = errors.New("invalid credentials")

	// ErrForbidden is returned when the caller's role is insufficient.
	ErrForbidden = auth.ErrForbidden

	// ErrNotFound is returned when a product or user does not exist.
	ErrNotFound = store.ErrNotFound
)

// ValidationError describes rejected input. It matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}
