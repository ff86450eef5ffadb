package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown presentation, user or slide ordinal
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the acting user lacks the required permission
	ErrUnauthorized = errors.New("unauthorized")
)

// ConflictError is returned when an optimistic slide update observes a stale
// version. It carries the authoritative content and version so the caller
// can rebase and retry.
type ConflictError struct {
	SlideID int
	Content string
	Version int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on slide %d: authoritative version is %d", e.SlideID, e.Version)
}
