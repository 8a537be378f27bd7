package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrEpisodeNotFound   = errors.New("episode not found")
	ErrModelNotFound     = errors.New("model not found")
	ErrNoValidDocuments  = errors.New("no valid documents")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
