package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/linkshortener/internal/repository"
)

// Core error kinds. Handlers map them to status codes with errors.Is.
var (
	// ErrValidation: malformed short code, empty URL, bad query. Not retryable.
	ErrValidation = errors.New("validation failed")
	// ErrConflict: the short code is already taken.
	ErrConflict = errors.New("short code already taken")
	// ErrNotFound: no link with that code or id.
	ErrNotFound = errors.New("link not found")
	// ErrCapacity: the generator exhausted its attempts. Operators should
	// raise the code length; callers should not retry.
	ErrCapacity = errors.New("short code space exhausted")
	// ErrStoreUnavailable: the backing store is unreachable or timed out.
	// Retryable with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrLinkDisabled: the link exists but is soft-disabled. Only the
	// redirect path returns it.
	ErrLinkDisabled = errors.New("link is disabled")
)

// translate maps repository errors to core error kinds. Anything it
// does not recognize propagates unchanged.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrAlreadyExists):
		return ErrConflict
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// withTimeout bounds one store call. A non-positive d leaves ctx as is.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
