package service

import (
	"errors"
	"fmt"

	"github.com/okian/arena/internal/adapters/mq/queue"
	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/achievement"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/profile"
)

// Error kinds callers branch on with errors.Is.
var (
	ErrNotFound     = model.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrBackpressure = errors.New("evaluation queue is full")
	ErrNotStarted   = errors.New("service not started")
)

// classify tags err from a lower layer with the matching service kind.
func classify(err error) error {
	var kind error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrConflict), errors.Is(err, ErrBackpressure), errors.Is(err, ErrNotStarted):
		return err
	case errors.Is(err, profile.ErrNotFound):
		kind = ErrNotFound
	case errors.Is(err, profile.ErrInvalidInput), errors.Is(err, achievement.ErrInvalidUser):
		kind = ErrInvalidInput
	case errors.Is(err, profile.ErrForbidden):
		kind = ErrForbidden
	case errors.Is(err, repository.ErrClosed), errors.Is(err, repository.ErrConflict):
		kind = ErrConflict
	case errors.Is(err, queue.ErrFull), errors.Is(err, queue.ErrClosed):
		kind = ErrBackpressure
	default:
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
