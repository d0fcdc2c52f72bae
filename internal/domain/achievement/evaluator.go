// Package achievement derives badges from a user's competition wins.
package achievement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const defaultLockStripes = 256

// UserStore reads and merge-writes user documents.
type UserStore interface {
	// Get returns model.ErrNotFound when the user does not exist.
	Get(ctx context.Context, userID string) (model.User, error)
	// MergeWrite writes only the set fields of patch, atomically.
	MergeWrite(ctx context.Context, userID string, patch model.UserPatch) error
}

// CompetitionStore answers which competitions a user has won.
type CompetitionStore interface {
	QueryByWinner(ctx context.Context, userID string) ([]model.Competition, error)
}

// Notifier presents newly earned achievements to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, achievements []model.Achievement) error
}

// Evaluator grants achievements and persists them.
//
// Evaluations of the same user are serialized in-process, so concurrent
// completions for one user never grant a badge twice or drop a grant.
type Evaluator struct {
	users        UserStore
	competitions CompetitionStore
	notifier     Notifier
	logger       logger.Logger
	now          func() time.Time

	stripes int
	locks   []chan struct{}
}

// NewEvaluator builds an Evaluator over the given stores.
func NewEvaluator(users UserStore, competitions CompetitionStore, opts ...Option) *Evaluator {
	e := &Evaluator{
		users:        users,
		competitions: competitions,
		logger:       logger.Nop(),
		now:          time.Now,
		stripes:      defaultLockStripes,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.locks = make([]chan struct{}, e.stripes)
	for i := range e.locks {
		e.locks[i] = make(chan struct{}, 1)
	}
	return e
}

// Evaluate checks userID's win history and grants any new achievements.
// It returns exactly the newly granted achievements, or nil when there are none.
//
// A missing user is treated as a user with no achievements. Store failures
// abort without writing; a notification failure is logged and ignored.
func (e *Evaluator) Evaluate(ctx context.Context, userID string) ([]model.Achievement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	start := time.Now()

	release, err := e.lock(ctx, userID)
	if err != nil {
		metrics.RecordEvaluation(metrics.OutcomeError, msSince(start))
		return nil, fmt.Errorf("%w: %s: %w", ErrEvaluate, userID, err)
	}
	granted, err := e.evaluateLocked(ctx, userID)
	release()

	switch {
	case err != nil:
		metrics.RecordEvaluation(metrics.OutcomeError, msSince(start))
		e.logger.Error(ctx, "achievement evaluation failed", logger.String("user", userID), logger.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrEvaluate, userID, err)
	case len(granted) == 0:
		metrics.RecordEvaluation(metrics.OutcomeNone, msSince(start))
		return nil, nil
	}

	metrics.RecordEvaluation(metrics.OutcomeGranted, msSince(start))
	ids := make([]string, len(granted))
	for i, a := range granted {
		ids[i] = a.ID
		metrics.RecordAchievementGranted(a.ID)
	}
	e.logger.Info(ctx, "achievements granted", logger.String("user", userID), logger.Strings("achievements", ids))

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, userID, granted); err != nil {
			e.logger.Warn(ctx, "achievement notification failed", logger.String("user", userID), logger.Error(err))
		}
	}
	return granted, nil
}

func (e *Evaluator) evaluateLocked(ctx context.Context, userID string) ([]model.Achievement, error) {
	user, err := e.users.Get(ctx, userID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		user = model.User{ID: userID}
	case err != nil:
		return nil, fmt.Errorf("read user: %w", err)
	}

	wins, err := e.competitions.QueryByWinner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query wins: %w", err)
	}

	granted := Compute(user.Achievements, wins, e.now())
	if len(granted) == 0 {
		return nil, nil
	}

	merged := make([]model.Achievement, 0, len(user.Achievements)+len(granted))
	merged = append(merged, user.Achievements...)
	merged = append(merged, granted...)
	if err := e.users.MergeWrite(ctx, userID, model.UserPatch{Achievements: &merged}); err != nil {
		return nil, fmt.Errorf("write achievements: %w", err)
	}
	return granted, nil
}

// lock acquires the stripe owning userID, honoring ctx while waiting.
func (e *Evaluator) lock(ctx context.Context, userID string) (func(), error) {
	ch := e.locks[xxhash.Sum64String(userID)%uint64(len(e.locks))]
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
