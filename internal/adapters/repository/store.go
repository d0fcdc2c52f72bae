// Package repository persists users and competitions.
package repository

import (
	"context"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

// UserStore holds user documents.
type UserStore interface {
	// Get returns ErrNotFound if the user is unknown.
	Get(ctx context.Context, userID string) (model.User, error)
	// MergeWrite atomically writes the set fields of patch, creating the user if needed.
	MergeWrite(ctx context.Context, userID string, patch model.UserPatch) error
	// RecordJoin bumps stats.competitionsJoined, creating the user if needed.
	RecordJoin(ctx context.Context, userID string) error
	// RecordWin folds one win into the user's counters and history atomically.
	RecordWin(ctx context.Context, userID string, credit model.WinCredit) error
	// Count returns how many users are stored.
	Count(ctx context.Context) (int, error)
}

// CompetitionStore holds competition documents.
type CompetitionStore interface {
	// Create returns ErrConflict if the id is taken.
	Create(ctx context.Context, c model.Competition) error
	// Get returns ErrNotFound if the competition is unknown.
	Get(ctx context.Context, id string) (model.Competition, error)
	// List returns matching competitions, newest first.
	List(ctx context.Context, filter model.CompetitionFilter) ([]model.Competition, error)
	// Join adds a participant. Closed competitions return ErrClosed.
	Join(ctx context.Context, id string) (model.Competition, error)
	// AddWinners unions winners into the set and closes the competition.
	// It returns the ids that were not winners before.
	AddWinners(ctx context.Context, id string, winners []string) ([]string, model.Competition, error)
	// QueryByWinner returns every competition userID has won, in no particular order.
	QueryByWinner(ctx context.Context, userID string) ([]model.Competition, error)
}

// observe records a store operation's latency and outcome.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000, err)
}

// newWinners returns the ids in candidates that are not in current, in order, once each.
func newWinners(current, candidates []string) []string {
	have := make(map[string]struct{}, len(current)+len(candidates))
	for _, id := range current {
		have[id] = struct{}{}
	}
	var added []string
	for _, id := range candidates {
		if _, ok := have[id]; ok {
			continue
		}
		have[id] = struct{}{}
		added = append(added, id)
	}
	return added
}
