package service

import (
	"context"
	"errors"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/profile"
	"github.com/okian/arena/internal/domain/stats"
)

// GetProfile returns userID's profile.
func (s *Service) GetProfile(ctx context.Context, userID string) (model.User, error) {
	u, err := s.profiles.Get(ctx, userID)
	return u, classify(err)
}

// UpdateProfile edits userID's profile on behalf of actorID.
func (s *Service) UpdateProfile(ctx context.Context, actorID, userID string, upd profile.Update) (model.User, error) {
	u, err := s.profiles.Update(ctx, actorID, userID, upd)
	return u, classify(err)
}

// Achievements returns userID's achievement list. An unknown user has none.
func (s *Service) Achievements(ctx context.Context, userID string) ([]model.Achievement, error) {
	u, err := s.users.Get(ctx, userID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return []model.Achievement{}, nil
	case err != nil:
		return nil, classify(err)
	}
	if u.Achievements == nil {
		return []model.Achievement{}, nil
	}
	return u.Achievements, nil
}

// EvaluateNow runs the evaluator for userID inline and returns the new grants.
// Users may only evaluate themselves.
func (s *Service) EvaluateNow(ctx context.Context, actorID, userID string) ([]model.Achievement, error) {
	if actorID == "" || actorID != userID {
		return nil, ErrForbidden
	}
	granted, err := s.evaluator.Evaluate(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	if granted == nil {
		granted = []model.Achievement{}
	}
	return granted, nil
}

// Summary returns the stats card of userID.
func (s *Service) Summary(ctx context.Context, userID string) (stats.Summary, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(u), nil
}

// Progress returns userID's monthly points series.
func (s *Service) Progress(ctx context.Context, userID string) ([]stats.ProgressPoint, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return stats.Progress(u.History), nil
}

// Activity returns userID's per-category series.
func (s *Service) Activity(ctx context.Context, userID string) ([]stats.ActivityPoint, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return stats.Activity(u.Stats), nil
}
