// Package profile validates and applies user profile edits.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/okian/arena/internal/domain/model"
)

// Limits on editable fields.
const (
	MaxDisplayName = 64
	MaxBio         = 500
	MaxSkills      = 32
	MaxSkillLength = 40
)

// Store is the slice of the user store profiles need.
type Store interface {
	Get(ctx context.Context, userID string) (model.User, error)
	MergeWrite(ctx context.Context, userID string, patch model.UserPatch) error
}

// Update is a partial profile edit. Nil fields are left alone.
type Update struct {
	DisplayName *string   `json:"displayName,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	Skills      *[]string `json:"skills,omitempty"`
	Theme       *string   `json:"theme,omitempty"`
}

// Service reads and edits profiles.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService returns a profile Service. now may be nil.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Get returns the profile of userID with an unset theme read as light.
func (s *Service) Get(ctx context.Context, userID string) (model.User, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return model.User{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	u.Theme = u.Theme.OrDefault()
	return u, nil
}

// Update applies upd to targetID on behalf of actorID and returns the stored profile.
// Users may only edit their own profile.
func (s *Service) Update(ctx context.Context, actorID, targetID string, upd Update) (model.User, error) {
	if actorID == "" || actorID != targetID {
		return model.User{}, ErrForbidden
	}

	patch, err := Normalize(upd)
	if err != nil {
		return model.User{}, err
	}
	now := s.now().UTC()
	patch.LastUpdated = &now

	if err := s.store.MergeWrite(ctx, targetID, patch); err != nil {
		return model.User{}, fmt.Errorf("update profile %s: %w", targetID, err)
	}
	return s.Get(ctx, targetID)
}

// Normalize validates upd and turns it into a merge patch.
func Normalize(upd Update) (model.UserPatch, error) {
	var patch model.UserPatch

	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if utf8.RuneCountInString(name) > MaxDisplayName {
			return patch, fmt.Errorf("%w: displayName longer than %d characters", ErrInvalidInput, MaxDisplayName)
		}
		patch.DisplayName = &name
	}

	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if utf8.RuneCountInString(bio) > MaxBio {
			return patch, fmt.Errorf("%w: bio longer than %d characters", ErrInvalidInput, MaxBio)
		}
		patch.Bio = &bio
	}

	if upd.Skills != nil {
		skills, err := normalizeSkills(*upd.Skills)
		if err != nil {
			return patch, err
		}
		patch.Skills = &skills
	}

	if upd.Theme != nil {
		theme := model.Theme(strings.ToLower(strings.TrimSpace(*upd.Theme)))
		if !theme.Valid() {
			return patch, fmt.Errorf("%w: unknown theme %q", ErrInvalidInput, *upd.Theme)
		}
		patch.Theme = &theme
	}

	if patch.Empty() {
		return patch, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	return patch, nil
}

// normalizeSkills trims, drops blanks and collapses duplicates case-insensitively,
// keeping the first spelling and order.
func normalizeSkills(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		skill := strings.TrimSpace(raw)
		if skill == "" {
			continue
		}
		if utf8.RuneCountInString(skill) > MaxSkillLength {
			return nil, fmt.Errorf("%w: skill %q longer than %d characters", ErrInvalidInput, skill, MaxSkillLength)
		}
		key := strings.ToLower(skill)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}
	if len(out) > MaxSkills {
		return nil, fmt.Errorf("%w: at most %d skills", ErrInvalidInput, MaxSkills)
	}
	return out, nil
}
