package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/okian/arena/internal/domain/model"
)

// MemoryUserStore is a process-local UserStore.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewMemoryUserStore returns an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]model.User)}
}

func (s *MemoryUserStore) Get(_ context.Context, userID string) (model.User, error) {
	defer observe("user.get", time.Now(), nil)
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *MemoryUserStore) MergeWrite(_ context.Context, userID string, patch model.UserPatch) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[userID]
	u.ID = userID
	patch.Apply(&u)
	s.users[userID] = u
	observe("user.merge", start, nil)
	return nil
}

func (s *MemoryUserStore) RecordJoin(_ context.Context, userID string) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	u := cloneUser(s.users[userID])
	u.ID = userID
	u.Stats.CompetitionsJoined++
	s.users[userID] = u
	observe("user.join", start, nil)
	return nil
}

func (s *MemoryUserStore) RecordWin(_ context.Context, userID string, credit model.WinCredit) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clone first: ApplyWin mutates maps that readers may still hold.
	u := cloneUser(s.users[userID])
	u.ID = userID
	u.ApplyWin(credit)
	s.users[userID] = u
	observe("user.win", start, nil)
	return nil
}

func (s *MemoryUserStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// MemoryCompetitionStore is a process-local CompetitionStore.
type MemoryCompetitionStore struct {
	mu           sync.RWMutex
	competitions map[string]model.Competition
}

// NewMemoryCompetitionStore returns an empty MemoryCompetitionStore.
func NewMemoryCompetitionStore() *MemoryCompetitionStore {
	return &MemoryCompetitionStore{competitions: make(map[string]model.Competition)}
}

func (s *MemoryCompetitionStore) Create(_ context.Context, c model.Competition) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.competitions[c.ID]; ok {
		observe("competition.create", start, ErrConflict)
		return fmt.Errorf("competition %s: %w", c.ID, ErrConflict)
	}
	s.competitions[c.ID] = cloneCompetition(c)
	observe("competition.create", start, nil)
	return nil
}

func (s *MemoryCompetitionStore) Get(_ context.Context, id string) (model.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.competitions[id]
	if !ok {
		return model.Competition{}, fmt.Errorf("competition %s: %w", id, ErrNotFound)
	}
	return cloneCompetition(c), nil
}

func (s *MemoryCompetitionStore) List(_ context.Context, filter model.CompetitionFilter) ([]model.Competition, error) {
	start := time.Now()
	s.mu.RLock()
	out := make([]model.Competition, 0, len(s.competitions))
	for _, c := range s.competitions {
		if filter.Matches(c) {
			out = append(out, cloneCompetition(c))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	observe("competition.list", start, nil)
	return out, nil
}

func (s *MemoryCompetitionStore) Join(_ context.Context, id string) (model.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.competitions[id]
	if !ok {
		return model.Competition{}, fmt.Errorf("competition %s: %w", id, ErrNotFound)
	}
	if c.Status == model.StatusClosed {
		return model.Competition{}, fmt.Errorf("competition %s: %w", id, ErrClosed)
	}
	c.Participants++
	s.competitions[id] = c
	return cloneCompetition(c), nil
}

func (s *MemoryCompetitionStore) AddWinners(_ context.Context, id string, winners []string) ([]string, model.Competition, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.competitions[id]
	if !ok {
		observe("competition.winners", start, nil)
		return nil, model.Competition{}, fmt.Errorf("competition %s: %w", id, ErrNotFound)
	}
	added := newWinners(c.Winners, winners)
	c.Winners = append(slices.Clone(c.Winners), added...)
	c.Status = model.StatusClosed
	s.competitions[id] = c
	observe("competition.winners", start, nil)
	return added, cloneCompetition(c), nil
}

func (s *MemoryCompetitionStore) QueryByWinner(_ context.Context, userID string) ([]model.Competition, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Competition
	for _, c := range s.competitions {
		if c.HasWinner(userID) {
			out = append(out, cloneCompetition(c))
		}
	}
	observe("competition.by_winner", start, nil)
	return out, nil
}

func cloneUser(u model.User) model.User {
	u.Skills = slices.Clone(u.Skills)
	u.Achievements = slices.Clone(u.Achievements)
	u.Stats.CategoryStats = maps.Clone(u.Stats.CategoryStats)
	u.Stats.CategoryWins = maps.Clone(u.Stats.CategoryWins)
	u.History.MonthlyPoints = maps.Clone(u.History.MonthlyPoints)
	if u.History.MonthlyCompetitions != nil {
		mc := make(map[string][]string, len(u.History.MonthlyCompetitions))
		for k, v := range u.History.MonthlyCompetitions {
			mc[k] = slices.Clone(v)
		}
		u.History.MonthlyCompetitions = mc
	}
	return u
}

func cloneCompetition(c model.Competition) model.Competition {
	c.Winners = slices.Clone(c.Winners)
	if c.Winners == nil {
		c.Winners = []string{}
	}
	return c
}
