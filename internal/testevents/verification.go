package testevents

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/okian/arena/internal/domain/achievement"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

// expectedAchievements replays the settled plans through the local rules and
// returns the achievement ids each simulated user should end up with.
func expectedAchievements(config *Config, plans []CompetitionPlan) map[string][]string {
	wins := make(map[string][]model.Competition, config.Users)
	for _, p := range plans {
		if !p.Settled {
			continue
		}
		c := model.Competition{ID: p.ID, Type: p.Type, Difficulty: p.Difficulty}
		for _, w := range p.Winners {
			wins[w] = append(wins[w], c)
		}
	}

	expected := make(map[string][]string, config.Users)
	now := time.Now()
	for i := 0; i < config.Users; i++ {
		user := userID(i)
		expected[user] = achievementIDs(achievement.Compute(nil, wins[user], now))
	}
	return expected
}

func achievementIDs(list []model.Achievement) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)
	return ids
}

// verifyResults polls every user's achievements until they match expected
// or config.Settle runs out.
func verifyResults(ctx context.Context, config *Config, client *HTTPClient, expected map[string][]string, stats *Stats) error {
	logger.Get().Info(ctx, "verifying achievements", logger.Int("users", len(expected)))

	users := make([]string, 0, len(expected))
	for u := range expected {
		users = append(users, u)
	}
	sort.Strings(users)

	deadline := time.Now().Add(config.Settle)
	var mismatched []string
	for {
		var err error
		mismatched, err = compareAll(ctx, client, users, expected)
		if err != nil {
			return err
		}
		if len(mismatched) == 0 || time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePollInterval):
		}
	}

	stats.UsersVerified = len(users) - len(mismatched)
	stats.UsersMismatched = len(mismatched)
	if len(mismatched) > 0 {
		shown := mismatched
		if len(shown) > 10 && !config.Verbose {
			shown = shown[:10]
		}
		logger.Get().Error(ctx, "achievement mismatch", logger.Strings("users", shown))
		return fmt.Errorf("%d users did not converge to their expected achievements", len(mismatched))
	}

	logger.Get().Info(ctx, "achievements verified", logger.Int("users", stats.UsersVerified))
	return nil
}

// compareAll returns the users whose stored achievements differ from expected.
func compareAll(ctx context.Context, client *HTTPClient, users []string, expected map[string][]string) ([]string, error) {
	var mismatched []string
	for _, u := range users {
		got, err := fetchAchievements(ctx, client, u)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(achievementIDs(got), expected[u]) {
			mismatched = append(mismatched, u)
		}
	}
	return mismatched, nil
}
