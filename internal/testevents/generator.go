package testevents

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

const randomFloatDivisor = 1000000

// Weighted difficulty draw: easy is the most common, hard the rarest.
var difficultyWeights = []struct {
	difficulty model.Difficulty
	weight     int64
}{
	{model.DifficultyEasy, 5},
	{model.DifficultyMedium, 3},
	{model.DifficultyHard, 2},
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randomInt returns a uniform value in [0, n).
func randomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// userID names the i-th simulated user.
func userID(i int) string {
	return "load-user-" + strconv.Itoa(i)
}

// generatePlan draws the competitions and winner events for a run.
func generatePlan(ctx context.Context, config *Config, stats *Stats) ([]CompetitionPlan, error) {
	logger.Get().Info(ctx, "generating competition plan",
		logger.Int("competitions", config.Competitions),
		logger.Int("users", config.Users))

	types := model.CompetitionTypes()
	plans := make([]CompetitionPlan, config.Competitions)
	for i := range plans {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during plan generation: %w", err)
		}
		t := types[randomInt(len(types))]
		plans[i] = CompetitionPlan{
			Name:       fmt.Sprintf("load %s #%d", t, i),
			Type:       t,
			Difficulty: randomDifficulty(),
			Host:       userID(randomInt(config.Users)),
			EventID:    uuid.NewString(),
			Winners:    pickWinners(config.Users, 1+randomInt(config.MaxWinners)),
			Replay:     getRandomFloat() < config.DuplicateRatio,
		}
	}

	stats.CompetitionsPlanned = len(plans)
	logger.Get().Info(ctx, "generated plan successfully", logger.Int("count", len(plans)))
	return plans, nil
}

func randomDifficulty() model.Difficulty {
	var total int64
	for _, w := range difficultyWeights {
		total += w.weight
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(total))
	draw := n.Int64()
	for _, w := range difficultyWeights {
		if draw < w.weight {
			return w.difficulty
		}
		draw -= w.weight
	}
	return model.DifficultyEasy
}

// pickWinners draws k distinct users out of population.
func pickWinners(population, k int) []string {
	if k > population {
		k = population
	}
	chosen := make(map[int]struct{}, k)
	winners := make([]string, 0, k)
	for len(winners) < k {
		i := randomInt(population)
		if _, dup := chosen[i]; dup {
			continue
		}
		chosen[i] = struct{}{}
		winners = append(winners, userID(i))
	}
	return winners
}
