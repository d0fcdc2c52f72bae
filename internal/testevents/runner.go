// Package testevents drives a running arena service with generated
// competitions and checks the achievements it grants.
package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/arena/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	planFilePermission  = 0600
)

// Run executes a complete load run: create competitions, submit their
// winners, then check every simulated user's achievements.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting arena load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("competitions", config.Competitions),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Float64("duplicateRatio", config.DuplicateRatio),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Plan competitions and winners
	plans, err := generatePlan(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("plan generation failed: %w", err)
	}

	// Step 3: Create competitions concurrently
	if err := createCompetitions(ctx, config, client, plans, stats); err != nil {
		return stats, fmt.Errorf("competition creation failed: %w", err)
	}

	// Step 4: Submit winner events concurrently
	if err := submitWinners(ctx, config, client, plans, stats); err != nil {
		return stats, fmt.Errorf("winner submission failed: %w", err)
	}

	// Step 5: Verify achievements converge
	verifyErr := verifyResults(ctx, config, client, expectedAchievements(config, plans), stats)

	if config.OutputFile != "" {
		if err := savePlanToFile(ctx, config.OutputFile, plans); err != nil {
			logger.Get().Warn(ctx, "failed to save plan to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verifyErr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verifyErr)
	}
	logger.Get().Info(ctx, "load run completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")

	status, _, err := client.Do(ctx, http.MethodGet, "/healthz", "", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", status)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// savePlanToFile writes the plan as an indented JSON array.
func savePlanToFile(ctx context.Context, filename string, plans []CompetitionPlan) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), planFilePermission); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	logger.Get().Info(ctx, "plan saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, eventsPerSecond float64

	if stats.EventsSubmitted > 0 {
		settled := stats.EventsAccepted + stats.EventsDuplicate
		successRate = float64(settled) / float64(stats.EventsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("competitionsPlanned", stats.CompetitionsPlanned),
		logger.Int("competitionsCreated", stats.CompetitionsCreated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("backpressured", stats.Backpressured),
		logger.Int("usersVerified", stats.UsersVerified),
		logger.Int("usersMismatched", stats.UsersMismatched),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
