package testevents

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/arena/internal/domain/model"
)

// HTTP status code constants.
const (
	StatusOK              = 200
	StatusCreated         = 201
	StatusAccepted        = 202
	StatusTooManyRequests = 429
)

// Runner configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
	maxSubmitAttempts       = 5
	backpressureBackoff     = 50 * time.Millisecond
	settlePollInterval      = 250 * time.Millisecond
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid load configuration")

// Config holds configuration for a load run.
type Config struct {
	BaseURL        string        // Base URL of the service
	Users          int           // Size of the simulated user population
	Competitions   int           // Competitions to create and settle
	MaxWinners     int           // Upper bound of winners per event
	DuplicateRatio float64       // Share of winner events replayed to exercise dedupe
	Workers        int           // Number of concurrent workers
	Timeout        time.Duration // HTTP request timeout
	Settle         time.Duration // How long to wait for achievements to converge
	JWTSecret      string        // Secret the service verifies session tokens with
	JWTIssuer      string        // Issuer claim expected by the service
	OutputFile     string        // Output file for the generated plan
	LogFile        string        // Log file for test output
	Verbose        bool          // Enable verbose logging
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	case c.Users < 1:
		return fmt.Errorf("%w: users must be positive", ErrInvalidConfig)
	case c.Competitions < 1:
		return fmt.Errorf("%w: competitions must be positive", ErrInvalidConfig)
	case c.MaxWinners < 1 || c.MaxWinners > c.Users:
		return fmt.Errorf("%w: winners must be in [1, users]", ErrInvalidConfig)
	case c.DuplicateRatio < 0 || c.DuplicateRatio > 1:
		return fmt.Errorf("%w: duplicates must be in [0, 1]", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.JWTSecret == "":
		return fmt.Errorf("%w: jwt secret is required", ErrInvalidConfig)
	}
	return nil
}

// CompetitionPlan is one competition the run creates and the winners
// event it later submits for it.
type CompetitionPlan struct {
	ID         string                `json:"id,omitempty"` // assigned by the service
	Name       string                `json:"name"`
	Type       model.CompetitionType `json:"type"`
	Difficulty model.Difficulty      `json:"difficulty"`
	Host       string                `json:"host"`
	EventID    string                `json:"eventId"`
	Winners    []string              `json:"winners"`
	Replay     bool                  `json:"replay"`  // submit the event a second time
	Settled    bool                  `json:"settled"` // the service took the first submission
}

// AckResponse is the winners endpoint reply.
type AckResponse struct {
	Status    string   `json:"status"`
	EventID   string   `json:"eventId"`
	Duplicate bool     `json:"duplicate"`
	Added     []string `json:"added"`
}

// Stats holds run statistics.
type Stats struct {
	CompetitionsPlanned int
	CompetitionsCreated int
	EventsSubmitted     int
	EventsAccepted      int
	EventsDuplicate     int
	EventsFailed        int
	Backpressured       int
	UsersVerified       int
	UsersMismatched     int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
