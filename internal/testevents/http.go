package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/arena/internal/adapters/http/auth"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

const tokenTTL = time.Hour

// HTTPClient wraps http.Client with a base URL and per-user session tokens.
type HTTPClient struct {
	client   *http.Client
	baseURL  string
	verifier *auth.Verifier
	tokens   sync.Map // user id -> bearer token
}

// newHTTPClient creates a client that signs tokens the service accepts.
func newHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{
		client:   &http.Client{Timeout: config.Timeout},
		baseURL:  config.BaseURL,
		verifier: auth.NewVerifier(config.JWTSecret, config.JWTIssuer),
	}
}

func (c *HTTPClient) token(user string) (string, error) {
	if tok, ok := c.tokens.Load(user); ok {
		return tok.(string), nil
	}
	tok, err := c.verifier.Sign(user, user, tokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign token for %s: %w", user, err)
	}
	c.tokens.Store(user, tok)
	return tok, nil
}

// Do sends a request as user ("" for anonymous) and returns status and body.
func (c *HTTPClient) Do(ctx context.Context, method, path, user string, body any) (int, []byte, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		tok, err := c.token(user)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// runWorkers calls fn for every index in [0, n) on the given number of goroutines.
func runWorkers(ctx context.Context, workers, n int, fn func(i int)) {
	indices := make(chan int, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				if ctx.Err() != nil {
					continue
				}
				fn(i)
			}
		}()
	}

	go func() {
		defer close(indices)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case indices <- i:
			}
		}
	}()
	wg.Wait()
}

type createRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Type        model.CompetitionType `json:"type"`
	Difficulty  model.Difficulty      `json:"difficulty"`
}

// createCompetitions creates every planned competition and records its id.
func createCompetitions(ctx context.Context, config *Config, client *HTTPClient, plans []CompetitionPlan, stats *Stats) error {
	logger.Get().Info(ctx, "creating competitions", logger.Int("count", len(plans)), logger.Int("workers", config.Workers))

	var created, failed int64
	runWorkers(ctx, config.Workers, len(plans), func(i int) {
		p := &plans[i]
		status, body, err := client.Do(ctx, http.MethodPost, "/api/v1/competitions", p.Host, createRequest{
			Name:        p.Name,
			Description: "generated by the load tool",
			Type:        p.Type,
			Difficulty:  p.Difficulty,
		})
		if err == nil && status == StatusCreated {
			var c model.Competition
			if err = json.Unmarshal(body, &c); err == nil {
				p.ID = c.ID
				atomic.AddInt64(&created, 1)
				return
			}
		}
		atomic.AddInt64(&failed, 1)
		if config.Verbose {
			logger.Get().Warn(ctx, "create competition failed",
				logger.String("name", p.Name), logger.Int("status", status), logger.Error(err))
		}
	})

	stats.CompetitionsCreated = int(created)
	if failed > 0 {
		return fmt.Errorf("%d of %d competitions could not be created", failed, len(plans))
	}
	return ctx.Err()
}

// submitOutcome classifies one winners submission.
type submitOutcome int

const (
	outcomeAccepted submitOutcome = iota
	outcomeDuplicate
	outcomeFailed
)

// submitWinners posts each plan's winners event, replaying the ones marked
// for replay, and tallies the outcomes into stats.
func submitWinners(ctx context.Context, config *Config, client *HTTPClient, plans []CompetitionPlan, stats *Stats) error {
	logger.Get().Info(ctx, "submitting winner events", logger.Int("count", len(plans)), logger.Int("workers", config.Workers))

	var submitted, accepted, duplicate, failed, backpressured int64
	tally := func(o submitOutcome) {
		atomic.AddInt64(&submitted, 1)
		switch o {
		case outcomeAccepted:
			atomic.AddInt64(&accepted, 1)
		case outcomeDuplicate:
			atomic.AddInt64(&duplicate, 1)
		default:
			atomic.AddInt64(&failed, 1)
		}
	}

	runWorkers(ctx, config.Workers, len(plans), func(i int) {
		p := &plans[i]
		if p.ID == "" {
			return
		}
		first := submitSingleEvent(ctx, client, *p, &backpressured)
		p.Settled = first != outcomeFailed
		tally(first)
		if p.Replay {
			tally(submitSingleEvent(ctx, client, *p, &backpressured))
		}
	})

	stats.EventsSubmitted = int(submitted)
	stats.EventsAccepted = int(accepted)
	stats.EventsDuplicate = int(duplicate)
	stats.EventsFailed = int(failed)
	stats.Backpressured = int(backpressured)

	logger.Get().Info(ctx, "winner submission completed",
		logger.Int("accepted", stats.EventsAccepted),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("failed", stats.EventsFailed),
		logger.Int("backpressured", stats.Backpressured))
	return ctx.Err()
}

// submitSingleEvent posts one winners event, retrying while the service
// reports backpressure.
func submitSingleEvent(ctx context.Context, client *HTTPClient, p CompetitionPlan, backpressured *int64) submitOutcome {
	path := "/api/v1/competitions/" + p.ID + "/winners"
	req := map[string]any{"eventId": p.EventID, "winners": p.Winners}

	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		status, body, err := client.Do(ctx, http.MethodPost, path, p.Host, req)
		if err != nil {
			return outcomeFailed
		}
		switch status {
		case StatusAccepted:
			return outcomeAccepted
		case StatusOK:
			var ack AckResponse
			if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
				return outcomeDuplicate
			}
			return outcomeFailed
		case StatusTooManyRequests:
			atomic.AddInt64(backpressured, 1)
			select {
			case <-ctx.Done():
				return outcomeFailed
			case <-time.After(time.Duration(attempt) * backpressureBackoff):
			}
		default:
			return outcomeFailed
		}
	}
	return outcomeFailed
}

type achievementsBody struct {
	UserID       string              `json:"userId"`
	Achievements []model.Achievement `json:"achievements"`
}

// fetchAchievements reads a user's achievement list.
func fetchAchievements(ctx context.Context, client *HTTPClient, user string) ([]model.Achievement, error) {
	status, body, err := client.Do(ctx, http.MethodGet, "/api/v1/users/"+user+"/achievements", "", nil)
	if err != nil {
		return nil, err
	}
	if status != StatusOK {
		return nil, fmt.Errorf("achievements for %s: status %d", user, status)
	}
	var out achievementsBody
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode achievements for %s: %w", user, err)
	}
	return out.Achievements, nil
}
