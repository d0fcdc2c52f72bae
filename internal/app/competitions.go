package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/dedupe"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Limits on competition fields.
const (
	MaxCompetitionName        = 120
	MaxCompetitionDescription = 2000
	MaxWinnersPerEvent        = 100
)

// NewCompetition is the input of CreateCompetition.
type NewCompetition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Difficulty  string `json:"difficulty"`
}

// WinnersResult reports what RecordWinners did.
type WinnersResult struct {
	EventID     string            `json:"eventId"`
	Duplicate   bool              `json:"duplicate"`
	Added       []string          `json:"added"`
	Competition model.Competition `json:"competition"`
}

// CreateCompetition stores a new open competition created by actorID.
func (s *Service) CreateCompetition(ctx context.Context, actorID string, in NewCompetition) (model.Competition, error) {
	if actorID == "" {
		return model.Competition{}, ErrForbidden
	}
	c, err := validateCompetition(in)
	if err != nil {
		return model.Competition{}, err
	}
	c.ID = uuid.NewString()
	c.CreatedBy = actorID
	c.CreatedAt = s.now().UTC()
	c.Status = model.StatusOpen
	c.Winners = []string{}

	if err := s.competitions.Create(ctx, c); err != nil {
		return model.Competition{}, classify(err)
	}
	metrics.RecordCompetitionCreated()
	s.logger.Info(ctx, "competition created",
		logger.String("competition", c.ID),
		logger.String("type", string(c.Type)),
		logger.String("createdBy", actorID),
	)
	return c, nil
}

func validateCompetition(in NewCompetition) (model.Competition, error) {
	c := model.Competition{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Type:        model.CompetitionType(strings.ToLower(strings.TrimSpace(in.Type))),
		Difficulty:  model.Difficulty(strings.ToLower(strings.TrimSpace(in.Difficulty))),
	}
	switch {
	case c.Name == "":
		return c, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case utf8.RuneCountInString(c.Name) > MaxCompetitionName:
		return c, fmt.Errorf("%w: name longer than %d characters", ErrInvalidInput, MaxCompetitionName)
	case c.Description == "":
		return c, fmt.Errorf("%w: description is required", ErrInvalidInput)
	case utf8.RuneCountInString(c.Description) > MaxCompetitionDescription:
		return c, fmt.Errorf("%w: description longer than %d characters", ErrInvalidInput, MaxCompetitionDescription)
	case !c.Type.Valid():
		return c, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, in.Type)
	case !c.Difficulty.Valid():
		return c, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidInput, in.Difficulty)
	}
	return c, nil
}

// ListCompetitions returns competitions matching filter, newest first.
// The limit is clamped to the configured maximum.
func (s *Service) ListCompetitions(ctx context.Context, filter model.CompetitionFilter) ([]model.Competition, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, filter.Type)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > s.maxListLimit {
		filter.Limit = s.maxListLimit
	}
	list, err := s.competitions.List(ctx, filter)
	if err != nil {
		return nil, classify(err)
	}
	return list, nil
}

// GetCompetition returns one competition.
func (s *Service) GetCompetition(ctx context.Context, id string) (model.Competition, error) {
	c, err := s.competitions.Get(ctx, id)
	return c, classify(err)
}

// JoinCompetition adds actorID as a participant of an open competition.
func (s *Service) JoinCompetition(ctx context.Context, actorID, id string) (model.Competition, error) {
	if actorID == "" {
		return model.Competition{}, ErrForbidden
	}
	c, err := s.competitions.Join(ctx, id)
	if err != nil {
		return model.Competition{}, classify(err)
	}
	if err := s.users.RecordJoin(ctx, actorID); err != nil {
		// The participant count already moved; the user's counter is best effort.
		metrics.RecordErrorByComponent("service", "record_join")
		s.logger.Error(ctx, "failed to record join on user",
			logger.String("user", actorID), logger.String("competition", id), logger.Error(err))
	}
	return c, nil
}

// RecordWinners closes competition id with winners on behalf of its creator,
// credits every newly added winner and queues their achievement evaluation.
//
// eventID identifies the completion event within competition id; a repeated
// id is acknowledged and skipped. An empty id gets a fresh one. When the queue cannot take one job
// per winner the event is forgotten and ErrBackpressure is returned before
// anything is written.
func (s *Service) RecordWinners(ctx context.Context, actorID, id, eventID string, winners []string) (WinnersResult, error) {
	q, deduper, err := s.running()
	if err != nil {
		return WinnersResult{}, err
	}
	winners, err = normalizeWinners(winners)
	if err != nil {
		return WinnersResult{}, err
	}

	c, err := s.competitions.Get(ctx, id)
	if err != nil {
		return WinnersResult{}, classify(err)
	}
	if actorID == "" || c.CreatedBy != actorID {
		return WinnersResult{}, fmt.Errorf("%w: only the creator records winners", ErrForbidden)
	}

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		eventID = uuid.NewString()
	}
	key := eventKey(id, eventID)
	seen, err := deduper.SeenAndRecord(ctx, key)
	if err != nil {
		return WinnersResult{}, fmt.Errorf("dedupe event %s: %w", eventID, err)
	}
	if seen {
		metrics.RecordEventDuplicate()
		s.logger.Debug(ctx, "duplicate completion event", logger.String("event", eventID))
		return WinnersResult{EventID: eventID, Duplicate: true, Added: []string{}, Competition: c}, nil
	}

	if free := q.Capacity() - q.Len(); free < len(winners) {
		s.forget(ctx, deduper, key)
		metrics.RecordQueueEnqueueError()
		return WinnersResult{}, fmt.Errorf("%w: %d free slots for %d winners", ErrBackpressure, free, len(winners))
	}

	added, c, err := s.competitions.AddWinners(ctx, id, winners)
	if err != nil {
		s.forget(ctx, deduper, key)
		return WinnersResult{}, classify(err)
	}
	if added == nil {
		added = []string{}
	}

	now := s.now().UTC()
	credit := c.Credit(now)
	for _, userID := range added {
		if err := s.users.RecordWin(ctx, userID, credit); err != nil {
			// Achievements derive from the winners set alone, so evaluation still runs.
			metrics.RecordErrorByComponent("service", "record_win")
			s.logger.Error(ctx, "failed to credit win",
				logger.String("user", userID), logger.String("competition", id), logger.Error(err))
		}
		s.enqueue(ctx, q, model.EvaluationJob{
			EventID:       eventID,
			UserID:        userID,
			CompetitionID: c.ID,
			EnqueuedAt:    now,
		})
	}

	metrics.RecordWinnersRecorded(len(added))
	s.logger.Info(ctx, "winners recorded",
		logger.String("competition", id),
		logger.String("event", eventID),
		logger.Strings("added", added),
	)
	return WinnersResult{EventID: eventID, Added: added, Competition: c}, nil
}

// enqueue queues job, evaluating inline if the queue refuses it.
func (s *Service) enqueue(ctx context.Context, q enqueuer, job model.EvaluationJob) {
	err := q.Enqueue(ctx, job)
	if err == nil {
		return
	}
	s.logger.Warn(ctx, "queue refused evaluation job, evaluating inline",
		logger.String("user", job.UserID), logger.Error(err))

	evalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.evalTimeout)
	defer cancel()
	if _, err := s.evaluator.Evaluate(evalCtx, job.UserID); err != nil {
		metrics.RecordErrorByComponent("service", "inline_evaluation")
	}
}

type enqueuer interface {
	Enqueue(ctx context.Context, job model.EvaluationJob) error
}

// eventKey scopes an event id to its competition so clients may reuse ids
// across competitions.
func eventKey(competitionID, eventID string) string {
	return competitionID + ":" + eventID
}

func (s *Service) forget(ctx context.Context, deduper dedupe.Deduper, key string) {
	if err := deduper.Unrecord(ctx, key); err != nil {
		s.logger.Warn(ctx, "failed to forget event", logger.String("event", key), logger.Error(err))
	}
}

func normalizeWinners(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, w := range in {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	switch {
	case len(out) == 0:
		return nil, fmt.Errorf("%w: at least one winner is required", ErrInvalidInput)
	case len(out) > MaxWinnersPerEvent:
		return nil, fmt.Errorf("%w: more than %d winners", ErrInvalidInput, MaxWinnersPerEvent)
	}
	return out, nil
}
