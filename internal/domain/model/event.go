package model

import "time"

// EvaluationJob asks the worker pool to evaluate one user's achievements,
// usually after a competition recorded them as a winner.
type EvaluationJob struct {
	EventID       string    // completion event the job came from
	UserID        string    // user to evaluate
	CompetitionID string    // competition that triggered the job, may be empty
	EnqueuedAt    time.Time // when the job was queued
}
