package model

import (
	"slices"
	"time"
)

// CompetitionType is the fixed set of challenge kinds.
type CompetitionType string

// Competition types, in catalog order.
const (
	TypeSpeed      CompetitionType = "speed"
	TypeEfficiency CompetitionType = "efficiency"
	TypeInnovation CompetitionType = "innovation"
	TypeDebugging  CompetitionType = "debugging"
)

// CompetitionTypes returns every type in catalog order.
func CompetitionTypes() []CompetitionType {
	return []CompetitionType{TypeSpeed, TypeEfficiency, TypeInnovation, TypeDebugging}
}

// Valid reports whether t is one of the fixed types.
func (t CompetitionType) Valid() bool {
	return slices.Contains(CompetitionTypes(), t)
}

// Difficulty of a competition.
type Difficulty string

// Difficulties.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Points awarded to each winner.
func (d Difficulty) Points() int {
	switch d {
	case DifficultyEasy:
		return 10
	case DifficultyMedium:
		return 20
	case DifficultyHard:
		return 30
	}
	return 0
}

// Status of a competition.
type Status string

// Statuses.
const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Competition is the stored competition document.
type Competition struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Type         CompetitionType `json:"type"`
	Difficulty   Difficulty      `json:"difficulty"`
	CreatedBy    string          `json:"createdBy"`
	CreatedAt    time.Time       `json:"createdAt"`
	Status       Status          `json:"status"`
	Participants int             `json:"participants"`
	Winners      []string        `json:"winners"`
}

// HasWinner reports whether userID is among the winners.
func (c Competition) HasWinner(userID string) bool {
	return slices.Contains(c.Winners, userID)
}

// Credit builds the WinCredit a winner of c receives at time at.
func (c Competition) Credit(at time.Time) WinCredit {
	return WinCredit{
		CompetitionID:   c.ID,
		CompetitionName: c.Name,
		Type:            c.Type,
		Points:          c.Difficulty.Points(),
		At:              at,
	}
}

// CompetitionFilter narrows a competition listing. Zero values match all.
type CompetitionFilter struct {
	Type   CompetitionType
	Status Status
	Limit  int
}

// Matches reports whether c passes the filter (Limit is ignored).
func (f CompetitionFilter) Matches(c Competition) bool {
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}
