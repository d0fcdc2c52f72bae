// Package model contains domain models passed between layers.
package model

import "time"

// Theme is the dashboard colour scheme a user picked.
type Theme string

// Supported themes.
const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is a supported theme.
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// OrDefault returns light for an unset theme.
func (t Theme) OrDefault() Theme {
	if t == "" {
		return ThemeLight
	}
	return t
}

// User is the stored user document.
type User struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"displayName"`
	Bio          string        `json:"bio"`
	Skills       []string      `json:"skills"`
	Theme        Theme         `json:"theme"`
	TotalWins    int           `json:"totalWins"`
	Achievements []Achievement `json:"achievements"`
	Stats        Stats         `json:"stats"`
	History      History       `json:"history"`
	LastUpdated  time.Time     `json:"lastUpdated"`
}

// Stats aggregates a user's competition activity.
type Stats struct {
	CompetitionsJoined int            `json:"competitionsJoined"`
	CompetitionsWon    int            `json:"competitionsWon"`
	TotalPoints        int            `json:"totalPoints"`
	TotalProblems      int            `json:"totalProblems"`
	CategoryStats      map[string]int `json:"categoryStats,omitempty"`
	CategoryWins       map[string]int `json:"categoryWins,omitempty"`
}

// History keeps per-month progress keyed by "YYYY-MM".
type History struct {
	MonthlyPoints       map[string]int      `json:"monthlyPoints,omitempty"`
	MonthlyCompetitions map[string][]string `json:"monthlyCompetitions,omitempty"`
}

// UserPatch lists the fields of a merge write. Nil fields are left untouched.
type UserPatch struct {
	DisplayName  *string
	Bio          *string
	Skills       *[]string
	Theme        *Theme
	Achievements *[]Achievement
	LastUpdated  *time.Time
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.DisplayName == nil && p.Bio == nil && p.Skills == nil &&
		p.Theme == nil && p.Achievements == nil && p.LastUpdated == nil
}

// Apply merges p into u in place.
func (p UserPatch) Apply(u *User) {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Skills != nil {
		u.Skills = append([]string(nil), (*p.Skills)...)
	}
	if p.Theme != nil {
		u.Theme = *p.Theme
	}
	if p.Achievements != nil {
		u.Achievements = append([]Achievement(nil), (*p.Achievements)...)
	}
	if p.LastUpdated != nil {
		u.LastUpdated = *p.LastUpdated
	}
}

// WinCredit describes one newly recorded win to be folded into a user's stats.
type WinCredit struct {
	CompetitionID   string
	CompetitionName string
	Type            CompetitionType
	Points          int
	At              time.Time
}

// MonthKey formats t as the History key.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ApplyWin folds c into the user's counters and history.
// A won competition also counts as a solved problem of its type.
func (u *User) ApplyWin(c WinCredit) {
	u.TotalWins++
	u.Stats.CompetitionsWon++
	u.Stats.TotalPoints += c.Points
	u.Stats.TotalProblems++
	if c.Type != "" {
		if u.Stats.CategoryWins == nil {
			u.Stats.CategoryWins = map[string]int{}
		}
		if u.Stats.CategoryStats == nil {
			u.Stats.CategoryStats = map[string]int{}
		}
		u.Stats.CategoryWins[string(c.Type)]++
		u.Stats.CategoryStats[string(c.Type)]++
	}

	month := MonthKey(c.At)
	if u.History.MonthlyPoints == nil {
		u.History.MonthlyPoints = map[string]int{}
	}
	if u.History.MonthlyCompetitions == nil {
		u.History.MonthlyCompetitions = map[string][]string{}
	}
	u.History.MonthlyPoints[month] += c.Points
	u.History.MonthlyCompetitions[month] = append(u.History.MonthlyCompetitions[month], c.CompetitionName)
}
