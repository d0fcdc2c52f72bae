// Package stats turns stored counters and history into dashboard series.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/okian/arena/internal/domain/model"
)

// Summary is the headline numbers of a profile.
type Summary struct {
	CompetitionsJoined int `json:"competitionsJoined"`
	CompetitionsWon    int `json:"competitionsWon"`
	TotalPoints        int `json:"totalPoints"`
	TotalWins          int `json:"totalWins"`
	WinRate            int `json:"winRate"`
}

// ProgressPoint is one month of the progress chart.
type ProgressPoint struct {
	Month        string   `json:"month"`
	Label        string   `json:"label"`
	Points       int      `json:"points"`
	Competitions []string `json:"competitions"`
}

// ActivityPoint is one category of the activity chart.
type ActivityPoint struct {
	Category string `json:"category"`
	Solved   int    `json:"solved"`
	Share    int    `json:"share"`
	Wins     int    `json:"wins"`
}

// Summarize builds the headline numbers for u.
// WinRate is a rounded percentage of joined competitions, 0 when none were joined.
func Summarize(u model.User) Summary {
	s := Summary{
		CompetitionsJoined: u.Stats.CompetitionsJoined,
		CompetitionsWon:    u.Stats.CompetitionsWon,
		TotalPoints:        u.Stats.TotalPoints,
		TotalWins:          u.TotalWins,
	}
	if s.CompetitionsJoined > 0 {
		s.WinRate = percent(s.CompetitionsWon, s.CompetitionsJoined)
	}
	return s
}

// Progress returns monthly points in ascending month order.
func Progress(h model.History) []ProgressPoint {
	months := make([]string, 0, len(h.MonthlyPoints))
	for m := range h.MonthlyPoints {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]ProgressPoint, 0, len(months))
	for _, m := range months {
		comps := h.MonthlyCompetitions[m]
		if comps == nil {
			comps = []string{}
		}
		out = append(out, ProgressPoint{
			Month:        m,
			Label:        monthLabel(m),
			Points:       h.MonthlyPoints[m],
			Competitions: comps,
		})
	}
	return out
}

// Activity returns solved problems per category, sorted by category name.
func Activity(s model.Stats) []ActivityPoint {
	cats := make([]string, 0, len(s.CategoryStats))
	for c := range s.CategoryStats {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	out := make([]ActivityPoint, 0, len(cats))
	for _, c := range cats {
		p := ActivityPoint{
			Category: c,
			Solved:   s.CategoryStats[c],
			Wins:     s.CategoryWins[c],
		}
		if s.TotalProblems > 0 {
			p.Share = percent(p.Solved, s.TotalProblems)
		}
		out = append(out, p)
	}
	return out
}

func percent(part, whole int) int {
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// monthLabel renders "2026-01" as "Jan 2026"; unparsable keys are returned as is.
func monthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("Jan 2006")
}
