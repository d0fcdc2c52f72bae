package achievement

import (
	"time"

	"github.com/okian/arena/internal/domain/model"
)

// Compute returns the achievements earned by wins that current does not hold
// yet, all stamped with now. It never returns an id already in current.
//
// Order: first_win, then champion badges in catalog type order. Wins with an
// empty or unknown type count toward first_win only. A competition listed
// twice is counted once.
func Compute(current []model.Achievement, wins []model.Competition, now time.Time) []model.Achievement {
	if len(wins) == 0 {
		return nil
	}

	at := model.FormatTimestamp(now)
	var granted []model.Achievement

	if !model.HasAchievement(current, FirstWinID) {
		granted = append(granted, FirstWin.Award(at))
	}

	tally := tallyByType(wins)
	for _, t := range model.CompetitionTypes() {
		if tally[t] < ChampionThreshold {
			continue
		}
		if model.HasAchievement(current, ChampionID(t)) {
			continue
		}
		granted = append(granted, Champion(t).Award(at))
	}
	return granted
}

func tallyByType(wins []model.Competition) map[model.CompetitionType]int {
	tally := make(map[model.CompetitionType]int, len(model.CompetitionTypes()))
	seen := make(map[string]struct{}, len(wins))
	for _, c := range wins {
		if c.ID != "" {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
		}
		if !c.Type.Valid() {
			continue
		}
		tally[c.Type]++
	}
	return tally
}
