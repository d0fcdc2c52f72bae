package achievement

import (
	"fmt"

	"github.com/okian/arena/internal/domain/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FirstWinID is granted for the first recorded win.
const FirstWinID = "first_win"

// ChampionThreshold is the number of wins of one type that earns its champion badge.
const ChampionThreshold = 3

// Medal describes a catalog entry without an award date.
type Medal struct {
	ID          string
	Title       string
	Description string
}

// Award stamps the medal with the award time.
func (m Medal) Award(at string) model.Achievement {
	return model.Achievement{ID: m.ID, Title: m.Title, Description: m.Description, Date: at}
}

// FirstWin is the first-victory medal.
var FirstWin = Medal{
	ID:          FirstWinID,
	Title:       "First Victory",
	Description: "Won your first competition",
}

// ChampionID returns "<type>_champ".
func ChampionID(t model.CompetitionType) string {
	return string(t) + "_champ"
}

// Champion returns the champion medal of a competition type.
func Champion(t model.CompetitionType) Medal {
	// Casers keep state, so each call gets its own.
	title := cases.Title(language.English).String(string(t))
	return Medal{
		ID:          ChampionID(t),
		Title:       title + " Champion",
		Description: fmt.Sprintf("Won %d %s challenges", ChampionThreshold, t),
	}
}

// Catalog lists every medal the evaluator can grant, in grant order.
func Catalog() []Medal {
	types := model.CompetitionTypes()
	out := make([]Medal, 0, len(types)+1)
	out = append(out, FirstWin)
	for _, t := range types {
		out = append(out, Champion(t))
	}
	return out
}
