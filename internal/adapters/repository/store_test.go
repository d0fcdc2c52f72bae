package repository_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
)

func TestMemoryStores(t *testing.T) {
	runStoreContract(t, "memory", repository.NewMemoryUserStore(), repository.NewMemoryCompetitionStore())
}

func TestPostgresStores(t *testing.T) {
	dsn := os.Getenv("ARENA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ARENA_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := repository.OpenPostgres(ctx, dsn, repository.WithMaxConns(4))
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer pg.Close()

	runStoreContract(t, "postgres", pg.Users(), pg.Competitions())
}

// runStoreContract checks behaviour every backend must share. Ids are
// randomized so the checks can run against a shared database.
func runStoreContract(t *testing.T, name string, users repository.UserStore, comps repository.CompetitionStore) {
	ctx := context.Background()

	Convey("Given the "+name+" user store", t, func() {
		id := "user-" + uuid.NewString()

		Convey("When the user does not exist", func() {
			_, err := users.Get(ctx, id)

			Convey("Then Get reports not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When merge-writing partial patches", func() {
			name := "Ada"
			theme := model.ThemeDark
			achievements := []model.Achievement{{ID: "first_win", Title: "First Victory", Date: "2026-10-17T00:00:00.000Z"}}

			So(users.MergeWrite(ctx, id, model.UserPatch{DisplayName: &name, Theme: &theme}), ShouldBeNil)
			So(users.MergeWrite(ctx, id, model.UserPatch{Achievements: &achievements}), ShouldBeNil)
			u, err := users.Get(ctx, id)

			Convey("Then earlier fields survive later writes", func() {
				So(err, ShouldBeNil)
				So(u.ID, ShouldEqual, id)
				So(u.DisplayName, ShouldEqual, "Ada")
				So(u.Theme, ShouldEqual, model.ThemeDark)
				So(u.Achievements, ShouldResemble, achievements)
			})
		})

		Convey("When joins and wins are recorded for a new user", func() {
			at := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
			credit := model.Competition{ID: "c", Name: "Race", Type: model.TypeSpeed, Difficulty: model.DifficultyMedium}.Credit(at)

			So(users.RecordJoin(ctx, id), ShouldBeNil)
			So(users.RecordJoin(ctx, id), ShouldBeNil)
			So(users.RecordWin(ctx, id, credit), ShouldBeNil)
			u, err := users.Get(ctx, id)

			Convey("Then counters and history are created", func() {
				So(err, ShouldBeNil)
				So(u.Stats.CompetitionsJoined, ShouldEqual, 2)
				So(u.TotalWins, ShouldEqual, 1)
				So(u.Stats.CompetitionsWon, ShouldEqual, 1)
				So(u.Stats.TotalPoints, ShouldEqual, 20)
				So(u.Stats.CategoryWins["speed"], ShouldEqual, 1)
				So(u.History.MonthlyPoints["2026-02"], ShouldEqual, 20)
				So(u.History.MonthlyCompetitions["2026-02"], ShouldResemble, []string{"Race"})
			})
		})

		Convey("When wins race for one user", func() {
			credit := model.Competition{ID: "c", Name: "Race", Type: model.TypeDebugging, Difficulty: model.DifficultyEasy}.Credit(time.Now())
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = users.RecordWin(ctx, id, credit)
				}()
			}
			wg.Wait()
			u, err := users.Get(ctx, id)

			Convey("Then none are lost", func() {
				So(err, ShouldBeNil)
				So(u.TotalWins, ShouldEqual, 10)
				So(u.Stats.TotalPoints, ShouldEqual, 100)
			})
		})

		Convey("When counting users after a write", func() {
			So(users.MergeWrite(ctx, id, model.UserPatch{}), ShouldBeNil)
			n, err := users.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldBeGreaterThanOrEqualTo, 1)
		})
	})

	Convey("Given the "+name+" competition store", t, func() {
		prefix := "comp-" + uuid.NewString() + "-"
		base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		mk := func(suffix string, typ model.CompetitionType, offset time.Duration) model.Competition {
			return model.Competition{
				ID:         prefix + suffix,
				Name:       "Challenge " + suffix,
				Type:       typ,
				Difficulty: model.DifficultyHard,
				CreatedBy:  "owner",
				CreatedAt:  base.Add(offset),
				Status:     model.StatusOpen,
				Winners:    []string{},
			}
		}
		So(comps.Create(ctx, mk("a", model.TypeSpeed, 0)), ShouldBeNil)
		So(comps.Create(ctx, mk("b", model.TypeDebugging, time.Hour)), ShouldBeNil)
		So(comps.Create(ctx, mk("c", model.TypeSpeed, 2*time.Hour)), ShouldBeNil)

		Convey("When creating a duplicate id", func() {
			err := comps.Create(ctx, mk("a", model.TypeSpeed, 0))
			So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
		})

		Convey("When fetching one", func() {
			c, err := comps.Get(ctx, prefix+"b")
			So(err, ShouldBeNil)
			So(c.Name, ShouldEqual, "Challenge b")
			So(c.CreatedAt.Equal(base.Add(time.Hour)), ShouldBeTrue)
			So(c.Winners, ShouldResemble, []string{})

			_, err = comps.Get(ctx, prefix+"zzz")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When listing by type", func() {
			list, err := comps.List(ctx, model.CompetitionFilter{Type: model.TypeSpeed})
			So(err, ShouldBeNil)

			Convey("Then matches come newest first", func() {
				So(ownIDs(list, prefix), ShouldResemble, []string{prefix + "c", prefix + "a"})
			})
		})

		Convey("When joining", func() {
			c, err := comps.Join(ctx, prefix+"a")
			So(err, ShouldBeNil)
			So(c.Participants, ShouldEqual, 1)

			_, err = comps.Join(ctx, prefix+"missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When recording winners twice", func() {
			added, c, err := comps.AddWinners(ctx, prefix+"a", []string{"u1", "u2", "u1"})
			So(err, ShouldBeNil)
			So(added, ShouldResemble, []string{"u1", "u2"})
			So(c.Status, ShouldEqual, model.StatusClosed)

			again, c2, err := comps.AddWinners(ctx, prefix+"a", []string{"u2", "u3"})

			Convey("Then only new winners are reported and the set has no duplicates", func() {
				So(err, ShouldBeNil)
				So(again, ShouldResemble, []string{"u3"})
				So(c2.Winners, ShouldResemble, []string{"u1", "u2", "u3"})
			})

			Convey("And the closed competition cannot be joined", func() {
				_, err := comps.Join(ctx, prefix+"a")
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
			})

			Convey("And wins are queryable by winner", func() {
				wins, err := comps.QueryByWinner(ctx, "u3")
				So(err, ShouldBeNil)
				So(ownIDs(wins, prefix), ShouldResemble, []string{prefix + "a"})
			})
		})

		Convey("When recording winners of an unknown competition", func() {
			_, _, err := comps.AddWinners(ctx, prefix+"missing", []string{"u1"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func ownIDs(list []model.Competition, prefix string) []string {
	var out []string
	for _, c := range list {
		if strings.HasPrefix(c.ID, prefix) {
			out = append(out, c.ID)
		}
	}
	return out
}
