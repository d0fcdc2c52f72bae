package stats_test

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/stats"
)

func TestSummarize(t *testing.T) {
	Convey("Given user counters", t, func() {
		Convey("When nothing was joined", func() {
			s := stats.Summarize(model.User{})
			So(s.WinRate, ShouldEqual, 0)
		})

		Convey("When 2 of 3 joined competitions were won", func() {
			s := stats.Summarize(model.User{
				TotalWins: 2,
				Stats:     model.Stats{CompetitionsJoined: 3, CompetitionsWon: 2, TotalPoints: 50},
			})

			Convey("Then the win rate is rounded", func() {
				So(s, ShouldResemble, stats.Summary{
					CompetitionsJoined: 3,
					CompetitionsWon:    2,
					TotalPoints:        50,
					TotalWins:          2,
					WinRate:            67,
				})
			})
		})
	})
}

func TestSeries(t *testing.T) {
	Convey("Given a user's history and category stats", t, func() {
		h := model.History{
			MonthlyPoints: map[string]int{"2026-03": 30, "2025-12": 10, "2026-01": 20},
			MonthlyCompetitions: map[string][]string{
				"2026-03": {"Race"},
				"2025-12": {"Warmup"},
			},
		}
		s := model.Stats{
			TotalProblems: 3,
			CategoryStats: map[string]int{"speed": 2, "debugging": 1},
			CategoryWins:  map[string]int{"speed": 2, "debugging": 1},
		}

		Convey("When building the progress series", func() {
			p := stats.Progress(h)

			Convey("Then months are ascending with readable labels", func() {
				So(p, ShouldHaveLength, 3)
				So(p[0].Month, ShouldEqual, "2025-12")
				So(p[0].Label, ShouldEqual, "Dec 2025")
				So(p[1].Label, ShouldEqual, "Jan 2026")
				So(p[1].Competitions, ShouldResemble, []string{})
				So(p[2].Points, ShouldEqual, 30)
				So(p[2].Competitions, ShouldResemble, []string{"Race"})
			})
		})

		Convey("When building the activity series", func() {
			a := stats.Activity(s)

			Convey("Then categories are sorted with shares of the total", func() {
				So(a, ShouldResemble, []stats.ActivityPoint{
					{Category: "debugging", Solved: 1, Share: 33, Wins: 1},
					{Category: "speed", Solved: 2, Share: 67, Wins: 2},
				})
			})
		})

		Convey("When exporting both as CSV", func() {
			var progress, activity bytes.Buffer
			So(stats.WriteProgressCSV(&progress, stats.Progress(h)), ShouldBeNil)
			So(stats.WriteActivityCSV(&activity, stats.Activity(s)), ShouldBeNil)

			Convey("Then headers and rows match the download format", func() {
				So(progress.String(), ShouldEqual, "Month,Points\n2025-12,10\n2026-01,20\n2026-03,30\n")
				So(activity.String(), ShouldEqual, "Category,Problems Solved\ndebugging,1\nspeed,2\n")
			})
		})

		Convey("When exporting a single month", func() {
			var out bytes.Buffer
			one := model.History{MonthlyPoints: map[string]int{"2026-01": 20}}
			So(stats.WriteProgressCSV(&out, stats.Progress(one)), ShouldBeNil)

			Convey("Then the month column holds the stored key, not the label", func() {
				So(out.String(), ShouldEqual, "Month,Points\n2026-01,20\n")
			})
		})

		Convey("When there is no history at all", func() {
			So(stats.Progress(model.History{}), ShouldBeEmpty)
			So(stats.Activity(model.Stats{}), ShouldBeEmpty)
		})
	})
}
