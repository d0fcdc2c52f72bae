package profile_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/profile"
)

type memStore struct {
	users    map[string]model.User
	writeErr error
}

func (m *memStore) Get(_ context.Context, id string) (model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (m *memStore) MergeWrite(_ context.Context, id string, p model.UserPatch) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	u := m.users[id]
	u.ID = id
	p.Apply(&u)
	m.users[id] = u
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestNormalize(t *testing.T) {
	Convey("Given profile edits", t, func() {
		Convey("When fields need trimming and skills repeat", func() {
			patch, err := profile.Normalize(profile.Update{
				DisplayName: ptr("  Ada  "),
				Skills:      ptr([]string{" Go ", "", "go", "Rust", "GO"}),
				Theme:       ptr("Dark"),
			})

			Convey("Then the patch is cleaned up", func() {
				So(err, ShouldBeNil)
				So(*patch.DisplayName, ShouldEqual, "Ada")
				So(*patch.Skills, ShouldResemble, []string{"Go", "Rust"})
				So(*patch.Theme, ShouldEqual, model.ThemeDark)
				So(patch.Bio, ShouldBeNil)
				So(patch.Achievements, ShouldBeNil)
			})
		})

		Convey("When the update is empty", func() {
			_, err := profile.Normalize(profile.Update{})
			So(errors.Is(err, profile.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When values are out of range", func() {
			_, err := profile.Normalize(profile.Update{DisplayName: ptr(strings.Repeat("é", profile.MaxDisplayName+1))})
			So(errors.Is(err, profile.ErrInvalidInput), ShouldBeTrue)

			_, err = profile.Normalize(profile.Update{Bio: ptr(strings.Repeat("x", profile.MaxBio+1))})
			So(errors.Is(err, profile.ErrInvalidInput), ShouldBeTrue)

			_, err = profile.Normalize(profile.Update{Theme: ptr("neon")})
			So(errors.Is(err, profile.ErrInvalidInput), ShouldBeTrue)

			many := make([]string, profile.MaxSkills+1)
			for i := range many {
				many[i] = strings.Repeat("s", i+1)
			}
			_, err = profile.Normalize(profile.Update{Skills: &many})
			So(errors.Is(err, profile.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When a display name is exactly at the limit in runes", func() {
			_, err := profile.Normalize(profile.Update{DisplayName: ptr(strings.Repeat("é", profile.MaxDisplayName))})
			So(err, ShouldBeNil)
		})
	})
}

func TestService(t *testing.T) {
	Convey("Given a profile service", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
		store := &memStore{users: map[string]model.User{
			"u1": {ID: "u1", DisplayName: "Ada", Achievements: []model.Achievement{{ID: "first_win"}}, TotalWins: 1},
		}}
		svc := profile.NewService(store, func() time.Time { return now })

		Convey("When reading a profile without a theme", func() {
			u, err := svc.Get(ctx, "u1")
			So(err, ShouldBeNil)
			So(u.Theme, ShouldEqual, model.ThemeLight)
		})

		Convey("When reading a missing profile", func() {
			_, err := svc.Get(ctx, "nobody")
			So(errors.Is(err, profile.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the owner edits their bio", func() {
			u, err := svc.Update(ctx, "u1", "u1", profile.Update{Bio: ptr("hello")})

			Convey("Then only the bio and timestamp change", func() {
				So(err, ShouldBeNil)
				So(u.Bio, ShouldEqual, "hello")
				So(u.DisplayName, ShouldEqual, "Ada")
				So(u.TotalWins, ShouldEqual, 1)
				So(u.Achievements, ShouldHaveLength, 1)
				So(u.LastUpdated, ShouldEqual, now)
			})
		})

		Convey("When someone else edits the profile", func() {
			_, err := svc.Update(ctx, "u2", "u1", profile.Update{Bio: ptr("pwned")})

			Convey("Then it is forbidden and nothing changes", func() {
				So(errors.Is(err, profile.ErrForbidden), ShouldBeTrue)
				So(store.users["u1"].Bio, ShouldBeEmpty)
			})
		})

		Convey("When the store rejects the write", func() {
			store.writeErr = errors.New("disk full")
			_, err := svc.Update(ctx, "u1", "u1", profile.Update{Bio: ptr("hello")})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "disk full")
		})
	})
}
