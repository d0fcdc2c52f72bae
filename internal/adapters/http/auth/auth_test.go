package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/http/auth"
)

func TestVerifier(t *testing.T) {
	Convey("Given a verifier with an issuer", t, func() {
		v := auth.NewVerifier("secret", "arena-auth")

		Convey("When a token it signed is verified", func() {
			token, err := v.Sign("u1", "Ada", time.Hour)
			So(err, ShouldBeNil)
			s, err := v.Verify(token)

			Convey("Then the session names the subject", func() {
				So(err, ShouldBeNil)
				So(s.UserID, ShouldEqual, "u1")
				So(s.DisplayName, ShouldEqual, "Ada")
				So(s.ExpiresAt.After(time.Now()), ShouldBeTrue)
			})
		})

		Convey("When the token is expired", func() {
			token, _ := v.Sign("u1", "", -time.Minute)
			_, err := v.Verify(token)
			So(errors.Is(err, auth.ErrExpiredToken), ShouldBeTrue)
		})

		Convey("When the token was signed with another secret", func() {
			token, _ := auth.NewVerifier("other", "arena-auth").Sign("u1", "", time.Hour)
			_, err := v.Verify(token)
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the issuer differs", func() {
			token, _ := auth.NewVerifier("secret", "someone-else").Sign("u1", "", time.Hour)
			_, err := v.Verify(token)
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the token uses the none algorithm", func() {
			token, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
				Subject:   "u1",
				Issuer:    "arena-auth",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}).SignedString(jwt.UnsafeAllowNoneSignatureType)
			_, err := v.Verify(token)
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the token has no subject", func() {
			token, _ := v.Sign("", "", time.Hour)
			_, err := v.Verify(token)
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the token is empty", func() {
			_, err := v.Verify("")
			So(errors.Is(err, auth.ErrMissingToken), ShouldBeTrue)
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given the auth middleware chain", t, func() {
		v := auth.NewVerifier("secret", "")
		var failed error
		fail := func(w http.ResponseWriter, _ *http.Request, err error) {
			failed = err
			w.WriteHeader(http.StatusUnauthorized)
		}
		var seen auth.Session
		var had bool
		final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, had = auth.FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
		open := auth.Authenticate(v, fail)(final)
		closed := auth.Authenticate(v, fail)(auth.Require(fail)(final))

		Convey("When a valid bearer token is sent", func() {
			token, _ := v.Sign("u1", "", time.Hour)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			closed.ServeHTTP(rec, req)

			Convey("Then the handler sees the session", func() {
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(had, ShouldBeTrue)
				So(seen.UserID, ShouldEqual, "u1")
			})
		})

		Convey("When no token is sent to an open route", func() {
			rec := httptest.NewRecorder()
			open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Convey("Then it passes anonymously", func() {
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(had, ShouldBeFalse)
			})
		})

		Convey("When no token is sent to a protected route", func() {
			rec := httptest.NewRecorder()
			closed.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusUnauthorized)
				So(errors.Is(failed, auth.ErrMissingToken), ShouldBeTrue)
			})
		})

		Convey("When the header is malformed", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Token abc")
			rec := httptest.NewRecorder()
			open.ServeHTTP(rec, req)

			Convey("Then it is rejected even on an open route", func() {
				So(rec.Code, ShouldEqual, http.StatusUnauthorized)
				So(errors.Is(failed, auth.ErrInvalidToken), ShouldBeTrue)
			})
		})
	})
}
