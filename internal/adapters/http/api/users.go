package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/arena/internal/domain/profile"
	"github.com/okian/arena/internal/domain/stats"
)

type achievementsResponse struct {
	UserID       string `json:"userId"`
	Achievements any    `json:"achievements"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	u, err := s.deps.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_profile"
	var upd profile.Update
	if err := decodeJSON(r, w, &upd); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	u, err := s.deps.UpdateProfile(r.Context(), session(r), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	const op = "api.achievements"
	id := chi.URLParam(r, "id")
	list, err := s.deps.Achievements(r.Context(), id)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, achievementsResponse{UserID: id, Achievements: list})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"
	id := chi.URLParam(r, "id")
	granted, err := s.deps.EvaluateNow(r.Context(), session(r), id)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, achievementsResponse{UserID: id, Achievements: granted})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.summary"
	sum, err := s.deps.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	const op = "api.progress"
	points, err := s.deps.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if wantsCSV(r) {
		s.writeCSV(w, r, op, stats.ProgressFilename, func(out io.Writer) error {
			return stats.WriteProgressCSV(out, points)
		})
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.activity"
	points, err := s.deps.Activity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if wantsCSV(r) {
		s.writeCSV(w, r, op, stats.ActivityFilename, func(out io.Writer) error {
			return stats.WriteActivityCSV(out, points)
		})
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "csv")
}

// writeCSV renders into a buffer first so a failure can still become a JSON error.
func (s *Server) writeCSV(w http.ResponseWriter, r *http.Request, op, filename string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
