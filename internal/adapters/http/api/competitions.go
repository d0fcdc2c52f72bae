package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
)

// winnersRequest is the body of POST /competitions/{id}/winners. The event id
// may also come from the Idempotency-Key header.
type winnersRequest struct {
	EventID string   `json:"eventId"`
	Winners []string `json:"winners"`
}

type winnersResponse struct {
	Status string `json:"status"`
	service.WinnersResult
}

type listResponse struct {
	Competitions []model.Competition `json:"competitions"`
	Count        int                 `json:"count"`
}

func (s *Server) handleListCompetitions(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_competitions"
	q := r.URL.Query()
	filter := model.CompetitionFilter{
		Type:   model.CompetitionType(strings.ToLower(q.Get("type"))),
		Status: model.Status(strings.ToLower(q.Get("status"))),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
		if n < 0 {
			s.writeError(w, r, NewKind(op, ErrBadRequest))
			return
		}
		filter.Limit = n
	}

	list, err := s.deps.ListCompetitions(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Competitions: list, Count: len(list)})
}

func (s *Server) handleCreateCompetition(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_competition"
	var in service.NewCompetition
	if err := decodeJSON(r, w, &in); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	c, err := s.deps.CreateCompetition(r.Context(), session(r), in)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/api/v1/competitions/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCompetition(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_competition"
	c, err := s.deps.GetCompetition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join_competition"
	c, err := s.deps.JoinCompetition(r.Context(), session(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleRecordWinners(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_winners"
	var req winnersRequest
	if err := decodeJSON(r, w, &req); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if req.EventID == "" {
		req.EventID = r.Header.Get("Idempotency-Key")
	}

	res, err := s.deps.RecordWinners(r.Context(), session(r), chi.URLParam(r, "id"), req.EventID, req.Winners)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, winnersResponse{Status: "duplicate", WinnersResult: res})
		return
	}
	writeJSON(w, http.StatusAccepted, winnersResponse{Status: "accepted", WinnersResult: res})
}
