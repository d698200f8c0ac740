package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type syncResponse struct {
	Assignments int `json:"assignments"`
}

// handleTop handles GET /prizes/{prizeID}/top?limit=N. Without a limit the
// configured maximum is used.
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.top"
	n := s.maxTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > s.maxTopLimit {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Errorf("%w: %w: want 1..%d, got %q", ErrBadRequest, ErrLimit, s.maxTopLimit, raw))
			return
		}
		n = v
	}
	ranked, err := s.judging.TopProjects(r.Context(), chi.URLParam(r, "prizeID"), n)
	if err != nil {
		s.writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

// handleSyncJudgePrizes handles POST /admin/sync-judge-prizes.
func (s *Server) handleSyncJudgePrizes(w http.ResponseWriter, r *http.Request) {
	n, err := s.judging.SyncJudgePrizes(r.Context())
	if err != nil {
		s.writeFailure(w, r, "api.sync_judge_prizes", err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Assignments: n})
}
