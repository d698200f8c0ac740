package api

import (
	"net/http"

	"github.com/okian/jury/internal/domain/model"
)

type compareRequest struct {
	BatchID     string             `json:"batch_id" validate:"omitempty,max=128"`
	Comparisons []model.Comparison `json:"comparisons" validate:"dive"`
}

type skipRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
}

// handleCurrent handles GET /judging/current.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	view, err := s.judging.Current(r.Context(), judgeID(r.Context()))
	if err != nil {
		s.writeFailure(w, r, "api.current", err)
		return
	}
	writeSession(w, view)
}

// handleNext handles POST /judging/next.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	view, err := s.judging.ComputeNext(r.Context(), judgeID(r.Context()))
	if err != nil {
		s.writeFailure(w, r, "api.next", err)
		return
	}
	writeSession(w, view)
}

// handleCompare handles POST /judging/compare.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := s.decode(r, &req); err != nil {
		s.writeFailure(w, r, "api.compare", err)
		return
	}
	receipt, err := s.judging.CompareMany(r.Context(), judgeID(r.Context()), req.BatchID, req.Comparisons)
	if err != nil {
		s.writeFailure(w, r, "api.compare", err)
		return
	}
	if receipt == nil {
		writeJSON(w, http.StatusOK, doneResponse{Done: true})
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleSkip handles POST /judging/skip.
func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if err := s.decode(r, &req); err != nil {
		s.writeFailure(w, r, "api.skip", err)
		return
	}
	view, err := s.judging.SkipProject(r.Context(), judgeID(r.Context()), req.ProjectID)
	if err != nil {
		s.writeFailure(w, r, "api.skip", err)
		return
	}
	writeSession(w, view)
}

// handlePrizes handles GET /judging/prizes.
func (s *Server) handlePrizes(w http.ResponseWriter, r *http.Request) {
	prizes, err := s.judging.JudgingPrizes(r.Context(), judgeID(r.Context()))
	if err != nil {
		s.writeFailure(w, r, "api.prizes", err)
		return
	}
	if prizes == nil {
		prizes = []model.Prize{}
	}
	writeJSON(w, http.StatusOK, prizes)
}
