// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/okian/jury/internal/adapters/repository"
	service "github.com/okian/jury/internal/app"
	"github.com/okian/jury/internal/domain/crowdbt"
	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/pkg/logger"
)

// JudgeHeader carries the judge identity set by the upstream auth layer.
const JudgeHeader = "X-Judge-ID"

// Judging is the engine surface the HTTP handlers drive.
type Judging interface {
	Current(ctx context.Context, externalID string) (*model.SessionView, error)
	ComputeNext(ctx context.Context, externalID string) (*model.SessionView, error)
	SkipProject(ctx context.Context, externalID, projectID string) (*model.SessionView, error)
	CompareMany(ctx context.Context, externalID, batchID string, cmps []model.Comparison) (*model.CompareReceipt, error)
	JudgingPrizes(ctx context.Context, externalID string) ([]model.Prize, error)
	TopProjects(ctx context.Context, prizeID string, limit int) ([]model.RankedInstance, error)
	SyncJudgePrizes(ctx context.Context) (int, error)
}

// Server wires HTTP routes for the judging API.
type Server struct {
	judging  Judging
	stats    StatsProvider
	health   *HealthHandler
	validate *validator.Validate
	logger   logger.Logger

	maxTopLimit        int
	rateLimitPerMinute int
}

// NewServer creates a new API server with all handlers.
func NewServer(judging Judging, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		judging:     judging,
		stats:       stats,
		health:      NewHealthHandler(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		maxTopLimit: defaultMaxTopLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.health.HandleHealth)
	r.Get("/stats", NewStatsHandler(s.stats).HandleStats)

	r.Group(func(r chi.Router) {
		if s.rateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.rateLimitPerMinute, time.Minute))
		}
		r.Route("/judging", func(r chi.Router) {
			r.Use(requireJudge)
			r.Get("/current", s.handleCurrent)
			r.Post("/next", s.handleNext)
			r.Post("/compare", s.handleCompare)
			r.Post("/skip", s.handleSkip)
			r.Get("/prizes", s.handlePrizes)
		})
		r.Get("/prizes/{prizeID}/top", s.handleTop)
		r.Post("/admin/sync-judge-prizes", s.handleSyncJudgePrizes)
	})
}

type ctxKey struct{}

// requireJudge rejects requests without a judge identity.
func requireJudge(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(JudgeHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", ErrMissingJudge)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func judgeID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type doneResponse struct {
	Done bool `json:"done"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeSession answers with the session view, or done when there is none.
func writeSession(w http.ResponseWriter, view *model.SessionView) {
	if view == nil {
		writeJSON(w, http.StatusOK, doneResponse{Done: true})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// writeFailure maps engine errors to HTTP statuses.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, crowdbt.ErrNumericDegeneracy):
		writeError(w, http.StatusUnprocessableEntity, "numeric_degeneracy", err)
	case errors.Is(err, service.ErrInvalidComparison),
		errors.Is(err, service.ErrInvalidProject),
		errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrBatchInFlight):
		writeError(w, http.StatusConflict, "batch_in_flight", err)
	default:
		// Internal details stay in the log.
		s.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
