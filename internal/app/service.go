// Package service implements the judging workflow: it serves each judge the
// next project to visit, applies their pairwise votes to the rating model
// and tracks the leading project per judge and prize.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/jury/internal/adapters/repository"
	"github.com/okian/jury/internal/domain/dedupe"
	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/internal/domain/selection"
	"github.com/okian/jury/pkg/logger"
)

const (
	tracerName         = "github.com/okian/jury/internal/app"
	defaultTopCacheTTL = 2 * time.Second
)

// Store is the storage the service runs on.
type Store interface {
	repository.Store
	repository.Admin
}

// Service implements the judging operations exposed over HTTP and driven by
// the simulation. It keeps no judging state of its own; every operation
// reads fresh rows inside a store transaction.
type Service struct {
	store    Store
	policy   *selection.Policy
	deduper  dedupe.Deduper
	topCache *cache.Cache
	topTTL   time.Duration
	validate *validator.Validate
	now      func() time.Time
	tracer   trace.Tracer
	logger   logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithPolicy sets the selection policy.
func WithPolicy(p *selection.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithDeduper sets the comparison batch deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithTopCacheTTL sets how long prize rankings are cached. Zero disables
// the cache.
func WithTopCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.topTTL = ttl
		}
	}
}

// WithClock overrides the time source used for judge activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service on store. The global logger must be initialised
// unless WithLogger is given.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		topTTL:   defaultTopCacheTTL,
		validate: validator.New(),
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == nil {
		s.policy = selection.New(selection.WithClock(s.now))
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewBatchDeduper()
	}
	if s.topTTL > 0 {
		s.topCache = cache.New(s.topTTL, 2*s.topTTL)
	}
	if s.logger == nil {
		s.logger = logger.Named("judging")
	}
	return s
}

// judge resolves an external identity. An unknown judge is reported with
// ok=false and no error.
func (s *Service) judge(ctx context.Context, externalID string) (j model.Judge, ok bool, err error) {
	j, err = s.store.JudgeByExternalID(ctx, externalID)
	if errors.Is(err, repository.ErrNotFound) {
		return j, false, nil
	}
	if err != nil {
		return j, false, fmt.Errorf("resolve judge %q: %w", externalID, err)
	}
	return j, true, nil
}

func (s *Service) startSpan(ctx context.Context, name, externalID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("judge.external_id", externalID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
