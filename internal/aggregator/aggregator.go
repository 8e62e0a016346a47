// Package aggregator fetches collections, plans and the session user
// concurrently and reconciles them into one AggregationResult. Collections
// are required; plans and the auth check are best-effort.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"catalog-bff/internal/common/errors"
	"catalog-bff/internal/common/logger"
	"catalog-bff/internal/common/metrics"
	"catalog-bff/internal/models"
	"catalog-bff/internal/session"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

type CollectionsFetcher interface {
	FetchCollections(ctx context.Context) ([]models.Collection, error)
}

// PlansFetcher returns a nil slice when the upstream carried no plan list.
type PlansFetcher interface {
	FetchPlans(ctx context.Context) ([]models.SubscriptionPlan, error)
}

// SessionUserFetcher runs the auth check. Not being logged in is
// Success=false, not an error.
type SessionUserFetcher interface {
	FetchSessionUser(ctx context.Context, creds session.Credentials) (models.AuthCheck, error)
}

type CollectionsFunc func(ctx context.Context) ([]models.Collection, error)

func (f CollectionsFunc) FetchCollections(ctx context.Context) ([]models.Collection, error) {
	return f(ctx)
}

type PlansFunc func(ctx context.Context) ([]models.SubscriptionPlan, error)

func (f PlansFunc) FetchPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	return f(ctx)
}

type SessionUserFunc func(ctx context.Context, creds session.Credentials) (models.AuthCheck, error)

func (f SessionUserFunc) FetchSessionUser(ctx context.Context, creds session.Credentials) (models.AuthCheck, error) {
	return f(ctx, creds)
}

type Sources struct {
	Collections CollectionsFetcher
	Plans       PlansFetcher
	Session     SessionUserFetcher
}

// CycleRecorder receives one call per finished cycle.
type CycleRecorder interface {
	RecordCycle(ctx context.Context, outcome string, duration time.Duration)
}

// Cycle outcomes passed to CycleRecorder.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

type Aggregator struct {
	sources  Sources
	logger   logger.Logger
	now      func() time.Time
	newID    func() string
	tracer   trace.Tracer
	recorder CycleRecorder
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(a *Aggregator) { a.newID = newID }
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) { a.tracer = t }
}

func WithRecorder(r CycleRecorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

func New(sources Sources, log logger.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources: sources,
		logger:  log.WithFields(map[string]interface{}{"component": "aggregator"}),
		now:     time.Now,
		newID:   uuid.NewString,
		tracer:  noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one aggregation cycle for sess. It returns either a complete
// result or a single error: a COLLECTIONS_FETCH_FAILED StandardError, or
// ErrCycleAbandoned when ctx is cancelled or sess is torn down before the
// join. On success with an authenticated auth check, the user is logged into
// sess.
func (a *Aggregator) Run(ctx context.Context, sess *session.Context) (*models.AggregationResult, error) {
	cycleID := a.newID()
	start := a.now()
	log := a.logger.WithFields(map[string]interface{}{"cycleId": cycleID})

	ctx, span := a.tracer.Start(ctx, "aggregation.cycle", trace.WithAttributes(attribute.String("cycle.id", cycleID)))
	defer span.End()

	var creds session.Credentials
	if sess != nil {
		creds = sess.Credentials()
	}

	var (
		collections    []models.Collection
		collectionsErr error
		plans          []models.SubscriptionPlan
		plansErr       error
		check          models.AuthCheck
		checkErr       error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		collections, collectionsErr = observe(a, gctx, models.SourceCollections, a.sources.Collections.FetchCollections)
		return collectionsErr
	})
	g.Go(func() error {
		plans, plansErr = observe(a, gctx, models.SourcePlans, a.sources.Plans.FetchPlans)
		return nil
	})
	g.Go(func() error {
		check, checkErr = observe(a, gctx, models.SourceSession, func(ctx context.Context) (models.AuthCheck, error) {
			return a.sources.Session.FetchSessionUser(ctx, creds)
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil || (sess != nil && sess.Closed()) {
		a.finish(ctx, span, OutcomeAbandoned, start)
		log.Info("Aggregation cycle abandoned", nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrCycleAbandoned, err)
		}
		return nil, fmt.Errorf("%w: session closed", errors.ErrCycleAbandoned)
	}

	if collectionsErr != nil {
		fetchErr := errors.NewCollectionsFetchFailedError(collectionsErr)
		span.RecordError(collectionsErr)
		span.SetStatus(codes.Error, fetchErr.Message)
		a.finish(ctx, span, OutcomeFailed, start)
		log.Error("Aggregation failed", map[string]interface{}{
			"error": collectionsErr.Error(),
		})
		return nil, fetchErr
	}

	result := &models.AggregationResult{
		CycleID:     cycleID,
		Collections: collections,
		Plans:       plans,
		Degraded:    []string{},
	}

	if plansErr != nil || plans == nil {
		fields := map[string]interface{}{"source": models.SourcePlans}
		if plansErr != nil {
			fields["error"] = plansErr.Error()
		}
		a.softMiss(log, result, models.SourcePlans, fields)
		result.Plans = []models.SubscriptionPlan{}
	}

	switch {
	case checkErr != nil:
		a.softMiss(log, result, models.SourceSession, map[string]interface{}{
			"source": models.SourceSession,
			"error":  checkErr.Error(),
		})
	case check.Authenticated():
		u := *check.User
		result.User = &u
	}

	if result.User != nil && sess != nil {
		if err := sess.Login(ctx, result.User); err != nil {
			log.Warn("Session login failed", map[string]interface{}{
				"sessionId": sess.ID(),
				"error":     err.Error(),
			})
		}
	}

	sort.Strings(result.Degraded)
	result.GeneratedAt = a.now().UTC()
	a.finish(ctx, span, OutcomeSuccess, start)

	log.Info("Aggregation completed", map[string]interface{}{
		"collections":   len(result.Collections),
		"plans":         len(result.Plans),
		"authenticated": result.User != nil,
		"degraded":      result.Degraded,
	})
	return result, nil
}

func (a *Aggregator) softMiss(log logger.Logger, result *models.AggregationResult, source string, fields map[string]interface{}) {
	metrics.SoftMisses.WithLabelValues(source).Inc()
	log.Warn("Best-effort source replaced by default", fields)
	result.Degraded = append(result.Degraded, source)
}

func (a *Aggregator) finish(ctx context.Context, span trace.Span, outcome string, start time.Time) {
	span.SetAttributes(attribute.String("cycle.outcome", outcome))
	if a.recorder != nil {
		a.recorder.RecordCycle(ctx, outcome, a.now().Sub(start))
	}
}

// observe wraps one upstream call with a span and request metrics.
func observe[T any](a *Aggregator, ctx context.Context, source string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := a.tracer.Start(ctx, "aggregation.fetch", trace.WithAttributes(attribute.String("source", source)))
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	metrics.UpstreamDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.UpstreamRequests.WithLabelValues(source, outcome).Inc()
	return v, err
}
