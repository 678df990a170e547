// Package pipeline orchestrates a phone number check: normalization, the
// safelist and history short-circuits, evidence gathering, scoring and the
// history write.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"phonecheck/internal/analytics"
	"phonecheck/internal/evidence"
	"phonecheck/internal/evidence/providers"
	"phonecheck/internal/phone"
	"phonecheck/internal/pipeline/metrics"
	"phonecheck/internal/scoring"
	"phonecheck/internal/verdict"
	"phonecheck/pkg/platform/sentinel"
	"phonecheck/pkg/requestcontext"
)

// DefaultFreshness is how long a stored verdict is served without
// consulting providers again.
const DefaultFreshness = 24 * time.Hour

// Service runs the lookup pipeline. Safe for concurrent use.
type Service struct {
	safelist SafelistReader
	history  HistoryStore
	carrier  Fetcher
	search   Fetcher
	judgment Fetcher

	policy     *scoring.Policy
	normalizer phone.Normalizer
	freshness  time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	sink    analytics.Sink
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSink reports every lookup to sink.
func WithSink(sink analytics.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

func WithPolicy(p *scoring.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithFreshness sets the cache window. Zero disables cache hits.
func WithFreshness(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.freshness = d
		}
	}
}

func WithNormalizer(z phone.Normalizer) Option {
	return func(s *Service) {
		s.normalizer = z
	}
}

// New creates the pipeline. Any fetcher may be nil, in which case its
// evidence is always missing.
func New(safelist SafelistReader, history HistoryStore, carrier, search, judgment Fetcher, opts ...Option) *Service {
	s := &Service{
		safelist:  safelist,
		history:   history,
		carrier:   carrier,
		search:    search,
		judgment:  judgment,
		policy:    scoring.New(scoring.DefaultWeights()),
		freshness: DefaultFreshness,
		logger:    slog.Default(),
		tracer:    otel.Tracer("phonecheck/pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookupRun carries what the analytics event needs about one call.
type lookupRun struct {
	start   time.Time
	number  phone.Number
	outcome analytics.Outcome
	verdict *verdict.Verdict
}

// Analyze returns the verdict for raw.
//
// Only phone.ErrInvalidFormat (caller error) and the caller's own context
// error are returned. Provider and storage failures degrade into neutral
// evidence or cache misses.
func (s *Service) Analyze(ctx context.Context, raw string) (*verdict.Verdict, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.Analyze")
	defer span.End()
	run := &lookupRun{start: time.Now()}
	defer func() { s.report(ctx, run) }()

	n, err := s.normalizer.Normalize(raw)
	if err != nil {
		run.outcome = analytics.OutcomeInvalid
		span.SetStatus(codes.Error, "invalid format")
		return nil, err
	}
	run.number = n
	span.SetAttributes(attribute.String("phone.country", n.Country()))
	now := requestcontext.Now(ctx)

	// Rule 1: safelisted numbers skip every provider and are not stored.
	if label, ok := s.lookupSafelist(ctx, n); ok {
		run.outcome = analytics.OutcomeSafelisted
		run.verdict = verdict.NewSafelisted(n, label, now)
		span.SetAttributes(attribute.Bool("phone.safelisted", true))
		return run.verdict, nil
	}

	// Rule 2: a fresh stored verdict is served as is.
	if v, ok := s.lookupFresh(ctx, n, now); ok {
		run.outcome = analytics.OutcomeCached
		run.verdict = v
		span.SetAttributes(attribute.Bool("phone.cached", true))
		return v, nil
	}

	// Rule 3: gather evidence, score and store.
	bundle, err := s.gather(ctx, n)
	if err != nil {
		run.outcome = analytics.OutcomeCanceled
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	assessment := s.policy.Score(bundle)
	v := verdict.NewScored(n, bundle, assessment, now)
	run.outcome = analytics.OutcomeScored
	run.verdict = v
	span.SetAttributes(
		attribute.Int("phone.risk_score", v.RiskScore),
		attribute.String("phone.risk_label", string(v.RiskLabel)),
	)

	if err := s.history.Put(ctx, verdict.NewHistoryRecord(v, now)); err != nil {
		s.metrics.IncrementHistoryWriteError()
		s.logger.WarnContext(ctx, "failed to store verdict",
			"number", phone.Mask(n.String()),
			"error", err,
		)
	}
	return v, nil
}

func (s *Service) lookupSafelist(ctx context.Context, n phone.Number) (string, bool) {
	if s.safelist == nil {
		return "", false
	}
	label, err := s.safelist.Lookup(ctx, n)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "safelist lookup failed, continuing",
				"number", phone.Mask(n.String()),
				"error", err,
			)
		}
		return "", false
	}
	return label, true
}

func (s *Service) lookupFresh(ctx context.Context, n phone.Number, now time.Time) (*verdict.Verdict, bool) {
	rec, err := s.history.Get(ctx, n)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncrementCacheResult("miss")
		return nil, false
	case err != nil:
		s.metrics.IncrementCacheResult("error")
		s.logger.WarnContext(ctx, "history read failed, treating as miss",
			"number", phone.Mask(n.String()),
			"error", err,
		)
		return nil, false
	}
	if rec.Validate() != nil || !rec.Verdict.IsFreshAt(now, s.freshness) {
		s.metrics.IncrementCacheResult("stale")
		return nil, false
	}
	s.metrics.IncrementCacheResult("hit")
	v := rec.Verdict
	return &v, true
}

// gather runs carrier and search concurrently, then the judgment with both
// as context. Returns the caller's context error if it was cancelled.
func (s *Service) gather(ctx context.Context, n phone.Number) (evidence.Bundle, error) {
	q := providers.Query{Number: n}

	var carrierEv, searchEv evidence.Evidence
	var g errgroup.Group
	g.Go(func() error {
		carrierEv = fetch(ctx, s.carrier, q)
		return nil
	})
	g.Go(func() error {
		searchEv = fetch(ctx, s.search, q)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return evidence.Bundle{}, err
	}

	phase1 := evidence.Reconcile(carrierEv, searchEv, evidence.Evidence{})
	q.Prior = []evidence.Evidence{phase1.Carrier, phase1.Search}
	judgmentEv := fetch(ctx, s.judgment, q)
	if err := ctx.Err(); err != nil {
		return evidence.Bundle{}, err
	}
	return evidence.Reconcile(carrierEv, searchEv, judgmentEv), nil
}

func fetch(ctx context.Context, f Fetcher, q providers.Query) evidence.Evidence {
	if f == nil {
		return evidence.Evidence{}
	}
	return f.Fetch(ctx, q)
}

func (s *Service) report(ctx context.Context, run *lookupRun) {
	label := ""
	if run.verdict != nil {
		label = string(run.verdict.RiskLabel)
	}
	s.metrics.ObserveLookup(string(run.outcome), label, run.start)
	if s.sink == nil {
		return
	}

	ev := analytics.LookupEvent{
		ID:         uuid.NewString(),
		Outcome:    run.outcome,
		Duration:   time.Since(run.start),
		Channel:    requestcontext.Channel(ctx),
		ClientKind: requestcontext.ClientKind(ctx),
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: requestcontext.Now(ctx),
	}
	if !run.number.IsZero() {
		ev.Number = run.number.String()
		ev.Country = run.number.Country()
	}
	if v := run.verdict; v != nil {
		ev.RiskLabel = string(v.RiskLabel)
		ev.RiskScore = v.RiskScore
		ev.Safelisted = v.Safelisted
		ev.Cached = run.outcome == analytics.OutcomeCached
		if c := v.Evidence.Carrier; c.OK() && c.Carrier != nil {
			ev.Carrier = c.Carrier.Carrier
		}
		if run.outcome == analytics.OutcomeScored {
			ev.Providers = providerOutcomes(v.Evidence)
		}
	}
	s.sink.Record(ctx, ev)
}

func providerOutcomes(b evidence.Bundle) map[string]analytics.ProviderOutcome {
	out := make(map[string]analytics.ProviderOutcome, 3)
	for _, e := range b.All() {
		if e.Reason == evidence.ReasonMissing {
			continue
		}
		name := e.Source
		if name == "" {
			name = string(e.Kind)
		}
		out[name] = analytics.ProviderOutcome{
			Provider:  name,
			Status:    string(e.Status),
			Reason:    e.Reason,
			LatencyMS: e.Latency.Milliseconds(),
		}
	}
	return out
}
