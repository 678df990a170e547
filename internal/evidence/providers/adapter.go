package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"phonecheck/internal/evidence"
	"phonecheck/internal/phone"
)

const defaultTimeout = 5 * time.Second

// FetchObserver receives per-call outcomes, typically a metrics sink.
type FetchObserver interface {
	ObserveProviderFetch(provider string, status evidence.Status, d time.Duration)
}

// Adapter enforces the provider contract around a Source: a hard per-call
// deadline, panic recovery and conversion of every failure into no-signal
// evidence. Adapter is stateless and safe for concurrent use.
type Adapter struct {
	source   Source
	timeout  time.Duration
	logger   *slog.Logger
	observer FetchObserver
	tracer   trace.Tracer
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger used for failure lines.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithObserver sets the fetch outcome observer.
func WithObserver(o FetchObserver) AdapterOption {
	return func(a *Adapter) {
		a.observer = o
	}
}

// NewAdapter wraps src with the given per-call timeout. A non-positive
// timeout falls back to five seconds.
func NewAdapter(src Source, timeout time.Duration, opts ...AdapterOption) *Adapter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	a := &Adapter{
		source:  src,
		timeout: timeout,
		logger:  slog.Default(),
		tracer:  otel.Tracer("phonecheck/providers"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the wrapped source's identifier.
func (a *Adapter) ID() string {
	return a.source.ID()
}

// Kind returns the wrapped source's evidence kind.
func (a *Adapter) Kind() evidence.Kind {
	return a.source.Kind()
}

type lookupResult struct {
	ev  evidence.Evidence
	err error
}

// Fetch runs the source and always returns evidence of the source's kind.
//
// Outcomes:
//   - source success: its evidence, stamped with source, latency and time
//   - own deadline fired: Timeout
//   - caller cancelled: Unavailable("canceled")
//   - source error or panic: Unavailable(<error category>)
func (a *Adapter) Fetch(ctx context.Context, q Query) evidence.Evidence {
	kind := a.source.Kind()
	ctx, span := a.tracer.Start(ctx, "provider.fetch", trace.WithAttributes(
		attribute.String("provider.id", a.source.ID()),
		attribute.String("provider.kind", string(kind)),
	))
	defer span.End()

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Buffered so an abandoned lookup can still deliver and exit.
	results := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- lookupResult{err: NewProviderError(ErrorInternal, a.source.ID(), fmt.Sprintf("panic: %v", r), nil)}
			}
		}()
		ev, err := a.source.Lookup(callCtx, q)
		results <- lookupResult{ev: ev, err: err}
	}()

	var ev evidence.Evidence
	select {
	case res := <-results:
		ev = a.convert(ctx, callCtx, kind, res)
	case <-callCtx.Done():
		ev = a.deadlineOutcome(ctx, kind)
	}

	latency := time.Since(start)
	ev.Source = a.source.ID()
	ev.Latency = latency
	ev.CheckedAt = start

	span.SetAttributes(attribute.String("provider.status", string(ev.Status)))
	if !ev.OK() {
		span.SetStatus(codes.Error, ev.Reason)
		a.logger.WarnContext(ctx, "provider returned no signal",
			"provider", a.source.ID(),
			"kind", kind,
			"status", ev.Status,
			"reason", ev.Reason,
			"number", phone.Mask(q.Number.String()),
			"latency_ms", latency.Milliseconds(),
		)
	}
	if a.observer != nil {
		a.observer.ObserveProviderFetch(a.source.ID(), ev.Status, latency)
	}
	return ev
}

func (a *Adapter) convert(parent, callCtx context.Context, kind evidence.Kind, res lookupResult) evidence.Evidence {
	if res.err == nil {
		ev := res.ev
		if ev.Kind == "" {
			ev.Kind = kind
		}
		return ev
	}
	if parent.Err() != nil {
		return evidence.Unavailable(kind, evidence.ReasonCanceled)
	}
	if callCtx.Err() != nil && errors.Is(res.err, context.DeadlineExceeded) {
		return evidence.Timeout(kind)
	}
	a.logger.DebugContext(parent, "provider lookup failed", "provider", a.source.ID(), "error", res.err)
	return GetCategory(res.err).Evidence(kind)
}

func (a *Adapter) deadlineOutcome(parent context.Context, kind evidence.Kind) evidence.Evidence {
	if parent.Err() != nil {
		return evidence.Unavailable(kind, evidence.ReasonCanceled)
	}
	return evidence.Timeout(kind)
}
