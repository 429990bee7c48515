// Package telemetry wires Sentry tracing into the service layer.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

const serviceName = "parchment"

// Config controls Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry and returns a flush function for shutdown. An
// empty DSN disables reporting entirely; an init failure is logged and
// the process continues without tracing.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Printf("sentry init failed, continuing without tracing: %v", err)
		return func() {}, nil
	}

	log.Printf("sentry tracing enabled (environment=%s sample_rate=%.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampler drops health-check noise and makes child spans inherit their
// parent's sampling decision.
func sampler(rate float64) sentry.TracesSampler {
	return func(sc sentry.SamplingContext) float64 {
		if sc.Span.Name == "GET /health" || sc.Span.Op == "http.server GET /health" {
			return 0
		}
		var root sentry.SpanID
		if sc.Span.ParentSpanID != root {
			if sc.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// SpanAttributes tags a span with the entities an operation touches.
type SpanAttributes struct {
	DocumentID string
	Filename   string
	Operation  string
}

// Span is a thin wrapper so services never handle a nil *sentry.Span.
type Span struct {
	inner *sentry.Span
}

// StartSpan opens a child span under the transaction in ctx, or a new
// transaction when ctx carries none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.DocumentID != "" {
		span.SetTag("document_id", attrs.DocumentID)
	}
	if attrs.Filename != "" {
		span.SetTag("filename", attrs.Filename)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}

	return span.Context(), &Span{inner: span}
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports the error.
func (s *Span) SetError(err error) {
	if s.inner == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}
