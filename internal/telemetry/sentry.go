// Package telemetry provides Sentry-based tracing for the ingestion and
// answer pipelines.
package telemetry

import (
	"context"
	"time"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const (
	serviceName  = "askdoc"
	flushTimeout = 5 * time.Second
	healthTxName = "GET /health"
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// SampleRateFor returns the default trace sample rate for an environment:
// everything in development, 10% elsewhere.
func SampleRateFor(environment string) float64 {
	if environment == "" || environment == "development" {
		return 1.0
	}
	return 0.1
}

// Init starts Sentry with tracing. The returned func flushes pending events;
// it is a no-op when DSN is empty or the client fails to start.
func Init(cfg Config, logger *zap.Logger) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = SampleRateFor(cfg.Environment)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			switch {
			case ctx.Span.Name == healthTxName:
				return 0
			case ctx.Span.ParentSpanID != (sentry.SpanID{}):
				// children inherit the root decision
				if ctx.Span.Sampled.Bool() {
					return 1
				}
				return 0
			default:
				return cfg.TracesSampleRate
			}
		}),
	})
	if err != nil {
		logger.Warn("sentry: failed to initialize, continuing without tracing", zap.Error(err))
		return func() {}, nil
	}

	logger.Info("sentry: tracing initialized",
		zap.String("environment", cfg.Environment),
		zap.Float64("sample_rate", cfg.TracesSampleRate),
	)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// SpanAttributes are tagged on a pipeline span when set.
type SpanAttributes struct {
	SessionID  string
	Source     string
	Collection string
	Operation  string
}

// Span is a nil-safe handle on a sentry span.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetData attaches a value to the span.
func (s *Span) SetData(key string, value any) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError marks the span failed and captures err. The failing pipeline
// stage and the domain error code are tagged when err carries them.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = spanStatusFor(err)
	if stage, ok := domain.FailedStage(err); ok {
		s.inner.SetTag("stage", string(stage))
	}
	if code := domain.ErrorCode(err); code != "" {
		s.inner.SetTag("error_code", code)
	}
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

func spanStatusFor(err error) sentry.SpanStatus {
	switch domain.ErrorCode(err) {
	case domain.ErrCodeNotFound:
		return sentry.SpanStatusNotFound
	case domain.ErrCodeValidation, domain.ErrCodeMalformedInput:
		return sentry.SpanStatusInvalidArgument
	case domain.ErrCodeServiceError:
		return sentry.SpanStatusUnavailable
	default:
		return sentry.SpanStatusInternalError
	}
}

func (s *Span) Context() context.Context {
	if s.inner != nil {
		return s.inner.Context()
	}
	return context.Background()
}

func setAttributes(span *sentry.Span, attrs SpanAttributes) {
	if span == nil {
		return
	}

	if attrs.SessionID != "" {
		span.SetTag("session_id", attrs.SessionID)
	}
	if attrs.Source != "" {
		span.SetTag("source", attrs.Source)
	}
	if attrs.Collection != "" {
		span.SetTag("collection", attrs.Collection)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
}

// StartSpan creates a child span if ctx already carries one, otherwise a
// new transaction.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	parentSpan := sentry.SpanFromContext(ctx)

	var span *sentry.Span
	if parentSpan != nil {
		span = parentSpan.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	setAttributes(span, attrs)

	return span.Context(), &Span{inner: span}
}

// CaptureError reports err on the hub carried by ctx, or the global hub.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
}

// AddBreadcrumb records a pipeline step on the hub carried by ctx.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
	} else {
		sentry.AddBreadcrumb(breadcrumb)
	}
}
