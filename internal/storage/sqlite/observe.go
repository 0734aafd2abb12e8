package sqlite

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this package to OpenTelemetry when the
// default (global) tracer or meter is requested.
const instrumentationName = "github.com/aanand-mishra/users-api/internal/storage/sqlite"

// storeMetrics holds the OpenTelemetry metric instruments for the store.
type storeMetrics struct {
	queryCount    metric.Int64Counter
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

// observability carries the store's optional logger, tracer, and meter.
// All fields may be nil; the observe helper checks before using them,
// so an unconfigured store adds no overhead beyond a time.Now call.
type observability struct {
	logger             *slog.Logger
	tracer             trace.Tracer
	metrics            *storeMetrics
	slowQueryThreshold time.Duration
	logQueries         bool
}

func defaultObservability() *observability {
	return &observability{
		slowQueryThreshold: 200 * time.Millisecond,
	}
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger sets the logger used for failed and slow queries.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.obs.logger = logger
	}
}

// WithQueryLogging additionally logs the SQL text of every observed
// statement at debug level. Useful in dev, noisy in prod.
func WithQueryLogging(enabled bool) Option {
	return func(s *Store) {
		s.obs.logQueries = enabled
	}
}

// WithTracer sets the OpenTelemetry tracer used to wrap each store
// operation in a client span.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		s.obs.tracer = tracer
	}
}

// WithDefaultTracer uses the process-global OpenTelemetry tracer
// provider. Without an SDK installed this is a no-op tracer, so it is
// always safe to pass.
func WithDefaultTracer() Option {
	return func(s *Store) {
		s.obs.tracer = otel.Tracer(instrumentationName)
	}
}

// WithMeter sets the OpenTelemetry meter and creates the store's
// metric instruments from it.
func WithMeter(meter metric.Meter) Option {
	return func(s *Store) {
		s.obs.metrics = newStoreMetrics(meter)
	}
}

// WithDefaultMeter uses the process-global OpenTelemetry meter provider.
func WithDefaultMeter() Option {
	return func(s *Store) {
		s.obs.metrics = newStoreMetrics(otel.Meter(instrumentationName))
	}
}

// WithSlowQueryThreshold overrides the duration above which a
// successful query is logged as slow.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *Store) {
		s.obs.slowQueryThreshold = d
	}
}

// newStoreMetrics creates all metric instruments. Instrument creation
// errors are ignored the way the otel examples do: a nil instrument is
// never returned, only a no-op one.
func newStoreMetrics(meter metric.Meter) *storeMetrics {
	queryCount, _ := meter.Int64Counter("users.store.query.count",
		metric.WithDescription("Total number of store operations executed"),
		metric.WithUnit("{query}"),
	)

	queryDuration, _ := meter.Float64Histogram("users.store.query.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)

	queryErrors, _ := meter.Int64Counter("users.store.query.errors",
		metric.WithDescription("Total number of failed store operations"),
		metric.WithUnit("{error}"),
	)

	return &storeMetrics{
		queryCount:    queryCount,
		queryDuration: queryDuration,
		queryErrors:   queryErrors,
	}
}

// observe wraps a single store operation: it starts a client span (when
// tracing is configured) and returns a finish callback the caller must
// invoke with the operation's error once the statement has run. finish
// ends the span, records metrics, and logs failures and slow queries.
//
// Usage:
//
//	ctx, finish := s.observe(ctx, "CreateUser", query)
//	result, err := s.db.ExecContext(ctx, query, args...)
//	finish(err)
func (s *Store) observe(ctx context.Context, op, query string) (context.Context, func(error)) {
	obs := s.obs
	start := time.Now()

	var span trace.Span
	if obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", "sqlite"),
				attribute.String("db.statement", query),
			),
		)
	}

	return ctx, func(err error) {
		elapsed := time.Since(start)

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}

		if obs.metrics != nil {
			attrs := metric.WithAttributes(
				attribute.String("db.operation", op),
				attribute.String("db.system", "sqlite"),
			)
			obs.metrics.queryCount.Add(ctx, 1, attrs)
			obs.metrics.queryDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
			if err != nil {
				obs.metrics.queryErrors.Add(ctx, 1, attrs)
			}
		}

		if obs.logger == nil {
			return
		}

		attrs := []slog.Attr{
			slog.String("operation", op),
			slog.Duration("duration", elapsed),
		}
		if obs.logQueries {
			attrs = append(attrs, slog.String("query", query))
		}

		switch {
		case err != nil:
			obs.logger.LogAttrs(ctx, slog.LevelError, "store query failed",
				append(attrs, slog.String("error", err.Error()))...)
		case elapsed > obs.slowQueryThreshold:
			obs.logger.LogAttrs(ctx, slog.LevelWarn, "slow store query", attrs...)
		case obs.logQueries:
			obs.logger.LogAttrs(ctx, slog.LevelDebug, "store query", attrs...)
		}
	}
}
