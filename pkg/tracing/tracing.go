// Package tracing exports OpenTelemetry spans for report renders, email sends
// and database calls to a Jaeger collector. Without a collector every span is
// a no-op.
package tracing

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds tracing configuration
type Config struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	JaegerEndpoint string  `json:"jaeger_endpoint"`
	SamplingRate   float64 `json:"sampling_rate"`
	Enabled        bool    `json:"enabled"`
}

// TracingService starts the spans of one process
type TracingService struct {
	tracer   oteltrace.Tracer
	enabled  bool
	provider *trace.TracerProvider
}

// Noop returns a service whose spans are never exported
func Noop() *TracingService {
	return &TracingService{tracer: noop.NewTracerProvider().Tracer("vanguard")}
}

// NewTracingService installs a Jaeger-backed provider as the global one. A nil
// or disabled config yields Noop.
func NewTracingService(config *Config) (*TracingService, error) {
	if config == nil || !config.Enabled {
		return Noop(), nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(config.SamplingRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &TracingService{tracer: tp.Tracer(config.ServiceName), enabled: true, provider: tp}, nil
}

// Shutdown flushes pending spans
func (ts *TracingService) Shutdown(ctx context.Context) error {
	if ts.provider == nil {
		return nil
	}
	return ts.provider.Shutdown(ctx)
}

func (ts *TracingService) start(ctx context.Context, name string, kind oteltrace.SpanKind, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return ts.tracer.Start(ctx, name, oteltrace.WithSpanKind(kind), oteltrace.WithAttributes(attrs...))
}

// StartReportSpan starts a span for one step of a report (render, print)
func (ts *TracingService) StartReportSpan(ctx context.Context, operation, scope, format string) (context.Context, oteltrace.Span) {
	return ts.start(ctx, "report."+operation, oteltrace.SpanKindInternal,
		attribute.String("report.scope", scope),
		attribute.String("report.format", format),
	)
}

// StartEmailSpan starts a span for one SMTP delivery attempt sequence
func (ts *TracingService) StartEmailSpan(ctx context.Context, host string, port int, format string) (context.Context, oteltrace.Span) {
	return ts.start(ctx, "email.send", oteltrace.SpanKindClient,
		semconv.NetPeerNameKey.String(host),
		semconv.NetPeerPortKey.Int(port),
		attribute.String("email.format", format),
	)
}

// StartDatabaseSpan starts a span for a repository call
func (ts *TracingService) StartDatabaseSpan(ctx context.Context, driver, operation, table string) (context.Context, oteltrace.Span) {
	system := semconv.DBSystemSqlite
	if driver == "postgres" {
		system = semconv.DBSystemPostgreSQL
	}
	return ts.start(ctx, "db."+operation, oteltrace.SpanKindClient,
		system,
		semconv.DBOperationKey.String(operation),
		semconv.DBSQLTableKey.String(table),
	)
}

// End closes span with an error status when err is non-nil
func (ts *TracingService) End(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TracingMiddleware opens a server span per API request, continuing any
// traceparent the caller sent
func (ts *TracingService) TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ts.enabled {
			c.Next()
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := ts.start(ctx, c.Request.Method+" "+c.FullPath(), oteltrace.SpanKindServer,
			semconv.HTTPMethodKey.String(c.Request.Method),
			semconv.HTTPRouteKey.String(c.FullPath()),
			semconv.HTTPClientIPKey.String(c.ClientIP()),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last().Err
		} else if status >= 500 {
			err = fmt.Errorf("HTTP %d", status)
		}
		ts.End(span, err)
	}
}
