package tracing

import (
	"context"
	"fmt"

	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/go-logr/stdr"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerIdentifier = "github.com/DMarby/picsum-editor/internal/tracing"

// Tracer starts spans for a service and owns the provider exporting them
type Tracer struct {
	ServiceName string
	Log         *logger.Logger

	trace.TracerProvider

	ShutdownFunc   func(context.Context) error
	TracerInstance trace.Tracer
}

// New returns a tracer exporting over otlp grpc, configured through the standard OTEL_EXPORTER_OTLP_* environment.
// A fraction of root spans given by sampleRatio is recorded, child spans follow their parent.
func New(ctx context.Context, log *logger.Logger, serviceName string, sampleRatio float64) (*Tracer, error) {
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create opentelemetry grpc exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(serviceName))),
	)

	// Override the global otel logging
	otel.SetLogger(stdr.New(zap.NewStdLog(log.Desugar())))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Error(err)
	}))

	return &Tracer{
		serviceName,
		log,
		tp,
		tp.Shutdown,
		tp.Tracer(tracerIdentifier),
	}, nil
}

// Noop returns a tracer that records nothing, for commands that do not export traces
func Noop(log *logger.Logger, serviceName string) *Tracer {
	tp := trace.NewNoopTracerProvider()
	return &Tracer{
		ServiceName:    serviceName,
		Log:            log,
		TracerProvider: tp,
		ShutdownFunc: func(context.Context) error {
			return nil
		},
		TracerInstance: tp.Tracer(tracerIdentifier),
	}
}

func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.TracerInstance.Start(ctx, spanName, opts...)
}

func (t *Tracer) Shutdown(ctx context.Context) {
	if err := t.ShutdownFunc(ctx); err != nil {
		t.Log.Errorf("failed to shutdown tracer: %s", err)
	}
}

// Fail marks a span as failed with err, a nil err leaves the span untouched.
// It returns err so it can wrap a return statement.
func Fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

// TraceInfo returns the trace and span ids of the span in ctx
func TraceInfo(ctx context.Context) (string, string) {
	traceID := trace.SpanContextFromContext(ctx).TraceID().String()
	spanID := trace.SpanContextFromContext(ctx).SpanID().String()
	return traceID, spanID
}
