package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	metric_api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.11.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgillich/xqueue-client/internal/logger"
	"github.com/pgillich/xqueue-client/internal/middleware"
	"github.com/pgillich/xqueue-client/internal/tracing"
)

// ChiLoggerBaseMiddleware puts log, extended with the request method and URL,
// into the request context.
func ChiLoggerBaseMiddleware(log logr.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.WithValues(
				"inMethod", r.Method,
				"inUrl", r.URL.String(),
			)
			ctx := logger.NewContext(r.Context(), reqLog)

			r = r.WithContext(ctx)
			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}

// ChiTracerMiddleware continues the trace of the caller (or starts a new one)
// and opens a server span for the request.
func ChiTracerMiddleware(tr trace.Tracer, instance string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx, log := logger.FromContext(r.Context())
			routePath := getRoutePath(ctx, r)

			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))
			span := trace.SpanFromContext(ctx)
			clientCommand := ""
			if span.SpanContext().IsValid() {
				log.V(1).Info("SPAN_IN",
					"bag", baggage.FromContext(ctx).String(),
					"traceID", span.SpanContext().TraceID().String(),
					"spanID", span.SpanContext().SpanID().String(),
				)
				clientCommand = span.SpanContext().TraceState().Get(tracing.StateKeyClientCommand)
			} else {
				command := r.Method + " " + r.URL.String()
				bag, err := tracing.NewBaggage(instance, command)
				if err != nil {
					log.Error(err, "unable to set command in baggage")
				}
				ctx = baggage.ContextWithBaggage(ctx, bag)
				log.V(1).Info("SPAN_NEW", "bag", bag.String())
			}

			spanKind := trace.SpanKindServer
			ctx, span = tr.Start(ctx, "IN HTTP "+r.Method+" "+routePath,
				trace.WithAttributes(semconv.NetAttributesFromHTTPRequest("tcp", r)...),
				trace.WithAttributes(semconv.HTTPServerAttributesFromHTTPRequest(instance, routePath, r)...),
				trace.WithSpanKind(spanKind),
				trace.WithAttributes(
					attribute.String(tracing.StateKeyClientCommand, clientCommand),
					attribute.String(tracing.SpanKeyComponent, tracing.SpanKeyComponentValue),
				),
			)
			defer span.End()
			ctx, log = logger.FromContext(ctx,
				"traceID", span.SpanContext().TraceID().String(),
				"spanID", span.SpanContext().SpanID().String(),
			)
			log.V(1).Info("SPAN_START", "spanKind", spanKind.String())

			r = r.WithContext(ctx)
			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}

func ChiMetricMiddleware(name string, description string, attributes map[string]string, log logr.Logger,
) func(next http.Handler) http.Handler {
	middleware.GetMeter(log)
	baseAttrs := make([]attribute.KeyValue, 0, len(attributes))
	for aKey, aVal := range attributes {
		baseAttrs = append(baseAttrs, attribute.Key(aKey).String(aVal))
	}
	attempted, err := middleware.Int64CounterGetInstrument(name, metric_api.WithDescription(description))
	if err != nil {
		log.Error(err, "unable to instantiate counter", "metricName", name)
		panic(err)
	}
	durationSum, err := middleware.Float64CounterGetInstrument(name+"_duration", metric_api.WithDescription(description+", duration sum"), metric_api.WithUnit("s"))
	if err != nil {
		log.Error(err, "unable to instantiate time counter", "metricName", name)
		panic(err)
	}

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			lrw := NewLoggingResponseWriter(w)

			beginTS := time.Now()

			next.ServeHTTP(lrw, r)

			elapsedSec := time.Since(beginTS).Seconds()
			attrs := make([]attribute.KeyValue, len(baseAttrs), len(baseAttrs)+5)
			copy(attrs, baseAttrs)
			attrs = append(attrs,
				attribute.Key(middleware.MetrAttrMethod).String(r.Method),
				attribute.Key(middleware.MetrAttrHost).String(middleware.GetHost(r)),
				attribute.Key(middleware.MetrAttrPath).String(r.URL.Path),
				attribute.Key(middleware.MetrAttrPathPattern).String(getRoutePath(ctx, r)),
				attribute.Key(middleware.MetrAttrStatus).Int(lrw.statusCode),
			)
			opt := metric_api.WithAttributes(attrs...)
			attempted.Add(ctx, 1, opt)
			durationSum.Add(ctx, elapsedSec, opt)
		}

		return http.HandlerFunc(fn)
	}
}

func getRoutePath(ctx context.Context, r *http.Request) string {
	routePath := ""
	if rctx := chi.RouteContext(ctx); rctx != nil {
		routePath = rctx.RoutePattern()
	}
	if routePath == "" {
		if r.URL.RawPath != "" {
			routePath = r.URL.RawPath
		} else {
			routePath = r.URL.Path
		}
	}

	return routePath
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func NewLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{w, http.StatusOK}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
