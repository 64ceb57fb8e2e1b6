// Call middlewares
package inner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"emperror.dev/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	metric_api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgillich/xqueue-client/internal/logger"
	"github.com/pgillich/xqueue-client/internal/middleware"
)

// Span is a middleware to start/end a new span, using from context.
// Sets "traceID" and "spanID" log values.
func Span(tr trace.Tracer, spanName string) InternalMiddleware {
	return func(next InternalMiddlewareFn) InternalMiddlewareFn {
		return func(ctx context.Context) (interface{}, error) {
			ctx, spanChild := tr.Start(ctx, spanName,
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer spanChild.End()
			ctx, _ = logger.FromContext(ctx,
				"traceID", spanChild.SpanContext().TraceID().String(),
				"spanID", spanChild.SpanContext().SpanID().String(),
			)

			retVal, err := next(ctx)
			if err != nil {
				spanChild.SetStatus(codes.Error, err.Error())
			}

			return retVal, err
		}
	}
}

// TryCatch is a middleware for catching Go panic and propagating it as an error
func TryCatch() InternalMiddleware {
	return func(next InternalMiddlewareFn) InternalMiddlewareFn {
		return func(ctx context.Context) (interface{}, error) {
			var retVal interface{}
			var err error
			if errTryCatch := tryCatch(func() {
				retVal, err = next(ctx)
			})(); errTryCatch != nil {
				err = errTryCatch
			}

			return retVal, err
		}
	}
}

// ErrPanic is an error for captured panic
var ErrPanic = errors.NewPlain("captured panic")

// tryCatch captures a Go panic and returns as an error
func tryCatch(f func()) func() error {
	return func() (err error) {
		defer func() {
			if panicInfo := recover(); panicInfo != nil {
				err = fmt.Errorf("%w: %v, %s", ErrPanic, panicInfo, string(debug.Stack()))

				return
			}
		}()

		f() // calling the decorated function

		return err
	}
}

// Logger is a middleware for logging begin and end messages.
// A new logger with values is added to the context.
// Errors are logged as errors, except the ones errFormatter maps to
// one of quietOutcomes; those are logged at endLevel.
func Logger(values map[string]string, beginLevel int, endLevel int,
	errFormatter middleware.ErrFormatter, quietOutcomes ...string,
) InternalMiddleware {
	logValues := make([]interface{}, 0, len(values)*2)
	for k, v := range values {
		logValues = append(logValues, k, v)
	}
	quiet := map[string]bool{}
	for _, outcome := range quietOutcomes {
		quiet[outcome] = true
	}

	return func(next InternalMiddlewareFn) InternalMiddlewareFn {
		return func(ctx context.Context) (interface{}, error) {
			ctx, log := logger.FromContext(ctx, logValues...)
			log.V(beginLevel).Info("CALL_BEGIN")
			beginTS := time.Now()

			retVal, err := next(ctx)

			elapsedSec := time.Since(beginTS).Seconds()
			args := []interface{}{"duration", fmt.Sprintf("%.3f", elapsedSec)}
			outcome := ""
			if errFormatter != nil {
				outcome = errFormatter(err)
				args = append(args, logger.KeyOutcome, outcome)
			}
			if err != nil && !quiet[outcome] {
				log.Error(err, "CALL_END", args...)
			} else {
				if err != nil {
					args = append(args, "reason", err.Error())
				}
				log.V(endLevel).Info("CALL_END", args...)
			}

			return retVal, err
		}
	}
}

/*
Metrics is a middleware to make count and duration report

	Prometheus-specific implementation:
	The "_total" suffix is appended to the counter name, defined in "counterSuffix", see:
	https://github.com/open-telemetry/opentelemetry-go/blob/main/exporters/prometheus/exporter.go#L100
	The unit "s" is appended as "_seconds" to the metric name (injected before the "_total" suffix),
	defined in "unitSuffixes", see
	https://github.com/open-telemetry/opentelemetry-go/blob/main/exporters/prometheus/exporter.go#L343
*/
func Metrics(ctx context.Context, name string,
	description string, attributes map[string]string, errFormatter middleware.ErrFormatter,
) InternalMiddleware {
	_, log := logger.FromContext(ctx)
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

	return func(next InternalMiddlewareFn) InternalMiddlewareFn {
		return func(ctx context.Context) (interface{}, error) {
			beginTS := time.Now()

			retVal, err := next(ctx)

			elapsedSec := time.Since(beginTS).Seconds()
			opt := metric_api.WithAttributes(outcomeAttributes(baseAttrs, errFormatter, err)...)
			attempted.Add(ctx, 1, opt)
			durationSum.Add(ctx, elapsedSec, opt)

			return retVal, err
		}
	}
}

// outcomeAttributes copies base and appends the outcome label of err.
func outcomeAttributes(base []attribute.KeyValue, errFormatter middleware.ErrFormatter, err error) []attribute.KeyValue {
	outcome := ""
	if errFormatter != nil {
		outcome = errFormatter(err)
	}
	attrs := make([]attribute.KeyValue, len(base), len(base)+1)
	copy(attrs, base)

	return append(attrs, attribute.Key(middleware.MetrAttrOutcome).String(outcome))
}
