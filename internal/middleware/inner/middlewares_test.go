package inner

import (
	"context"
	"testing"

	"emperror.dev/errors"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pgillich/xqueue-client/internal/logger"
	"github.com/pgillich/xqueue-client/internal/middleware"
)

type InnerTestSuite struct {
	suite.Suite
	ctx context.Context //nolint:containedctx // test
}

func TestInnerTestSuite(t *testing.T) {
	suite.Run(t, new(InnerTestSuite))
}

func (s *InnerTestSuite) SetupTest() {
	s.ctx = logger.NewContext(context.Background(), logger.GetLogger(s.T().Name()))
}

func recordOrder(name string, order *[]string) InternalMiddleware {
	return func(next InternalMiddlewareFn) InternalMiddlewareFn {
		return func(ctx context.Context) (interface{}, error) {
			*order = append(*order, name)

			return next(ctx)
		}
	}
}

func (s *InnerTestSuite) TestChainOrder() {
	order := []string{}
	fn := InternalMiddlewareChain(
		recordOrder("first", &order),
		recordOrder("second", &order),
		recordOrder("third", &order),
	)(func(ctx context.Context) (interface{}, error) {
		order = append(order, "call")

		return 42, nil
	})

	retVal, err := fn(s.ctx)

	s.NoError(err)
	s.Equal(42, retVal)
	s.Equal([]string{"first", "second", "third", "call"}, order)
}

func (s *InnerTestSuite) TestTryCatch() {
	fn := InternalMiddlewareChain(TryCatch())(func(ctx context.Context) (interface{}, error) {
		panic("boom")
	})

	_, err := fn(s.ctx)

	s.True(errors.Is(err, ErrPanic))
	s.Contains(err.Error(), "boom")
}

func (s *InnerTestSuite) TestSpanAndLogger() {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background()) //nolint:errcheck // test
	errRejected := errors.NewPlain("rejected")
	formatter := func(err error) string {
		if errors.Is(err, errRejected) {
			return "rejected"
		}

		return "other"
	}

	fn := InternalMiddlewareChain(
		Span(tp.Tracer("test"), "test call"),
		Logger(map[string]string{"queue": "q"}, 1, 0, formatter, "rejected"),
		Metrics(s.ctx, "inner_test_calls", "Inner test calls", map[string]string{"test": "true"}, formatter),
	)(func(ctx context.Context) (interface{}, error) {
		return nil, errors.WrapIf(errRejected, "call")
	})

	_, err := fn(s.ctx)

	s.True(errors.Is(err, errRejected))
	spans := recorder.Ended()
	s.Require().Len(spans, 1)
	s.Equal("test call", spans[0].Name())
}

func (s *InnerTestSuite) TestOutcomeAttributes() {
	base := []attribute.KeyValue{attribute.String("queue", "q")}
	formatter := func(err error) string {
		if err == nil {
			return "ok"
		}

		return "failed"
	}

	attrs := outcomeAttributes(base, formatter, errors.NewPlain("boom"))

	s.Equal([]attribute.KeyValue{
		attribute.String("queue", "q"),
		attribute.String(middleware.MetrAttrOutcome, "failed"),
	}, attrs)
	s.Len(base, 1)
	s.Equal(attribute.String(middleware.MetrAttrOutcome, "ok"), outcomeAttributes(base, formatter, nil)[1])
	s.Equal(attribute.String(middleware.MetrAttrOutcome, ""), outcomeAttributes(nil, nil, nil)[0])
}
