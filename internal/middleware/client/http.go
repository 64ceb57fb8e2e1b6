package client

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/pgillich/xqueue-client/internal/logger"
)

// Transport implements the http.RoundTripper interface and wraps
// outbound HTTP(S) requests with logs.
// The logger is taken from the request context.
type Transport struct {
	rt http.RoundTripper

	beginLevel int
	endLevel   int
}

// NewTransport wraps the provided http.RoundTripper with one that
// logs request and response at the given logr verbosity levels.
//
// If the provided http.RoundTripper is nil, http.DefaultTransport will be used
// as the base http.RoundTripper.
func NewTransport(base http.RoundTripper, beginLevel int, endLevel int) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &Transport{
		rt:         base,
		beginLevel: beginLevel,
		endLevel:   endLevel,
	}
}

// RoundTrip logs outgoing request and response.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	ctx, log := logger.FromContext(ctx,
		"outMethod", r.Method,
		"outUrl", r.URL.String(),
		"spanID", trace.SpanFromContext(ctx).SpanContext().SpanID().String(),
	)
	var res *http.Response
	var err error

	log.V(t.beginLevel).Info("OUT_REQ")
	beginTS := time.Now()
	defer func() {
		elapsedSec := time.Since(beginTS).Seconds()
		args := []interface{}{"outDuration", fmt.Sprintf("%.3f", elapsedSec)}
		if res != nil {
			args = append(args,
				"outStatusCode", res.StatusCode,
				"outContentLength", res.ContentLength,
			)
		}
		if err != nil {
			log.Error(err, "OUT_RESP", args...)

			return
		}
		log.V(t.endLevel).Info("OUT_RESP", args...)
	}()

	r = r.WithContext(ctx)
	res, err = t.rt.RoundTrip(r)

	return res, err //nolint:wrapcheck // should not be changed
}
