package logger

import (
	"fmt"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
)

var _ middleware.LogFormatter = (*ChiLogr)(nil)

// ChiLogr is a chi request log formatter backed by logr.
// Usage: r.Use(middleware.RequestLogger(&logger.ChiLogr{Logger: log}))
type ChiLogr struct {
	logr.Logger
}

type ChiLogrEntry struct {
	logr.Logger
}

func (e *ChiLogrEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	if extra == nil {
		extra = "IN_HTTP_RESP"
	}
	e.WithValues(
		"status", status,
		"bytes", bytes,
		"elapsed", elapsed,
	).V(1).Info(fmt.Sprintf("%+v", extra))
}

func (e *ChiLogrEntry) Panic(v interface{}, stack []byte) {
	e.WithValues(
		"panic", v,
		"stack", string(stack),
	).Error(errors.NewPlain("chi panic"), "PANIC")
}

func (l *ChiLogr) NewLogEntry(r *http.Request) middleware.LogEntry {
	reqID := middleware.GetReqID(r.Context())

	return &ChiLogrEntry{l.WithValues(
		"reqID", reqID,
		"inMethod", r.Method,
		"inUrl", r.URL.String(),
		"remoteAddr", r.RemoteAddr,
	)}
}
