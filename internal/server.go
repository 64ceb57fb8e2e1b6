package internal

import (
	"context"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/go-logr/logr"
)

var ErrInvalidServerRunner = errors.NewPlain("invalid server runner")

const readHeaderTimeout = 10 * time.Second

// RunServer is the production model.ServerRunner.
func RunServer(h http.Handler, shutdown <-chan struct{}, addr string, log logr.Logger) {
	server := &http.Server{
		Handler:           h,
		Addr:              addr,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-shutdown
		if err := server.Shutdown(context.Background()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Server shutdown error")
		}
	}()

	log.Info("Server listen", "addr", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Error(err, "Server exit error")

		return
	}
	// ListenAndServe returns before in-flight requests are done.
	<-drained
	log.Info("Server exit")
}
