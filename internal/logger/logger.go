package logger

import (
	"context"
	"sync"

	"emperror.dev/errors"
	"github.com/bombsimon/logrusr/v3"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
)

const (
	KeyCmd     = "command"
	KeyOutcome = "outcome"
	KeyPhase   = "phase"
)

var ErrInvalidConfig = errors.NewPlain("invalid config")

var (
	loggers   = map[string]logr.Logger{}    //nolint:gochecknoglobals // simple logging
	backends  = map[string]*logrus.Logger{} //nolint:gochecknoglobals // simple logging
	loggersMu sync.Mutex                    //nolint:gochecknoglobals // simple logging
	level     = logrus.InfoLevel            //nolint:gochecknoglobals // simple logging
)

// SetLevel sets the logrus level of existing and future loggers.
// Unknown level names fall back to info.
func SetLevel(name string) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	level = lvl
	for _, lr := range backends {
		lr.SetLevel(lvl)
	}
}

func GetLogger(app string) logr.Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, has := loggers[app]; has {
		return logger
	}
	lr := logrus.New()
	lr.Level = level
	lr.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	backends[app] = lr
	loggers[app] = logrusr.New(lr).WithName(app)

	return loggers[app]
}

// NewContext stores log in ctx.
func NewContext(ctx context.Context, log logr.Logger) context.Context {
	return logr.NewContext(ctx, log)
}

// FromContext returns the logger of ctx (discard, if missing) extended with
// keysAndValues, and a context carrying the extended logger.
func FromContext(ctx context.Context, keysAndValues ...interface{}) (context.Context, logr.Logger) {
	log := logr.FromContextOrDiscard(ctx)
	if len(keysAndValues) == 0 {
		return ctx, log
	}
	log = log.WithValues(keysAndValues...)

	return logr.NewContext(ctx, log), log
}
