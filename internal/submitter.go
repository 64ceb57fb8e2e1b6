package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/go-logr/logr"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgillich/xqueue-client/internal/logger"
	"github.com/pgillich/xqueue-client/internal/middleware/inner"
	"github.com/pgillich/xqueue-client/internal/model"
	"github.com/pgillich/xqueue-client/internal/tracing"
	"github.com/pgillich/xqueue-client/internal/xqueue"
)

var ErrMissingBody = errors.NewPlain("missing submission body")

type SubmitConfig struct {
	Command string

	Endpoint string
	Username string
	Password string
	Timeout  time.Duration

	Queue       string
	CallbackURL string
	Key         string
	KeySeed     string

	Body     string
	BodyFile string
	File     string

	Instance  string
	JaegerURL string
	OtlpURL   string
}

type Submitter struct {
	config SubmitConfig
	log    logr.Logger
	ctx    context.Context //nolint:containedctx // service lifetime
	out    io.Writer
}

func NewSubmitterService(ctx context.Context, cfg interface{}, log logr.Logger) model.Service {
	config, is := cfg.(*SubmitConfig)
	if !is {
		log.Error(logger.ErrInvalidConfig, "config type")
		panic(logger.ErrInvalidConfig)
	}
	out, is := ctx.Value(model.CtxKeyOutput).(io.Writer)
	if !is {
		out = os.Stdout
	}

	return &Submitter{
		config: *config,
		log:    log,
		ctx:    ctx,
		out:    out,
	}
}

// Run submits the body (config or the first argument) to the queue and
// prints the lms_key of the accepted submission.
func (s *Submitter) Run(args []string) error {
	body, err := s.body(args)
	if err != nil {
		return err
	}
	key := s.config.Key
	if key == "" {
		key = xqueue.MakeKey(s.config.KeySeed)
	}
	header := xqueue.MakeHeader(s.config.CallbackURL, key, s.config.Queue)

	var file *xqueue.File
	if s.config.File != "" {
		f, err := os.Open(s.config.File)
		if err != nil {
			return errors.WrapWithDetails(err, "open attachment", "file", s.config.File)
		}
		defer f.Close() //nolint:errcheck // read-only
		file = &xqueue.File{Name: filepath.Base(s.config.File), Reader: f}
	}

	exporter, err := tracing.NewExporter(s.config.OtlpURL, s.config.JaegerURL)
	if err != nil {
		return errors.Wrap(err, "trace exporter")
	}
	tp := tracing.InitTracer(exporter, sdktrace.AlwaysSample(), "submit", s.config.Instance, s.config.Command, s.log)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			s.log.Error(err, "tracer shutdown")
		}
	}()

	client, err := xqueue.NewClient(xqueue.Config{
		Endpoint: s.config.Endpoint,
		Username: s.config.Username,
		Password: s.config.Password,
		Timeout:  s.config.Timeout,
	}, xqueue.WithTracerProvider(tp))
	if err != nil {
		return err //nolint:wrapcheck // has details
	}

	ctx := logger.NewContext(s.ctx, s.log)
	call := submitChain(ctx, tp.Tracer("submit", trace.WithInstrumentationVersion(tracing.SemVersion())), s.config.Queue)(
		func(ctx context.Context) (interface{}, error) {
			return nil, client.Submit(ctx, header, body, file)
		})
	if _, err := call(ctx); err != nil {
		return errors.WrapIf(err, "submit")
	}
	if _, err := fmt.Fprintln(s.out, key); err != nil {
		return errors.Wrap(err, "print key")
	}

	return nil
}

func (s *Submitter) body(args []string) (string, error) {
	switch {
	case s.config.BodyFile != "":
		data, err := os.ReadFile(s.config.BodyFile)
		if err != nil {
			return "", errors.WrapWithDetails(err, "read body", "file", s.config.BodyFile)
		}

		return string(data), nil
	case s.config.Body != "":
		return s.config.Body, nil
	case len(args) > 0:
		return args[0], nil
	default:
		return "", ErrMissingBody
	}
}

func submitChain(ctx context.Context, tr trace.Tracer, queue string) inner.InternalMiddleware {
	return inner.InternalMiddlewareChain(
		inner.TryCatch(),
		inner.Span(tr, "submit command"),
		inner.Logger(map[string]string{"queue": queue}, 1, 0, xqueue.Outcome, xqueue.OutcomeRejected),
		inner.Metrics(ctx, "xqueue_client_submit", "Queue submissions", map[string]string{"queue": queue}, xqueue.Outcome),
	)
}
