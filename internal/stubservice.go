package internal

import (
	"context"

	"emperror.dev/errors"
	"github.com/go-logr/logr"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgillich/xqueue-client/internal/logger"
	"github.com/pgillich/xqueue-client/internal/model"
	"github.com/pgillich/xqueue-client/internal/stub"
	"github.com/pgillich/xqueue-client/internal/tracing"
)

type StubConfig struct {
	Command string

	ListenAddr string
	Username   string
	Password   string
	Prefix     string
	Queues     []string

	Instance  string
	JaegerURL string
	OtlpURL   string
}

type StubServer struct {
	config       StubConfig
	serverRunner model.ServerRunner
	log          logr.Logger
	shutdown     <-chan struct{}
}

func NewStubService(ctx context.Context, cfg interface{}, log logr.Logger) model.Service {
	if config, is := cfg.(*StubConfig); !is {
		log.Error(logger.ErrInvalidConfig, "config type")
		panic(logger.ErrInvalidConfig)
	} else if serverRunner, is := ctx.Value(model.CtxKeyServerRunner).(model.ServerRunner); !is {
		log.Error(ErrInvalidServerRunner, "server runner config")
		panic(ErrInvalidServerRunner)
	} else {
		return &StubServer{
			config:       *config,
			serverRunner: serverRunner,
			log:          log,
			shutdown:     ctx.Done(),
		}
	}
}

func (s *StubServer) Run(args []string) error {
	s.log = s.log.WithValues("args", args)
	s.log.Info("Stub queue start", "prefix", s.config.Prefix, "queues", s.config.Queues)

	exporter, err := tracing.NewExporter(s.config.OtlpURL, s.config.JaegerURL)
	if err != nil {
		return errors.Wrap(err, "trace exporter")
	}
	tp := tracing.InitTracer(exporter, sdktrace.AlwaysSample(), "stub", s.config.Instance, s.config.Command, s.log)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			s.log.Error(err, "tracer shutdown")
		}
	}()

	queue := stub.New(stub.Config{
		Username: s.config.Username,
		Password: s.config.Password,
		Prefix:   s.config.Prefix,
		Queues:   s.config.Queues,
	})
	tr := tp.Tracer("stub", trace.WithInstrumentationVersion(tracing.SemVersion()))
	s.serverRunner(queue.Handler(s.log, tr, s.config.Instance), s.shutdown, s.config.ListenAddr, s.log)
	s.log.Info("Stub queue exit")

	return nil
}
