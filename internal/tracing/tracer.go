package tracing

import (
	"context"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.11.0"

	"github.com/pgillich/xqueue-client/internal/buildinfo"
)

type ErrorHandler struct {
	mu  sync.Mutex
	log *logr.Logger
}

func (e *ErrorHandler) Handle(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.log != nil {
		e.log.Error(err, "OTEL ERROR")
	}
}

var errorHandler = &ErrorHandler{} //nolint:gochecknoglobals // otel global
var onceSetOtel sync.Once          //nolint:gochecknoglobals // local once
var onceBodySetOtel = func() {     //nolint:gochecknoglobals // local once
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(errorHandler)
	otel.SetLogger(*errorHandler.log)
}

func SetErrorHandlerLogger(log *logr.Logger) {
	errorHandler.mu.Lock()
	defer errorHandler.mu.Unlock()
	errorHandler.log = log
}

const (
	StateKeyClientCommand = "client_command"
	SpanKeyComponent      = "component"
	SpanKeyComponentValue = "xqueue-client"
)

// InitTracer builds a tracer provider and sets the global propagators once.
// A nil exporter gives a provider which records spans without exporting them.
func InitTracer(exporter sdktrace.SpanExporter, sampler sdktrace.Sampler, service string, instance string, command string, log logr.Logger) *sdktrace.TracerProvider {
	// semconv keys are defined in https://github.com/open-telemetry/opentelemetry-specification/tree/main/semantic_conventions/trace
	attrs := []attribute.KeyValue{
		semconv.ServiceNamespaceKey.String(SpanKeyComponentValue),
		semconv.ServiceNameKey.String(service),
		semconv.ServiceInstanceIDKey.String(instance),
		semconv.ServiceVersionKey.String(buildinfo.Version),
		attribute.Int("attrID", os.Getpid()),
	}
	if command != "" {
		attrs = append(attrs, attribute.String(StateKeyClientCommand, EncodeTracestateValue(command)))
	}
	providerOptions := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
	}
	if exporter != nil {
		providerOptions = append(providerOptions, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(providerOptions...)

	errorHandler.mu.Lock()
	if errorHandler.log == nil {
		errorHandler.log = &log
	}
	errorHandler.mu.Unlock()
	onceSetOtel.Do(onceBodySetOtel)

	return tp
}

// NewExporter picks the OTLP exporter if otlpURL is set, else Jaeger.
// Both URLs empty or "-" means no exporter.
func NewExporter(otlpURL string, jaegerURL string) (sdktrace.SpanExporter, error) {
	if otlpURL != "" && otlpURL != "-" {
		return OtlpProvider(otlpURL)
	}

	return JaegerProvider(jaegerURL)
}

func JaegerProvider(jUrl string) (sdktrace.SpanExporter, error) {
	if jUrl == "" || jUrl == "-" {
		return nil, nil
	}

	return jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(jUrl),
	))
}

func OtlpProvider(oUrl string) (sdktrace.SpanExporter, error) {
	if oUrl == "" || oUrl == "-" {
		return nil, nil
	}

	otlpUrl, err := url.ParseRequestURI(oUrl)
	if err != nil {
		return nil, err
	}

	return otlptracehttp.New(context.Background(), // otlptracehttp.client.Start does nothing in a HTTP client
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(otlpUrl.Host),
		otlptracehttp.WithURLPath(otlpUrl.Path),
	)
}

func NewBaggage(instance, command string) (baggage.Baggage, error) {
	return baggage.Parse(strings.Join([]string{ //nolint:gocritic // strings.Join is better
		"baggID=" + strconv.Itoa(os.Getpid()),
		"baggInstance=" + encodeBaggageValue(instance),
		"baggCommand=" + encodeBaggageValue(command),
	}, ","))
}

var invalidBaggageValueRe = regexp.MustCompile(`[^\x21\x23-\x2b\x2d-\x3a\x3c-\x5B\x5D-\x7e]`)

func encodeBaggageValue(value string) string {
	return invalidBaggageValueRe.ReplaceAllString(value, "_")
}

var invalidTracestateValueRe = regexp.MustCompile(`[^\x20-\x2b\x2d-\x3c\x3e-\x7e]`)

func EncodeTracestateValue(value string) string {
	return invalidTracestateValueRe.ReplaceAllString(strings.TrimSpace(value), "_")
}

func Version() string {
	if buildinfo.Version != "" {
		return buildinfo.Version
	}

	return "0.0.1"
}

// SemVersion is the semantic version to be supplied to tracer/meter creation.
func SemVersion() string {
	return "semver:" + Version()
}
