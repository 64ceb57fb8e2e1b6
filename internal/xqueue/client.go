package xqueue

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgillich/xqueue-client/internal/buildinfo"
	"github.com/pgillich/xqueue-client/internal/logger"
	"github.com/pgillich/xqueue-client/internal/middleware/client"
	"github.com/pgillich/xqueue-client/internal/tracing"
)

const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldHeader   = "xqueue_header"
	FieldBody     = "xqueue_body"

	PathLogin  = "login/"
	PathSubmit = "submit/"

	tracerName   = "github.com/pgillich/xqueue-client/internal/xqueue"
	maxReplySize = 1 << 20
)

var ErrInvalidEndpoint = errors.NewPlain("invalid queue endpoint")

// Config is the read-only client configuration.
type Config struct {
	// Endpoint is the queue base URL, for example http://xqueue.example.org/xqueue
	Endpoint string
	Username string
	Password string
	// Timeout limits each HTTP call. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// File is attached to a submission as a form file named Name.
type File struct {
	Name   string
	Reader io.Reader
}

type Client struct {
	config    Config
	base      http.RoundTripper
	transport http.RoundTripper
	tp        trace.TracerProvider
	tracer    trace.Tracer
}

type Option func(*Client)

// WithTransport replaces http.DefaultTransport as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tp = tp
	}
}

func NewClient(config Config, opts ...Option) (*Client, error) {
	endpoint, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, errors.WrapWithDetails(ErrInvalidEndpoint, err.Error(), "endpoint", config.Endpoint)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, errors.WithDetails(ErrInvalidEndpoint, "endpoint", config.Endpoint)
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")

	c := &Client{
		config: config,
		base:   http.DefaultTransport,
		tp:     otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracer = c.tp.Tracer(tracerName, trace.WithInstrumentationVersion(tracing.SemVersion()))
	c.transport = otelhttp.NewTransport(
		client.NewTransport(c.base, 1, 1),
		otelhttp.WithTracerProvider(c.tp),
	)

	return c, nil
}

// Endpoint returns the normalized queue base URL.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// Submit logs in and submits header, body and the optional file in one
// session. It returns nil only if both steps were accepted.
func (c *Client) Submit(ctx context.Context, header string, body string, file *File) error {
	ctx, span := c.tracer.Start(ctx, "xqueue submit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("xqueue.endpoint", c.config.Endpoint)),
	)
	defer span.End()
	ctx, log := logger.FromContext(ctx, "endpoint", c.config.Endpoint)

	err := c.submit(ctx, header, body, file)

	outcome := Outcome(err)
	span.SetAttributes(attribute.String("xqueue.outcome", outcome))
	switch outcome {
	case OutcomeOK:
		log.V(1).Info("Submission queued")
	case OutcomeRejected:
		log.Info("Submission rejected", logger.KeyOutcome, outcome, logger.KeyPhase, PhaseOf(err), "reason", err.Error())
	default:
		log.Error(err, "Submission failed", logger.KeyOutcome, outcome, logger.KeyPhase, PhaseOf(err))
	}
	if err != nil {
		span.SetAttributes(attribute.String("xqueue.phase", string(PhaseOf(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}

	return err
}

func (c *Client) submit(ctx context.Context, header string, body string, file *File) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return errors.Wrap(err, "cookie jar")
	}
	session := &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   c.config.Timeout,
	}

	if err := c.login(ctx, session); err != nil {
		return err
	}

	return c.send(ctx, session, header, body, file)
}

func (c *Client) login(ctx context.Context, session *http.Client) error {
	form := url.Values{}
	form.Set(FieldUsername, c.config.Username)
	form.Set(FieldPassword, c.config.Password)

	req, err := c.newRequest(ctx, PathLogin, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.exchange(session, PhaseLogin, req)
}

func (c *Client) send(ctx context.Context, session *http.Client, header string, body string, file *File) error {
	payload := &bytes.Buffer{}
	mw := multipart.NewWriter(payload)
	if err := mw.WriteField(FieldHeader, header); err != nil {
		return errors.Wrap(err, "multipart header")
	}
	if err := mw.WriteField(FieldBody, body); err != nil {
		return errors.Wrap(err, "multipart body")
	}
	if file != nil {
		part, err := mw.CreateFormFile(file.Name, filepath.Base(file.Name))
		if err != nil {
			return errors.Wrap(err, "multipart file")
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return errors.WrapWithDetails(err, "read attachment", "file", file.Name)
		}
	}
	if err := mw.Close(); err != nil {
		return errors.Wrap(err, "multipart close")
	}

	req, err := c.newRequest(ctx, PathSubmit, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.exchange(session, PhaseSubmit, req)
}

func (c *Client) newRequest(ctx context.Context, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+"/"+path, body)
	if err != nil {
		return nil, errors.WrapWithDetails(err, "new request", "path", path)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// exchange sends req and interprets the reply.
func (c *Client) exchange(session *http.Client, phase Phase, req *http.Request) error {
	resp, err := session.Do(req)
	if err != nil {
		return &ConnectionError{Endpoint: c.config.Endpoint, Phase: phase, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return &ConnectionError{Endpoint: c.config.Endpoint, Phase: phase, Err: err}
	}

	reply, err := ParseReply(string(data))
	if err != nil {
		var malformed *MalformedReplyError
		if errors.As(err, &malformed) {
			malformed.Phase = phase
			malformed.StatusCode = resp.StatusCode
		}

		return err
	}
	if !reply.OK() {
		return &RejectionError{Phase: phase, ReturnCode: reply.ReturnCode, Content: reply.Content}
	}

	return nil
}
