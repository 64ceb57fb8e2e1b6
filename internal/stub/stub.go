// Package stub is an in-process stand-in for an xqueue server.
//
// It speaks the same login/submit protocol as the real service, keeps
// every accepted submission in memory and is meant for local runs and tests.
package stub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgillich/xqueue-client/internal/logger"
	"github.com/pgillich/xqueue-client/internal/middleware/server"
	"github.com/pgillich/xqueue-client/internal/xqueue"
)

const (
	DefaultPrefix = "/xqueue"
	SessionCookie = "sessionid"

	maxMultipartMemory = 32 << 20
)

// Reply contents, as sent by xqueue.
const (
	MsgLoggedIn         = "Logged in"
	MsgBadCredentials   = "Incorrect login credentials"
	MsgLoginRequired    = "User not logged in"
	MsgInvalidFormat    = "Queue request has invalid format"
	MsgQueuedFormat     = "Queued submission. Queue length: %d"
	MsgQueueNotFoundFmt = "Queue '%s' not found"
	MsgStatusOKFormat   = "OK, %d submissions"
)

type Config struct {
	Username string
	Password string
	// Prefix is the path the queue is served under.
	Prefix string
	// Queues lists the accepted queue names. Empty accepts every name.
	Queues []string
}

// Submission is an accepted submit request.
type Submission struct {
	Header     xqueue.Header
	RawHeader  string
	Body       string
	Files      map[string][]byte
	Username   string
	ReceivedAt time.Time
}

type Queue struct {
	config Config

	mu          sync.Mutex
	sessions    map[string]string
	submissions []Submission
	logins      int
}

func New(config Config) *Queue {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}

	return &Queue{
		config:   config,
		sessions: map[string]string{},
	}
}

// Handler returns the chi router of the queue.
func (q *Queue) Handler(log logr.Logger, tr trace.Tracer, instance string) http.Handler {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(server.ChiLoggerBaseMiddleware(log))
	r.Use(chi_middleware.RequestLogger(&logger.ChiLogr{Logger: log}))
	r.Use(chi_middleware.Recoverer)
	r.Use(server.ChiTracerMiddleware(tr, instance))
	r.Use(server.ChiMetricMiddleware("xqueue_stub_requests", "Stub queue requests",
		map[string]string{"instance": instance}, log))

	r.Route(q.config.Prefix, func(r chi.Router) {
		r.Post("/"+xqueue.PathLogin, q.login)
		r.Post("/"+xqueue.PathSubmit, q.submit)
		r.Get("/status/", q.status)
	})

	return r
}

// Submissions returns a copy of the accepted submissions, oldest first.
func (q *Queue) Submissions() []Submission {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]Submission(nil), q.submissions...)
}

// Logins returns the number of login requests, accepted or not.
func (q *Queue) Logins() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.logins
}

func (q *Queue) login(w http.ResponseWriter, r *http.Request) {
	_, log := logger.FromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		writeReply(w, http.StatusBadRequest, xqueue.ReturnCodeError, MsgBadCredentials, log)

		return
	}
	username := r.PostForm.Get(xqueue.FieldUsername)
	password := r.PostForm.Get(xqueue.FieldPassword)

	q.mu.Lock()
	q.logins++
	if username == "" || username != q.config.Username || password != q.config.Password {
		q.mu.Unlock()
		log.Info("Login rejected", "username", username)
		writeReply(w, http.StatusOK, xqueue.ReturnCodeError, MsgBadCredentials, log)

		return
	}
	sessionID := uuid.NewString()
	q.sessions[sessionID] = username
	q.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
	})
	writeReply(w, http.StatusOK, xqueue.ReturnCodeOK, MsgLoggedIn, log)
}

func (q *Queue) submit(w http.ResponseWriter, r *http.Request) {
	_, log := logger.FromContext(r.Context())
	username, has := q.session(r)
	if !has {
		writeReply(w, http.StatusUnauthorized, xqueue.ReturnCodeError, MsgLoginRequired, log)

		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		log.Info("Invalid multipart form", "reason", err.Error())
		writeReply(w, http.StatusOK, xqueue.ReturnCodeError, MsgInvalidFormat, log)

		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files

	rawHeader := r.PostForm.Get(xqueue.FieldHeader)
	header, valid := parseHeader(rawHeader)
	if !valid {
		writeReply(w, http.StatusOK, xqueue.ReturnCodeError, MsgInvalidFormat, log)

		return
	}
	if !q.knownQueue(header.QueueName) {
		writeReply(w, http.StatusOK, xqueue.ReturnCodeError, fmt.Sprintf(MsgQueueNotFoundFmt, header.QueueName), log)

		return
	}
	files, err := readFiles(r)
	if err != nil {
		log.Error(err, "Unable to read file parts")
		writeReply(w, http.StatusOK, xqueue.ReturnCodeError, MsgInvalidFormat, log)

		return
	}

	q.mu.Lock()
	q.submissions = append(q.submissions, Submission{
		Header:     header,
		RawHeader:  rawHeader,
		Body:       r.PostForm.Get(xqueue.FieldBody),
		Files:      files,
		Username:   username,
		ReceivedAt: time.Now(),
	})
	queueLen := q.queueLen(header.QueueName)
	q.mu.Unlock()

	log.V(1).Info("Submission queued", "queue", header.QueueName, "queueLen", queueLen)
	writeReply(w, http.StatusOK, xqueue.ReturnCodeOK, fmt.Sprintf(MsgQueuedFormat, queueLen), log)
}

func (q *Queue) status(w http.ResponseWriter, r *http.Request) {
	_, log := logger.FromContext(r.Context())
	q.mu.Lock()
	count := len(q.submissions)
	q.mu.Unlock()

	writeReply(w, http.StatusOK, xqueue.ReturnCodeOK, fmt.Sprintf(MsgStatusOKFormat, count), log)
}

func (q *Queue) session(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	username, has := q.sessions[cookie.Value]

	return username, has
}

func (q *Queue) knownQueue(name string) bool {
	if len(q.config.Queues) == 0 {
		return true
	}
	for _, queue := range q.config.Queues {
		if queue == name {
			return true
		}
	}

	return false
}

// queueLen must be called with q.mu held.
func (q *Queue) queueLen(name string) int {
	n := 0
	for s := range q.submissions {
		if q.submissions[s].Header.QueueName == name {
			n++
		}
	}

	return n
}

// parseHeader accepts a JSON object carrying all three header fields as strings.
func parseHeader(raw string) (xqueue.Header, bool) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return xqueue.Header{}, false
	}
	values := map[string]string{}
	for _, key := range []string{"lms_callback_url", "lms_key", "queue_name"} {
		field, has := fields[key]
		if !has {
			return xqueue.Header{}, false
		}
		var value string
		if err := json.Unmarshal(field, &value); err != nil {
			return xqueue.Header{}, false
		}
		values[key] = value
	}

	return xqueue.Header{
		LMSCallbackURL: values["lms_callback_url"],
		LMSKey:         values["lms_key"],
		QueueName:      values["queue_name"],
	}, true
}

func readFiles(r *http.Request) (map[string][]byte, error) {
	files := map[string][]byte{}
	for name, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, err //nolint:wrapcheck // logged by caller
			}
			data, err := io.ReadAll(f)
			f.Close() //nolint:errcheck,gosec // read-only
			if err != nil {
				return nil, err //nolint:wrapcheck // logged by caller
			}
			files[name] = data
		}
	}

	return files, nil
}

func writeReply(w http.ResponseWriter, statusCode int, returnCode int, content string, log logr.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(xqueue.Reply{ReturnCode: returnCode, Content: content}); err != nil {
		log.Error(err, "unable to write response")
	}
}
