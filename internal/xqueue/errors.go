package xqueue

import (
	"fmt"
	"unicode/utf8"

	"emperror.dev/errors"
)

// Phase names the step of a submission that failed.
type Phase string

const (
	PhaseLogin  Phase = "login"
	PhaseSubmit Phase = "submit"
)

var (
	// ErrConnection matches every ConnectionError.
	ErrConnection = errors.NewPlain("cannot connect to queue")
	// ErrRejected matches every RejectionError.
	ErrRejected = errors.NewPlain("queue rejected request")
	// ErrMalformedReply matches every MalformedReplyError.
	ErrMalformedReply = errors.NewPlain("malformed queue reply")
)

// ConnectionError is a transport failure reaching the queue.
type ConnectionError struct {
	Endpoint string
	Phase    Phase
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrConnection, e.Phase, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection //nolint:errorlint // sentinel identity
}

// RejectionError is a reply with a non-zero return code.
type RejectionError struct {
	Phase      Phase
	ReturnCode int
	Content    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrRejected, e.Phase, e.Content)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected //nolint:errorlint // sentinel identity
}

// MalformedReplyError is a reply that is not JSON or lacks a field.
// StatusCode is 0 when the reply did not come from an HTTP response.
type MalformedReplyError struct {
	Phase      Phase
	StatusCode int
	Raw        string
	Err        error
}

const maxRawLen = 256

func (e *MalformedReplyError) Error() string {
	msg := fmt.Sprintf("%s: %v", ErrMalformedReply, e.Err)
	if e.Phase != "" {
		msg = fmt.Sprintf("%s: %s: %v", ErrMalformedReply, e.Phase, e.Err)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	return msg
}

func (e *MalformedReplyError) Unwrap() error {
	return e.Err
}

func (e *MalformedReplyError) Is(target error) bool {
	return target == ErrMalformedReply //nolint:errorlint // sentinel identity
}

// truncate cuts raw to at most maxRawLen bytes on a rune boundary.
func truncate(raw string) string {
	if len(raw) <= maxRawLen {
		return raw
	}
	cut := maxRawLen
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}

	return raw[:cut] + "..."
}

// PhaseOf returns the failed phase of a Submit error, or "" if unknown.
func PhaseOf(err error) Phase {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Phase
	}
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Phase
	}
	var malformed *MalformedReplyError
	if errors.As(err, &malformed) {
		return malformed.Phase
	}

	return ""
}

// Outcome values, used as log values and metric attributes.
const (
	OutcomeOK         = "ok"
	OutcomeConnection = "connection"
	OutcomeRejected   = "rejected"
	OutcomeMalformed  = "malformed"
	OutcomeOther      = "other"
)

// Outcome classifies the result of Submit.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrConnection):
		return OutcomeConnection
	case errors.Is(err, ErrRejected):
		return OutcomeRejected
	case errors.Is(err, ErrMalformedReply):
		return OutcomeMalformed
	default:
		return OutcomeOther
	}
}
