package xqueue

import (
	"encoding/json"

	"emperror.dev/errors"
)

const (
	ReturnCodeOK    = 0
	ReturnCodeError = 1
)

var (
	errMissingReturnCode = errors.NewPlain("missing return_code")
	errMissingContent    = errors.NewPlain("missing content")
)

// Reply is the acknowledgement the queue sends for every request.
type Reply struct {
	ReturnCode int    `json:"return_code"`
	Content    string `json:"content"`
}

// OK reports whether the queue accepted the request.
func (r Reply) OK() bool {
	return r.ReturnCode == ReturnCodeOK
}

type rawReply struct {
	ReturnCode *int    `json:"return_code"`
	Content    *string `json:"content"`
}

// ParseReply decodes a queue reply. Both fields are required.
func ParseReply(raw string) (Reply, error) {
	var rr rawReply
	if err := json.Unmarshal([]byte(raw), &rr); err != nil {
		return Reply{}, &MalformedReplyError{Raw: truncate(raw), Err: err}
	}
	if rr.ReturnCode == nil {
		return Reply{}, &MalformedReplyError{Raw: truncate(raw), Err: errMissingReturnCode}
	}
	if rr.Content == nil {
		return Reply{}, &MalformedReplyError{Raw: truncate(raw), Err: errMissingContent}
	}

	return Reply{ReturnCode: *rr.ReturnCode, Content: *rr.Content}, nil
}
