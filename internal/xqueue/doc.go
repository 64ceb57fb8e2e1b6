// Package xqueue submits work to an external xqueue service.
//
// A submission is two sequential POSTs sharing one cookie session: the
// client logs in at {endpoint}/login/ and then posts the header, the body
// and an optional file to {endpoint}/submit/. Both replies are JSON objects
// of the form {"return_code": 0|1, "content": "..."}.
//
// Failures come back as one of three error kinds, matched with errors.Is:
// ErrConnection (the endpoint could not be reached), ErrRejected (the queue
// answered with a non-zero return code) and ErrMalformedReply (the queue
// answered with something that is not a reply). Nothing is retried; a
// Client holds only read-only configuration and may be shared by
// goroutines.
package xqueue
