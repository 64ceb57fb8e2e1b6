package xqueue

import (
	"encoding/json"
)

// Header routes the queue's eventual reply back to the LMS.
type Header struct {
	LMSCallbackURL string `json:"lms_callback_url"`
	LMSKey         string `json:"lms_key"`
	QueueName      string `json:"queue_name"`
}

// MakeHeader serializes the submission header. Inputs are not validated.
func MakeHeader(callbackURL, key, queueName string) string {
	// Marshalling a struct of strings cannot fail.
	data, _ := json.Marshal(Header{ //nolint:errchkjson // see above
		LMSCallbackURL: callbackURL,
		LMSKey:         key,
		QueueName:      queueName,
	})

	return string(data)
}

// ParseHeader decodes a header produced by MakeHeader.
func ParseHeader(raw string) (Header, error) {
	var h Header
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return Header{}, err //nolint:wrapcheck // caller adds context
	}

	return h, nil
}
