// Package protocol defines the messages exchanged between the check-in
// client and server.
//
// Client → Server: one binary WebSocket message per frame, the raw JPEG
// bytes with no framing. Server → Client: a single JSON Result.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Frame labelling.
const (
	ContentTypeJPEG = "image/jpeg"
	FrameExt        = ".jpg"
)

// StartLayout is the layout of Result.Start.
const StartLayout = "2006-01-02 15:04:05"

// ResultSuccess is the Result.Result value for a verified check-in.
const ResultSuccess = "success"

// ErrMissingURL is returned for a result without a redirect target.
var ErrMissingURL = errors.New("result has no url")

// Result is the terminal message of a session.
// Only Data and URL are read by the client; the rest is informational.
type Result struct {
	Data       string `json:"data"`
	URL        string `json:"url"`
	Result     string `json:"result,omitempty"`
	Start      string `json:"start,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// NewResult builds the success result for a check-in at start.
func NewResult(data, url string, start time.Time) Result {
	return Result{
		Data:       data,
		URL:        url,
		Result:     ResultSuccess,
		Start:      start.Format(StartLayout),
		StatusCode: http.StatusOK,
	}
}

// Validate checks that the result can drive a navigation.
func (r Result) Validate() error {
	if r.URL == "" {
		return ErrMissingURL
	}
	return nil
}

// Bytes returns the JSON-encoded result.
func (r Result) Bytes() ([]byte, error) {
	return json.Marshal(r)
}

// ParseResult parses an inbound text message.
func ParseResult(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("failed to parse result: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Result{}, err
	}
	return r, nil
}

// Failure is the body of a rejected request.
type Failure struct {
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode"`
}

// NewFailure builds a failure body for the given status.
func NewFailure(status int, reason string) Failure {
	return Failure{Error: reason, StatusCode: status}
}
