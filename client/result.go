package client

import (
	"fmt"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// FailureKind classifies a failure that happened below the level of HTTP status codes.
type FailureKind string

const (
	NoFailure         FailureKind = ""
	ConnectionRefused FailureKind = "connection refused"
	DNSFailure        FailureKind = "DNS failure"
	Timeout           FailureKind = "timeout"
	ConnectionError   FailureKind = "connection error"
	MalformedBody     FailureKind = "malformed body"
	InvalidRequest    FailureKind = "invalid request"
)

// Result is the normalized outcome of one request.
type Result struct {
	Method string
	URL    string
	// StatusCode is zero if no response was received.
	StatusCode int
	// Body is the parsed JSON body, or a string value holding the raw text if the body was
	// not JSON.
	Body ldvalue.Value
	Text string
	// Detail is the server's error message for a non-2xx response.
	Detail       string
	Pass         bool
	ErrorMessage string
	Failure      FailureKind
	Duration     time.Duration
	TraceParent  string
	Curl         string
}

// IsTransportFailure is true if no usable response was obtained.
func (r Result) IsTransportFailure() bool {
	return r.Failure != NoFailure
}

// Summary is the one-line form used in logs and reports.
func (r Result) Summary() string {
	if r.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s", r.Method, r.URL, r.ErrorMessage)
	}
	if r.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", r.Method, r.URL, r.StatusCode, r.Detail)
	}
	return fmt.Sprintf("%s %s: %d", r.Method, r.URL, r.StatusCode)
}
