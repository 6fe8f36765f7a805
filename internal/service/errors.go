package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies a failed forward.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindServiceNotFound
	KindMethodNotAllowed
	KindUpstreamTimeout
	KindUpstreamConnection
	KindUpstreamRequest
)

// String returns the label used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindServiceNotFound:
		return "service_not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamConnection:
		return "upstream_connection_error"
	case KindUpstreamRequest:
		return "upstream_request_error"
	default:
		return "unexpected_error"
	}
}

// ForwardError is the failure outcome of Forwarder.Forward.
type ForwardError struct {
	Kind    ErrorKind
	Service string
	Method  string
	Timeout time.Duration
	Err     error
}

func (e *ForwardError) Error() string {
	switch e.Kind {
	case KindServiceNotFound:
		return fmt.Sprintf("Service %s not found", e.Service)
	case KindMethodNotAllowed:
		return fmt.Sprintf("Method %s not allowed", e.Method)
	case KindUpstreamTimeout:
		return fmt.Sprintf("Request to %s timed out after %s", e.Service, e.Timeout)
	case KindUpstreamConnection:
		return fmt.Sprintf("Connection error to %s", e.Service)
	case KindUpstreamRequest:
		return fmt.Sprintf("Error calling %s: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("Unexpected error: %v", e.Err)
	}
}

func (e *ForwardError) Unwrap() error { return e.Err }

// StatusFor returns the client-facing HTTP status for kind.
func StatusFor(kind ErrorKind) int {
	switch kind {
	case KindServiceNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindUpstreamTimeout:
		return http.StatusRequestTimeout
	case KindUpstreamConnection:
		return http.StatusBadGateway
	case KindUpstreamRequest:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// MapError converts any error returned by Forward into a status code and a
// human-readable message for the {"detail": ...} envelope. Errors that are
// not a *ForwardError are reported as unexpected.
func MapError(err error) (int, string) {
	var fe *ForwardError
	if errors.As(err, &fe) {
		return StatusFor(fe.Kind), fe.Error()
	}
	return http.StatusInternalServerError, fmt.Sprintf("Unexpected error: %v", err)
}
