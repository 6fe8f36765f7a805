package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestMapError(t *testing.T) {
	cause := errors.New("tls: handshake failure")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "service not found",
			err:        &ForwardError{Kind: KindServiceNotFound, Service: "wikipedia"},
			wantStatus: http.StatusNotFound,
			wantMsg:    "Service wikipedia not found",
		},
		{
			name:       "method not allowed",
			err:        &ForwardError{Kind: KindMethodNotAllowed, Service: "users", Method: "TRACE"},
			wantStatus: http.StatusMethodNotAllowed,
			wantMsg:    "Method TRACE not allowed",
		},
		{
			name:       "timeout",
			err:        &ForwardError{Kind: KindUpstreamTimeout, Service: "chatbot", Timeout: 300 * time.Second},
			wantStatus: http.StatusRequestTimeout,
			wantMsg:    "Request to chatbot timed out after 5m0s",
		},
		{
			name:       "connection",
			err:        &ForwardError{Kind: KindUpstreamConnection, Service: "files", Err: cause},
			wantStatus: http.StatusBadGateway,
			wantMsg:    "Connection error to files",
		},
		{
			name:       "request error",
			err:        &ForwardError{Kind: KindUpstreamRequest, Service: "search", Err: cause},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Error calling search: tls: handshake failure",
		},
		{
			name:       "unexpected",
			err:        &ForwardError{Kind: KindUnexpected, Err: cause},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Unexpected error: tls: handshake failure",
		},
		{
			name:       "wrapped forward error",
			err:        fmt.Errorf("handler: %w", &ForwardError{Kind: KindServiceNotFound, Service: "x"}),
			wantStatus: http.StatusNotFound,
			wantMsg:    "Service x not found",
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Unexpected error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := MapError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestForwardError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := &ForwardError{Kind: KindUpstreamRequest, Service: "users", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestErrorKind_String(t *testing.T) {
	for k, want := range map[ErrorKind]string{
		KindServiceNotFound:    "service_not_found",
		KindMethodNotAllowed:   "method_not_allowed",
		KindUpstreamTimeout:    "upstream_timeout",
		KindUpstreamConnection: "upstream_connection_error",
		KindUpstreamRequest:    "upstream_request_error",
		KindUnexpected:         "unexpected_error",
	} {
		if got := k.String(); got != want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
