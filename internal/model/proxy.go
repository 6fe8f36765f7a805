// Package model defines shared types for the gateway.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMethodNotAllowed is returned for methods outside the forwardable set.
var ErrMethodNotAllowed = errors.New("method not allowed")

// Method is an HTTP method the gateway can forward upstream.
type Method string

// Forwardable methods. The set is closed: ParseMethod rejects everything else.
const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// ParseMethod maps a method name (any case) to a forwardable Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(s)); m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrMethodNotAllowed, s)
	}
}

// HasBody reports whether requests with this method carry a payload upstream.
func (m Method) HasBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch:
		return true
	case MethodGet, MethodDelete:
		return false
	default:
		return false
	}
}

// Payload is a raw request body tagged with its declared content type.
type Payload struct {
	Data        []byte
	ContentType string
}

// ForwardRequest is a resolved call to be forwarded to one backend service.
type ForwardRequest struct {
	Service string
	Path    string
	Method  string
	Header  http.Header
	Query   url.Values
	Body    *Payload
	Timeout time.Duration
}

// Upstream is the successful outcome of a forward: the backend answered
// with some HTTP status. Header has already been response-filtered.
type Upstream struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// BodyKind tags which representation a ClientBody carries.
type BodyKind int

const (
	BodyAbsent BodyKind = iota
	BodyJSON
	BodyText
	BodyHex
)

func (k BodyKind) String() string {
	switch k {
	case BodyJSON:
		return "json"
	case BodyText:
		return "text"
	case BodyHex:
		return "hex"
	default:
		return "absent"
	}
}

// ClientBody is the transcoded upstream body. Exactly one of JSON, Text or
// Hex is meaningful, selected by Kind; BodyAbsent carries nothing.
type ClientBody struct {
	Kind BodyKind
	JSON json.RawMessage
	Text string
	Hex  string
}

// ClientResponse is what the gateway returns to the calling client.
type ClientResponse struct {
	StatusCode int
	Header     http.Header
	Body       ClientBody
}
