// Package service implements the request forwarding engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"api-gateway-go/internal/client"
	"api-gateway-go/internal/config"
	"api-gateway-go/internal/metrics"
	"api-gateway-go/internal/model"
	"api-gateway-go/internal/registry"
)

// Forwarder relays a ForwardRequest to the owning backend.
type Forwarder struct {
	registry       *registry.Registry
	client         *client.UpstreamClient
	defaultTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// NewForwarder creates a Forwarder. The metrics parameter is optional.
func NewForwarder(reg *registry.Registry, c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Forwarder {
	return &Forwarder{
		registry:       reg,
		client:         c,
		defaultTimeout: cfg.Upstream.Timeout(),
		logger:         logger.With("component", "forwarder"),
		metrics:        m,
	}
}

// Forward sends req upstream and returns the backend's response, whatever
// its status. Every failure is a *ForwardError; the service is resolved
// and the method validated before any header work or network I/O.
func (f *Forwarder) Forward(ctx context.Context, req *model.ForwardRequest) (up *model.Upstream, err error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}

	defer func() {
		if r := recover(); r != nil {
			up = nil
			err = f.fail(req, &ForwardError{
				Kind:    KindUnexpected,
				Service: req.Service,
				Method:  req.Method,
				Timeout: timeout,
				Err:     fmt.Errorf("panic: %v", r),
			})
		}
	}()

	base, err := f.registry.Resolve(req.Service)
	if err != nil {
		return nil, f.fail(req, &ForwardError{Kind: KindServiceNotFound, Service: req.Service, Err: err})
	}

	method, err := model.ParseMethod(req.Method)
	if err != nil {
		return nil, f.fail(req, &ForwardError{Kind: KindMethodNotAllowed, Service: req.Service, Method: req.Method, Err: err})
	}

	header := FilterRequestHeaders(req.Header)

	target := base.String() + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body []byte
	if method.HasBody() && req.Body != nil {
		body = req.Body.Data
		if body == nil {
			body = []byte{}
		}
		if req.Body.ContentType != "" {
			header.Set("Content-Type", req.Body.ContentType)
		}
	}

	f.logger.Debug("forwarding request",
		"service", req.Service,
		"method", string(method),
		"path", req.Path,
		"timeout", timeout,
	)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := f.client.Do(callCtx, req.Service, string(method), target, header, body)
	if err != nil {
		return nil, f.fail(req, &ForwardError{
			Kind:    classify(ctx, callCtx, err),
			Service: req.Service,
			Method:  string(method),
			Timeout: timeout,
			Err:     err,
		})
	}

	resp.Header = FilterResponseHeaders(resp.Header)
	return resp, nil
}

// classify maps a transport error to a failure kind. A deadline on the call
// context that the caller's context does not share is the forward timeout.
func classify(parent, call context.Context, err error) ErrorKind {
	if errors.Is(call.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return KindUpstreamTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUpstreamTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindUpstreamTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUpstreamConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUpstreamConnection
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindUpstreamConnection
	}

	return KindUpstreamRequest
}

func (f *Forwarder) fail(req *model.ForwardRequest, fe *ForwardError) error {
	if f.metrics != nil {
		f.metrics.UpstreamFailures.WithLabelValues(req.Service, fe.Kind.String()).Inc()
	}

	level := slog.LevelWarn
	if fe.Kind == KindUnexpected {
		level = slog.LevelError
	}
	f.logger.Log(context.Background(), level, "forward failed",
		"service", req.Service,
		"method", req.Method,
		"path", req.Path,
		"kind", fe.Kind.String(),
		"error", fe.Err,
	)
	return fe
}
