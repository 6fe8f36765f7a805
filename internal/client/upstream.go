// Package client provides the upstream HTTP client for backend services.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"api-gateway-go/internal/config"
	"api-gateway-go/internal/metrics"
	"api-gateway-go/internal/model"
)

// UpstreamClient sends requests to backend services.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling.
// Per-call deadlines come from the request context, not from the client.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			// Off by default; see config.UpstreamConfig.InsecureSkipVerify.
			InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify, //nolint:gosec // operator opt-in for self-signed backends
		},
	}

	return NewWithTransport(transport, logger, m)
}

// NewWithTransport creates an UpstreamClient on top of an arbitrary
// RoundTripper. Tests use it to observe or stub outbound calls.
func NewWithTransport(rt http.RoundTripper, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: rt,
			// Redirects are relayed to the client, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
}

// Do executes a request against service and reads the whole response body.
// The body is decoded according to Content-Encoding so callers always see
// identity bytes. The context bounds both the exchange and the body read.
func (c *UpstreamClient) Do(ctx context.Context, service, method, url string, header http.Header, body []byte) (*model.Upstream, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	c.logger.Debug("upstream request",
		"service", service,
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	label := metrics.NormalizeMethod(req.Method)

	if err != nil {
		c.observe(service, label, start)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	c.observe(service, label, start)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(service, label, strconv.Itoa(resp.StatusCode)).Inc()
	}

	respHeader := resp.Header.Clone()
	decoded, err := decodeBody(respHeader, raw)
	if err != nil {
		return nil, fmt.Errorf("decode upstream body: %w", err)
	}

	return &model.Upstream{
		StatusCode: resp.StatusCode,
		Header:     respHeader,
		Body:       decoded,
	}, nil
}

func (c *UpstreamClient) observe(service, method string, start time.Time) {
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
	}
}

// decodeBody undoes every Content-Encoding it understands, last applied
// first, and removes the header once the body is back to identity. Unknown
// codings leave both body and header untouched.
func decodeBody(header http.Header, raw []byte) ([]byte, error) {
	codings := parseCodings(header.Values("Content-Encoding"))
	if len(codings) == 0 || len(raw) == 0 {
		header.Del("Content-Encoding")
		return raw, nil
	}
	for _, cod := range codings {
		if !supportedCoding(cod) {
			return raw, nil
		}
	}

	out := raw
	for i := len(codings) - 1; i >= 0; i-- {
		var err error
		out, err = decodeOne(codings[i], out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", codings[i], err)
		}
	}
	header.Del("Content-Encoding")
	return out, nil
}

func parseCodings(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" && part != "identity" {
				out = append(out, part)
			}
		}
	}
	return out
}

func supportedCoding(coding string) bool {
	switch coding {
	case "gzip", "x-gzip", "deflate", "br", "zstd":
		return true
	}
	return false
}

func decodeOne(coding string, data []byte) ([]byte, error) {
	switch coding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = zr.Close() }()
		return io.ReadAll(zr)
	case "deflate":
		// Most servers send zlib-wrapped deflate; some send it raw.
		if zr, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
			defer func() { _ = zr.Close() }()
			return io.ReadAll(zr)
		}
		fr := flate.NewReader(bytes.NewReader(data))
		defer func() { _ = fr.Close() }()
		return io.ReadAll(fr)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("unsupported content coding %q", coding)
	}
}
