package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"api-gateway-go/internal/model"
	"api-gateway-go/internal/route"
	"api-gateway-go/internal/service"
)

// HeaderBodyEncoding tells the client which representation the body uses.
const HeaderBodyEncoding = "X-Gateway-Body-Encoding"

// ProxyHandler serves every route-table binding through one forwarder.
type ProxyHandler struct {
	forwarder *service.Forwarder
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(f *service.Forwarder, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		forwarder: f,
		logger:    logger.With("component", "proxy_handler"),
	}
}

// Handle returns the echo handler for r.
func (h *ProxyHandler) Handle(r *route.Route) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		body, err := io.ReadAll(req.Body)
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				return he
			}
			return echo.NewHTTPError(http.StatusBadRequest, "Could not read request body").SetInternal(err)
		}

		fr, err := r.Bind(route.Inbound{
			Method:      req.Method,
			Params:      r.PathParams(c.Param),
			Header:      req.Header,
			Query:       c.QueryParams(),
			Body:        body,
			ContentType: req.Header.Get(echo.HeaderContentType),
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
		}

		up, err := h.forwarder.Forward(req.Context(), fr)
		if err != nil {
			status, msg := service.MapError(err)
			return c.JSON(status, ErrorResponse{Detail: msg})
		}

		h.logger.Debug("upstream response",
			"route", r.Name,
			"service", r.Service,
			"status", up.StatusCode,
		)
		return h.write(c, service.Respond(up))
	}
}

func (h *ProxyHandler) write(c echo.Context, resp *model.ClientResponse) error {
	dst := c.Response().Header()
	for key, vals := range resp.Header {
		if http.CanonicalHeaderKey(key) == echo.HeaderXRequestID {
			continue
		}
		dst.Del(key)
		for _, v := range vals {
			dst.Add(key, v)
		}
	}

	if resp.Body.Kind == model.BodyAbsent {
		return c.NoContent(resp.StatusCode)
	}

	data, err := renderBody(resp.Body)
	if err != nil {
		return err
	}
	if dst.Get(echo.HeaderContentType) == "" {
		dst.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	dst.Set(HeaderBodyEncoding, resp.Body.Kind.String())

	c.Response().WriteHeader(resp.StatusCode)
	if _, err := c.Response().Write(data); err != nil {
		h.logger.Error("writing response body",
			"err", err,
			"path", c.Request().URL.Path,
		)
	}
	return nil
}

// renderBody encodes a transcoded body for the wire: JSON as-is, text and
// hex as JSON strings.
func renderBody(b model.ClientBody) ([]byte, error) {
	switch b.Kind {
	case model.BodyJSON:
		return b.JSON, nil
	case model.BodyText:
		return jsonString(b.Text)
	case model.BodyHex:
		return jsonString(b.Hex)
	default:
		return nil, nil
	}
}

func jsonString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
