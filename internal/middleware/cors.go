package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"api-gateway-go/internal/config"
)

// CORS answers preflight requests and stamps CORS headers on every other
// response. Register it with e.Pre so OPTIONS is answered before routing and
// never reaches a backend or the router's 404.
func CORS(cfg config.CORSConfig) echo.MiddlewareFunc {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()

			origin := req.Header.Get(echo.HeaderOrigin)
			if origin == "" {
				origin = "*"
			}
			stamp := func(h http.Header) {
				h.Set(echo.HeaderAccessControlAllowOrigin, origin)
				h.Set(echo.HeaderAccessControlAllowCredentials, "true")
				h.Set(echo.HeaderAccessControlAllowMethods, methods)
				h.Set(echo.HeaderAccessControlAllowHeaders, headers)
				if origin != "*" && !varyHasOrigin(h) {
					h.Add(echo.HeaderVary, echo.HeaderOrigin)
				}
			}

			if req.Method == http.MethodOptions {
				h := res.Header()
				stamp(h)
				h.Set(echo.HeaderAccessControlMaxAge, maxAge)
				return c.NoContent(http.StatusOK)
			}

			// Upstream Access-Control-* headers are copied before the status
			// is written, so the hook overrides them.
			res.Before(func() {
				h := res.Header()
				stamp(h)
				if expose != "" {
					h.Set(echo.HeaderAccessControlExposeHeaders, expose)
				}
			})
			return next(c)
		}
	}
}

func varyHasOrigin(h http.Header) bool {
	for _, v := range h.Values(echo.HeaderVary) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), echo.HeaderOrigin) {
				return true
			}
		}
	}
	return false
}
