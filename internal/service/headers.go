package service

import "net/http"

// requestHopHeaders are connection-management headers that must not be
// re-issued to a different origin.
var requestHopHeaders = map[string]bool{
	"Host":       true,
	"Connection": true,
	"Upgrade":    true,
	"Keep-Alive": true,
}

// responseHopHeaders are hop-by-hop response headers plus Content-Length,
// which transcoding invalidates.
var responseHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailers":            true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
}

// FilterRequestHeaders returns a copy of src without request-bound
// hop-by-hop headers. Everything else, Authorization included, is kept.
func FilterRequestHeaders(src http.Header) http.Header {
	return filterHeaders(src, requestHopHeaders)
}

// FilterResponseHeaders returns a copy of src without response-bound
// hop-by-hop headers.
func FilterResponseHeaders(src http.Header) http.Header {
	return filterHeaders(src, responseHopHeaders)
}

func filterHeaders(src http.Header, drop map[string]bool) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if drop[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}
