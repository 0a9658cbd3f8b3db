// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// ForceHTTPS returns a wrapper that 308-redirects plain-HTTP requests to the
// HTTPS version of the same URL.  It is a pass-through when enabled is
// false, for localhost, for requests a TLS-terminating proxy marked with
// X-Forwarded-Proto: https, and for /health_check so probes never bounce.
//
// When baseURL carries a host, redirects go to that host instead of the
// request's Host header.
func ForceHTTPS(enabled bool, baseURL string) func(http.Handler) http.Handler {
	canonical := ""
	if u, err := url.Parse(baseURL); err == nil {
		canonical = u.Host
	}

	return func(h http.Handler) http.Handler {
		if !enabled {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil ||
				strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") ||
				stripPort(r.Host) == "localhost" ||
				r.URL.Path == "/health_check" {
				h.ServeHTTP(w, r)
				return
			}

			host := r.Host
			if canonical != "" {
				host = canonical
			}
			target := "https://" + host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
		})
	}
}

// stripPort removes the :port suffix from Host when present.
func stripPort(h string) string {
	if i := strings.LastIndexByte(h, ':'); i != -1 && !strings.HasSuffix(h, "]") {
		return h[:i]
	}
	return h
}
