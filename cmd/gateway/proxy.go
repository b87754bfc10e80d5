package main

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewForwarder returns a handler that relays requests matching rule to
// the upstream origin. The Host header is rewritten so the upstream
// sees a request consistent with its own domain. For upgrade-eligible
// rules, the connection-upgrade handshake is forwarded and the
// resulting duplex stream is bridged in both directions until either
// side closes; closing one side closes the other. Upgrade attempts on
// plain rules are downgraded to ordinary requests.
func NewForwarder(upstream *url.URL, rule ForwardRule) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(upstream)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)

		if req.Header.Get("X-Forwarded-Host") == "" {
			req.Header.Set("X-Forwarded-Host", req.Host)
		}
		if req.Header.Get("X-Forwarded-Proto") == "" {
			req.Header.Set("X-Forwarded-Proto", "http")
		}
		req.Host = upstream.Host

		if !rule.Upgrade {
			// This prefix is request/response only.
			req.Header.Del("Upgrade")
			req.Header.Del("Connection")
		}
	}

	// Flush each write through immediately; streamed upstream
	// responses must not sit in a buffer.
	proxy.FlushInterval = -1

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if r.Context().Err() != nil {
			// Client went away mid-request; nothing left to answer.
			slog.Debug("Client disconnected during proxying", "path", r.URL.Path)
			return
		}
		slog.Error("Upstream proxy error",
			"path", r.URL.Path,
			"upstream", upstream.Host,
			"error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return proxy
}
