// ABOUTME: HTTP middleware for bearer-token authentication on API endpoints
// ABOUTME: Extracts the token, validates it, and adds the device to request context

package auth

import (
	"net"
	"net/http"
	"strings"
)

// unauthorizedBody is the single response body for every authentication
// failure. Missing header, malformed token, bad signature, expiry, and
// revocation are deliberately indistinguishable to the caller.
const unauthorizedBody = `{"error":"unauthorized"}`

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns an empty token if the header is missing or malformed.
func extractBearerToken(authHeader string) string {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// Middleware authenticates requests with a bearer token against the gateway.
// On success the device identity is attached to the request context and its
// last-seen state is refreshed.
func Middleware(g *Gateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearerToken(r.Header.Get("Authorization"))
			if tok == "" {
				writeUnauthorized(w)
				return
			}

			deviceID, ok := g.Validate(tok, RemoteIP(r))
			if !ok {
				writeUnauthorized(w)
				return
			}

			dc := &DeviceContext{DeviceID: deviceID, Token: tok}
			next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), dc)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(unauthorizedBody))
}

// RemoteIP returns the caller's IP without the port, or the raw RemoteAddr
// if it does not parse as host:port.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsLoopback reports whether the request originated from the local machine.
// Only the transport-level peer address counts; forwarding headers are
// attacker-controlled and ignored.
func IsLoopback(r *http.Request) bool {
	ip := net.ParseIP(RemoteIP(r))
	return ip != nil && ip.IsLoopback()
}
