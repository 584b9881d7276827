// Package gateway is the HTTP boundary of the control plane.
//
// It maps each boundary operation onto a route and normalizes failures into
// a fixed taxonomy: 400 for malformed input, 401 (always the same body) for
// every authentication failure, 403 for a non-loopback caller on the local
// flow, 404 for unknown devices or requests, and 409 for self-revocation
// through the revoke endpoint.
//
// Tunnel control endpoints are unauthenticated: they are driven by the
// trusted local UI, and start/stop return as soon as the action is attempted
// rather than blocking until the relay reaches a terminal state.
package gateway
