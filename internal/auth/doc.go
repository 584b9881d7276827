// Package auth provides the authorization facade for the control plane.
//
// # Entry Flows
//
// Four ways a caller interacts with the gateway:
//
//   - Local auto-auth: a loopback caller is trusted by origin alone and gets
//     a device record and session token with no pairing code.
//
//   - Direct verify: the caller presents the pairing code; on match a device
//     and token are minted immediately.
//
//   - Request-access / poll: a remote caller presents the pairing code; on
//     match a pending request is created instead of a token. The caller
//     polls until an operator approves (token released) or denies, or the
//     request expires.
//
//   - Validate: an authenticated call presents a bearer token. Every failure
//     mode — missing header, malformed token, bad signature, expired,
//     revoked, device removed — produces the same unauthorized outcome, so
//     the response cannot be used as an oracle.
//
// # Identity Propagation
//
// The bearer middleware validates the token, refreshes the device's
// last-seen state, and attaches a DeviceContext to the request context via
// WithDevice/FromContext. Handlers behind the middleware use MustFromContext.
package auth
