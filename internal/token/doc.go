// Package token signs and verifies the session tokens that bind a request to
// an authorized device record.
//
// Tokens are HS256 JWTs with three claims: sub (device ID), iat, and exp.
// The signing secret belongs to the device registry; rotating it invalidates
// every outstanding token at once via signature mismatch.
//
// Verify is total: malformed input, a bad signature, and an expired token all
// come back as a typed Result rather than an error, so the HTTP boundary can
// map every failure to the same unauthorized response.
package token
