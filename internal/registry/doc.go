// Package registry provides persistent storage for the access control plane.
//
// # Architecture
//
// The registry is one Store backed by one JSON file. The file holds the
// entire state as a single document (the snapshot): authorized devices,
// pending pairing requests, revoked token strings, and the signing secret.
// Every mutation rewrites the whole document; there are no partial updates.
//
// The store is constructed once in main and passed by reference into every
// consumer. There is no package-level singleton.
//
// # Data Models
//
//   - Device: one authorized client, with platform/browser metadata,
//     last-seen tracking, and an IsHost flag for loopback-minted devices
//   - PendingRequest: an unapproved pairing attempt; immutable after it
//     leaves the pending state
//
// # Secret and Tokens
//
// The signing secret is generated once (32 random bytes) and is stable for
// the life of the registry file. Session tokens are minted and checked
// through the token package with this secret; the pairing code is derived
// from it through the paircode package. Deleting or corrupting the registry
// file rotates the secret, which implicitly invalidates every outstanding
// token.
//
// # Failure Semantics
//
// A missing or unparseable registry file falls back to a fresh empty
// snapshot with a new secret. Callers never observe a parse error, only an
// empty registry.
//
// # Concurrency
//
// All operations take an internal mutex and appear atomic to callers. The
// design assumes a single process owns the file; two processes writing the
// same path is last-writer-wins on the whole snapshot and is not supported.
package registry
