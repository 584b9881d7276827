// ABOUTME: Data types for the device registry persistence layer
// ABOUTME: Defines Device, PendingRequest, and the on-disk snapshot document

package registry

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotPending is returned when resolving a request that already left the
// pending state.
var ErrNotPending = errors.New("request is not pending")

// Device represents one authorized client (browser or app instance).
type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Platform   string    `json:"platform"`
	Browser    string    `json:"browser"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	LastIP     string    `json:"last_ip"`

	// IsHost marks a device minted through the trusted loopback flow.
	IsHost bool `json:"is_host"`
}

// RequestStatus constants for pending request lifecycle
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusDenied   = "denied"
	RequestStatusExpired  = "expired" // computed at read time, never stored
)

// PendingRequest is an unapproved device-pairing attempt awaiting an operator
// decision. Once it leaves pending it is never mutated again.
type PendingRequest struct {
	ID         string     `json:"id"`
	DeviceName string     `json:"device_name"`
	Platform   string     `json:"platform"`
	Browser    string     `json:"browser"`
	IP         string     `json:"ip"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// Set only on approval.
	DeviceID string `json:"device_id,omitempty"`
	Token    string `json:"token,omitempty"`
}

// snapshot is the persisted unit: the whole registry as one JSON document,
// rewritten wholesale on every mutation.
type snapshot struct {
	Devices       map[string]*Device         `json:"devices"`
	Requests      map[string]*PendingRequest `json:"requests"`
	RevokedTokens []string                   `json:"revoked_tokens"`
	Secret        string                     `json:"secret"` // base64
}

func newSnapshot() *snapshot {
	return &snapshot{
		Devices:  make(map[string]*Device),
		Requests: make(map[string]*PendingRequest),
	}
}
