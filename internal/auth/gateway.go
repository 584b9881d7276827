// ABOUTME: AuthGateway facade combining registry, token codec, and approval workflow
// ABOUTME: Implements local auto-auth, code verify, request-access polling, and validation

package auth

import (
	"errors"
	"log/slog"

	"github.com/hallpass-dev/hallpass/internal/approval"
	"github.com/hallpass-dev/hallpass/internal/registry"
)

// ErrBadCode is returned when a supplied pairing code does not match the one
// derived from the registry secret.
var ErrBadCode = errors.New("pairing code mismatch")

// DeviceDescriptor is what a pairing caller says about itself. None of it is
// trusted; it exists so the operator has something to review.
type DeviceDescriptor struct {
	Name     string
	Platform string
	Browser  string
}

// Session is the result of a successful login flow.
type Session struct {
	Device *registry.Device
	Token  string
}

// StatusResult is the outcome of polling a pairing request.
type StatusResult struct {
	Status   string // pending, approved, denied, expired, not_found
	Token    string // set only when approved
	DeviceID string // set only when approved
}

// StatusNotFound is reported when polling an unknown request ID.
const StatusNotFound = "not_found"

// Gateway is the facade the HTTP boundary calls for every authorization
// decision. It is constructed once and passed by reference; it holds no
// global state.
type Gateway struct {
	store    *registry.Store
	workflow *approval.Workflow
	logger   *slog.Logger
}

// NewGateway creates the auth facade over a registry and approval workflow.
func NewGateway(store *registry.Store, workflow *approval.Workflow, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:    store,
		workflow: workflow,
		logger:   logger.With("component", "auth"),
	}
}

// LoginLocal mints a device and token without a pairing code. The boundary
// must only route loopback callers here: local origin is the trust proof.
func (g *Gateway) LoginLocal(desc DeviceDescriptor, ip string) (*Session, error) {
	return g.mint(desc, ip, true)
}

// LoginWithCode mints a device and token immediately if the pairing code
// matches. Used for same-machine or already-coordinated flows.
func (g *Gateway) LoginWithCode(code string, desc DeviceDescriptor, ip string) (*Session, error) {
	if code != g.store.AccessCode() {
		return nil, ErrBadCode
	}
	return g.mint(desc, ip, false)
}

// RequestAccess creates a pending pairing request for a remote caller whose
// code matches. No credential is issued until an operator approves it.
func (g *Gateway) RequestAccess(code string, desc DeviceDescriptor, ip string) (*registry.PendingRequest, error) {
	if code != g.store.AccessCode() {
		return nil, ErrBadCode
	}
	return g.workflow.Create(desc.Name, desc.Platform, desc.Browser, ip)
}

// CheckStatus reports where a pairing request stands. The token and device ID
// are released only once the request is approved.
func (g *Gateway) CheckStatus(requestID string) StatusResult {
	r := g.workflow.Get(requestID)
	if r == nil {
		return StatusResult{Status: StatusNotFound}
	}
	res := StatusResult{Status: r.Status}
	if r.Status == registry.RequestStatusApproved {
		res.Token = r.Token
		res.DeviceID = r.DeviceID
	}
	return res
}

// Validate checks a bearer token and, on success, refreshes the device's
// last-seen timestamp and IP. Every failure mode collapses to ok=false so
// callers cannot distinguish a bad signature from a revoked device.
func (g *Gateway) Validate(tok, ip string) (deviceID string, ok bool) {
	res := g.store.VerifyToken(tok)
	if !res.Valid() {
		return "", false
	}
	if err := g.store.UpdateLastSeen(res.DeviceID, ip); err != nil {
		// Device vanished between verify and refresh.
		return "", false
	}
	return res.DeviceID, true
}

// Logout removes the calling device and revokes the presented token.
func (g *Gateway) Logout(deviceID, tok string) error {
	if err := g.store.RevokeToken(tok); err != nil {
		return err
	}
	_, err := g.store.RemoveDevice(deviceID)
	return err
}

func (g *Gateway) mint(desc DeviceDescriptor, ip string, isHost bool) (*Session, error) {
	name := desc.Name
	if name == "" {
		name = "Unnamed device"
	}
	device, err := g.store.AddDevice(name, desc.Platform, desc.Browser, ip, isHost)
	if err != nil {
		return nil, err
	}
	tok, err := g.store.GenerateToken(device.ID)
	if err != nil {
		g.store.RemoveDevice(device.ID)
		return nil, err
	}
	return &Session{Device: device, Token: tok}, nil
}
