// ABOUTME: Human-in-the-loop approval workflow over pending pairing requests
// ABOUTME: Builds on the registry; expiry is computed at read time, never stored

package approval

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hallpass-dev/hallpass/internal/registry"
)

// Window is how long a pairing request stays actionable. Older requests read
// as expired even though their stored status is still pending.
const Window = 5 * time.Minute

// Workflow drives pending requests through approve/deny decisions. Approval
// mints exactly one device and one token; the internal mutex makes the
// pending-to-resolved flip single-shot even under concurrent callers.
type Workflow struct {
	store  *registry.Store
	logger *slog.Logger

	mu sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a workflow over the given registry.
func New(store *registry.Store, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		store:  store,
		logger: logger.With("component", "approval"),
		now:    time.Now,
	}
}

// Create records a new pairing request. Repeated requests from the same
// device each get a fresh ID.
func (w *Workflow) Create(deviceName, platform, browser, ip string) (*registry.PendingRequest, error) {
	return w.store.CreateRequest(deviceName, platform, browser, ip)
}

// Get returns the request with its effective status, or nil if unknown.
func (w *Workflow) Get(id string) *registry.PendingRequest {
	r := w.store.GetRequest(id)
	if r == nil {
		return nil
	}
	r.Status = EffectiveStatus(r, w.now())
	return r
}

// List returns requests that are still actionable: stored status pending and
// younger than Window. Resolved and stale requests are filtered, not deleted.
func (w *Workflow) List() []*registry.PendingRequest {
	now := w.now()
	var out []*registry.PendingRequest
	for _, r := range w.store.ListRequests() {
		if EffectiveStatus(r, now) == registry.RequestStatusPending {
			out = append(out, r)
		}
	}
	return out
}

// Approve resolves a pending request, minting a device record and a session
// token for it. Returns nil if the request is unknown, already resolved, or
// past the expiry window; a second Approve of the same ID mints nothing.
func (w *Workflow) Approve(id string) *registry.PendingRequest {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := w.store.GetRequest(id)
	if r == nil || EffectiveStatus(r, w.now()) != registry.RequestStatusPending {
		return nil
	}

	device, err := w.store.AddDevice(r.DeviceName, r.Platform, r.Browser, r.IP, false)
	if err != nil {
		w.logger.Error("minting device for approval failed", "request_id", id, "error", err)
		return nil
	}
	tok, err := w.store.GenerateToken(device.ID)
	if err != nil {
		w.logger.Error("minting token for approval failed", "request_id", id, "error", err)
		w.store.RemoveDevice(device.ID)
		return nil
	}

	resolved, err := w.store.ResolveRequest(id, registry.RequestStatusApproved, device.ID, tok)
	if err != nil {
		w.logger.Error("resolving approved request failed", "request_id", id, "error", err)
		w.store.RemoveDevice(device.ID)
		return nil
	}
	return resolved
}

// Deny resolves a pending request without minting anything. Returns nil under
// the same conditions as Approve.
func (w *Workflow) Deny(id string) *registry.PendingRequest {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := w.store.GetRequest(id)
	if r == nil || EffectiveStatus(r, w.now()) != registry.RequestStatusPending {
		return nil
	}

	resolved, err := w.store.ResolveRequest(id, registry.RequestStatusDenied, "", "")
	if err != nil {
		w.logger.Error("resolving denied request failed", "request_id", id, "error", err)
		return nil
	}
	return resolved
}

// EffectiveStatus returns the status every reader must act on: the stored
// status, except that a pending request older than Window reads as expired.
func EffectiveStatus(r *registry.PendingRequest, now time.Time) string {
	if r.Status == registry.RequestStatusPending && now.Sub(r.CreatedAt) > Window {
		return registry.RequestStatusExpired
	}
	return r.Status
}
