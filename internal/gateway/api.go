// ABOUTME: HTTP handlers for the boundary operations and their JSON shapes
// ABOUTME: Maps every failure to the fixed error taxonomy without oracle leakage

package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hallpass-dev/hallpass/internal/auth"
	"github.com/hallpass-dev/hallpass/internal/registry"
)

// PairRequest is the JSON request body for the verify and request-access
// endpoints.
type PairRequest struct {
	Code       string `json:"code"`
	DeviceName string `json:"device_name"`
	Platform   string `json:"platform"`
	Browser    string `json:"browser"`
}

// LocalAuthRequest is the JSON request body for POST /api/auth/local.
// The whole body is optional; a loopback caller needs no credential.
type LocalAuthRequest struct {
	DeviceName string `json:"device_name"`
	Platform   string `json:"platform"`
	Browser    string `json:"browser"`
}

// SessionResponse is the JSON response for every flow that mints a token.
type SessionResponse struct {
	Token  string         `json:"token"`
	Device DeviceResponse `json:"device"`
}

// DeviceResponse is the JSON shape of a device record.
type DeviceResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Platform   string `json:"platform,omitempty"`
	Browser    string `json:"browser,omitempty"`
	CreatedAt  string `json:"created_at"`
	LastSeenAt string `json:"last_seen_at"`
	LastIP     string `json:"last_ip,omitempty"`
	IsHost     bool   `json:"is_host"`
}

// RequestResponse is the JSON shape of a pairing request.
type RequestResponse struct {
	ID         string `json:"id"`
	DeviceName string `json:"device_name"`
	Platform   string `json:"platform,omitempty"`
	Browser    string `json:"browser,omitempty"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// StatusResponse is the JSON response for pairing request polling.
type StatusResponse struct {
	Status   string `json:"status"`
	Token    string `json:"token,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

// ListDevicesResponse is the JSON response for GET /api/devices.
type ListDevicesResponse struct {
	Devices         []DeviceResponse `json:"devices"`
	CurrentDeviceID string           `json:"current_device_id"`
}

func deviceResponse(d *registry.Device) DeviceResponse {
	return DeviceResponse{
		ID:         d.ID,
		Name:       d.Name,
		Platform:   d.Platform,
		Browser:    d.Browser,
		CreatedAt:  d.CreatedAt.Format(time.RFC3339),
		LastSeenAt: d.LastSeenAt.Format(time.RFC3339),
		LastIP:     d.LastIP,
		IsHost:     d.IsHost,
	}
}

func requestResponse(r *registry.PendingRequest) RequestResponse {
	return RequestResponse{
		ID:         r.ID,
		DeviceName: r.DeviceName,
		Platform:   r.Platform,
		Browser:    r.Browser,
		IP:         r.IP,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUnauthorized emits the one uniform unauthorized response. A wrong
// pairing code, a bad token, and a revoked device all look identical.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// handleLocalAuth handles POST /api/auth/local. Only loopback callers may
// mint a session this way; origin is checked on the transport peer address.
func (s *Server) handleLocalAuth(w http.ResponseWriter, r *http.Request) {
	if !auth.IsLoopback(r) {
		writeError(w, http.StatusForbidden, "loopback origin required")
		return
	}

	var req LocalAuthRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	sess, err := s.authGW.LoginLocal(auth.DeviceDescriptor{
		Name:     req.DeviceName,
		Platform: req.Platform,
		Browser:  req.Browser,
	}, auth.RemoteIP(r))
	if err != nil {
		s.logger.Error("local auth failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{Token: sess.Token, Device: deviceResponse(sess.Device)})
}

// handleVerify handles POST /api/auth/verify: pairing code in, session out.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req PairRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	sess, err := s.authGW.LoginWithCode(req.Code, auth.DeviceDescriptor{
		Name:     req.DeviceName,
		Platform: req.Platform,
		Browser:  req.Browser,
	}, auth.RemoteIP(r))
	if err != nil {
		writeUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{Token: sess.Token, Device: deviceResponse(sess.Device)})
}

// handleRequestAccess handles POST /api/auth/request: pairing code in,
// pending request out. The caller polls status until an operator decides.
func (s *Server) handleRequestAccess(w http.ResponseWriter, r *http.Request) {
	var req PairRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	pending, err := s.authGW.RequestAccess(req.Code, auth.DeviceDescriptor{
		Name:     req.DeviceName,
		Platform: req.Platform,
		Browser:  req.Browser,
	}, auth.RemoteIP(r))
	if err != nil {
		writeUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"request_id": pending.ID})
}

// handleCheckStatus handles GET /api/auth/status/{id}. Unknown IDs report
// not_found in the body; polling is always a 200.
func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	res := s.authGW.CheckStatus(r.PathValue("id"))
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:   res.Status,
		Token:    res.Token,
		DeviceID: res.DeviceID,
	})
}

// handleValidate handles GET /api/auth/validate. Reaching the handler means
// the middleware already validated the token and refreshed last-seen.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	dc := auth.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "device_id": dc.DeviceID})
}

// handleLogout handles POST /api/auth/logout: the caller removes itself.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	dc := auth.MustFromContext(r.Context())
	if err := s.authGW.Logout(dc.DeviceID, dc.Token); err != nil {
		s.logger.Error("logout failed", "device_id", dc.DeviceID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetCode handles GET /api/code.
func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"code": s.store.AccessCode()})
}

// handleListDevices handles GET /api/devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	dc := auth.MustFromContext(r.Context())

	devices := s.store.ListDevices()
	out := make([]DeviceResponse, len(devices))
	for i, d := range devices {
		out[i] = deviceResponse(d)
	}
	writeJSON(w, http.StatusOK, ListDevicesResponse{Devices: out, CurrentDeviceID: dc.DeviceID})
}

// handleRenameDevice handles POST /api/devices/{id}/rename.
func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	d, err := s.store.RenameDevice(r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, deviceResponse(d))
}

// handleRevokeDevice handles DELETE /api/devices/{id}. Self-revocation is a
// conflict; the caller must use logout so its token is revoked with it.
func (s *Server) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	dc := auth.MustFromContext(r.Context())
	id := r.PathValue("id")

	if id == dc.DeviceID {
		writeError(w, http.StatusConflict, "cannot revoke the calling device, use logout")
		return
	}

	removed, err := s.store.RemoveDevice(id)
	if err != nil {
		s.logger.Error("revoking device failed", "device_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRevokeOthers handles POST /api/devices/revoke-others: every device
// except the caller is removed.
func (s *Server) handleRevokeOthers(w http.ResponseWriter, r *http.Request) {
	dc := auth.MustFromContext(r.Context())

	count, err := s.store.RevokeAllExcept(dc.DeviceID)
	if err != nil {
		s.logger.Error("revoking devices failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": count})
}

// handleListRequests handles GET /api/requests: actionable pending requests.
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	requests := s.workflow.List()
	out := make([]RequestResponse, len(requests))
	for i, pr := range requests {
		out[i] = requestResponse(pr)
	}
	writeJSON(w, http.StatusOK, map[string][]RequestResponse{"requests": out})
}

// handleApproveRequest handles POST /api/requests/{id}/approve.
func (s *Server) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	resolved := s.workflow.Approve(r.PathValue("id"))
	if resolved == nil {
		writeError(w, http.StatusNotFound, "request not found or not pending")
		return
	}
	writeJSON(w, http.StatusOK, requestResponse(resolved))
}

// handleDenyRequest handles POST /api/requests/{id}/deny.
func (s *Server) handleDenyRequest(w http.ResponseWriter, r *http.Request) {
	resolved := s.workflow.Deny(r.PathValue("id"))
	if resolved == nil {
		writeError(w, http.StatusNotFound, "request not found or not pending")
		return
	}
	writeJSON(w, http.StatusOK, requestResponse(resolved))
}

// handleTunnelStart handles POST /api/tunnel/start. It returns once the
// spawn is attempted; the caller polls status for the URL.
func (s *Server) handleTunnelStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port int `json:"port"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Port <= 0 || req.Port > 65535 {
		writeError(w, http.StatusBadRequest, "port must be between 1 and 65535")
		return
	}
	writeJSON(w, http.StatusOK, s.tunnel.Start(req.Port))
}

// handleTunnelStop handles POST /api/tunnel/stop.
func (s *Server) handleTunnelStop(w http.ResponseWriter, r *http.Request) {
	s.tunnel.Stop()
	writeJSON(w, http.StatusOK, s.tunnel.Info())
}

// handleTunnelStatus handles GET /api/tunnel/status.
func (s *Server) handleTunnelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tunnel.Info())
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
