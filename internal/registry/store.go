// ABOUTME: File-backed device registry, sole writer of persisted state
// ABOUTME: Loads one JSON snapshot on open and rewrites it on every mutation

package registry

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hallpass-dev/hallpass/internal/paircode"
	"github.com/hallpass-dev/hallpass/internal/token"
)

// TokenTTL is the lifetime of every issued session token.
const TokenTTL = 365 * 24 * time.Hour

const secretLength = 32

// Store is the single source of truth for devices, pending requests, revoked
// tokens, and the signing secret. All operations take the store lock, so they
// appear atomic to callers; the design assumes one process owns the file.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	snap    *snapshot
	secret  []byte
	codec   *token.Codec
	revoked map[string]struct{}
}

// Open loads the snapshot at path, creating a fresh one with a new random
// secret if the file is absent or unparseable. A corrupt file is treated as
// absent: callers see an empty registry, never a parse error.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		logger: logger.With("component", "registry"),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	snap := newSnapshot()

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, snap); jsonErr != nil {
			s.logger.Warn("registry file unparseable, starting fresh", "path", s.path, "error", jsonErr)
			snap = newSnapshot()
		}
	case os.IsNotExist(err):
		// First run.
	default:
		return fmt.Errorf("reading registry file: %w", err)
	}

	if snap.Devices == nil {
		snap.Devices = make(map[string]*Device)
	}
	if snap.Requests == nil {
		snap.Requests = make(map[string]*PendingRequest)
	}

	secret, err := base64.StdEncoding.DecodeString(snap.Secret)
	if err != nil || len(secret) == 0 {
		if snap.Secret != "" {
			s.logger.Warn("registry secret undecodable, rotating", "path", s.path)
		}
		secret = make([]byte, secretLength)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generating registry secret: %w", err)
		}
		snap.Secret = base64.StdEncoding.EncodeToString(secret)
	}

	s.snap = snap
	s.secret = secret
	s.codec = token.NewCodec(secret)
	s.revoked = make(map[string]struct{}, len(snap.RevokedTokens))
	for _, t := range snap.RevokedTokens {
		s.revoked[t] = struct{}{}
	}

	return s.save()
}

// save serializes the whole snapshot and replaces the file in one rename.
// Callers must hold the lock (or be the only reference, as in load).
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing registry snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing registry snapshot: %w", err)
	}
	return nil
}

// AddDevice creates and persists a new device record.
func (s *Store) AddDevice(name, platform, browser, ip string, isHost bool) (*Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	d := &Device{
		ID:         uuid.New().String(),
		Name:       name,
		Platform:   platform,
		Browser:    browser,
		CreatedAt:  now,
		LastSeenAt: now,
		LastIP:     ip,
		IsHost:     isHost,
	}
	s.snap.Devices[d.ID] = d

	if err := s.save(); err != nil {
		delete(s.snap.Devices, d.ID)
		return nil, err
	}

	s.logger.Info("device added", "device_id", d.ID, "name", d.Name, "host", d.IsHost)
	out := *d
	return &out, nil
}

// GetDevice returns a copy of the device, or nil if it does not exist.
func (s *Store) GetDevice(id string) *Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.snap.Devices[id]
	if !ok {
		return nil
	}
	out := *d
	return &out
}

// RenameDevice updates the display name of a device.
func (s *Store) RenameDevice(id, name string) (*Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.snap.Devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	old := d.Name
	d.Name = name

	if err := s.save(); err != nil {
		d.Name = old
		return nil, err
	}
	out := *d
	return &out, nil
}

// UpdateLastSeen refreshes a device's last-seen timestamp and IP.
func (s *Store) UpdateLastSeen(id, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.snap.Devices[id]
	if !ok {
		return ErrNotFound
	}
	d.LastSeenAt = time.Now().UTC()
	if ip != "" {
		d.LastIP = ip
	}
	return s.save()
}

// RemoveDevice deletes a device. Returns false if it did not exist.
func (s *Store) RemoveDevice(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.snap.Devices[id]
	if !ok {
		return false, nil
	}
	delete(s.snap.Devices, id)

	if err := s.save(); err != nil {
		s.snap.Devices[id] = d
		return false, err
	}

	s.logger.Info("device removed", "device_id", id)
	return true, nil
}

// RevokeAllExcept removes every device other than keepID and returns the
// number removed.
func (s *Store) RevokeAllExcept(keepID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]*Device)
	for id, d := range s.snap.Devices {
		if id != keepID {
			removed[id] = d
			delete(s.snap.Devices, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if err := s.save(); err != nil {
		for id, d := range removed {
			s.snap.Devices[id] = d
		}
		return 0, err
	}

	s.logger.Info("devices revoked", "kept", keepID, "removed", len(removed))
	return len(removed), nil
}

// ListDevices returns copies of all devices ordered by creation time.
func (s *Store) ListDevices() []*Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Device, 0, len(s.snap.Devices))
	for _, d := range s.snap.Devices {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// GenerateToken mints a session token for an existing device.
func (s *Store) GenerateToken(deviceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snap.Devices[deviceID]; !ok {
		return "", ErrNotFound
	}
	return s.codec.Issue(deviceID, TokenTTL)
}

// VerifyToken checks signature and expiry via the codec, then the revoked
// set, then that the embedded device still exists. Both registry-level
// failures report token.StatusRevoked so callers cannot tell them apart.
func (s *Store) VerifyToken(tok string) token.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.codec.Verify(tok)
	if !res.Valid() {
		return res
	}
	if _, revoked := s.revoked[tok]; revoked {
		return token.Result{Status: token.StatusRevoked}
	}
	if _, ok := s.snap.Devices[res.DeviceID]; !ok {
		return token.Result{Status: token.StatusRevoked}
	}
	return res
}

// RevokeToken adds a token string to the persisted revoked set.
func (s *Store) RevokeToken(tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.revoked[tok]; ok {
		return nil
	}
	s.revoked[tok] = struct{}{}
	s.snap.RevokedTokens = append(s.snap.RevokedTokens, tok)

	if err := s.save(); err != nil {
		delete(s.revoked, tok)
		s.snap.RevokedTokens = s.snap.RevokedTokens[:len(s.snap.RevokedTokens)-1]
		return err
	}
	return nil
}

// AccessCode returns the pairing code derived from the signing secret.
func (s *Store) AccessCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return paircode.Derive(s.secret)
}

// CreateRequest persists a new pending pairing request. Repeated requests
// from the same device are not deduplicated.
func (s *Store) CreateRequest(deviceName, platform, browser, ip string) (*PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &PendingRequest{
		ID:         uuid.New().String(),
		DeviceName: deviceName,
		Platform:   platform,
		Browser:    browser,
		IP:         ip,
		Status:     RequestStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	s.snap.Requests[r.ID] = r

	if err := s.save(); err != nil {
		delete(s.snap.Requests, r.ID)
		return nil, err
	}

	s.logger.Info("pairing request created", "request_id", r.ID, "name", r.DeviceName, "ip", r.IP)
	out := *r
	return &out, nil
}

// GetRequest returns a copy of the request, or nil if it does not exist.
func (s *Store) GetRequest(id string) *PendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.snap.Requests[id]
	if !ok {
		return nil
	}
	out := *r
	return &out
}

// ListRequests returns copies of all stored requests ordered by creation
// time. Expiry filtering is the workflow's concern, not the store's.
func (s *Store) ListRequests() []*PendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*PendingRequest, 0, len(s.snap.Requests))
	for _, r := range s.snap.Requests {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ResolveRequest flips a request out of pending exactly once. deviceID and
// tok are recorded only for approvals. Returns the updated request.
func (s *Store) ResolveRequest(id, status, deviceID, tok string) (*PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.snap.Requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != RequestStatusPending {
		return nil, ErrNotPending
	}

	prev := *r
	now := time.Now().UTC()
	r.Status = status
	r.ResolvedAt = &now
	if status == RequestStatusApproved {
		r.DeviceID = deviceID
		r.Token = tok
	}

	if err := s.save(); err != nil {
		*r = prev
		return nil, err
	}

	s.logger.Info("pairing request resolved", "request_id", id, "status", status)
	out := *r
	return &out, nil
}
