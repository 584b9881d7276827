// ABOUTME: Tests for the file-backed device registry
// ABOUTME: Covers persistence, corrupt-file fallback, token checks, and revocation

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallpass-dev/hallpass/internal/token"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	s, err := Open(path, nil)
	require.NoError(t, err)
	return s
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	s, err := Open(path, nil)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
	assert.Empty(t, s.ListDevices())
}

func TestOpen_PersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")

	s, err := Open(path, nil)
	require.NoError(t, err)
	d, err := s.AddDevice("Phone", "iOS", "Safari", "192.168.1.20", false)
	require.NoError(t, err)
	code := s.AccessCode()

	reopened, err := Open(path, nil)
	require.NoError(t, err)

	got := reopened.GetDevice(d.ID)
	require.NotNil(t, got)
	assert.Equal(t, "Phone", got.Name)
	assert.Equal(t, "iOS", got.Platform)

	// Same secret, same pairing code.
	assert.Equal(t, code, reopened.AccessCode())
}

func TestOpen_CorruptFileFallsBackToFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := Open(path, nil)
	require.NoError(t, err)
	assert.Empty(t, s.ListDevices())
	assert.Regexp(t, `^[0-9]{6}$`, s.AccessCode())
}

func TestStore_TokenRoundtrip(t *testing.T) {
	s := testStore(t)

	d, err := s.AddDevice("Laptop", "macOS", "Chrome", "127.0.0.1", true)
	require.NoError(t, err)

	tok, err := s.GenerateToken(d.ID)
	require.NoError(t, err)

	res := s.VerifyToken(tok)
	assert.Equal(t, token.StatusValid, res.Status)
	assert.Equal(t, d.ID, res.DeviceID)
}

func TestStore_GenerateToken_UnknownDevice(t *testing.T) {
	s := testStore(t)
	_, err := s.GenerateToken("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_VerifyToken_Revoked(t *testing.T) {
	s := testStore(t)

	d, err := s.AddDevice("Laptop", "macOS", "Chrome", "127.0.0.1", true)
	require.NoError(t, err)
	tok, err := s.GenerateToken(d.ID)
	require.NoError(t, err)

	require.NoError(t, s.RevokeToken(tok))
	assert.Equal(t, token.StatusRevoked, s.VerifyToken(tok).Status)
}

func TestStore_VerifyToken_DeviceGone(t *testing.T) {
	s := testStore(t)

	d, err := s.AddDevice("Laptop", "macOS", "Chrome", "127.0.0.1", true)
	require.NoError(t, err)
	tok, err := s.GenerateToken(d.ID)
	require.NoError(t, err)

	removed, err := s.RemoveDevice(d.ID)
	require.NoError(t, err)
	require.True(t, removed)

	// Signature still checks out, but the subject no longer exists.
	assert.Equal(t, token.StatusRevoked, s.VerifyToken(tok).Status)
}

func TestStore_VerifyToken_SecretRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	s, err := Open(path, nil)
	require.NoError(t, err)

	d, err := s.AddDevice("Laptop", "macOS", "Chrome", "127.0.0.1", true)
	require.NoError(t, err)
	tok, err := s.GenerateToken(d.ID)
	require.NoError(t, err)

	// Losing the file rotates the secret; old tokens fail on signature.
	require.NoError(t, os.Remove(path))
	fresh, err := Open(path, nil)
	require.NoError(t, err)

	assert.Equal(t, token.StatusBadSignature, fresh.VerifyToken(tok).Status)
}

func TestStore_RemoveDevice_Missing(t *testing.T) {
	s := testStore(t)
	removed, err := s.RemoveDevice("nope")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_RevokeAllExcept(t *testing.T) {
	s := testStore(t)

	keep, err := s.AddDevice("Keeper", "macOS", "Chrome", "127.0.0.1", true)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.AddDevice("Other", "iOS", "Safari", "10.0.0.5", false)
		require.NoError(t, err)
	}

	count, err := s.RevokeAllExcept(keep.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	devices := s.ListDevices()
	require.Len(t, devices, 1)
	assert.Equal(t, keep.ID, devices[0].ID)

	// Nothing left to remove the second time around.
	count, err = s.RevokeAllExcept(keep.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_RenameDevice(t *testing.T) {
	s := testStore(t)

	d, err := s.AddDevice("Old Name", "Linux", "Firefox", "10.0.0.7", false)
	require.NoError(t, err)

	updated, err := s.RenameDevice(d.ID, "New Name")
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "New Name", s.GetDevice(d.ID).Name)

	_, err = s.RenameDevice("nope", "X")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateLastSeen(t *testing.T) {
	s := testStore(t)

	d, err := s.AddDevice("Laptop", "macOS", "Chrome", "127.0.0.1", true)
	require.NoError(t, err)
	before := s.GetDevice(d.ID).LastSeenAt

	require.NoError(t, s.UpdateLastSeen(d.ID, "10.1.2.3"))

	after := s.GetDevice(d.ID)
	assert.Equal(t, "10.1.2.3", after.LastIP)
	assert.False(t, after.LastSeenAt.Before(before))

	assert.ErrorIs(t, s.UpdateLastSeen("nope", "1.2.3.4"), ErrNotFound)
}

func TestStore_ResolveRequest_SingleShot(t *testing.T) {
	s := testStore(t)

	r, err := s.CreateRequest("Tablet", "Android", "Chrome", "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusPending, r.Status)

	resolved, err := s.ResolveRequest(r.ID, RequestStatusDenied, "", "")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusDenied, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = s.ResolveRequest(r.ID, RequestStatusApproved, "dev", "tok")
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = s.ResolveRequest("nope", RequestStatusDenied, "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListDevices_Ordered(t *testing.T) {
	s := testStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.AddDevice("Device", "Linux", "Firefox", "10.0.0.1", false)
		require.NoError(t, err)
	}

	devices := s.ListDevices()
	require.Len(t, devices, 5)
	for i := 1; i < len(devices); i++ {
		assert.False(t, devices[i].CreatedAt.Before(devices[i-1].CreatedAt))
	}
}
