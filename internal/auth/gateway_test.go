// ABOUTME: Unit tests for the auth gateway facade
// ABOUTME: Covers login flows, pairing-code checks, polling, and validation

package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallpass-dev/hallpass/internal/approval"
	"github.com/hallpass-dev/hallpass/internal/registry"
)

func testGateway(t *testing.T) (*Gateway, *registry.Store, *approval.Workflow) {
	t.Helper()
	store, err := registry.Open(filepath.Join(t.TempDir(), "registry.json"), nil)
	require.NoError(t, err)
	wf := approval.New(store, nil)
	return NewGateway(store, wf, nil), store, wf
}

var testDesc = DeviceDescriptor{Name: "Phone", Platform: "iOS", Browser: "Safari"}

func TestGateway_LoginLocal(t *testing.T) {
	g, store, _ := testGateway(t)

	sess, err := g.LoginLocal(testDesc, "127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, sess.Device)
	assert.True(t, sess.Device.IsHost)
	assert.NotEmpty(t, sess.Token)

	id, ok := g.Validate(sess.Token, "127.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, sess.Device.ID, id)
	assert.NotNil(t, store.GetDevice(id))
}

func TestGateway_LoginWithCode(t *testing.T) {
	g, store, _ := testGateway(t)

	sess, err := g.LoginWithCode(store.AccessCode(), testDesc, "10.0.0.5")
	require.NoError(t, err)
	assert.False(t, sess.Device.IsHost)
	assert.NotEmpty(t, sess.Token)
}

func TestGateway_LoginWithCode_Wrong(t *testing.T) {
	g, store, _ := testGateway(t)

	wrong := "000000"
	if store.AccessCode() == wrong {
		wrong = "000001"
	}
	_, err := g.LoginWithCode(wrong, testDesc, "10.0.0.5")
	assert.ErrorIs(t, err, ErrBadCode)
	assert.Empty(t, store.ListDevices())
}

func TestGateway_RequestAccessAndPoll(t *testing.T) {
	g, store, wf := testGateway(t)

	r, err := g.RequestAccess(store.AccessCode(), testDesc, "10.0.0.5")
	require.NoError(t, err)

	assert.Equal(t, registry.RequestStatusPending, g.CheckStatus(r.ID).Status)

	approved := wf.Approve(r.ID)
	require.NotNil(t, approved)

	res := g.CheckStatus(r.ID)
	assert.Equal(t, registry.RequestStatusApproved, res.Status)
	assert.Equal(t, approved.DeviceID, res.DeviceID)
	assert.NotEmpty(t, res.Token)

	id, ok := g.Validate(res.Token, "10.0.0.5")
	assert.True(t, ok)
	assert.Equal(t, res.DeviceID, id)
}

func TestGateway_RequestAccess_WrongCode(t *testing.T) {
	g, store, wf := testGateway(t)

	wrong := "000000"
	if store.AccessCode() == wrong {
		wrong = "000001"
	}
	_, err := g.RequestAccess(wrong, testDesc, "10.0.0.5")
	assert.ErrorIs(t, err, ErrBadCode)
	assert.Empty(t, wf.List())
}

func TestGateway_CheckStatus_Denied(t *testing.T) {
	g, store, wf := testGateway(t)

	r, err := g.RequestAccess(store.AccessCode(), testDesc, "10.0.0.5")
	require.NoError(t, err)
	require.NotNil(t, wf.Deny(r.ID))

	res := g.CheckStatus(r.ID)
	assert.Equal(t, registry.RequestStatusDenied, res.Status)
	assert.Empty(t, res.Token)
}

func TestGateway_CheckStatus_NotFound(t *testing.T) {
	g, _, _ := testGateway(t)
	assert.Equal(t, StatusNotFound, g.CheckStatus("nope").Status)
}

func TestGateway_Validate_RefreshesLastSeen(t *testing.T) {
	g, store, _ := testGateway(t)

	sess, err := g.LoginLocal(testDesc, "127.0.0.1")
	require.NoError(t, err)

	_, ok := g.Validate(sess.Token, "10.9.9.9")
	require.True(t, ok)
	assert.Equal(t, "10.9.9.9", store.GetDevice(sess.Device.ID).LastIP)
}

func TestGateway_Validate_FailureModesCollapse(t *testing.T) {
	g, store, _ := testGateway(t)

	sess, err := g.LoginLocal(testDesc, "127.0.0.1")
	require.NoError(t, err)

	// Garbage token.
	_, ok := g.Validate("garbage", "127.0.0.1")
	assert.False(t, ok)

	// Revoked device.
	removed, err := store.RemoveDevice(sess.Device.ID)
	require.NoError(t, err)
	require.True(t, removed)
	_, ok = g.Validate(sess.Token, "127.0.0.1")
	assert.False(t, ok)
}

func TestGateway_Logout(t *testing.T) {
	g, store, _ := testGateway(t)

	sess, err := g.LoginLocal(testDesc, "127.0.0.1")
	require.NoError(t, err)

	require.NoError(t, g.Logout(sess.Device.ID, sess.Token))
	assert.Nil(t, store.GetDevice(sess.Device.ID))

	_, ok := g.Validate(sess.Token, "127.0.0.1")
	assert.False(t, ok)
}
