// ABOUTME: Tests for the tunnel supervisor using shell scripts as fake relays
// ABOUTME: Covers URL discovery, idempotent start, stop, exit, and spawn failure

package tunnel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelay builds a supervisor whose "relay" is a shell script.
func fakeRelay(t *testing.T, script string) *Supervisor {
	t.Helper()
	s, err := New(Config{
		Command:    []string{"/bin/sh", "-c", script},
		URLPattern: DefaultURLPattern,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

// waitFor polls Info until cond is satisfied or the deadline passes.
func waitFor(t *testing.T, s *Supervisor, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := s.Info()
		if cond(st) {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached, last state: %+v", s.Info())
	return State{}
}

func TestSupervisor_URLDiscovery(t *testing.T) {
	s := fakeRelay(t, `echo "INF Your quick tunnel is ready: https://witty-crab.trycloudflare.com"; sleep 30`)

	st := s.Start(5174)
	assert.Equal(t, StatusStarting, st.Status)
	require.NotNil(t, st.StartedAt)

	st = waitFor(t, s, func(st State) bool { return st.Status == StatusRunning })
	assert.Equal(t, "https://witty-crab.trycloudflare.com", st.URL)

	s.Stop()
	st = s.Info()
	assert.Equal(t, StatusStopped, st.Status)
	assert.Empty(t, st.URL)
}

func TestSupervisor_URLOnStderr(t *testing.T) {
	s := fakeRelay(t, `echo "https://loud-owl.trycloudflare.com" 1>&2; sleep 30`)

	s.Start(5174)
	st := waitFor(t, s, func(st State) bool { return st.Status == StatusRunning })
	assert.Equal(t, "https://loud-owl.trycloudflare.com", st.URL)
}

func TestSupervisor_StartIdempotent(t *testing.T) {
	s := fakeRelay(t, `echo "https://calm-fox.trycloudflare.com"; sleep 30`)

	s.Start(5174)
	waitFor(t, s, func(st State) bool { return st.Status == StatusRunning })

	// A second start while owned is a no-op returning current state.
	st := s.Start(9999)
	assert.Equal(t, StatusRunning, st.Status)
	assert.Equal(t, "https://calm-fox.trycloudflare.com", st.URL)
}

func TestSupervisor_ProcessExitResetsToStopped(t *testing.T) {
	s := fakeRelay(t, `exit 3`)

	s.Start(5174)
	waitFor(t, s, func(st State) bool { return st.Status == StatusStopped })

	// A fresh start is possible after any terminal event.
	st := s.Start(5174)
	assert.Equal(t, StatusStarting, st.Status)
}

func TestSupervisor_SpawnFailure(t *testing.T) {
	s, err := New(Config{
		Command: []string{"/nonexistent/relay-binary", "{port}"},
	}, nil)
	require.NoError(t, err)

	st := s.Start(5174)
	assert.Equal(t, StatusError, st.Status)
	assert.NotEmpty(t, st.Error)

	// Spawn failure leaves nothing owned; start can be retried.
	assert.Equal(t, StatusError, s.Info().Status)
}

func TestSupervisor_StopWithoutStart(t *testing.T) {
	s := fakeRelay(t, `sleep 30`)
	s.Stop()
	assert.Equal(t, StatusStopped, s.Info().Status)
}

func TestSupervisor_PortExpansion(t *testing.T) {
	argv := expandPort([]string{"cloudflared", "tunnel", "--url", "http://localhost:{port}"}, 5174)
	assert.Equal(t, []string{"cloudflared", "tunnel", "--url", "http://localhost:5174"}, argv)
}

func TestNew_BadPattern(t *testing.T) {
	_, err := New(Config{URLPattern: "("}, nil)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, s.Info().Status)
}
