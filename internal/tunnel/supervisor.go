// ABOUTME: Supervisor for the external relay subprocess that publishes a public URL
// ABOUTME: Discovers the URL by scanning combined stdout/stderr with a regex

package tunnel

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Status of the supervised relay process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
)

// State is the externally visible tunnel state. It is rebuilt each process
// lifetime and never persisted.
type State struct {
	Status    Status     `json:"status"`
	URL       string     `json:"url,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Default relay invocation. The relay offers no structured status API, so
// the public URL is recovered from its log output.
var (
	DefaultCommand    = []string{"cloudflared", "tunnel", "--url", "http://localhost:{port}"}
	DefaultURLPattern = `https://[a-z0-9-]+\.trycloudflare\.com`
)

// Config controls which relay binary is spawned and how its public URL is
// recognized. The literal "{port}" in any Command element is replaced by the
// local port passed to Start.
type Config struct {
	Command    []string
	URLPattern string
}

// Supervisor owns at most one relay subprocess at a time. Start is an
// idempotent no-op while a process is owned; any process exit resets the
// supervisor so a later Start always works.
type Supervisor struct {
	command []string
	urlRe   *regexp.Regexp
	logger  *slog.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	gen   int // bumped on stop/restart so stale goroutines can't write state
	state State
}

// New creates a supervisor. Zero-value config fields fall back to the
// cloudflared defaults.
func New(cfg Config, logger *slog.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	command := cfg.Command
	if len(command) == 0 {
		command = DefaultCommand
	}
	pattern := cfg.URLPattern
	if pattern == "" {
		pattern = DefaultURLPattern
	}
	urlRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling tunnel URL pattern: %w", err)
	}

	return &Supervisor{
		command: command,
		urlRe:   urlRe,
		logger:  logger.With("component", "tunnel"),
		state:   State{Status: StatusStopped},
	}, nil
}

// Start spawns the relay targeting the given local port. If a process is
// already owned the current state is returned unchanged. Start returns once
// the spawn is attempted; callers poll Info to observe the URL.
func (s *Supervisor) Start(localPort int) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return s.state
	}

	argv := expandPort(s.command, localPort)
	cmd := exec.Command(argv[0], argv[1:]...)

	// One pipe carries both streams; relays log the URL to either.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		s.state = State{Status: StatusError, Error: fmt.Sprintf("starting relay: %v", err)}
		s.logger.Error("relay spawn failed", "command", argv[0], "error", err)
		return s.state
	}

	s.cmd = cmd
	s.gen++
	now := time.Now()
	s.state = State{Status: StatusStarting, StartedAt: &now}
	s.logger.Info("relay started", "command", argv[0], "port", localPort, "pid", cmd.Process.Pid)

	go s.scanOutput(s.gen, pr)
	go s.waitExit(s.gen, cmd, pw)

	return s.state
}

// Stop terminates the owned process, if any, and resets to stopped.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.gen++
	s.state = State{Status: StatusStopped}
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			s.logger.Warn("killing relay failed", "error", err)
		}
		s.logger.Info("relay stopped")
	}
}

// Info returns the current cached state. No I/O.
func (s *Supervisor) Info() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// scanOutput reads the combined output line by line until EOF, promoting the
// state to running on the first URL match.
func (s *Supervisor) scanOutput(gen int, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		s.logger.Debug("relay output", "line", line)

		match := s.urlRe.FindString(line)
		if match == "" {
			continue
		}

		s.mu.Lock()
		if s.gen == gen && s.state.Status == StatusStarting {
			s.state.Status = StatusRunning
			s.state.URL = match
			s.logger.Info("relay URL discovered", "url", match)
		}
		s.mu.Unlock()
		// Keep draining so the process never blocks on a full pipe.
	}
}

// waitExit reaps the process and resets state once it is gone, whatever the
// exit status. A stale generation means Stop or a restart already took over.
func (s *Supervisor) waitExit(gen int, cmd *exec.Cmd, pw *io.PipeWriter) {
	err := cmd.Wait()
	pw.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return
	}
	s.cmd = nil
	if err != nil {
		s.logger.Warn("relay exited", "error", err)
	} else {
		s.logger.Info("relay exited")
	}
	s.state = State{Status: StatusStopped}
}

func expandPort(command []string, port int) []string {
	out := make([]string, len(command))
	for i, a := range command {
		out[i] = strings.ReplaceAll(a, "{port}", strconv.Itoa(port))
	}
	return out
}
