// Package tunnel supervises the external relay process that exposes the
// local service under a public URL.
//
// The relay (cloudflared by default) has no structured status channel, so
// the supervisor attaches to its combined stdout/stderr and scans each line
// for the relay's public-hostname pattern. The first match moves the state
// machine from starting to running and records the URL.
//
// State machine:
//
//	stopped --Start--> starting --URL observed--> running
//	starting|running --Stop--> stopped
//	any --process exit--> stopped
//	spawn failure --> error
//
// Start and Stop do not block on the relay reaching a terminal state;
// callers poll Info. All state lives in memory for one process lifetime.
package tunnel
