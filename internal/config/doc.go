// Package config handles configuration loading for hallpassd.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from HALLPASS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/hallpass/hallpass.yaml
//  3. ~/.config/hallpass/hallpass.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	store:
//	  path: "${HALLPASS_STORE}"
//
// # Configuration Sections
//
// Server:
//
//	server:
//	  http_addr: "127.0.0.1:5175"
//
// Registry file:
//
//	store:
//	  path: "~/.local/share/hallpass/registry.json"
//
// Tunnel relay (optional; cloudflared defaults apply when omitted):
//
//	tunnel:
//	  command: ["cloudflared", "tunnel", "--url", "http://localhost:{port}"]
//	  url_pattern: 'https://[a-z0-9-]+\.trycloudflare\.com'
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
