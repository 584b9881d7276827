// ABOUTME: Entry point for the hallpass remote-access control plane daemon
// ABOUTME: Wires the registry, auth gateway, approval workflow, and tunnel supervisor

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/hallpass-dev/hallpass/internal/approval"
	"github.com/hallpass-dev/hallpass/internal/auth"
	"github.com/hallpass-dev/hallpass/internal/config"
	"github.com/hallpass-dev/hallpass/internal/gateway"
	"github.com/hallpass-dev/hallpass/internal/registry"
	"github.com/hallpass-dev/hallpass/internal/tunnel"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _           _ _
 | |__   __ _| | |_ __   __ _ ___ ___
 | '_ \ / _' | | | '_ \ / _' / __/ __|
 | | | | (_| | | | |_) | (_| \__ \__ \
 |_| |_|\__,_|_|_| .__/ \__,_|___/___/
                 |_|
`

// getConfigPath returns the path to the daemon config file.
// Priority: HALLPASS_CONFIG env var > XDG_CONFIG_HOME/hallpass > ~/.config/hallpass
func getConfigPath() string {
	if envPath := os.Getenv("HALLPASS_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "hallpass.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "hallpass", "hallpass.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: hallpassd <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the control plane server")
		fmt.Println("  init     Write a default config file")
		fmt.Println("  code     Print the current pairing code")
		fmt.Println("  health   Check that the server is up")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "code":
		err = runCode()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No file yet: run on defaults so first use needs no setup.
			return config.Default(), configPath, nil
		}
		return nil, configPath, err
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging)

	store, err := registry.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}

	workflow := approval.New(store, logger)
	authGW := auth.NewGateway(store, workflow, logger)
	tun, err := tunnel.New(tunnel.Config{
		Command:    cfg.Tunnel.Command,
		URLPattern: cfg.Tunnel.URLPattern,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating tunnel supervisor: %w", err)
	}

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Registry: %s\n", cfg.Store.Path)
	green.Print("    ▶ ")
	fmt.Print("Code:     ")
	cyan.Println(store.AccessCode())
	fmt.Println()

	logger.Info("starting hallpassd",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"registry", cfg.Store.Path,
	)

	srv := gateway.New(cfg, store, authGW, workflow, tun, logger)
	return srv.Run(ctx)
}

const defaultConfig = `# hallpassd configuration
server:
  http_addr: "127.0.0.1:5175"

store:
  path: "%s"

# tunnel:
#   command: ["cloudflared", "tunnel", "--url", "http://localhost:{port}"]
#   url_pattern: 'https://[a-z0-9-]+\.trycloudflare\.com'

logging:
  level: "info"
  format: "text"
`

func runInit() error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storePath := filepath.Join(filepath.Dir(configPath), "registry.json")
	content := fmt.Sprintf(defaultConfig, storePath)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.New(color.FgGreen).Print("✓ ")
	fmt.Printf("Wrote %s\n", configPath)
	return nil
}

func runCode() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := registry.Open(cfg.Store.Path, setupLogger(config.LoggingConfig{Level: "error"}))
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}

	fmt.Println(store.AccessCode())
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/health", cfg.Server.HTTPAddr)
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status != "ok" {
		return fmt.Errorf("unexpected health response (HTTP %d)", resp.StatusCode)
	}

	color.New(color.FgGreen).Print("✓ ")
	fmt.Printf("Server healthy at %s\n", cfg.Server.HTTPAddr)
	return nil
}
