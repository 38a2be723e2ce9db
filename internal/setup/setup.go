// Package setup registers the labqc MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ServerName is the key the server is registered under.
const ServerName = "labqc"

// DataDirEnv points the server at its data directory.
const DataDirEnv = "LABQC_DATA_DIR"

// DesktopConfig is the client's configuration file.
type DesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`

	// other keeps top-level settings the client owns.
	other map[string]json.RawMessage
}

// MCPServerConfig is one server entry.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls Configure.
type Options struct {
	ConfigPath  string // client config file; detected when empty
	BinaryPath  string // labqc binary
	DataDir     string // exported as LABQC_DATA_DIR when set
	Transport   string // "stdio" unless overridden
	AutoConfirm bool
}

// Status is the current registration state.
type Status struct {
	ConfigPath string   `json:"config_path"`
	Configured bool     `json:"configured"`
	BinaryPath string   `json:"binary_path,omitempty"`
	DataDir    string   `json:"data_dir"`
	Issues     []string `json:"issues"`
}

// DefaultConfigPath returns the desktop client's config file location.
func DefaultConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadConfig reads the client config. A missing file is an empty config.
func LoadConfig(path string) (*DesktopConfig, error) {
	cfg := &DesktopConfig{MCPServers: map[string]MCPServerConfig{}, other: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.other, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]MCPServerConfig{}
	}

	return cfg, nil
}

// SaveConfig writes the client config, keeping unrelated settings.
func SaveConfig(path string, cfg *DesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]interface{}, len(cfg.other)+1)
	for k, v := range cfg.other {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ServerEntry builds the registration for opts.
func ServerEntry(opts Options) MCPServerConfig {
	entry := MCPServerConfig{
		Command: opts.BinaryPath,
		Args:    []string{"mcp"},
	}
	if opts.Transport != "" && opts.Transport != "stdio" {
		entry.Args = append(entry.Args, "--transport", opts.Transport)
	}
	if opts.DataDir != "" {
		entry.Env = map[string]string{DataDirEnv: opts.DataDir}
	}
	return entry
}

// Configure adds or replaces the labqc entry in the client config.
func Configure(opts Options) (string, error) {
	path, err := resolvePath(opts.ConfigPath)
	if err != nil {
		return "", err
	}
	if opts.BinaryPath == "" {
		return "", fmt.Errorf("server binary path is required")
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return "", err
	}
	cfg.MCPServers[ServerName] = ServerEntry(opts)

	if err := SaveConfig(path, cfg); err != nil {
		return "", err
	}
	return path, nil
}

// Remove drops the labqc entry. It reports whether an entry existed.
func Remove(configPath string) (bool, error) {
	path, err := resolvePath(configPath)
	if err != nil {
		return false, err
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, ServerName)
	return true, SaveConfig(path, cfg)
}

// GetStatus inspects the registration and the data directory.
func GetStatus(configPath string) (*Status, error) {
	status := &Status{Issues: []string{}}

	path, err := resolvePath(configPath)
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not determine client config path: %v", err))
	} else {
		status.ConfigPath = path
		cfg, err := LoadConfig(path)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Could not load client config: %v", err))
		} else if entry, ok := cfg.MCPServers[ServerName]; ok {
			status.Configured = true
			status.BinaryPath = entry.Command
			status.DataDir = entry.Env[DataDirEnv]
			if _, err := os.Stat(entry.Command); os.IsNotExist(err) {
				status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", entry.Command))
			}
		}
	}

	if status.DataDir == "" {
		status.DataDir = DefaultDataDir()
	}
	if _, err := os.Stat(status.DataDir); os.IsNotExist(err) {
		status.Issues = append(status.Issues, fmt.Sprintf("Data directory will be created on first run: %s", status.DataDir))
	}

	return status, nil
}

// Validate reports whether the registration is usable. Warnings alone do
// not make it invalid.
func Validate(configPath string) (bool, []string) {
	status, err := GetStatus(configPath)
	if err != nil {
		return false, []string{err.Error()}
	}

	issues := status.Issues
	if !status.Configured {
		issues = append(issues, "labqc is not registered with the MCP client")
	} else if info, err := os.Stat(status.BinaryPath); err == nil && info.Mode()&0111 == 0 {
		issues = append(issues, fmt.Sprintf("Server binary is not executable: %s", status.BinaryPath))
	}

	return allWarnings(issues), issues
}

func allWarnings(issues []string) bool {
	for _, issue := range issues {
		if !strings.Contains(issue, "will be created") {
			return false
		}
	}
	return true
}

// DefaultDataDir returns ~/.labqc.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".labqc")
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultConfigPath()
}
