package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the MCP server configuration
type Config struct {
	Name        string      `json:"name" yaml:"name"`
	Version     string      `json:"version" yaml:"version"`
	Description string      `json:"description" yaml:"description"`
	Server      Server      `json:"server" yaml:"server"`
	Transports  []Transport `json:"transports" yaml:"transports"`
	Logging     Logging     `json:"logging" yaml:"logging"`
	Delegate    Delegate    `json:"delegate" yaml:"delegate"`
	Tools       Tools       `json:"tools" yaml:"tools"`
}

// Server represents server configuration
type Server struct {
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	Debug     bool   `json:"debug" yaml:"debug"`
	AuthToken string `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`
}

// Transport represents a transport configuration
type Transport struct {
	Type    string `json:"type" yaml:"type"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Logging represents logging configuration
type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path" yaml:"path"`
}

// Delegate describes how the document script is invoked.
type Delegate struct {
	Interpreter     string            `json:"interpreter" yaml:"interpreter"`
	InterpreterArgs []string          `json:"interpreter_args" yaml:"interpreter_args"`
	Script          string            `json:"script" yaml:"script"`
	WorkDir         string            `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`
	TempDir         string            `json:"temp_dir" yaml:"temp_dir"`
	TimeoutSeconds  int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Env             map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Timeout returns the per-invocation limit; zero means none.
func (d Delegate) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Tools holds catalog options.
type Tools struct {
	NamePrefix string `json:"name_prefix" yaml:"name_prefix"`
}

const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable_http"
)

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return &Config{
		Name:        "quip-document-server",
		Version:     "0.1.0",
		Description: "MCP server exposing Quip document read and edit tools",
		Server: Server{
			Host:  "localhost",
			Port:  9080,
			Debug: false,
		},
		Transports: []Transport{
			{
				Type:    TransportStdio,
				Enabled: true,
			},
			{
				Type:    TransportStreamableHTTP,
				Enabled: false,
				URL:     "http://localhost:9080/mcp",
			},
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
			Path:   filepath.Join(home, ".quip-mcp", "logs", "mcp.log"),
		},
		Delegate: Delegate{
			Interpreter:     "python",
			InterpreterArgs: []string{"-u"},
			Script:          filepath.Join("scripts", "quip_edit.py"),
			TempDir:         os.TempDir(),
		},
	}
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Environment variables take the highest priority.
	applyEnvOverrides(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := encode(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func encode(path string, cfg *Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}

func applyEnvOverrides(cfg *Config) {
	if portStr := os.Getenv("MCP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("warning: ignoring invalid MCP_PORT value %q: %v", portStr, err)
		}
	}

	if host := os.Getenv("MCP_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if debug := os.Getenv("MCP_DEBUG"); debug != "" {
		if parsed, err := strconv.ParseBool(debug); err == nil {
			cfg.Server.Debug = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_DEBUG value %q: %v", debug, err)
		}
	}

	if token := os.Getenv("MCP_AUTH_TOKEN"); token != "" {
		cfg.Server.AuthToken = token
	}

	if logLevel := os.Getenv("MCP_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logPath := os.Getenv("MCP_LOG_PATH"); logPath != "" {
		cfg.Logging.Path = logPath
	}

	if interpreter := os.Getenv("QUIP_MCP_INTERPRETER"); interpreter != "" {
		cfg.Delegate.Interpreter = interpreter
	}

	if script := os.Getenv("QUIP_MCP_SCRIPT"); script != "" {
		cfg.Delegate.Script = script
	}

	if tempDir := os.Getenv("QUIP_MCP_TEMP_DIR"); tempDir != "" {
		cfg.Delegate.TempDir = tempDir
	}

	if timeout := os.Getenv("QUIP_MCP_TIMEOUT_SECONDS"); timeout != "" {
		if parsed, err := strconv.Atoi(timeout); err == nil {
			cfg.Delegate.TimeoutSeconds = parsed
		} else {
			log.Printf("warning: ignoring invalid QUIP_MCP_TIMEOUT_SECONDS value %q: %v", timeout, err)
		}
	}

	if prefix, ok := os.LookupEnv("QUIP_MCP_TOOL_PREFIX"); ok {
		cfg.Tools.NamePrefix = prefix
	}
}

// Normalize canonicalizes config values so downstream validation and runtime
// logic operate on stable representations.
func (c *Config) Normalize() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Server.AuthToken = strings.TrimSpace(c.Server.AuthToken)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Path = strings.TrimSpace(c.Logging.Path)
	c.Delegate.Interpreter = strings.TrimSpace(c.Delegate.Interpreter)
	c.Delegate.Script = strings.TrimSpace(c.Delegate.Script)
	c.Delegate.WorkDir = strings.TrimSpace(c.Delegate.WorkDir)
	c.Delegate.TempDir = strings.TrimSpace(c.Delegate.TempDir)
	if c.Delegate.TempDir == "" {
		c.Delegate.TempDir = os.TempDir()
	}
	c.Tools.NamePrefix = strings.TrimSpace(c.Tools.NamePrefix)
	for i := range c.Transports {
		c.Transports[i].Type = strings.ToLower(strings.TrimSpace(c.Transports[i].Type))
		c.Transports[i].URL = strings.TrimSpace(c.Transports[i].URL)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid port number")
	}

	if c.Server.Host == "" {
		return errors.New("host cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.New("invalid log level")
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.New("invalid log format")
	}

	validTransportTypes := map[string]bool{
		TransportStdio:          true,
		TransportStreamableHTTP: true,
	}

	enabledTransports := 0
	for _, t := range c.Transports {
		if !validTransportTypes[t.Type] {
			return fmt.Errorf("invalid transport type: %s", t.Type)
		}
		if t.Enabled {
			enabledTransports++
		}
	}

	if enabledTransports == 0 {
		return errors.New("at least one transport must be enabled")
	}

	if c.Delegate.Interpreter == "" {
		return errors.New("delegate interpreter cannot be empty")
	}

	if c.Delegate.Script == "" {
		return errors.New("delegate script cannot be empty")
	}

	if c.Delegate.TimeoutSeconds < 0 {
		return fmt.Errorf("invalid delegate timeout seconds %d: must not be negative", c.Delegate.TimeoutSeconds)
	}

	for _, r := range c.Tools.NamePrefix {
		if !isToolNameRune(r) {
			return fmt.Errorf("invalid tool name prefix %q: only letters, digits, '_' and '-' are allowed", c.Tools.NamePrefix)
		}
	}

	return nil
}

func isToolNameRune(r rune) bool {
	return r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// TransportEnabled reports whether the named transport is switched on.
func (c *Config) TransportEnabled(kind string) bool {
	for _, t := range c.Transports {
		if t.Type == kind && t.Enabled {
			return true
		}
	}
	return false
}

// TransportURL returns the advertised URL of the named transport, or "".
func (c *Config) TransportURL(kind string) string {
	for _, t := range c.Transports {
		if t.Type == kind {
			return t.URL
		}
	}
	return ""
}

// ResolveConfigPath returns the path that should be used for configuration.
func ResolveConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv("MCP_CONFIG_PATH")); path != "" {
		return path, nil
	}

	for _, candidate := range []string{"config/mcp_config.json", "config/mcp_config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".quip-mcp", "config", "mcp_config.json"), nil
}

// EnsureDefaultConfig creates a default config file if one does not exist.
func EnsureDefaultConfig(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path cannot be empty")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	return SaveConfig(NewConfig(), path)
}
