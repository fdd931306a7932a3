// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/fireside/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Storage backends.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Model providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

// Default model ids per provider.
const (
	DefaultOpenRouterModel = "google/gemini-flash-1.5"
	DefaultAnthropicModel  = "claude-3-7-sonnet-latest"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete fireside configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Server  ServerConfig  `toml:"server" json:"server"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Model   ModelConfig   `toml:"model" json:"model"`
	History HistoryConfig `toml:"history" json:"history"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Host      string `toml:"host" json:"host"`
	Port      int    `toml:"port" json:"port"`
	StaticDir string `toml:"static_dir" json:"static_dir"`

	// Per-client request rate (requests/second) and burst. Zero rate disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`

	// CORSOrigins lists allowed browser origins. Empty means same-origin only.
	CORSOrigins []string `toml:"cors_origins" json:"cors_origins"`

	ReadTimeoutSecs  int `toml:"read_timeout_secs" json:"read_timeout_secs"`
	WriteTimeoutSecs int `toml:"write_timeout_secs" json:"write_timeout_secs"`

	// MaxPromptChars bounds a single prompt.
	MaxPromptChars int `toml:"max_prompt_chars" json:"max_prompt_chars"`
}

// StorageConfig selects and locates the byte store.
type StorageConfig struct {
	Backend    string `toml:"backend" json:"backend"`
	Dir        string `toml:"dir" json:"dir"`
	BoltPath   string `toml:"bolt_path" json:"bolt_path"`
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path"`
}

// ModelConfig configures the model collaborator.
type ModelConfig struct {
	Provider        string   `toml:"provider" json:"provider"`
	DefaultModel    string   `toml:"default_model" json:"default_model"`
	Temperature     *float64 `toml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxOutputTokens int      `toml:"max_output_tokens" json:"max_output_tokens"`

	OpenRouterKey string `toml:"openrouter_key" json:"openrouter_key"`
	AnthropicKey  string `toml:"anthropic_key" json:"anthropic_key"`
	BaseURL       string `toml:"base_url" json:"base_url"`

	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries  int `toml:"max_retries" json:"max_retries"`
}

// HistoryConfig controls conversation listings.
type HistoryConfig struct {
	SummaryLength int `toml:"summary_length" json:"summary_length"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with default values.
func Default() *Config {
	dataDir, err := ConfigDir()
	if err != nil {
		dataDir = ".fireside"
	}

	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8000,
			StaticDir:        "static",
			RateLimit:        5,
			RateBurst:        20,
			CORSOrigins:      []string{},
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 180,
			MaxPromptChars:   32000,
		},

		Storage: StorageConfig{
			Backend:    BackendFile,
			Dir:        filepath.Join(dataDir, "history"),
			BoltPath:   filepath.Join(dataDir, "fireside.bolt"),
			SQLitePath: filepath.Join(dataDir, "fireside.db"),
		},

		Model: ModelConfig{
			// DefaultModel is filled per provider by fillDefaults.
			Provider:    ProviderOpenRouter,
			TimeoutSecs: 120,
			MaxRetries:  3,
		},

		History: HistoryConfig{
			SummaryLength: 80,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the fireside configuration and data directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".fireside"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions tightens config files to 0600.
// SECURITY: config files may hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.fireside/config.toml, then config.json, and falls back to
// defaults. Environment overrides are applied last and the result is
// validated. A file that fails to parse is reported alongside the defaults.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	candidates := []struct {
		path func() (string, error)
		load func(*Config, string) error
		kind string
	}{
		{ConfigPathTOML, LoadTOML, "TOML"},
		{ConfigPathJSON, LoadJSON, "JSON"},
	}
	for _, c := range candidates {
		path, err := c.path()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		if err := c.load(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load %s config: %w", c.kind, err)
			cfg = Default()
			continue
		}
		return finish(cfg)
	}

	cfg, err := finish(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are read as JSON; anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	load, kind := LoadTOML, "TOML"
	if strings.HasSuffix(path, ".json") {
		load, kind = LoadJSON, "JSON"
	}
	if err := load(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load %s config from %s: %w", kind, path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// fillDefaults fills zero values left by a partial config file.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Server
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaults.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = defaults.Server.StaticDir
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = defaults.Server.RateBurst
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = defaults.Server.ReadTimeoutSecs
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = defaults.Server.WriteTimeoutSecs
	}
	if cfg.Server.MaxPromptChars == 0 {
		cfg.Server.MaxPromptChars = defaults.Server.MaxPromptChars
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = defaults.Storage.Dir
	}
	if cfg.Storage.BoltPath == "" {
		cfg.Storage.BoltPath = defaults.Storage.BoltPath
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = defaults.Storage.SQLitePath
	}

	// Model
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = defaults.Model.Provider
	}
	if cfg.Model.DefaultModel == "" {
		cfg.Model.DefaultModel = DefaultModelFor(cfg.Model.Provider)
	}
	if cfg.Model.TimeoutSecs == 0 {
		cfg.Model.TimeoutSecs = defaults.Model.TimeoutSecs
	}
	if cfg.Model.MaxRetries == 0 {
		cfg.Model.MaxRetries = defaults.Model.MaxRetries
	}

	// History
	if cfg.History.SummaryLength == 0 {
		cfg.History.SummaryLength = defaults.History.SummaryLength
	}

	return nil
}

// DefaultModelFor returns the default model id for a provider.
func DefaultModelFor(provider string) string {
	if strings.EqualFold(provider, ProviderAnthropic) {
		return DefaultAnthropicModel
	}
	return DefaultOpenRouterModel
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# fireside configuration file\n")
	b.WriteString("# Environment variables (FIRESIDE_*) override these values.\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, []byte(b.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg to path as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks ranges and enumerations. All problems are reported at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "cannot be negative")
	}
	if c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1, got %d", c.Server.RateBurst)
	}
	if c.Server.ReadTimeoutSecs < 1 || c.Server.WriteTimeoutSecs < 1 {
		add("server.timeouts", "read and write timeouts must be positive")
	}
	if c.Server.MaxPromptChars < 1 {
		add("server.max_prompt_chars", "must be positive, got %d", c.Server.MaxPromptChars)
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			add("server.cors_origins", "invalid origin %q", origin)
		}
	}

	// Storage
	switch strings.ToLower(c.Storage.Backend) {
	case BackendFile:
		if c.Storage.Dir == "" {
			add("storage.dir", "required for the file backend")
		}
	case BackendBolt:
		if c.Storage.BoltPath == "" {
			add("storage.bolt_path", "required for the bolt backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			add("storage.sqlite_path", "required for the sqlite backend")
		}
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, bolt, sqlite", c.Storage.Backend)
	}

	// Model
	switch strings.ToLower(c.Model.Provider) {
	case ProviderOpenRouter, ProviderAnthropic:
	default:
		add("model.provider", "invalid provider '%s', must be one of: openrouter, anthropic", c.Model.Provider)
	}
	if c.Model.Temperature != nil && (*c.Model.Temperature < 0 || *c.Model.Temperature > 2) {
		add("model.temperature", "must be 0-2, got %g", *c.Model.Temperature)
	}
	if c.Model.MaxOutputTokens < 0 {
		add("model.max_output_tokens", "cannot be negative")
	}
	if c.Model.TimeoutSecs < 1 {
		add("model.timeout_secs", "must be positive, got %d", c.Model.TimeoutSecs)
	}
	if c.Model.MaxRetries < 0 || c.Model.MaxRetries > 10 {
		add("model.max_retries", "must be 0-10, got %d", c.Model.MaxRetries)
	}
	if c.Model.BaseURL != "" {
		if u, err := url.Parse(c.Model.BaseURL); err != nil || u.Scheme == "" {
			add("model.base_url", "invalid URL %q", c.Model.BaseURL)
		}
	}

	// History
	if c.History.SummaryLength < 1 {
		add("history.summary_length", "must be positive, got %d", c.History.SummaryLength)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - FIRESIDE_MODEL (or VERTEX_MODEL_ID): model.default_model
//   - FIRESIDE_PROVIDER: model.provider
//   - FIRESIDE_OPENROUTER_KEY (or OPENROUTER_API_KEY): model.openrouter_key
//   - FIRESIDE_ANTHROPIC_KEY (or ANTHROPIC_API_KEY): model.anthropic_key
//   - FIRESIDE_BASE_URL: model.base_url
//   - FIRESIDE_STORAGE: storage.backend
//   - FIRESIDE_HISTORY_DIR: storage.dir
//   - FIRESIDE_HOST / FIRESIDE_PORT: server.host / server.port
//   - FIRESIDE_STATIC_DIR: server.static_dir
func (c *Config) ApplyEnvOverrides() {
	if model := firstEnv("FIRESIDE_MODEL", "VERTEX_MODEL_ID"); model != "" {
		c.Model.DefaultModel = model
	}
	if provider := os.Getenv("FIRESIDE_PROVIDER"); provider != "" {
		c.Model.Provider = strings.ToLower(provider)
	}
	if key := firstEnv("FIRESIDE_OPENROUTER_KEY", "OPENROUTER_API_KEY"); key != "" {
		c.Model.OpenRouterKey = key
	}
	if key := firstEnv("FIRESIDE_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"); key != "" {
		c.Model.AnthropicKey = key
	}
	if base := os.Getenv("FIRESIDE_BASE_URL"); base != "" {
		c.Model.BaseURL = base
	}
	if backend := os.Getenv("FIRESIDE_STORAGE"); backend != "" {
		c.Storage.Backend = strings.ToLower(backend)
	}
	if dir := os.Getenv("FIRESIDE_HISTORY_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
	if host := os.Getenv("FIRESIDE_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("FIRESIDE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring FIRESIDE_PORT=%q: %v\n", port, err)
		}
	}
	if dir := os.Getenv("FIRESIDE_STATIC_DIR"); dir != "" {
		c.Server.StaticDir = dir
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// =============================================================================
// GET (DOT NOTATION)
// =============================================================================

// Get retrieves a value by its TOML path, e.g. "storage.backend".
// SECURITY: API keys are returned redacted.
func (c *Config) Get(key string) (interface{}, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c.Redacted()).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Ptr {
				if field.IsNil() {
					return nil, nil
				}
				return field.Elem().Interface(), nil
			}
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// =============================================================================
// REDACTION
// =============================================================================

// Redacted returns a copy with API keys replaced.
func (c *Config) Redacted() *Config {
	safe := *c
	safe.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	if c.Model.Temperature != nil {
		t := *c.Model.Temperature
		safe.Model.Temperature = &t
	}
	if safe.Model.OpenRouterKey != "" {
		safe.Model.OpenRouterKey = "[REDACTED]"
	}
	if safe.Model.AnthropicKey != "" {
		safe.Model.AnthropicKey = "[REDACTED]"
	}
	return &safe
}

// String returns the redacted configuration as JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
