// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
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

	"github.com/jeranaias/iachat/internal/logging"
	"github.com/jeranaias/iachat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete iachat configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level" json:"log_level" yaml:"log_level"`

	Backend BackendConfig `toml:"backend" json:"backend" yaml:"backend"`
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
	Speech  SpeechConfig  `toml:"speech" json:"speech" yaml:"speech"`
	Media   MediaConfig   `toml:"media" json:"media" yaml:"media"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
}

// BackendConfig points at the generative-AI chat service.
type BackendConfig struct {
	BaseURL           string `toml:"base_url" json:"base_url" yaml:"base_url"`
	APIKey            string `toml:"api_key" json:"api_key" yaml:"api_key"`
	Model             string `toml:"model" json:"model" yaml:"model"`
	SystemInstruction string `toml:"system_instruction" json:"system_instruction" yaml:"system_instruction"`
}

// StorageConfig selects where accounts and history are kept.
type StorageConfig struct {
	// Driver is "file", "sqlite" or "memory".
	Driver string `toml:"driver" json:"driver" yaml:"driver"`
	// Dir holds the store; empty means <config dir>/data.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`
	// QuotaBytes caps the total stored bytes (0 = unlimited).
	QuotaBytes int64 `toml:"quota_bytes" json:"quota_bytes" yaml:"quota_bytes"`
}

// SpeechConfig controls text-to-speech playback.
type SpeechConfig struct {
	// Command is the TTS program; empty disables playback.
	Command string `toml:"command" json:"command" yaml:"command"`
	Locale  string `toml:"locale" json:"locale" yaml:"locale"`
	// Rate in words per minute (0 = engine default).
	Rate int `toml:"rate" json:"rate" yaml:"rate"`
}

// MediaConfig holds the capture commands. Each must write the captured
// bytes to stdout.
type MediaConfig struct {
	CameraCommand     string `toml:"camera_command" json:"camera_command" yaml:"camera_command"`
	MicrophoneCommand string `toml:"microphone_command" json:"microphone_command" yaml:"microphone_command"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// NarrowWidth is the terminal width in columns below which the sidebar
	// collapses after navigation.
	NarrowWidth int    `toml:"narrow_width" json:"narrow_width" yaml:"narrow_width"`
	Markdown    bool   `toml:"markdown" json:"markdown" yaml:"markdown"`
	Theme       string `toml:"theme" json:"theme" yaml:"theme"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-3-flash-preview"

	DefaultSystemInstruction = "You are a helpful, polite, and knowledgeable AI assistant. " +
		"You are conversing with a Thai user. Respond in Thai unless asked otherwise. " +
		"You can see images and hear audio if provided. " +
		"If asked who created you, answer: 'คุณไนซ์ ณัฐวรโชติ ประเสริฐศรี และ Ai Google ครับ'."

	// DefaultQuotaBytes matches the usual per-origin web storage allowance.
	DefaultQuotaBytes = 5 * 1024 * 1024
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Backend: BackendConfig{
			BaseURL:           DefaultBaseURL,
			Model:             DefaultModel,
			SystemInstruction: DefaultSystemInstruction,
		},
		Storage: StorageConfig{
			Driver:     "file",
			QuotaBytes: DefaultQuotaBytes,
		},
		Speech: SpeechConfig{
			Command: "espeak-ng",
			Locale:  "th-TH",
		},
		Media: MediaConfig{
			CameraCommand:     "ffmpeg -loglevel error -f v4l2 -i /dev/video0 -frames:v 1 -f mjpeg -",
			MicrophoneCommand: "ffmpeg -loglevel error -f pulse -i default -t 10 -c:a libopus -f webm -",
		},
		UI: UIConfig{
			NarrowWidth: 100,
			Markdown:    true,
			Theme:       "dark",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the iachat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".iachat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataDir returns the directory holding the store and the log file.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// ensureSecurePermissions tightens a config file to 0600; it holds an API key.
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

// Load reads ~/.iachat/config.toml if it exists, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadTOML decodes the TOML file at path into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file with validation.
// Keys missing from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero-valued fields that must never be empty.
func (c *Config) SetDefaults() {
	d := Default()
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = d.Backend.BaseURL
	}
	if c.Backend.Model == "" {
		c.Backend.Model = d.Backend.Model
	}
	if c.Backend.SystemInstruction == "" {
		c.Backend.SystemInstruction = d.Backend.SystemInstruction
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Speech.Locale == "" {
		c.Speech.Locale = d.Speech.Locale
	}
	if c.UI.NarrowWidth == 0 {
		c.UI.NarrowWidth = d.UI.NarrowWidth
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to ~/.iachat/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# iachat configuration file")
	fmt.Fprintln(&buf, "# Generated by iachat - edit with care")
	fmt.Fprintln(&buf)

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
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

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, ValidationError{Field: "log_level", Message: err.Error()})
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("invalid URL %q, must be http(s)://host[/path]", c.Backend.BaseURL),
		})
	}
	if strings.TrimSpace(c.Backend.Model) == "" {
		errs = append(errs, ValidationError{Field: "backend.model", Message: "must not be empty"})
	}

	validDrivers := map[string]bool{"file": true, "sqlite": true, "memory": true}
	if !validDrivers[c.Storage.Driver] {
		errs = append(errs, ValidationError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver '%s', must be one of: file, sqlite, memory", c.Storage.Driver),
		})
	}
	if c.Storage.QuotaBytes < 0 {
		errs = append(errs, ValidationError{Field: "storage.quota_bytes", Message: "cannot be negative"})
	}

	if c.Speech.Rate < 0 || c.Speech.Rate > 1000 {
		errs = append(errs, ValidationError{Field: "speech.rate", Message: "must be between 0 and 1000"})
	}

	if c.UI.NarrowWidth < 0 {
		errs = append(errs, ValidationError{Field: "ui.narrow_width", Message: "cannot be negative"})
	}
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - IACHAT_API_KEY, GEMINI_API_KEY, API_KEY: backend.api_key (first set wins)
//   - IACHAT_MODEL: backend.model
//   - IACHAT_BASE_URL: backend.base_url
//   - IACHAT_DATA_DIR: storage.dir
//   - IACHAT_STORAGE_DRIVER: storage.driver
//   - IACHAT_LOG_LEVEL: log_level
func (c *Config) ApplyEnvOverrides() {
	for _, name := range []string{"IACHAT_API_KEY", "GEMINI_API_KEY", "API_KEY"} {
		if key := os.Getenv(name); key != "" {
			c.Backend.APIKey = key
			break
		}
	}
	if model := os.Getenv("IACHAT_MODEL"); model != "" {
		c.Backend.Model = model
	}
	if base := os.Getenv("IACHAT_BASE_URL"); base != "" {
		c.Backend.BaseURL = base
	}
	if dir := os.Getenv("IACHAT_DATA_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
	if driver := os.Getenv("IACHAT_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = strings.ToLower(driver)
	}
	if level := os.Getenv("IACHAT_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value using dot notation (e.g. "backend.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value using dot notation, converting strings to the
// field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case or kebab-case to a Go field name.
// Matching is case-insensitive, so "base_url" finds BaseURL.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as JSON with the API key redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// Redacted returns a copy safe to print, with the API key masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Backend.APIKey != "" {
		safe.Backend.APIKey = "[REDACTED]"
	}
	return safe
}
