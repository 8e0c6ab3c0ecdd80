// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable ApplyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"IACHAT_API_KEY", "GEMINI_API_KEY", "API_KEY", "IACHAT_MODEL",
		"IACHAT_BASE_URL", "IACHAT_DATA_DIR", "IACHAT_STORAGE_DRIVER", "IACHAT_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultModel, cfg.Backend.Model)
	assert.Equal(t, "gemini-3-flash-preview", cfg.Backend.Model)
	assert.Contains(t, cfg.Backend.SystemInstruction, "Respond in Thai")
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "th-TH", cfg.Speech.Locale)
	assert.Equal(t, 100, cfg.UI.NarrowWidth)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad base url", func(c *Config) { c.Backend.BaseURL = "ftp://x" }, "backend.base_url"},
		{"empty model", func(c *Config) { c.Backend.Model = " " }, "backend.model"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"negative quota", func(c *Config) { c.Storage.QuotaBytes = -1 }, "storage.quota_bytes"},
		{"bad rate", func(c *Config) { c.Speech.Rate = -5 }, "speech.rate"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var errs ValidateErrors
			require.ErrorAs(t, err, &errs)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "x"
	cfg.UI.Theme = "y"

	var errs ValidateErrors
	require.ErrorAs(t, cfg.Validate(), &errs)
	assert.Len(t, errs, 2)
	assert.Contains(t, errs.Error(), "; ")
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[backend]
model = "gemini-2.5-pro"

[storage]
driver = "sqlite"
quota_bytes = 1024
`), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "gemini-2.5-pro", cfg.Backend.Model)
	assert.Equal(t, DefaultBaseURL, cfg.Backend.BaseURL)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, int64(1024), cfg.Storage.QuotaBytes)
	assert.Equal(t, "espeak-ng", cfg.Speech.Command)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions are tightened on load")
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[backend\n"), 0600))
	_, err := LoadFromPath(broken)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("[storage]\ndriver = \"tape\"\n"), 0600))
	_, err = LoadFromPath(invalid)
	assert.ErrorContains(t, err, "storage.driver")
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Backend.APIKey = "secret"
	cfg.UI.Markdown = false
	require.NoError(t, SaveTOML(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-gemini")
	t.Setenv("API_KEY", "from-generic")
	t.Setenv("IACHAT_MODEL", "m")
	t.Setenv("IACHAT_BASE_URL", "http://localhost:9")
	t.Setenv("IACHAT_DATA_DIR", "/tmp/iachat")
	t.Setenv("IACHAT_STORAGE_DRIVER", "SQLITE")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "from-gemini", cfg.Backend.APIKey)
	assert.Equal(t, "m", cfg.Backend.Model)
	assert.Equal(t, "http://localhost:9", cfg.Backend.BaseURL)
	assert.Equal(t, "/tmp/iachat", cfg.Storage.Dir)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)

	t.Setenv("IACHAT_API_KEY", "from-iachat")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "from-iachat", cfg.Backend.APIKey)
}

func TestConfig_DataDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.Dir = "/var/lib/iachat"
	dir, err := cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/iachat", dir)

	cfg.Storage.Dir = ""
	dir, err = cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, "data", filepath.Base(dir))
	assert.Equal(t, ".iachat", filepath.Base(filepath.Dir(dir)))
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("backend.model")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, v)

	v, err = cfg.Get("backend.base_url")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, v)

	require.NoError(t, cfg.Set("storage.quota_bytes", "2048"))
	assert.Equal(t, int64(2048), cfg.Storage.QuotaBytes)

	require.NoError(t, cfg.Set("ui.markdown", "false"))
	assert.False(t, cfg.UI.Markdown)

	require.NoError(t, cfg.Set("ui.narrow-width", 80))
	assert.Equal(t, 80, cfg.UI.NarrowWidth)

	_, err = cfg.Get("backend.nope")
	assert.ErrorContains(t, err, "unknown field")
	_, err = cfg.Get("log_level.x")
	assert.ErrorContains(t, err, "not a struct")
	assert.Error(t, cfg.Set("storage.quota_bytes", "lots"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestConfig_StringRedactsKey(t *testing.T) {
	cfg := Default()
	cfg.Backend.APIKey = "AIza-secret"

	assert.NotContains(t, cfg.String(), "AIza-secret")
	assert.Contains(t, cfg.String(), "[REDACTED]")
	assert.Equal(t, "AIza-secret", cfg.Backend.APIKey, "original is untouched")
	assert.Equal(t, "[REDACTED]", cfg.Redacted().Backend.APIKey)
}
