// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/iachat/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Long: `Show or change settings stored in ~/.iachat/config.toml.

Keys use dot notation matching the file's sections, for example
backend.model, storage.driver or ui.narrow_width. Environment variables
(IACHAT_API_KEY, IACHAT_MODEL, IACHAT_DATA_DIR, ...) override the file.`,
	}
	cmd.AddCommand(
		newConfigShowCommand(g),
		newConfigPathCommand(g),
		newConfigInitCommand(g),
		newConfigGetCommand(g),
		newConfigSetCommand(g),
	)
	return cmd
}

func newConfigShowCommand(g *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			safe := cfg.Redacted()
			safe.Backend.APIKey = maskAPIKey(cfg.Backend.APIKey)
			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "json":
				return outputJSON(out, safe)
			case "yaml", "yml":
				return outputYAML(out, safe)
			case "toml", "":
				return toml.NewEncoder(out).Encode(safe)
			default:
				return usageErrorf("unknown format %q (toml, json or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "toml, json or yaml")
	return cmd
}

func newConfigPathCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file and data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configFilePath(g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, RenderLabel("config", path))
			if cfg, err := loadConfig(g); err == nil {
				if dir, err := cfg.DataDir(); err == nil {
					fmt.Fprintln(out, RenderLabel("data", dir))
				}
			}
			return nil
		},
	}
}

func newConfigInitCommand(g *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configFilePath(g)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return usageErrorf("%s already exists; use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ ")+path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigGetCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Print one setting",
		Example: "  iachat config get backend.model",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			fmt.Fprintln(cmd.OutOrStdout(), maskIfSecret(args[0], fmt.Sprint(v)))
			return nil
		},
	}
}

func newConfigSetCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Change one setting in the config file",
		Example: "  iachat config set storage.driver sqlite\n  iachat config set ui.markdown false",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath(g)
			if err != nil {
				return err
			}
			// Edit the file, not the environment-adjusted view.
			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return err
				}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &UsageError{Message: err.Error()}
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ ")+args[0]+" = "+maskIfSecret(args[0], args[1]))
			return nil
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// maskAPIKey shows a short fingerprint instead of the key.
func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) < 8 {
		return "[invalid key]"
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("sha256:%x...", hash[:4])
}

// maskIfSecret masks the value if the key names a secret.
func maskIfSecret(key, value string) string {
	lower := strings.ToLower(key)
	for _, s := range []string{"key", "secret", "token", "password"} {
		if strings.Contains(lower, s) {
			return maskAPIKey(value)
		}
	}
	return value
}
