// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/iachat/internal/config"
	"github.com/jeranaias/iachat/internal/ui/chat"
	"github.com/jeranaias/iachat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dataDir    string
	driver     string
	logLevel   string
	verbose    bool
}

// NewRootCommand builds the iachat command tree. Running it without a
// subcommand starts the full-screen UI.
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "iachat",
		Short: "Thai AI chat assistant for the terminal",
		Long: `iachat is a Thai-language AI chat client.

Conversations are kept per account and can be continued later, replies
stream in as they are generated and can be read aloud, and photos or voice
recordings can be sent along with a message.

Quick Start:
  iachat                      # Full-screen chat
  iachat chat                 # Line-mode chat
  iachat login -u <name>      # Log in without opening the chat
  iachat sessions             # List saved conversations
  iachat export --format md   # Export the current conversation`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), g)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.iachat/config.toml)")
	pf.StringVar(&g.dataDir, "data-dir", "", "directory holding accounts, history and the log")
	pf.StringVar(&g.driver, "driver", "", "storage driver: file, sqlite or memory")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "also write log records to stderr (line-mode commands)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newTUICommand(g),
		newChatCommand(g),
		newLoginCommand(g),
		newRegisterCommand(g),
		newLogoutCommand(g),
		newWhoamiCommand(g),
		newSessionsCommand(g),
		newExportCommand(g),
		newResetCommand(g),
		newConfigCommand(g),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(stderr, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// loadConfig reads the config file and applies flag overrides.
func loadConfig(g *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFromPath(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if g.dataDir != "" {
		cfg.Storage.Dir = g.dataDir
	}
	if g.driver != "" {
		cfg.Storage.Driver = g.driver
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configFilePath is where config init/set write.
func configFilePath(g *globalOptions) (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.ConfigPath()
}

// =============================================================================
// FULL-SCREEN UI
// =============================================================================

func newTUICommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), g)
		},
	}
}

func runTUI(ctx context.Context, g *globalOptions) error {
	if err := RequiresTTY("the full-screen chat"); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Log records would corrupt the alternate screen.
	quiet := *g
	quiet.verbose = false
	rt, err := bootstrap(ctx, &quiet, bootOptions{speech: true, watch: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	return chat.Run(ctx, chat.Options{
		Env:         rt.env,
		Registry:    rt.registry,
		Theme:       styles.NewTheme(rt.cfg.UI.Theme),
		Logger:      rt.log,
		Markdown:    rt.cfg.UI.Markdown,
		NarrowWidth: rt.cfg.UI.NarrowWidth,
		ModelName:   rt.cfg.Backend.Model,
	})
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("iachat "+Version))
			fmt.Fprintln(out, RenderLabel("commit", GitCommit))
			fmt.Fprintln(out, RenderLabel("built", BuildDate))
		},
	}
}
