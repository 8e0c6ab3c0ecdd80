// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/commands"
	"github.com/jeranaias/iachat/internal/export"
	"github.com/jeranaias/iachat/internal/util"
)

// =============================================================================
// SESSIONS
// =============================================================================

// sessionSummary is the JSON row of the sessions listing.
type sessionSummary struct {
	Number   int    `json:"number"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Messages int    `json:"messages"`
	Updated  string `json:"updated"`
	Active   bool   `json:"active"`
}

func newSessionsCommand(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, oldest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), g, bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			s, err := rt.requireUser()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			list := s.SidebarSessions()
			if asJSON {
				rows := make([]sessionSummary, len(list))
				for i, sess := range list {
					rows[i] = sessionSummary{
						Number:   i + 1,
						ID:       sess.ID,
						Title:    sess.Title,
						Messages: len(sess.Messages),
						Updated:  sess.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
						Active:   sess.ID == s.ActiveID,
					}
				}
				return outputJSON(out, rows)
			}
			lines := commands.SessionLines(s)
			fmt.Fprintln(out, TitleStyle.Render(lines[0]))
			for i, line := range lines[1:] {
				if i < len(list) {
					line += "  " + DimStyle.Render(formatAge(list[i].UpdatedAt))
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCommand(g *globalOptions) *cobra.Command {
	var (
		format      string
		outputDir   string
		attachments bool
		open        bool
	)
	cmd := &cobra.Command{
		Use:   "export [number|id]",
		Short: "Export a conversation to a file",
		Long: `Export a conversation as Markdown, JSON or YAML. Without an argument the
most recent conversation is exported; otherwise use a number from
'iachat sessions' or a session id.`,
		Example: "  iachat export --format json\n  iachat export 2 -o ~/chats",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), g, bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			s, err := rt.requireUser()
			if err != nil {
				return err
			}
			id := s.ActiveID
			if len(args) == 1 {
				if id, err = commands.ResolveSession(s, args[0]); err != nil {
					return err
				}
			}
			target := -1
			for i := range s.Sessions {
				if s.Sessions[i].ID == id {
					target = i
					break
				}
			}
			if target < 0 {
				return usageErrorf("no conversation to export")
			}

			opts := export.DefaultOptions()
			opts.OutputDir = outputDir
			opts.IncludeAttachments = attachments
			opts.OpenAfterExport = open
			opts.Author = s.User.Name
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			path, err := export.ToFile(&s.Sessions[target], exporter, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ ")+util.SingleLine(s.Sessions[target].Title)+" → "+path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown, json or yaml")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory")
	cmd.Flags().BoolVar(&attachments, "attachments", false, "embed attachment data (json and yaml)")
	cmd.Flags().BoolVar(&open, "open", false, "open the file in the default application")
	return cmd
}

// =============================================================================
// RESET
// =============================================================================

func newResetCommand(g *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Permanently delete all chat history (owner only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), g, bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			s, err := rt.requireUser()
			if err != nil {
				return err
			}
			if !s.Privileged() {
				return app.ErrNotPrivileged
			}
			ok, err := RequireConfirmation(yes, commands.ResetConfirmText, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("ยกเลิก"))
				return nil
			}
			if err := rt.ctrl.FactoryReset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ ")+commands.ResetLabel)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
