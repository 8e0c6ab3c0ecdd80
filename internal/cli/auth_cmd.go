// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/iachat/internal/auth"
)

// =============================================================================
// LOGIN / REGISTER
// =============================================================================

type credentialFlags struct {
	username string
	password string
	name     string
}

// fill prompts for anything missing. The password is never echoed.
func (f *credentialFlags) fill(withName bool) error {
	if strings.TrimSpace(f.username) == "" {
		return usageErrorf("--username is required")
	}
	if withName && strings.TrimSpace(f.name) == "" {
		return usageErrorf("--name is required")
	}
	if f.password == "" {
		pw, err := readPassword("รหัสผ่าน: ")
		if err != nil {
			return err
		}
		f.password = pw
	}
	return nil
}

func newLoginCommand(g *globalOptions) *cobra.Command {
	f := &credentialFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the account",
		Long: `Log in with a username and password. The account stays active for the
next iachat run until you log out. Without --password you are prompted.`,
		Example: "  iachat login -u somchai",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.fill(false); err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), g, bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.ctrl.Login(cmd.Context(), f.username, f.password); err != nil {
				return err
			}
			s := rt.ctrl.Snapshot()
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ ")+s.User.Initial()+" "+s.User.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newRegisterCommand(g *globalOptions) *cobra.Command {
	f := &credentialFlags{}
	cmd := &cobra.Command{
		Use:     "register",
		Short:   "Create an account and log in",
		Example: `  iachat register -u somchai -n "สมชาย ใจดี"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.fill(true); err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), g, bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.ctrl.Register(cmd.Context(), f.username, f.password, f.name); err != nil {
				return err
			}
			s := rt.ctrl.Snapshot()
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ ")+s.User.Initial()+" "+s.User.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "display name")
	return cmd
}

// =============================================================================
// LOGOUT / WHOAMI
// =============================================================================

func newLogoutCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), g, bootOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.ctrl.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("ออกจากระบบแล้ว"))
			return nil
		},
	}
}

func newWhoamiCommand(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the active account",
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
			u := *s.User
			out := cmd.OutOrStdout()
			if asJSON {
				return outputJSON(out, map[string]any{
					"username": u.Username,
					"name":     u.Name,
					"avatar":   u.Avatar,
					"owner":    auth.IsPrivileged(u),
					"sessions": len(s.Sessions),
				})
			}
			fmt.Fprintln(out, TitleStyle.Render(u.Initial()+" "+u.Name))
			fmt.Fprintln(out, RenderLabel("username", u.Username))
			fmt.Fprintln(out, RenderLabel("sessions", fmt.Sprint(len(s.Sessions))))
			if auth.IsPrivileged(u) {
				fmt.Fprintln(out, RenderLabel("role", "owner"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
