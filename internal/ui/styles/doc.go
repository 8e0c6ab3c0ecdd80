// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the color palette and Lip Gloss styles shared by the
REPL and the full-screen chat UI.

All colors are lipgloss.AdaptiveColor values so they follow the terminal
background. A Theme can force the dark or light variant regardless of what
the terminal reports:

	theme := styles.NewTheme("auto")
	fmt.Println(theme.HeaderTitle.Render("IA Chat"))

Status helpers (RenderSuccess, RenderError, RenderWarning, RenderInfo) prefix
their text with an ASCII indicator.
*/
package styles
