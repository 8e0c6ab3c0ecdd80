// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTheme_ForcedBackground(t *testing.T) {
	dark := NewTheme("dark")
	require.NotNil(t, dark)
	assert.True(t, dark.IsDark)
	assert.Equal(t, "dark", dark.GlamourStyle())

	light := NewTheme("LIGHT")
	assert.False(t, light.IsDark)
	assert.Equal(t, "light", light.GlamourStyle())
}

func TestNewTheme_StylesRender(t *testing.T) {
	theme := NewTheme("auto")
	for name, out := range map[string]string{
		"header":   theme.HeaderTitle.Render("IA Chat"),
		"session":  theme.SessionItemSelected.Render("แชทใหม่"),
		"user":     theme.UserBubble.Render("hi"),
		"banner":   theme.Banner.Render("full"),
		"login":    theme.LoginBox.Render("x"),
		"shortcut": theme.ShortcutKey.Render("ctrl+n"),
	} {
		assert.NotEmpty(t, out, name)
	}
}

func TestRenderHelpers_IncludeIndicators(t *testing.T) {
	assert.True(t, strings.Contains(RenderSuccess("saved"), StatusIndicators.Success))
	assert.True(t, strings.Contains(RenderError("failed"), StatusIndicators.Error))
	assert.True(t, strings.Contains(RenderWarning("full"), StatusIndicators.Warning))
	assert.True(t, strings.Contains(RenderInfo("note"), StatusIndicators.Info))
	assert.Contains(t, RenderMuted("quiet"), "quiet")
}
