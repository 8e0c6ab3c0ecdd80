// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/iachat/internal/commands"
	"github.com/jeranaias/iachat/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the current screen.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if !m.state.LoggedIn() {
		status := m.helpLine(m.keys.LoginHelp(), m.width)
		return lipgloss.JoinVertical(lipgloss.Left,
			m.login.view(m.width, m.height-lipgloss.Height(status)),
			status,
		)
	}
	if m.sidebarOverlay() {
		return m.sidebarView(m.width, m.height)
	}

	w := m.mainWidth()
	parts := []string{m.headerView(w)}
	if b := m.bannerView(w); b != "" {
		parts = append(parts, b)
	}
	parts = append(parts, m.viewport.View())
	if n := m.noticeView(w); n != "" {
		parts = append(parts, n)
	}
	parts = append(parts, m.inputView(w), m.statusView(w))
	main := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if !m.sidebarVisible() {
		return main
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(sidebarWidth, m.height), main)
}

// headerView shows the chat title, the model and the voice toggle.
func (m *Model) headerView(width int) string {
	t := m.theme
	s := m.state

	toggle := t.ToggleOff.Render("🔇 " + commands.VoiceOffLabel)
	if s.AutoSpeak {
		toggle = t.ToggleOn.Render("🔊 " + commands.VoiceOnLabel)
	}

	subtitle := t.OnlineBadge.Render("● " + OnlineLabel)
	if m.modelName != "" {
		subtitle = t.HeaderSubtitle.Render(m.modelName) + "  " + subtitle
	}

	inner := width - t.Header.GetHorizontalFrameSize()
	titleWidth := inner - lipgloss.Width(toggle) - 1
	title := t.HeaderTitle.Render(util.TruncateWidth(util.SingleLine(s.Title()), titleWidth))
	gap := inner - lipgloss.Width(title) - lipgloss.Width(toggle)
	if gap < 1 {
		gap = 1
	}
	line := title + strings.Repeat(" ", gap) + toggle
	return t.Header.Width(width).Render(line + "\n" + subtitle)
}

// bannerView is the persistent storage warning, empty when storage is fine.
func (m *Model) bannerView(width int) string {
	if m.state.StorageWarning == "" {
		return ""
	}
	return m.theme.Banner.Width(width).Render("⚠️ " + m.state.StorageWarning + " - " + StorageBannerHint)
}

// noticeView shows command output, alerts, errors and confirmations.
func (m *Model) noticeView(width int) string {
	t := m.theme
	var lines []string
	switch {
	case m.confirm != nil:
		lines = append(lines,
			t.DangerButton.Render(m.confirm.Command.Confirm),
			t.ShortcutKey.Render("y")+" "+t.ShortcutDesc.Render("ยืนยัน")+"  "+
				t.ShortcutKey.Render("n")+" "+t.ShortcutDesc.Render("ยกเลิก"),
		)
	case m.alert != "":
		lines = append(lines, t.ErrorText.Render(m.alert), t.ShortcutDesc.Render("enter / esc"))
	default:
		lines = append(lines, m.notice...)
		if m.errText != "" {
			lines = append(lines, t.ErrorText.Render(m.errText))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return lipgloss.NewStyle().Width(width).Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func (m *Model) inputView(width int) string {
	box := m.input.View()
	if pending := m.env.Pending(); len(pending) > 0 {
		labels := make([]string, len(pending))
		for i, a := range pending {
			labels[i] = "📎 " + commands.AttachmentLabel(a)
		}
		box = m.theme.Attachment.Render(strings.Join(labels, "  ")) + "\n" + box
	}
	return m.theme.InputContainer.Width(width).Render(box)
}

func (m *Model) statusView(width int) string {
	bindings := m.keys.ChatHelp()
	if m.focus == focusSidebar {
		bindings = m.keys.SidebarHelp()
	}
	line := m.helpLine(bindings, width)
	if m.state.Loading {
		line = m.theme.StatusBar.Render(m.spinner.View()) + line
	}
	return line
}

func (m *Model) helpLine(bindings []key.Binding, width int) string {
	t := m.theme
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, t.ShortcutKey.Render(h.Key)+" "+t.ShortcutDesc.Render(h.Desc))
	}
	line := util.TruncateWidth(strings.Join(parts, "  "), width-t.StatusBar.GetHorizontalFrameSize())
	return t.StatusBar.Width(width).Render(line)
}

// =============================================================================
// SIDEBAR
// =============================================================================

type entryKind int

const (
	entryNewChat entryKind = iota
	entrySession
	entryReset
	entryLogout
)

// sidebarEntry is one selectable row of the history pane.
type sidebarEntry struct {
	kind      entryKind
	sessionID string
	label     string
	meta      string
}

// sidebarEntries lists the history pane rows: the new chat button, the
// sessions oldest first, then the account actions.
func (m *Model) sidebarEntries() []sidebarEntry {
	s := m.state
	entries := []sidebarEntry{{kind: entryNewChat, label: "+ " + commands.NewChatLabel}}
	for _, sess := range s.SidebarSessions() {
		entries = append(entries, sidebarEntry{
			kind:      entrySession,
			sessionID: sess.ID,
			label:     util.SingleLine(sess.Title),
			meta:      sess.UpdatedAt.Local().Format("02/01 15:04"),
		})
	}
	if s.Privileged() {
		entries = append(entries, sidebarEntry{kind: entryReset, label: commands.ResetLabel})
	}
	return append(entries, sidebarEntry{kind: entryLogout, label: commands.LogoutLabel})
}

func (m *Model) sidebarView(width, height int) string {
	t := m.theme
	s := m.state
	inner := width - t.Sidebar.GetHorizontalFrameSize()
	entries := m.sidebarEntries()

	row := func(i int, e sidebarEntry) string {
		style := t.SessionItem
		switch {
		case m.focus == focusSidebar && i == m.sidebarCursor:
			style = t.SessionItemSelected
		case e.kind == entrySession && e.sessionID == s.ActiveID:
			style = t.SessionItemSelected.Bold(false)
		case e.kind == entryReset:
			style = t.DangerButton.PaddingLeft(1)
		}
		text := util.TruncateWidth(e.label, inner-style.GetHorizontalFrameSize())
		if e.meta != "" {
			text += "\n" + t.SessionMeta.Render(e.meta)
		}
		return style.Width(inner).Render(text)
	}

	var top []string
	top = append(top, row(0, entries[0]), t.SidebarHeading.Render(commands.HistoryHeading))
	sessions := 0
	for i, e := range entries {
		if e.kind == entrySession {
			top = append(top, row(i, e))
			sessions++
		}
	}
	if sessions == 0 {
		top = append(top, t.SessionMeta.Render(commands.EmptyHistoryText))
	}

	var bottom []string
	if s.User != nil {
		bottom = append(bottom, t.Profile.Render(fmt.Sprintf("%s %s", s.User.Initial(), util.TruncateWidth(s.User.Name, inner-4))),
			t.OnlineBadge.Render("● "+OnlineLabel))
	}
	for i, e := range entries {
		if e.kind == entryReset || e.kind == entryLogout {
			bottom = append(bottom, row(i, e))
		}
	}

	topView := strings.Join(top, "\n")
	bottomView := strings.Join(bottom, "\n")
	avail := height - t.Sidebar.GetVerticalFrameSize()
	gap := avail - lipgloss.Height(topView) - lipgloss.Height(bottomView)
	if gap < 1 {
		// Scroll the session list so the cursor stays visible.
		topView = clipAround(topView, avail-lipgloss.Height(bottomView)-1, m.cursorLine(entries))
		gap = 1
	}
	body := topView + strings.Repeat("\n", gap) + bottomView
	return t.Sidebar.Width(width - t.Sidebar.GetHorizontalBorderSize()).Height(avail).Render(body)
}

// cursorLine estimates the rendered line of the cursor in the session list.
func (m *Model) cursorLine(entries []sidebarEntry) int {
	line := 2
	for i, e := range entries {
		if i >= m.sidebarCursor {
			break
		}
		if e.kind == entrySession {
			line += 2
		}
	}
	return line
}

// clipAround keeps at most n lines of s, including line target.
func clipAround(s string, n, target int) string {
	lines := strings.Split(s, "\n")
	if n <= 0 {
		return ""
	}
	if len(lines) <= n {
		return s
	}
	start := target - n/2
	if start < 0 {
		start = 0
	}
	if start+n > len(lines) {
		start = len(lines) - n
	}
	return strings.Join(lines[start:start+n], "\n")
}
