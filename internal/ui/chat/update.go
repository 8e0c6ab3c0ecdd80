// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/auth"
	"github.com/jeranaias/iachat/internal/commands"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles a message and re-lays out the screen.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	m.layout()
	return m, cmd
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.env.App.SetViewportWidth(msg.Width)
		return nil

	case stateMsg:
		m.applyState(msg.state)
		return tea.Batch(m.bridge.wait(), m.scheduleRefresh())

	case flushMsg:
		if m.dirty {
			m.refresh()
		}
		return nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Loading {
			return tea.Batch(cmd, m.scheduleRefresh())
		}
		return cmd

	case sendDoneMsg:
		m.running = false
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		return nil

	case commandDoneMsg:
		m.running = false
		return m.handleResult(msg.result, msg.err)

	case authDoneMsg:
		m.login.busy = false
		if msg.err != nil {
			m.login.err = authMessage(msg.err)
			return nil
		}
		m.login.reset()
		m.focus = focusInput
		m.input.Reset()
		return m.input.Focus()

	case tea.KeyMsg:
		if !m.state.LoggedIn() {
			return m.handleLoginKey(msg)
		}
		return m.handleKey(msg)
	}

	if !m.state.LoggedIn() {
		return m.login.update(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// applyState takes a new snapshot and keeps the cursor and focus valid.
func (m *Model) applyState(s app.State) {
	wasLoggedIn := m.state.LoggedIn()
	m.state = s
	m.dirty = true

	if !s.LoggedIn() {
		m.focus = focusInput
		m.confirm = nil
		m.notice = nil
		if wasLoggedIn {
			m.login.reset()
		}
		return
	}
	if !m.sidebarVisible() && m.focus == focusSidebar {
		m.focus = focusInput
		m.input.Focus()
	}
	if n := len(m.sidebarEntries()); m.sidebarCursor >= n {
		m.sidebarCursor = n - 1
	}
}

// scheduleRefresh rebuilds the viewport now if the frame budget allows,
// otherwise once the budget frees up.
func (m *Model) scheduleRefresh() tea.Cmd {
	if !m.dirty {
		return nil
	}
	if m.limiter.Allow() {
		m.refresh()
		return nil
	}
	return tea.Tick(time.Second/maxRenderFPS, func(time.Time) tea.Msg { return flushMsg{} })
}

// refresh re-renders the active session into the viewport, following the
// bottom when new messages arrive or the session changes.
func (m *Model) refresh() {
	m.dirty = false
	sess, ok := m.state.ActiveSession()
	if !ok {
		m.viewport.SetContent("")
		m.lastActiveID, m.lastCount = "", 0
		return
	}
	follow := m.viewport.AtBottom() || sess.ID != m.lastActiveID || len(sess.Messages) != m.lastCount
	m.viewport.SetContent(renderMessages(m.theme, m.renderer, sess, m.state.SpeakingID, m.spinner.View(), m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
	m.lastActiveID, m.lastCount = sess.ID, len(sess.Messages)
}

// layout sizes the viewport and input to the space left by the chrome.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	w := m.mainWidth()
	m.input.SetWidth(w - 2)

	chrome := lipgloss.Height(m.headerView(w)) +
		lipgloss.Height(m.inputView(w)) +
		lipgloss.Height(m.statusView(w))
	if b := m.bannerView(w); b != "" {
		chrome += lipgloss.Height(b)
	}
	if n := m.noticeView(w); n != "" {
		chrome += lipgloss.Height(n)
	}
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	if m.viewport.Width != w || m.viewport.Height != h {
		m.viewport.Width = w
		m.viewport.Height = h
		if m.state.LoggedIn() {
			m.refresh()
		}
	}
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleLoginKey(msg tea.KeyMsg) tea.Cmd {
	f := m.login
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case f.busy:
		return nil
	case key.Matches(msg, m.keys.SwitchMode):
		f.toggleMode()
		return nil
	case key.Matches(msg, m.keys.PrevField):
		f.move(-1)
		return nil
	case key.Matches(msg, m.keys.NextField):
		f.move(1)
		return nil
	case key.Matches(msg, m.keys.Submit):
		if !f.lastField() {
			f.move(1)
			return nil
		}
		return m.submitLogin()
	}
	return f.update(msg)
}

func (m *Model) submitLogin() tea.Cmd {
	f := m.login
	name, username, password := f.values()
	register := f.register
	f.busy = true
	f.err = ""
	ctx, ctrl := m.ctx, m.env.App
	return func() tea.Msg {
		if register {
			return authDoneMsg{err: ctrl.Register(ctx, username, password, name)}
		}
		return authDoneMsg{err: ctrl.Login(ctx, username, password)}
	}
}

// authMessage is the text shown under the login form.
func authMessage(err error) string {
	for _, known := range []error{
		auth.ErrInvalidCredentials,
		auth.ErrMissingFields,
		auth.ErrUsernameTaken,
		auth.ErrReservedUsername,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}

	if m.confirm != nil {
		switch {
		case key.Matches(msg, m.keys.ConfirmYes):
			parsed := *m.confirm
			m.confirm = nil
			return m.runCommand(parsed)
		case key.Matches(msg, m.keys.ConfirmNo):
			m.confirm = nil
		}
		return nil
	}

	if m.alert != "" {
		if key.Matches(msg, m.keys.Cancel) || key.Matches(msg, m.keys.Submit) {
			m.alert = ""
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		switch {
		case m.state.Loading:
			m.env.App.CancelStream()
		case m.focus == focusSidebar:
			m.blurSidebar()
			if !m.wide() && m.state.SidebarOpen {
				m.env.App.ToggleSidebar()
			}
		default:
			m.notice = nil
			m.errText = ""
		}
		return nil

	case key.Matches(msg, m.keys.NewChat):
		return m.newChat()

	case key.Matches(msg, m.keys.ToggleSidebar):
		if m.wide() {
			m.sidebarHidden = !m.sidebarHidden
		} else {
			m.env.App.ToggleSidebar()
		}
		if m.focus == focusSidebar {
			m.blurSidebar()
		}
		m.dirty = true
		return nil

	case key.Matches(msg, m.keys.ToggleVoice):
		m.env.App.ToggleAutoSpeak()
		return nil

	case key.Matches(msg, m.keys.SpeakLast):
		return m.runLine("/speak")

	case key.Matches(msg, m.keys.StopSpeech):
		m.env.App.StopSpeech()
		return nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return nil

	case key.Matches(msg, m.keys.FocusSidebar):
		if m.focus == focusSidebar {
			m.blurSidebar()
			return nil
		}
		if !m.sidebarVisible() {
			if m.wide() {
				return nil
			}
			m.env.App.ToggleSidebar()
		}
		m.focusSidebar()
		return nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		return m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	entries := m.sidebarEntries()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.sidebarCursor > 0 {
			m.sidebarCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.sidebarCursor < len(entries)-1 {
			m.sidebarCursor++
		}
	case key.Matches(msg, m.keys.Select):
		if m.sidebarCursor < 0 || m.sidebarCursor >= len(entries) {
			return nil
		}
		return m.activateEntry(entries[m.sidebarCursor])
	}
	return nil
}

func (m *Model) activateEntry(e sidebarEntry) tea.Cmd {
	switch e.kind {
	case entryNewChat:
		m.blurSidebar()
		return m.newChat()
	case entrySession:
		m.blurSidebar()
		if err := m.env.App.SelectSession(m.ctx, e.sessionID); err != nil {
			m.errText = err.Error()
		}
		return nil
	case entryReset:
		return m.runLine("/reset")
	case entryLogout:
		m.blurSidebar()
		return m.runLine("/logout")
	}
	return nil
}

func (m *Model) focusSidebar() {
	m.focus = focusSidebar
	m.input.Blur()
	m.sidebarCursor = 0
	for i, e := range m.sidebarEntries() {
		if e.kind == entrySession && e.sessionID == m.state.ActiveID {
			m.sidebarCursor = i
			break
		}
	}
}

func (m *Model) blurSidebar() {
	m.focus = focusInput
	m.input.Focus()
}

func (m *Model) newChat() tea.Cmd {
	if _, err := m.env.App.CreateSession(m.ctx, true); err != nil {
		m.errText = err.Error()
		return nil
	}
	m.env.ClearPending()
	m.notice = nil
	return nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

func (m *Model) submit() tea.Cmd {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" && len(m.env.Pending()) == 0 {
		return nil
	}
	if commands.IsCommand(text) {
		m.input.Reset()
		return m.runLine(text)
	}
	if m.state.Loading || m.running {
		return nil
	}
	m.input.Reset()
	m.errText = ""
	m.running = true
	ctx, env := m.ctx, m.env
	return func() tea.Msg {
		return sendDoneMsg{err: env.Send(ctx, text)}
	}
}

// runLine parses and runs a slash command, asking first when the command
// needs confirmation.
func (m *Model) runLine(line string) tea.Cmd {
	parsed := m.parser.Parse(line)
	if parsed.Command == nil {
		m.errText = commands.ErrUnknownCommand.Error() + ": " + parsed.Name
		return nil
	}
	if parsed.Command.Confirm != "" {
		m.confirm = &parsed
		return nil
	}
	return m.runCommand(parsed)
}

func (m *Model) runCommand(parsed commands.ParseResult) tea.Cmd {
	m.errText = ""
	m.running = true
	ctx, env, reg := m.ctx, m.env, m.reg
	return func() tea.Msg {
		res, err := reg.Execute(ctx, env, parsed)
		return commandDoneMsg{result: res, err: err}
	}
}

func (m *Model) handleResult(res commands.Result, err error) tea.Cmd {
	if err != nil {
		m.errText = err.Error()
		return nil
	}
	if res.Quit {
		return m.quit()
	}
	if res.Alert != "" {
		m.alert = res.Alert
	}
	if len(res.Lines) > 0 {
		lines := res.Lines
		if len(lines) > maxNoticeLines {
			lines = lines[len(lines)-maxNoticeLines:]
		}
		m.notice = lines
	}
	return nil
}

func (m *Model) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	return tea.Quit
}
