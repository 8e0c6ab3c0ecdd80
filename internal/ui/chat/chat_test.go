// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/auth"
	"github.com/jeranaias/iachat/internal/commands"
	"github.com/jeranaias/iachat/internal/gemini"
	"github.com/jeranaias/iachat/internal/model"
	"github.com/jeranaias/iachat/internal/storage"
	"github.com/jeranaias/iachat/internal/ui/styles"
)

// =============================================================================
// HELPERS
// =============================================================================

type replyBackend struct{}

func (replyBackend) NewConversation([]gemini.Content) app.Conversation { return replyBackend{} }

func (replyBackend) SendMessageStream(context.Context, []gemini.Part) (app.TextStream, error) {
	return &replyStream{}, nil
}

type replyStream struct{ done bool }

func (s *replyStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return "รับทราบ", nil
}

func (s *replyStream) Close() error { return nil }

func newTestModel(t *testing.T, width int) *Model {
	t.Helper()
	ctx := context.Background()
	c := app.New(app.Config{Store: storage.NewMemoryStore(0), Backend: replyBackend{}})
	require.NoError(t, c.Start(ctx))
	m := New(ctx, Options{
		Env:   &commands.Env{App: c},
		Theme: styles.NewTheme("dark"),
	})
	m.Update(tea.WindowSizeMsg{Width: width, Height: 40})
	return m
}

// syncState feeds the controller's current state to the model.
func syncState(m *Model) {
	m.Update(stateMsg{state: m.env.App.Snapshot()})
}

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func press(m *Model, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

// runCmd executes cmd and feeds its message back.
func runCmd(t *testing.T, m *Model, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	m.Update(msg)
	syncState(m)
	return msg
}

func loggedInModel(t *testing.T, width int) *Model {
	t.Helper()
	m := newTestModel(t, width)
	require.NoError(t, m.env.App.Login(context.Background(), auth.Owner.Username, auth.Owner.Password))
	syncState(m)
	return m
}

// =============================================================================
// STATE BRIDGE
// =============================================================================

func TestStateBridge_KeepsLatest(t *testing.T) {
	b := newStateBridge()
	b.push(app.State{ActiveID: "a"})
	b.push(app.State{ActiveID: "b"})
	b.push(app.State{ActiveID: "c"})

	msg := b.wait()()
	assert.Equal(t, "c", msg.(stateMsg).state.ActiveID)
	assert.Empty(t, b.ch)
}

// =============================================================================
// LOGIN
// =============================================================================

func TestLogin_OwnerCredentials(t *testing.T) {
	m := newTestModel(t, 120)
	assert.Contains(t, m.View(), usernameLabel)

	typeText(m, auth.Owner.Username)
	assert.Nil(t, press(m, tea.KeyEnter), "enter on the username moves to the password")
	typeText(m, auth.Owner.Password)
	msg := runCmd(t, m, press(m, tea.KeyEnter))

	assert.NoError(t, msg.(authDoneMsg).err)
	require.True(t, m.state.LoggedIn())
	view := m.View()
	assert.Contains(t, view, commands.HistoryHeading)
	assert.Contains(t, view, commands.ResetLabel)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	m := newTestModel(t, 120)
	typeText(m, auth.Owner.Username)
	press(m, tea.KeyTab)
	typeText(m, "wrong")
	runCmd(t, m, press(m, tea.KeyEnter))

	assert.False(t, m.state.LoggedIn())
	assert.Equal(t, auth.ErrInvalidCredentials.Error(), m.login.err)
	assert.Contains(t, m.View(), auth.ErrInvalidCredentials.Error())
}

func TestLogin_RegisterMode(t *testing.T) {
	m := newTestModel(t, 120)
	press(m, tea.KeyCtrlR)
	require.True(t, m.login.register)
	assert.Equal(t, fieldName, m.login.focus)
	assert.Contains(t, m.View(), nameLabel)

	typeText(m, "สมชาย")
	press(m, tea.KeyTab)
	typeText(m, "somchai")
	press(m, tea.KeyTab)
	typeText(m, "pw")
	runCmd(t, m, press(m, tea.KeyEnter))

	require.True(t, m.state.LoggedIn())
	assert.Equal(t, "สมชาย", m.state.User.Name)
	assert.NotContains(t, m.View(), commands.ResetLabel)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func TestSidebarEntries_OldestFirst(t *testing.T) {
	m := loggedInModel(t, 120)
	ctx := context.Background()
	second, err := m.env.App.CreateSession(ctx, true)
	require.NoError(t, err)
	syncState(m)

	entries := m.sidebarEntries()
	require.Len(t, entries, 5)
	assert.Equal(t, entryNewChat, entries[0].kind)
	assert.Equal(t, entrySession, entries[1].kind)
	assert.Equal(t, second, entries[2].sessionID, "newest session is listed last")
	assert.Equal(t, entryReset, entries[3].kind)
	assert.Equal(t, entryLogout, entries[4].kind)
}

func TestSidebar_WideVisibleUnlessHidden(t *testing.T) {
	m := loggedInModel(t, 140)
	assert.True(t, m.sidebarVisible())
	assert.False(t, m.sidebarOverlay())

	press(m, tea.KeyCtrlB)
	assert.False(t, m.sidebarVisible())
	assert.Equal(t, 140, m.mainWidth())
}

func TestSidebar_NarrowOpensAsOverlay(t *testing.T) {
	m := loggedInModel(t, 80)
	assert.False(t, m.sidebarVisible())

	press(m, tea.KeyCtrlB)
	syncState(m)
	assert.True(t, m.sidebarOverlay())
	assert.Contains(t, m.View(), commands.HistoryHeading)
}

func TestSidebar_SelectSessionClosesNarrowDrawer(t *testing.T) {
	m := loggedInModel(t, 80)
	first := m.state.ActiveID
	_, err := m.env.App.CreateSession(context.Background(), true)
	require.NoError(t, err)
	syncState(m)

	press(m, tea.KeyTab)
	syncState(m)
	require.Equal(t, focusSidebar, m.focus)
	press(m, tea.KeyUp)
	press(m, tea.KeyEnter)
	syncState(m)

	assert.Equal(t, first, m.state.ActiveID)
	assert.False(t, m.state.SidebarOpen)
	assert.Equal(t, focusInput, m.focus)
}

// =============================================================================
// CHAT
// =============================================================================

func TestBanner_StorageWarning(t *testing.T) {
	m := loggedInModel(t, 120)
	assert.Empty(t, m.bannerView(80))

	s := m.env.App.Snapshot()
	s.StorageWarning = app.StorageWarningText
	m.Update(stateMsg{state: s})

	banner := m.bannerView(200)
	assert.Contains(t, banner, app.StorageWarningText+" - "+StorageBannerHint)
}

func TestCtrlN_CreatesSession(t *testing.T) {
	m := loggedInModel(t, 120)
	before := m.state.ActiveID
	press(m, tea.KeyCtrlN)
	syncState(m)

	assert.Len(t, m.state.Sessions, 2)
	assert.NotEqual(t, before, m.state.ActiveID)
}

func TestSubmit_SendsMessage(t *testing.T) {
	m := loggedInModel(t, 120)
	typeText(m, "สวัสดี")
	msg := runCmd(t, m, press(m, tea.KeyEnter))

	assert.NoError(t, msg.(sendDoneMsg).err)
	assert.Empty(t, m.input.Value())
	sess, ok := m.state.ActiveSession()
	require.True(t, ok)
	require.Len(t, sess.Messages, 3)
	assert.Equal(t, "รับทราบ", sess.Messages[2].Text)
	assert.Equal(t, "สวัสดี", sess.Title)
}

func TestSubmit_EmptyIgnored(t *testing.T) {
	m := loggedInModel(t, 120)
	assert.Nil(t, press(m, tea.KeyEnter))
}

func TestSubmit_CommandShowsNotice(t *testing.T) {
	m := loggedInModel(t, 120)
	typeText(m, "/sessions")
	runCmd(t, m, press(m, tea.KeyEnter))

	require.NotEmpty(t, m.notice)
	assert.Equal(t, commands.HistoryHeading, m.notice[0])

	press(m, tea.KeyEsc)
	assert.Empty(t, m.notice)
}

func TestSubmit_UnknownCommand(t *testing.T) {
	m := loggedInModel(t, 120)
	typeText(m, "/nope")
	assert.Nil(t, press(m, tea.KeyEnter))
	assert.Contains(t, m.errText, "/nope")
}

func TestSubmit_ResetAsksFirst(t *testing.T) {
	m := loggedInModel(t, 120)
	typeText(m, "/reset")
	assert.Nil(t, press(m, tea.KeyEnter))
	require.NotNil(t, m.confirm)
	assert.Contains(t, m.View(), commands.ResetConfirmText)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.Nil(t, m.confirm)
}

func TestAlert_BlocksUntilDismissed(t *testing.T) {
	m := loggedInModel(t, 120)
	m.Update(commandDoneMsg{result: commands.Result{Alert: "ไม่สามารถเข้าถึงกล้องได้"}})
	assert.Contains(t, m.View(), "ไม่สามารถเข้าถึงกล้องได้")

	assert.Nil(t, press(m, tea.KeyCtrlN))
	assert.Len(t, m.state.Sessions, 1)

	press(m, tea.KeyEnter)
	assert.Empty(t, m.alert)
}

func TestQuitResult(t *testing.T) {
	m := loggedInModel(t, 120)
	_, cmd := m.Update(commandDoneMsg{result: commands.Result{Quit: true}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHeader_VoiceToggle(t *testing.T) {
	m := loggedInModel(t, 120)
	assert.Contains(t, m.headerView(88), commands.VoiceOffLabel)

	press(m, tea.KeyCtrlT)
	syncState(m)
	assert.Contains(t, m.headerView(88), commands.VoiceOnLabel)
}

func TestRenderMessages_Attachments(t *testing.T) {
	theme := styles.NewTheme("dark")
	sess := model.NewSession("ทดสอบ")
	sess.Append(model.NewUserMessage("", []model.Attachment{model.NewImageAttachment("image/png", "AAAA")}))
	placeholder := model.NewAssistantPlaceholder()
	sess.Append(placeholder)

	out := renderMessages(theme, newMarkdownRenderer("dark", false), sess, placeholder.ID, "*", 80)
	assert.Contains(t, out, commands.AttachImageLabel)
	assert.Contains(t, out, speakingMarker)
	assert.Contains(t, out, "ทดสอบ")
}
