// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/auth"
	"github.com/jeranaias/iachat/internal/export"
	"github.com/jeranaias/iachat/internal/gemini"
	"github.com/jeranaias/iachat/internal/media"
	"github.com/jeranaias/iachat/internal/model"
	"github.com/jeranaias/iachat/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

type echoBackend struct {
	sent [][]gemini.Part
}

func (b *echoBackend) NewConversation([]gemini.Content) app.Conversation { return b }

func (b *echoBackend) SendMessageStream(_ context.Context, parts []gemini.Part) (app.TextStream, error) {
	b.sent = append(b.sent, parts)
	return &onceStream{text: "ตอบ"}, nil
}

type onceStream struct {
	text string
	done bool
}

func (s *onceStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.text, nil
}

func (s *onceStream) Close() error { return nil }

func newEnv(t *testing.T) (*Env, *echoBackend) {
	t.Helper()
	ctx := context.Background()
	backend := &echoBackend{}
	c := app.New(app.Config{Store: storage.NewMemoryStore(0), Backend: backend})
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Login(ctx, auth.Owner.Username, auth.Owner.Password))
	return &Env{App: c}, backend
}

func run(t *testing.T, env *Env, input string) (Result, error) {
	t.Helper()
	reg := NewRegistry()
	parsed := NewParser(reg).Parse(input)
	require.True(t, parsed.IsCommand)
	return reg.Execute(context.Background(), env, parsed)
}

// =============================================================================
// PARSER
// =============================================================================

func TestParse_PlainText(t *testing.T) {
	p := NewParser(NewRegistry())
	assert.False(t, p.Parse("สวัสดี").IsCommand)
	assert.False(t, p.Parse("").IsCommand)
}

func TestParse_CommandWithArgs(t *testing.T) {
	p := NewParser(NewRegistry())
	r := p.Parse(`  /attach "my photo.png"  `)
	require.True(t, r.IsCommand)
	require.NotNil(t, r.Command)
	assert.Equal(t, "/attach", r.Command.Name)
	assert.Equal(t, []string{"my photo.png"}, r.Args)
	assert.Equal(t, `"my photo.png"`, r.RawArgs)
}

func TestParse_AliasAndCase(t *testing.T) {
	p := NewParser(NewRegistry())
	r := p.Parse("/Q")
	require.NotNil(t, r.Command)
	assert.Equal(t, "/quit", r.Command.Name)
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"/a b c", []string{"/a", "b", "c"}},
		{`/a "b c" 'd e'`, []string{"/a", "b c", "d e"}},
		{`/a "say \"hi\""`, []string{"/a", `say "hi"`}},
		{`/a ""`, []string{"/a", ""}},
		{"/ก ข", []string{"/ก", "ข"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitCommandLine(tt.in), tt.in)
	}
}

func TestValidateArgs(t *testing.T) {
	reg := NewRegistry()
	err := ValidateArgs(reg.Get("/switch"), nil)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "session", vErr.Arg)

	err = ValidateArgs(reg.Get("/export"), []string{"pdf"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "pdf", vErr.Got)

	assert.NoError(t, ValidateArgs(reg.Get("/export"), []string{"JSON"}))
}

func TestExecute_Unknown(t *testing.T) {
	env, _ := newEnv(t)
	_, err := run(t, env, "/nope")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

// =============================================================================
// HANDLERS
// =============================================================================

func TestHelp_ListsEveryVisibleCommand(t *testing.T) {
	env, _ := newEnv(t)
	res, err := run(t, env, "/help")
	require.NoError(t, err)
	out := strings.Join(res.Lines, "\n")
	for _, cmd := range NewRegistry().All() {
		assert.Contains(t, out, cmd.Description)
	}
}

func TestQuit(t *testing.T) {
	env, _ := newEnv(t)
	res, err := run(t, env, "/quit")
	require.NoError(t, err)
	assert.True(t, res.Quit)
}

func TestNewSessionsSwitch(t *testing.T) {
	env, _ := newEnv(t)
	first := env.App.Snapshot().ActiveID

	_, err := run(t, env, "/new")
	require.NoError(t, err)
	assert.NotEqual(t, first, env.App.Snapshot().ActiveID)

	res, err := run(t, env, "/sessions")
	require.NoError(t, err)
	require.Len(t, res.Lines, 3)
	assert.Equal(t, HistoryHeading, res.Lines[0])
	assert.True(t, strings.HasPrefix(res.Lines[2], "*"))

	_, err = run(t, env, "/switch 1")
	require.NoError(t, err)
	assert.Equal(t, first, env.App.Snapshot().ActiveID)

	_, err = run(t, env, "/switch 9")
	assert.ErrorIs(t, err, app.ErrUnknownSession)
}

func TestResolveSession_ByID(t *testing.T) {
	env, _ := newEnv(t)
	s := env.App.Snapshot()
	id, err := ResolveSession(s, s.ActiveID)
	require.NoError(t, err)
	assert.Equal(t, s.ActiveID, id)

	id, err = ResolveSession(s, s.ActiveID[:8])
	require.NoError(t, err)
	assert.Equal(t, s.ActiveID, id)
}

func TestAttachThenSend(t *testing.T) {
	env, backend := newEnv(t)
	path := filepath.Join(t.TempDir(), "pic.png")
	png := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16))
	require.NoError(t, os.WriteFile(path, png, 0o600))

	res, err := run(t, env, "/attach "+path)
	require.NoError(t, err)
	assert.Contains(t, res.Lines[0], AttachImageLabel)
	require.Len(t, env.Pending(), 1)

	require.NoError(t, env.Send(context.Background(), "ดูรูปนี้"))
	assert.Empty(t, env.Pending())
	require.Len(t, backend.sent, 1)
	require.Len(t, backend.sent[0], 2)
	assert.Equal(t, "image/png", backend.sent[0][1].InlineData.MimeType)
}

func TestAttach_Unsupported(t *testing.T) {
	env, _ := newEnv(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))

	_, err := run(t, env, "/attach "+path)
	assert.ErrorIs(t, err, media.ErrUnsupportedType)
	assert.Empty(t, env.Pending())
}

func TestSend_EmptyIsIgnored(t *testing.T) {
	env, backend := newEnv(t)
	require.NoError(t, env.Send(context.Background(), "   "))
	assert.Empty(t, backend.sent)
}

func TestCamera_NoCapturerAlerts(t *testing.T) {
	env, _ := newEnv(t)
	res, err := run(t, env, "/camera")
	require.NoError(t, err)
	assert.Equal(t, "ไม่สามารถเข้าถึงกล้องได้ กรุณาตรวจสอบสิทธิ์", res.Alert)

	res, err = run(t, env, "/mic")
	require.NoError(t, err)
	assert.Equal(t, "ไม่สามารถเข้าถึงไมโครโฟนได้", res.Alert)
}

func TestCamera_FailingCommandAlerts(t *testing.T) {
	env, _ := newEnv(t)
	env.Capturer = &media.Capturer{CameraCommand: "iachat-no-such-camera-binary"}
	res, err := run(t, env, "/camera")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Alert)
}

func TestHistoryAndExport(t *testing.T) {
	env, _ := newEnv(t)
	require.NoError(t, env.Send(context.Background(), "hello"))

	res, err := run(t, env, "/history")
	require.NoError(t, err)
	require.Len(t, res.Lines, 3)
	assert.Contains(t, res.Lines[1], "hello")
	assert.Contains(t, res.Lines[2], "ตอบ")

	dir := t.TempDir()
	env.Export = &export.Options{OutputDir: dir}
	res, err = run(t, env, "/export json")
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestVoiceToggle(t *testing.T) {
	env, _ := newEnv(t)
	res, err := run(t, env, "/voice")
	require.NoError(t, err)
	assert.Equal(t, []string{VoiceOnLabel}, res.Lines)
	assert.True(t, env.App.Snapshot().AutoSpeak)

	res, err = run(t, env, "/voice")
	require.NoError(t, err)
	assert.Equal(t, []string{VoiceOffLabel}, res.Lines)
}

func TestSpeak_NothingToRead(t *testing.T) {
	env, _ := newEnv(t)
	_, err := run(t, env, "/speak 99")
	assert.Error(t, err)
}

func TestReset_RequiresConfirmationAndOwner(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, ResetConfirmText, reg.Get("/reset").Confirm)

	env, _ := newEnv(t)
	require.NoError(t, env.Send(context.Background(), "hello"))
	_, err := run(t, env, "/reset")
	require.NoError(t, err)
	sess, ok := env.App.Snapshot().ActiveSession()
	require.True(t, ok)
	assert.Len(t, sess.Messages, 1)

	ctx := context.Background()
	require.NoError(t, env.App.Register(ctx, "bob", "pw", "Bob"))
	_, err = run(t, env, "/reset")
	assert.ErrorIs(t, err, app.ErrNotPrivileged)
}

func TestLogout(t *testing.T) {
	env, _ := newEnv(t)
	env.Stage(model.NewImageAttachment("image/png", "eA=="))
	_, err := run(t, env, "/logout")
	require.NoError(t, err)
	assert.False(t, env.App.Snapshot().LoggedIn())
	assert.Empty(t, env.Pending())
}

// =============================================================================
// COMPLETION
// =============================================================================

func TestComplete_CommandNames(t *testing.T) {
	c := NewCompleter(NewRegistry())
	got := c.CompleteLine("/se")
	assert.Equal(t, []string{"/sessions"}, got)
	assert.Nil(t, c.CompleteLine("hello"))
}

func TestComplete_SessionNumbers(t *testing.T) {
	c := NewCompleter(NewRegistry())
	c.SessionCount = func() int { return 12 }
	got := c.CompleteLine("/switch 1")
	assert.Contains(t, got, "/switch 1")
	assert.Contains(t, got, "/switch 12")
	assert.NotContains(t, got, "/switch 2")
}

func TestComplete_Enum(t *testing.T) {
	c := NewCompleter(NewRegistry())
	assert.Equal(t, []string{"/export json"}, c.CompleteLine("/export j"))
}

func TestComplete_Files(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), nil, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "pics"), 0o700))

	c := NewCompleter(NewRegistry())
	got := c.Complete("/attach " + dir + string(os.PathSeparator) + "p")
	require.Len(t, got, 2)
	assert.True(t, strings.HasSuffix(got[0].Value, "pics"+string(os.PathSeparator)))
	for _, comp := range got {
		assert.NotContains(t, comp.Value, ".hidden")
	}
}
