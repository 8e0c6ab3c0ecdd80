// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/export"
	"github.com/jeranaias/iachat/internal/media"
	"github.com/jeranaias/iachat/internal/model"
	"github.com/jeranaias/iachat/internal/util"
)

// =============================================================================
// LABELS
// =============================================================================

const (
	NewChatLabel      = "แชทใหม่"
	HistoryHeading    = "ประวัติการสนทนา"
	EmptyHistoryText  = "เริ่มการสนทนาใหม่ได้เลย"
	VoiceOnLabel      = "เปิดเสียง"
	VoiceOffLabel     = "ปิดเสียง"
	LogoutLabel       = "ออกจากระบบ"
	ResetLabel        = "ล้างข้อมูลถาวร"
	ResetConfirmText  = "คำเตือน: การลบข้อมูลถาวร! ประวัติการแชททั้งหมดจะหายไป คุณแน่ใจหรือไม่?"
	AttachImageLabel  = "แนบรูปภาพ"
	AudioMessageLabel = "เสียงบันทึก"
)

// listTitleWidth bounds session titles in listings.
const listTitleWidth = 40

// =============================================================================
// ENVIRONMENT
// =============================================================================

// Env is what commands act on.
type Env struct {
	App *app.Controller

	// Capturer may be nil, in which case capture commands report the device
	// as unavailable.
	Capturer *media.Capturer

	// Export configures /export. Nil uses export.DefaultOptions.
	Export *export.Options

	mu      sync.Mutex
	pending []model.Attachment
}

// Stage queues an attachment for the next message.
func (e *Env) Stage(att model.Attachment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, att)
}

// Pending returns the staged attachments.
func (e *Env) Pending() []model.Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Attachment(nil), e.pending...)
}

// ClearPending drops the staged attachments.
func (e *Env) ClearPending() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
}

// Send sends text with the staged attachments. Empty input with nothing
// staged is ignored. Attachments stay staged if the controller is busy.
func (e *Env) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	e.mu.Lock()
	atts := e.pending
	e.pending = nil
	e.mu.Unlock()

	if text == "" && len(atts) == 0 {
		return nil
	}
	err := e.App.SendMessage(ctx, text, atts)
	if errors.Is(err, app.ErrBusy) {
		e.mu.Lock()
		e.pending = append(atts, e.pending...)
		e.mu.Unlock()
	}
	return err
}

// =============================================================================
// NAVIGATION
// =============================================================================

var categoryOrder = []string{"Navigation", "Conversation", "Media", "Speech", "Account"}

func (r *Registry) handleHelp(_ context.Context, _ *Env, _ []string) (Result, error) {
	groups := r.ByCategory()
	var lines []string
	for _, category := range categoryOrder {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		lines = append(lines, category+":")
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			lines = append(lines, fmt.Sprintf("  %s %s", util.PadWidth(usage, 28), cmd.Description))
		}
	}
	return Result{Lines: lines}, nil
}

func handleQuit(context.Context, *Env, []string) (Result, error) {
	return Result{Quit: true}, nil
}

// =============================================================================
// CONVERSATION
// =============================================================================

func handleNew(ctx context.Context, env *Env, _ []string) (Result, error) {
	if _, err := env.App.CreateSession(ctx, true); err != nil {
		return Result{}, err
	}
	env.ClearPending()
	return Result{Lines: []string{NewChatLabel}}, nil
}

func handleSessions(_ context.Context, env *Env, _ []string) (Result, error) {
	s := env.App.Snapshot()
	if !s.LoggedIn() {
		return Result{}, app.ErrNotLoggedIn
	}
	return Result{Lines: SessionLines(s)}, nil
}

// SessionLines renders the numbered session list, oldest first.
func SessionLines(s app.State) []string {
	list := s.SidebarSessions()
	if len(list) == 0 {
		return []string{HistoryHeading, "  " + EmptyHistoryText}
	}
	lines := make([]string, 0, len(list)+1)
	lines = append(lines, HistoryHeading)
	for i, sess := range list {
		marker := " "
		if sess.ID == s.ActiveID {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %2d. %s  %s",
			marker, i+1,
			util.PadWidth(util.TruncateWidth(util.SingleLine(sess.Title), listTitleWidth), listTitleWidth),
			sess.UpdatedAt.Local().Format("02/01 15:04"),
		))
	}
	return lines
}

// ResolveSession maps a list number or a session id to a session id.
func ResolveSession(s app.State, ref string) (string, error) {
	list := s.SidebarSessions()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(list) {
			return "", fmt.Errorf("%w: %d", app.ErrUnknownSession, n)
		}
		return list[n-1].ID, nil
	}
	for _, sess := range list {
		if sess.ID == ref || strings.HasPrefix(sess.ID, ref) && len(ref) >= 8 {
			return sess.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", app.ErrUnknownSession, ref)
}

func handleSwitch(ctx context.Context, env *Env, args []string) (Result, error) {
	s := env.App.Snapshot()
	id, err := ResolveSession(s, args[0])
	if err != nil {
		return Result{}, err
	}
	if err := env.App.SelectSession(ctx, id); err != nil {
		return Result{}, err
	}
	return Result{Lines: []string{env.App.Snapshot().Title()}}, nil
}

func handleHistory(_ context.Context, env *Env, _ []string) (Result, error) {
	sess, ok := env.App.Snapshot().ActiveSession()
	if !ok {
		return Result{}, app.ErrNotLoggedIn
	}
	lines := make([]string, 0, len(sess.Messages))
	for i, m := range sess.Messages {
		text := util.TruncateWidth(util.SingleLine(m.Text), 60)
		for _, a := range m.Attachments {
			text += " [" + AttachmentLabel(a) + "]"
		}
		lines = append(lines, fmt.Sprintf("%3d. %-4s %s", i+1, m.Sender.DisplayName(), text))
	}
	return Result{Lines: lines}, nil
}

// AttachmentLabel names an attachment for display.
func AttachmentLabel(a model.Attachment) string {
	if a.Type == model.AttachmentAudio {
		return AudioMessageLabel
	}
	return AttachImageLabel
}

func handleExport(_ context.Context, env *Env, args []string) (Result, error) {
	s := env.App.Snapshot()
	sess, ok := s.ActiveSession()
	if !ok {
		return Result{}, app.ErrNotLoggedIn
	}
	format := "markdown"
	if len(args) > 0 {
		format = args[0]
	}
	opts := export.DefaultOptions()
	if env.Export != nil {
		o := *env.Export
		opts = &o
	}
	if opts.Author == "" && s.User != nil {
		opts.Author = s.User.Name
	}
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return Result{}, err
	}
	path, err := export.ToFile(&sess, exporter, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Lines: []string{"exported to " + path}}, nil
}

// =============================================================================
// MEDIA
// =============================================================================

func handleAttach(_ context.Context, env *Env, args []string) (Result, error) {
	att, err := media.FromFile(args[0])
	if err != nil {
		return Result{}, err
	}
	env.Stage(att)
	return Result{Lines: []string{fmt.Sprintf("%s: %s (%s)", AttachmentLabel(att), filepath.Base(args[0]), att.MimeType)}}, nil
}

func handleCamera(ctx context.Context, env *Env, _ []string) (Result, error) {
	if env.Capturer == nil {
		return alertFor(&media.AccessError{Device: media.Camera, Err: media.ErrMediaAccess})
	}
	data, err := env.Capturer.CaptureCamera(ctx)
	if err != nil {
		return alertFor(err)
	}
	return Result{}, env.App.SendCapture(ctx, data)
}

func handleMic(ctx context.Context, env *Env, _ []string) (Result, error) {
	if env.Capturer == nil {
		return alertFor(&media.AccessError{Device: media.Microphone, Err: media.ErrMediaAccess})
	}
	att, err := env.Capturer.RecordAudio(ctx)
	if err != nil {
		return alertFor(err)
	}
	return Result{}, env.App.SendRecording(ctx, att)
}

// alertFor turns a device failure into a user alert; other errors pass
// through.
func alertFor(err error) (Result, error) {
	var accessErr *media.AccessError
	if errors.As(err, &accessErr) {
		return Result{Alert: accessErr.UserMessage()}, nil
	}
	return Result{}, err
}

// =============================================================================
// SPEECH
// =============================================================================

func handleSpeak(_ context.Context, env *Env, args []string) (Result, error) {
	sess, ok := env.App.Snapshot().ActiveSession()
	if !ok {
		return Result{}, app.ErrNotLoggedIn
	}
	var target *model.Message
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(sess.Messages) {
			return Result{}, fmt.Errorf("no message %s", args[0])
		}
		target = &sess.Messages[n-1]
	} else {
		for i := len(sess.Messages) - 1; i >= 0; i-- {
			if m := sess.Messages[i]; m.Sender == model.SenderAI && m.Text != "" {
				target = &sess.Messages[i]
				break
			}
		}
	}
	if target == nil || target.Text == "" {
		return Result{}, errors.New("nothing to read")
	}
	if env.App.SpeakMessage(target.ID) {
		return Result{Lines: []string{"speaking"}}, nil
	}
	return Result{Lines: []string{"stopped"}}, nil
}

func handleStop(_ context.Context, env *Env, _ []string) (Result, error) {
	env.App.StopSpeech()
	return Result{}, nil
}

func handleVoice(_ context.Context, env *Env, _ []string) (Result, error) {
	return Result{Lines: []string{VoiceLabel(env.App.ToggleAutoSpeak())}}, nil
}

// VoiceLabel is the auto-speak toggle caption.
func VoiceLabel(on bool) string {
	if on {
		return VoiceOnLabel
	}
	return VoiceOffLabel
}

// =============================================================================
// ACCOUNT
// =============================================================================

func handleLogout(ctx context.Context, env *Env, _ []string) (Result, error) {
	env.ClearPending()
	if err := env.App.Logout(ctx); err != nil {
		return Result{}, err
	}
	return Result{Lines: []string{LogoutLabel}}, nil
}

func handleReset(ctx context.Context, env *Env, _ []string) (Result, error) {
	if err := env.App.FactoryReset(ctx); err != nil {
		return Result{}, err
	}
	env.ClearPending()
	return Result{Lines: []string{ResetLabel}}, nil
}
