// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/jeranaias/iachat/internal/auth"
	"github.com/jeranaias/iachat/internal/gemini"
	"github.com/jeranaias/iachat/internal/logging"
	"github.com/jeranaias/iachat/internal/model"
	"github.com/jeranaias/iachat/internal/sessions"
	"github.com/jeranaias/iachat/internal/storage"
	"github.com/jeranaias/iachat/internal/util"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// ErrorReplyText is appended as an assistant message when a send fails.
	ErrorReplyText = "ขออภัย เกิดข้อผิดพลาดในการเชื่อมต่อ"

	// StorageWarningText is shown while history cannot be written.
	StorageWarningText = "หน่วยความจำเต็ม! ประวัติการสนทนาบางส่วนอาจไม่ถูกบันทึก"

	// CaptureText accompanies a camera capture.
	CaptureText = "ส่งรูปภาพ"

	// RecordingText accompanies a voice recording.
	RecordingText = "ส่งข้อความเสียง"

	// ReadyTitle is the header text when no session is active.
	ReadyTitle = "พร้อมใช้งาน"

	// DefaultNarrowWidth is the viewport width below which the sidebar
	// closes after navigation.
	DefaultNarrowWidth = 100
)

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrNotPrivileged  = errors.New("operation requires the owner account")
	ErrUnknownSession = errors.New("unknown session")
	ErrBusy           = errors.New("a reply is still streaming")
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Config wires a Controller to its collaborators.
type Config struct {
	Store   storage.Store
	Backend Backend

	// Speaker may be nil, in which case speech is silently disabled.
	Speaker Speaker
	Logger  logging.Logger

	// NarrowWidth defaults to DefaultNarrowWidth.
	NarrowWidth int
}

// Controller owns the application state. All mutation happens under one
// mutex; subscribers are notified after it is released.
type Controller struct {
	auth        *auth.Service
	repo        *sessions.Repository
	backend     Backend
	speaker     Speaker
	log         logging.Logger
	narrowWidth int

	mu     sync.Mutex
	state  State
	conv   Conversation
	cancel context.CancelFunc
	subs   map[int]func(State)
	nextID int

	// streamID identifies the send that owns Loading and cancel.
	streamID uint64
}

// New creates a Controller. Call Start before use.
func New(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	speaker := cfg.Speaker
	if speaker == nil {
		speaker = silentSpeaker{}
	}
	narrow := cfg.NarrowWidth
	if narrow <= 0 {
		narrow = DefaultNarrowWidth
	}
	c := &Controller{
		auth:        auth.New(cfg.Store, log),
		repo:        sessions.New(cfg.Store, log),
		backend:     cfg.Backend,
		speaker:     speaker,
		log:         log.With("component", "app"),
		narrowWidth: narrow,
		subs:        make(map[int]func(State)),
	}
	if n, ok := speaker.(interface{ OnChange(func(string, bool)) }); ok {
		n.OnChange(func(string, bool) { c.notify() })
	}
	return c
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state.clone()
	s.SpeakingID = c.speaker.SpeakingID()
	return s
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function removes the subscription.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	s := c.snapshotLocked()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// =============================================================================
// LIFECYCLE AND AUTHENTICATION
// =============================================================================

// Start seeds the owner account and restores the previously active user.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.auth.EnsureOwner(ctx); err != nil {
		c.log.Warn(ctx, "seed owner account", "error", err)
		c.mu.Lock()
		c.state.StorageWarning = StorageWarningText
		c.mu.Unlock()
	}
	if user, ok := c.auth.Active(ctx); ok {
		c.mu.Lock()
		c.loadUserLocked(ctx, user)
		c.mu.Unlock()
	}
	c.notify()
	return nil
}

// Login authenticates and activates a user.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	user, err := c.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	c.activate(ctx, user)
	return nil
}

// Register creates an account and activates it.
func (c *Controller) Register(ctx context.Context, username, password, name string) error {
	user, err := c.auth.Register(ctx, username, password, name)
	if err != nil {
		return err
	}
	c.activate(ctx, user)
	return nil
}

func (c *Controller) activate(ctx context.Context, user model.UserProfile) {
	pointerErr := c.auth.SetActive(ctx, user)
	c.mu.Lock()
	c.loadUserLocked(ctx, user)
	if pointerErr != nil {
		c.log.Warn(ctx, "persist active user", "error", pointerErr)
		c.state.StorageWarning = StorageWarningText
	}
	c.mu.Unlock()
	c.notify()
}

// Logout clears the active user and everything loaded for them.
func (c *Controller) Logout(ctx context.Context) error {
	c.speaker.Stop()
	c.mu.Lock()
	c.cancelLocked()
	user := c.state.User
	c.state = State{
		AutoSpeak:      c.state.AutoSpeak,
		StorageWarning: c.state.StorageWarning,
		ViewportWidth:  c.state.ViewportWidth,
	}
	c.conv = nil
	c.mu.Unlock()

	err := c.auth.ClearActive(ctx)
	if user != nil {
		c.log.Info(ctx, "logged out", "user", user.Username)
	}
	c.notify()
	return err
}

// loadUserLocked replaces the state with user's persisted sessions. The most
// recent session becomes active, or a fresh one is created.
func (c *Controller) loadUserLocked(ctx context.Context, user model.UserProfile) {
	c.cancelLocked()
	c.streamID++
	u := user
	u.Password = ""
	c.state.User = &u
	c.state.Loading = false
	c.state.Sessions = c.repo.Load(ctx, user.Username)
	c.state.ActiveID = ""
	c.conv = nil
	if len(c.state.Sessions) == 0 {
		c.createSessionLocked(ctx, true)
		return
	}
	first := &c.state.Sessions[0]
	c.state.ActiveID = first.ID
	c.conv = c.newConversation(first)
}

func (c *Controller) newConversation(sess *model.ChatSession) Conversation {
	if c.backend == nil {
		return nil
	}
	var history []gemini.Content
	if sess != nil {
		history = gemini.HistoryFromMessages(sess.History())
	}
	return c.backend.NewConversation(history)
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSession adds a session at the head of the list. When switchTo is set
// it becomes active with an empty backend history.
func (c *Controller) CreateSession(ctx context.Context, switchTo bool) (string, error) {
	c.mu.Lock()
	if c.state.User == nil {
		c.mu.Unlock()
		return "", ErrNotLoggedIn
	}
	id := c.createSessionLocked(ctx, switchTo)
	c.mu.Unlock()
	c.notify()
	return id, nil
}

func (c *Controller) createSessionLocked(ctx context.Context, switchTo bool) string {
	sess := model.NewSession(c.state.User.Name)
	c.state.Sessions = append([]model.ChatSession{sess}, c.state.Sessions...)
	if switchTo {
		c.state.ActiveID = sess.ID
		c.conv = c.newConversation(nil)
		c.closeSidebarIfNarrowLocked()
	}
	c.persistLocked(ctx)
	return sess.ID
}

// SelectSession makes id the active session and re-seeds the backend handle
// from its completed messages.
func (c *Controller) SelectSession(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state.User == nil {
		c.mu.Unlock()
		return ErrNotLoggedIn
	}
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return ErrUnknownSession
	}
	if c.state.ActiveID == id {
		c.mu.Unlock()
		return nil
	}
	c.state.ActiveID = id
	c.conv = c.newConversation(&c.state.Sessions[i])
	c.closeSidebarIfNarrowLocked()
	c.mu.Unlock()
	c.log.Debug(ctx, "session selected", "session", id)
	c.notify()
	return nil
}

func (c *Controller) indexLocked(id string) int {
	for i := range c.state.Sessions {
		if c.state.Sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// MESSAGING
// =============================================================================

// SendMessage appends the user turn, streams the reply into a placeholder and
// finalizes it. It blocks until the stream ends. Backend and storage failures
// are reflected in state, not returned.
func (c *Controller) SendMessage(ctx context.Context, text string, attachments []model.Attachment) error {
	c.mu.Lock()
	if c.state.User == nil || c.state.ActiveID == "" || c.conv == nil {
		c.mu.Unlock()
		return nil
	}
	if c.state.Loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	c.speaker.Stop()

	c.mu.Lock()
	i := c.indexLocked(c.state.ActiveID)
	if c.state.User == nil || i < 0 || c.conv == nil {
		c.mu.Unlock()
		return nil
	}
	username := c.state.User.Username
	sessionID := c.state.ActiveID
	sess := &c.state.Sessions[i]

	userMsg := model.NewUserMessage(text, attachments)
	if sess.IsFirstTurn() {
		sess.Title = model.DeriveTitle(text, len(attachments))
	}
	sess.Append(userMsg)

	placeholder := model.NewAssistantPlaceholder()
	sess.Append(placeholder)
	c.state.Loading = true

	conv := c.conv
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.streamID++
	streamID := c.streamID
	c.persistLocked(ctx)
	c.mu.Unlock()
	c.notify()
	c.log.Debug(ctx, "sending", "session", sessionID, "text", util.TruncateRunes(text, 40), "attachments", len(attachments))

	defer cancel()
	persistCtx := context.WithoutCancel(ctx)

	full, err := c.stream(streamCtx, conv, gemini.PartsForSend(text, attachments), func(buffer string) {
		c.patch(persistCtx, username, sessionID, func(s *model.ChatSession) bool {
			return s.SetText(placeholder.ID, buffer)
		})
	})

	if err != nil {
		c.log.Warn(ctx, "send message", "session", sessionID, "error", err)
		c.finish(persistCtx, username, sessionID, streamID, func(s *model.ChatSession) bool {
			s.Append(model.NewAssistantMessage(ErrorReplyText))
			return true
		})
		return nil
	}

	c.finish(persistCtx, username, sessionID, streamID, func(s *model.ChatSession) bool {
		return s.FinishStreaming(placeholder.ID)
	})

	c.mu.Lock()
	autoSpeak := c.state.AutoSpeak
	c.mu.Unlock()
	if autoSpeak && full != "" {
		c.speaker.SpeakID(placeholder.ID, full)
	}
	return nil
}

// stream drains a reply, reporting the accumulated text after every chunk.
func (c *Controller) stream(ctx context.Context, conv Conversation, parts []gemini.Part, onText func(string)) (string, error) {
	s, err := conv.SendMessageStream(ctx, parts)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var buffer string
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return buffer, nil
		}
		if err != nil {
			return buffer, err
		}
		buffer += chunk
		onText(buffer)
	}
}

// patch applies fn to the session with the given id if username is still
// logged in, persisting on change.
func (c *Controller) patch(ctx context.Context, username, sessionID string, fn func(*model.ChatSession) bool) {
	c.mu.Lock()
	changed := c.applyLocked(ctx, username, sessionID, fn)
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// finish is patch that also ends the loading state, unless a reload or a
// newer send has taken it over.
func (c *Controller) finish(ctx context.Context, username, sessionID string, streamID uint64, fn func(*model.ChatSession) bool) {
	c.mu.Lock()
	c.applyLocked(ctx, username, sessionID, fn)
	if c.streamID == streamID && c.state.User != nil && c.state.User.Username == username {
		c.state.Loading = false
		c.cancel = nil
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) applyLocked(ctx context.Context, username, sessionID string, fn func(*model.ChatSession) bool) bool {
	if c.state.User == nil || c.state.User.Username != username {
		return false
	}
	i := c.indexLocked(sessionID)
	if i < 0 {
		return false
	}
	if !fn(&c.state.Sessions[i]) {
		return false
	}
	c.persistLocked(ctx)
	return true
}

// SendCapture sends a camera capture as a JPEG attachment.
func (c *Controller) SendCapture(ctx context.Context, base64Data string) error {
	att := model.NewImageAttachment("image/jpeg", base64Data)
	return c.SendMessage(ctx, CaptureText, []model.Attachment{att})
}

// SendRecording sends a voice recording.
func (c *Controller) SendRecording(ctx context.Context, att model.Attachment) error {
	return c.SendMessage(ctx, RecordingText, []model.Attachment{att})
}

// CancelStream aborts the reply being streamed, if any. The send then
// completes as a failure.
func (c *Controller) CancelStream() {
	c.mu.Lock()
	c.cancelLocked()
	c.mu.Unlock()
}

func (c *Controller) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// =============================================================================
// SPEECH
// =============================================================================

// ToggleAutoSpeak flips whether completed replies are read aloud and returns
// the new setting.
func (c *Controller) ToggleAutoSpeak() bool {
	c.mu.Lock()
	c.state.AutoSpeak = !c.state.AutoSpeak
	on := c.state.AutoSpeak
	c.mu.Unlock()
	c.notify()
	return on
}

// SpeakMessage starts reading a message of the active session aloud, or
// stops it if it is the one already playing. It reports whether speech
// started.
func (c *Controller) SpeakMessage(id string) bool {
	c.mu.Lock()
	var text string
	if i := c.indexLocked(c.state.ActiveID); i >= 0 {
		if m, ok := c.state.Sessions[i].Message(id); ok {
			text = m.Text
		}
	}
	c.mu.Unlock()
	if text == "" {
		return false
	}
	return c.speaker.Toggle(id, text)
}

// StopSpeech cancels any playback.
func (c *Controller) StopSpeech() {
	c.speaker.Stop()
}

// =============================================================================
// VIEW STATE
// =============================================================================

// ToggleSidebar opens or closes the session list.
func (c *Controller) ToggleSidebar() {
	c.mu.Lock()
	c.state.SidebarOpen = !c.state.SidebarOpen
	c.mu.Unlock()
	c.notify()
}

// SetViewportWidth records the terminal width used by the narrow-layout rule.
func (c *Controller) SetViewportWidth(cols int) {
	c.mu.Lock()
	c.state.ViewportWidth = cols
	c.mu.Unlock()
}

func (c *Controller) closeSidebarIfNarrowLocked() {
	if c.state.ViewportWidth > 0 && c.state.ViewportWidth < c.narrowWidth {
		c.state.SidebarOpen = false
	}
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// FactoryReset deletes the owner's entire history and starts over with a
// fresh session.
func (c *Controller) FactoryReset(ctx context.Context) error {
	c.mu.Lock()
	if c.state.User == nil {
		c.mu.Unlock()
		return ErrNotLoggedIn
	}
	if !auth.IsPrivileged(*c.state.User) {
		c.mu.Unlock()
		return ErrNotPrivileged
	}
	user := *c.state.User
	c.cancelLocked()
	c.streamID++
	// Drop the old history now so a stream winding down cannot write it back.
	c.state.Sessions = nil
	c.state.ActiveID = ""
	c.state.Loading = false
	c.conv = nil
	c.mu.Unlock()

	c.speaker.Stop()
	if err := c.repo.Delete(ctx, user.Username); err != nil {
		c.mu.Lock()
		c.loadUserLocked(ctx, user)
		c.mu.Unlock()
		c.notify()
		return err
	}
	c.log.Info(ctx, "history cleared", "user", user.Username)

	c.mu.Lock()
	c.state.AutoSpeak = false
	c.state.SidebarOpen = false
	c.loadUserLocked(ctx, user)
	c.mu.Unlock()
	c.notify()
	return nil
}

// StoreChanged reacts to a write made by another process. A change to the
// active user's history is reloaded unless a reply is streaming; a change to
// the credential collection only triggers a refresh of subscribers.
func (c *Controller) StoreChanged(ctx context.Context, key string) {
	c.mu.Lock()
	switch {
	case key == storage.KeyUsers:
	case c.state.User != nil && key == storage.SessionsKey(c.state.User.Username):
		if c.state.Loading {
			c.mu.Unlock()
			return
		}
		loaded := c.repo.Load(ctx, c.state.User.Username)
		if len(loaded) == 0 {
			c.mu.Unlock()
			return
		}
		var before []model.Message
		if i := c.indexLocked(c.state.ActiveID); i >= 0 {
			before = c.state.Sessions[i].Messages
		}
		c.state.Sessions = loaded
		switch i := c.indexLocked(c.state.ActiveID); {
		case i < 0:
			c.state.ActiveID = loaded[0].ID
			c.conv = c.newConversation(&c.state.Sessions[0])
		case !sameMessages(before, c.state.Sessions[i].Messages):
			c.conv = c.newConversation(&c.state.Sessions[i])
		}
		c.log.Debug(ctx, "history reloaded", "user", c.state.User.Username)
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.notify()
}

// sameMessages reports whether two message lists hold the same turns.
func sameMessages(a, b []model.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Text != b[i].Text {
			return false
		}
	}
	return true
}

// persistLocked writes all of the current user's sessions, maintaining the
// storage warning.
func (c *Controller) persistLocked(ctx context.Context) {
	if c.state.User == nil {
		return
	}
	if err := c.repo.Save(ctx, c.state.User.Username, c.state.Sessions); err != nil {
		c.log.Warn(ctx, "persist history", "user", c.state.User.Username, "error", err)
		c.state.StorageWarning = StorageWarningText
		return
	}
	c.state.StorageWarning = ""
}
