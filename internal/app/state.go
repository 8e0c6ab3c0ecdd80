// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/jeranaias/iachat/internal/auth"
	"github.com/jeranaias/iachat/internal/model"
)

// State is a read-only snapshot of the controller. Views render from it
// and never mutate it.
type State struct {
	// User is nil when logged out.
	User *model.UserProfile

	// Sessions are most recent first.
	Sessions []model.ChatSession
	ActiveID string

	// Loading is true while a reply is streaming.
	Loading bool

	AutoSpeak bool

	// SpeakingID is the id of the message being read aloud, if any.
	SpeakingID string

	// StorageWarning is non-empty while the last write failed.
	StorageWarning string

	SidebarOpen   bool
	ViewportWidth int
}

// LoggedIn reports whether a user is active.
func (s State) LoggedIn() bool {
	return s.User != nil
}

// Privileged reports whether the active user is the owner account.
func (s State) Privileged() bool {
	return s.User != nil && auth.IsPrivileged(*s.User)
}

// ActiveSession returns the session being viewed.
func (s State) ActiveSession() (model.ChatSession, bool) {
	for _, sess := range s.Sessions {
		if sess.ID == s.ActiveID {
			return sess, true
		}
	}
	return model.ChatSession{}, false
}

// SidebarSessions lists sessions oldest first, the order the session list
// shows and numbers them in.
func (s State) SidebarSessions() []model.ChatSession {
	out := make([]model.ChatSession, len(s.Sessions))
	for i, sess := range s.Sessions {
		out[len(s.Sessions)-1-i] = sess
	}
	return out
}

// Title is the header text: the active session's title, or a ready
// message when none is selected.
func (s State) Title() string {
	if sess, ok := s.ActiveSession(); ok {
		return sess.Title
	}
	return ReadyTitle
}

func (s State) clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	out.Sessions = model.CloneSessions(s.Sessions)
	return out
}
