// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTitle is the title of a session before its first real turn.
	DefaultTitle = "การสนทนาใหม่"

	// AttachmentOnlyTitle is used when the first turn carries media but no text.
	AttachmentOnlyTitle = "ส่งรูปภาพ"

	// FallbackTitle is used when the first turn carries nothing at all.
	FallbackTitle = "การสนทนา"

	// TitleMaxRunes is how much of the first message the title keeps.
	TitleMaxRunes = 30

	// WelcomeMessageID is the fixed id of the seeded greeting.
	WelcomeMessageID = "welcome"
)

// =============================================================================
// CHAT SESSION TYPE
// =============================================================================

// ChatSession is one conversation thread. Messages are kept in conversation
// order and are only ever appended.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession creates a session seeded with the assistant welcome message
// addressed to displayName.
func NewSession(displayName string) ChatSession {
	now := time.Now()
	return ChatSession{
		ID:    uuid.NewString(),
		Title: DefaultTitle,
		Messages: []Message{{
			ID:        WelcomeMessageID,
			Text:      WelcomeText(displayName),
			Sender:    SenderAI,
			Timestamp: now,
		}},
		UpdatedAt: now,
	}
}

// WelcomeText is the greeting seeded into every new session.
func WelcomeText(displayName string) string {
	return fmt.Sprintf("สวัสดีครับคุณ %s! IA Chat พร้อมให้บริการครับ มีอะไรให้ช่วยไหมครับ?", displayName)
}

// DeriveTitle computes a session title from the first user turn.
func DeriveTitle(text string, attachmentCount int) string {
	runes := []rune(text)
	switch {
	case len(runes) > TitleMaxRunes:
		return string(runes[:TitleMaxRunes]) + "..."
	case text != "":
		return text
	case attachmentCount > 0:
		return AttachmentOnlyTitle
	default:
		return FallbackTitle
	}
}

// IsFirstTurn reports whether the next user message is the session's first
// real turn, i.e. only the welcome message (or nothing) precedes it.
func (s ChatSession) IsFirstTurn() bool {
	return len(s.Messages) <= 1
}

// Append adds a message at the end of the session and bumps UpdatedAt.
func (s *ChatSession) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
}

// IndexOf returns the position of the message with the given id, or -1.
func (s *ChatSession) IndexOf(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Message returns the message with the given id.
func (s *ChatSession) Message(id string) (Message, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s.Messages[i], true
	}
	return Message{}, false
}

// SetText replaces the text of a streaming message. Completed messages are
// immutable and are left alone.
func (s *ChatSession) SetText(id, text string) bool {
	i := s.IndexOf(id)
	if i < 0 || !s.Messages[i].IsStreaming {
		return false
	}
	s.Messages[i].Text = text
	return true
}

// FinishStreaming clears the streaming flag of a message.
func (s *ChatSession) FinishStreaming(id string) bool {
	i := s.IndexOf(id)
	if i < 0 || !s.Messages[i].IsStreaming {
		return false
	}
	s.Messages[i].IsStreaming = false
	return true
}

// History returns the completed messages, skipping any still streaming.
func (s ChatSession) History() []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.IsStreaming {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

// StreamingCount returns the number of messages with the streaming flag set.
func (s ChatSession) StreamingCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.IsStreaming {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the session.
func (s ChatSession) Clone() ChatSession {
	msgs := make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		msgs[i] = m.Clone()
	}
	s.Messages = msgs
	return s
}

// CloneSessions deep-copies a session list.
func CloneSessions(sessions []ChatSession) []ChatSession {
	out := make([]ChatSession, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// EncodeSessions serializes a session list, most recent first.
func EncodeSessions(sessions []ChatSession) ([]byte, error) {
	if sessions == nil {
		sessions = []ChatSession{}
	}
	return json.Marshal(sessions)
}

// DecodeSessions parses a stored session list.
func DecodeSessions(data []byte) ([]ChatSession, error) {
	var sessions []ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Messages == nil {
			sessions[i].Messages = []Message{}
		}
	}
	return sessions, nil
}
