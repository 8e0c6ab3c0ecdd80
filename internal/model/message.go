// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for users, chat sessions and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// String returns the wire value of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderAI:
		return "IA"
	default:
		return string(s)
	}
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// AttachmentType is the media kind of an attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentAudio AttachmentType = "audio"
)

// Attachment is an inline media payload sent with a user message.
// Attachments are never mutated after creation.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	MimeType string         `json:"mimeType"`
	Data     string         `json:"data"` // base64, no data: URL prefix
}

// NewImageAttachment wraps a base64 image payload.
func NewImageAttachment(mimeType, data string) Attachment {
	return Attachment{Type: AttachmentImage, MimeType: mimeType, Data: data}
}

// NewAudioAttachment wraps a base64 audio payload.
func NewAudioAttachment(mimeType, data string) Attachment {
	return Attachment{Type: AttachmentAudio, MimeType: mimeType, Data: data}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a chat session.
//
// Once IsStreaming is cleared the message is immutable. While streaming, only
// Text changes, and it is replaced wholesale with the accumulated reply.
type Message struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Sender      Sender       `json:"sender"`
	Timestamp   time.Time    `json:"timestamp"`
	IsStreaming bool         `json:"isStreaming,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewMessageID returns a fresh message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// NewUserMessage creates a user message carrying text and attachments.
func NewUserMessage(text string, attachments []Attachment) Message {
	msg := Message{
		ID:        NewMessageID(),
		Text:      text,
		Sender:    SenderUser,
		Timestamp: time.Now(),
	}
	if len(attachments) > 0 {
		msg.Attachments = append([]Attachment(nil), attachments...)
	}
	return msg
}

// NewAssistantPlaceholder creates the empty, streaming assistant message that
// receives a reply as it arrives.
func NewAssistantPlaceholder() Message {
	return Message{
		ID:          NewMessageID(),
		Sender:      SenderAI,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewAssistantMessage creates a complete assistant message.
func NewAssistantMessage(text string) Message {
	return Message{
		ID:        NewMessageID(),
		Text:      text,
		Sender:    SenderAI,
		Timestamp: time.Now(),
	}
}

// HasAttachments reports whether the message carries media.
func (m Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	if m.Attachments != nil {
		m.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return m
}
