// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/iachat/internal/model"
)

// =============================================================================
// CONTENT TYPES
// =============================================================================

// Roles used in Content.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// InlineData is a base64 payload sent alongside text.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one piece of a turn: either text or inline data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// MarshalJSON keeps an empty text part as {"text":""} instead of {}.
func (p Part) MarshalJSON() ([]byte, error) {
	if p.InlineData != nil {
		return json.Marshal(struct {
			InlineData *InlineData `json:"inlineData"`
		}{p.InlineData})
	}
	return json.Marshal(struct {
		Text string `json:"text"`
	}{p.Text})
}

// Content is a single turn of the conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// InlinePart returns an inline-data part.
func InlinePart(mimeType, data string) Part {
	return Part{InlineData: &InlineData{MimeType: mimeType, Data: data}}
}

// Text concatenates the text parts of c.
func (c Content) Text() string {
	var sb strings.Builder
	for _, p := range c.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// =============================================================================
// CONVERSION
// =============================================================================

// HistoryFromMessages converts stored messages to backend history. Messages
// still streaming are left out. Each turn carries its text followed by one
// inline part per attachment.
func HistoryFromMessages(messages []model.Message) []Content {
	history := make([]Content, 0, len(messages))
	for _, m := range messages {
		if m.IsStreaming {
			continue
		}
		role := RoleModel
		if m.Sender == model.SenderUser {
			role = RoleUser
		}
		parts := make([]Part, 0, 1+len(m.Attachments))
		parts = append(parts, TextPart(m.Text))
		for _, a := range m.Attachments {
			parts = append(parts, InlinePart(a.MimeType, a.Data))
		}
		history = append(history, Content{Role: role, Parts: parts})
	}
	return history
}

// PartsForSend builds the payload of a new user turn. The text part is
// omitted when text is empty.
func PartsForSend(text string, attachments []model.Attachment) []Part {
	parts := make([]Part, 0, 1+len(attachments))
	if text != "" {
		parts = append(parts, TextPart(text))
	}
	for _, a := range attachments {
		parts = append(parts, InlinePart(a.MimeType, a.Data))
	}
	return parts
}

func cloneContents(in []Content) []Content {
	out := make([]Content, len(in))
	for i, c := range in {
		out[i] = Content{Role: c.Role, Parts: append([]Part(nil), c.Parts...)}
	}
	return out
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type generateRequest struct {
	Contents          []Content `json:"contents"`
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type errorEnvelope struct {
	Error *apiError `json:"error"`
}
