// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/iachat/internal/commands"
	"github.com/jeranaias/iachat/internal/model"
	"github.com/jeranaias/iachat/internal/ui/styles"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// speakingMarker flags the message being read aloud.
const speakingMarker = "🔊"

// markdownRenderer renders finished assistant replies through glamour and
// caches the output per message and text. Streaming text is drawn plain.
type markdownRenderer struct {
	style   string
	enabled bool

	width int
	term  *glamour.TermRenderer
	cache map[string]string
}

func newMarkdownRenderer(style string, enabled bool) *markdownRenderer {
	return &markdownRenderer{
		style:   style,
		enabled: enabled,
		cache:   make(map[string]string),
	}
}

// setWidth rebuilds the glamour renderer when the wrap width changes.
func (r *markdownRenderer) setWidth(width int) {
	if width == r.width && (r.term != nil || !r.enabled) {
		return
	}
	r.width = width
	r.cache = make(map[string]string)
	if !r.enabled || width <= 0 {
		r.term = nil
		return
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r.term = nil
		return
	}
	r.term = term
}

// render returns text as markdown, falling back to wrapped plain text.
func (r *markdownRenderer) render(id, text string) string {
	if r.term == nil {
		return wrap(text, r.width)
	}
	key := id + "\x00" + text
	if out, ok := r.cache[key]; ok {
		return out
	}
	out, err := r.term.Render(text)
	if err != nil {
		return wrap(text, r.width)
	}
	out = strings.Trim(out, "\n")
	r.cache[key] = out
	return out
}

func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// renderMessages draws a session as the viewport content.
func renderMessages(t *styles.Theme, r *markdownRenderer, sess model.ChatSession, speakingID, spinnerView string, width int) string {
	bubbleWidth := width * 3 / 4
	if bubbleWidth < 20 {
		bubbleWidth = width
	}
	r.setWidth(bubbleWidth - 4)

	blocks := make([]string, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		blocks = append(blocks, renderMessage(t, r, msg, msg.ID == speakingID, spinnerView, width, bubbleWidth))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(t *styles.Theme, r *markdownRenderer, msg model.Message, speaking bool, spinnerView string, width, bubbleWidth int) string {
	header := t.SenderLabel.Render(msg.Sender.DisplayName()) + " " +
		t.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))
	if speaking {
		header += " " + t.Speaking.Render(speakingMarker)
	}

	var body []string
	for _, a := range msg.Attachments {
		body = append(body, t.Attachment.Render("📎 "+commands.AttachmentLabel(a)+" ("+a.MimeType+")"))
	}

	inner := bubbleWidth - 4
	switch {
	case msg.Sender == model.SenderUser:
		if msg.Text != "" {
			body = append(body, wrap(msg.Text, inner))
		}
		bubble := t.UserBubble.Render(strings.Join(body, "\n"))
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, header+"\n"+bubble)
	case msg.IsStreaming:
		text := wrap(msg.Text, inner)
		if text == "" {
			text = spinnerView
		} else {
			text += " " + spinnerView
		}
		body = append(body, text)
	default:
		body = append(body, r.render(msg.ID, msg.Text))
	}
	return header + "\n" + t.AssistantBubble.Render(strings.Join(body, "\n"))
}
