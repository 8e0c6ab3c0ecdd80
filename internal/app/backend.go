// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"

	"github.com/jeranaias/iachat/internal/gemini"
)

// Backend starts conversations with the chat model.
type Backend interface {
	NewConversation(history []gemini.Content) Conversation
}

// Conversation is a backend handle that remembers prior turns.
type Conversation interface {
	SendMessageStream(ctx context.Context, parts []gemini.Part) (TextStream, error)
}

// TextStream yields reply chunks; Next returns io.EOF after the last one.
type TextStream interface {
	Next() (string, error)
	Close() error
}

// Speaker plays text aloud. *speech.Player implements it.
type Speaker interface {
	SpeakID(id, text string)
	Toggle(id, text string) bool
	Stop()
	SpeakingID() string
	Speaking() bool
}

// NewGeminiBackend adapts a gemini.Client to Backend.
func NewGeminiBackend(c *gemini.Client) Backend {
	return geminiBackend{client: c}
}

type geminiBackend struct {
	client *gemini.Client
}

func (b geminiBackend) NewConversation(history []gemini.Content) Conversation {
	return geminiConversation{chat: b.client.NewChat(history)}
}

type geminiConversation struct {
	chat *gemini.Chat
}

func (c geminiConversation) SendMessageStream(ctx context.Context, parts []gemini.Part) (TextStream, error) {
	s, err := c.chat.SendMessageStream(ctx, parts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type silentSpeaker struct{}

func (silentSpeaker) SpeakID(string, string) {}
func (silentSpeaker) Toggle(string, string) bool { return false }
func (silentSpeaker) Stop() {}
func (silentSpeaker) SpeakingID() string { return "" }
func (silentSpeaker) Speaking() bool { return false }
