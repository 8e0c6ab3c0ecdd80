// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the client.
type ClientConfig struct {
	// BaseURL is the API root (default: https://generativelanguage.googleapis.com/v1beta).
	BaseURL string

	APIKey string

	// Model is the model id (default: gemini-3-flash-preview).
	Model string

	// SystemInstruction is sent with every request when non-empty.
	SystemInstruction string

	// HTTPClient overrides the transport. It must not set a Timeout: the
	// streaming call is bounded only by its context.
	HTTPClient *http.Client
}

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-3-flash-preview"
)

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: defaultBaseURL,
		Model:   defaultModel,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the generateContent REST API.
//
// The Client is safe for concurrent use.
//
// Example:
//
//	client := gemini.NewClient(&gemini.ClientConfig{APIKey: key})
//	chat := client.NewChat(nil)
//	stream, err := chat.SendMessageStream(ctx, []gemini.Part{gemini.TextPart("สวัสดี")})
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a client, filling zero values from DefaultConfig.
func NewClient(config *ClientConfig) *Client {
	cfg := DefaultConfig()
	if config != nil {
		cfg.APIKey = config.APIKey
		cfg.SystemInstruction = config.SystemInstruction
		cfg.HTTPClient = config.HTTPClient
		if config.BaseURL != "" {
			cfg.BaseURL = strings.TrimRight(config.BaseURL, "/")
		}
		if config.Model != "" {
			cfg.Model = config.Model
		}
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{config: *cfg, httpClient: hc}
}

// Model returns the configured model id.
func (c *Client) Model() string {
	return c.config.Model
}

// StreamGenerateContent starts a streaming completion for contents. The
// caller must Close the returned stream.
func (c *Client) StreamGenerateContent(ctx context.Context, contents []Content) (*Stream, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqBody := generateRequest{Contents: contents}
	if c.config.SystemInstruction != "" {
		reqBody.SystemInstruction = &Content{Parts: []Part{TextPart(c.config.SystemInstruction)}}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	endpoint := c.config.BaseURL + "/models/" + url.PathEscape(c.config.Model) + ":streamGenerateContent?alt=sse"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer drainAndClose(resp.Body)
		var env errorEnvelope
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env)
		return nil, errorFromStatus(resp.StatusCode, env.Error)
	}

	return newStream(resp.Body), nil
}

// NewChat returns a conversation handle seeded with history.
func (c *Client) NewChat(history []Content) *Chat {
	return &Chat{client: c, history: cloneContents(history)}
}

// =============================================================================
// CHAT HANDLE
// =============================================================================

// Chat accumulates the turns of one conversation so each request carries
// the full context.
type Chat struct {
	client *Client

	mu      sync.Mutex
	history []Content
}

// History returns a copy of the accumulated turns.
func (ch *Chat) History() []Content {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return cloneContents(ch.history)
}

// SendMessageStream sends a user turn and streams the reply. When the
// stream reaches io.EOF the user turn and the full reply are appended to
// the history; on any failure the history is unchanged.
func (ch *Chat) SendMessageStream(ctx context.Context, parts []Part) (*Stream, error) {
	if len(parts) == 0 {
		return nil, ErrEmptyMessage
	}
	userTurn := Content{Role: RoleUser, Parts: append([]Part(nil), parts...)}

	ch.mu.Lock()
	contents := append(cloneContents(ch.history), userTurn)
	ch.mu.Unlock()

	stream, err := ch.client.StreamGenerateContent(ctx, contents)
	if err != nil {
		return nil, err
	}
	stream.onComplete = func(reply string) {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		ch.history = append(ch.history, userTurn, Content{Role: RoleModel, Parts: []Part{TextPart(reply)}})
	}
	return stream, nil
}

// drainAndClose empties and closes a response body so the connection can
// be reused.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
