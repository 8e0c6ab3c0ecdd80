// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/iachat/internal/model"
)

// sseEvent renders one streamed response carrying text.
func sseEvent(text string) string {
	return fmt.Sprintf("data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":%q}]}}]}\r\n\r\n", text)
}

type recordedRequest struct {
	Path   string
	Query  string
	APIKey string
	Body   generateRequest
}

// fakeServer streams the given chunks and records each request body.
func fakeServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body generateRequest
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			APIKey: r.Header.Get("x-goog-api-key"),
			Body:   body,
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func streamChunks(chunks ...string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			io.WriteString(w, sseEvent(c))
			w.(http.Flusher).Flush()
		}
	}
}

func newTestClient(url string) *Client {
	return NewClient(&ClientConfig{BaseURL: url + "/", APIKey: "k", Model: "test-model", SystemInstruction: "be nice"})
}

func collect(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	defer s.Close()
	var out []string
	for {
		chunk, err := s.Next()
		if err != nil {
			return out, err
		}
		out = append(out, chunk)
	}
}

// =============================================================================
// CONVERSION
// =============================================================================

func TestHistoryFromMessages(t *testing.T) {
	img := model.NewImageAttachment("image/png", "AAA")
	msgs := []model.Message{
		model.NewAssistantMessage("welcome"),
		model.NewUserMessage("", []model.Attachment{img}),
		model.NewAssistantMessage("a cat"),
		model.NewAssistantPlaceholder(),
	}

	h := HistoryFromMessages(msgs)
	require.Len(t, h, 3, "streaming messages are excluded")

	assert.Equal(t, RoleModel, h[0].Role)
	assert.Equal(t, RoleUser, h[1].Role)
	require.Len(t, h[1].Parts, 2)
	assert.Equal(t, "", h[1].Parts[0].Text)
	assert.Nil(t, h[1].Parts[0].InlineData)
	assert.Equal(t, &InlineData{MimeType: "image/png", Data: "AAA"}, h[1].Parts[1].InlineData)
	assert.Equal(t, "a cat", h[2].Text())
}

func TestPartsForSend(t *testing.T) {
	audio := model.NewAudioAttachment("audio/webm", "BBB")

	assert.Equal(t, []Part{TextPart("hi")}, PartsForSend("hi", nil))
	assert.Equal(t, []Part{InlinePart("audio/webm", "BBB")}, PartsForSend("", []model.Attachment{audio}))
	assert.Equal(t, []Part{TextPart("hi"), InlinePart("audio/webm", "BBB")}, PartsForSend("hi", []model.Attachment{audio}))
	assert.Empty(t, PartsForSend("", nil))
}

func TestPart_MarshalJSON(t *testing.T) {
	b, err := json.Marshal([]Part{TextPart(""), InlinePart("image/jpeg", "x")})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"text":""},{"inlineData":{"mimeType":"image/jpeg","data":"x"}}]`, string(b))
}

// =============================================================================
// STREAMING
// =============================================================================

func TestChat_StreamsAndGrowsHistory(t *testing.T) {
	srv, reqs := fakeServer(t, streamChunks("สวัส", "ดี", "ครับ"))
	chat := newTestClient(srv.URL).NewChat([]Content{{Role: RoleModel, Parts: []Part{TextPart("welcome")}}})

	stream, err := chat.SendMessageStream(context.Background(), []Part{TextPart("hello")})
	require.NoError(t, err)
	chunks, err := collect(t, stream)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"สวัส", "ดี", "ครับ"}, chunks)
	assert.Equal(t, "สวัสดีครับ", stream.Text())

	require.Len(t, *reqs, 1)
	req := (*reqs)[0]
	assert.Equal(t, "/models/test-model:streamGenerateContent", req.Path)
	assert.Equal(t, "alt=sse", req.Query)
	assert.Equal(t, "k", req.APIKey)
	require.NotNil(t, req.Body.SystemInstruction)
	assert.Equal(t, "be nice", req.Body.SystemInstruction.Text())
	require.Len(t, req.Body.Contents, 2)
	assert.Equal(t, "hello", req.Body.Contents[1].Text())

	h := chat.History()
	require.Len(t, h, 3)
	assert.Equal(t, RoleUser, h[1].Role)
	assert.Equal(t, RoleModel, h[2].Role)
	assert.Equal(t, "สวัสดีครับ", h[2].Text())

	// The next turn carries the whole conversation.
	stream, err = chat.SendMessageStream(context.Background(), []Part{TextPart("again")})
	require.NoError(t, err)
	_, _ = collect(t, stream)
	assert.Len(t, (*reqs)[1].Body.Contents, 4)
}

func TestStream_SkipsEmptyAndCommentEvents(t *testing.T) {
	srv, _ := fakeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, ": keep-alive\n\n")
		io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[]}}]}\n\n")
		io.WriteString(w, sseEvent("a"))
		io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"b\"}]},\"finishReason\":\"STOP\"}]}")
	})
	stream, err := newTestClient(srv.URL).NewChat(nil).SendMessageStream(context.Background(), []Part{TextPart("x")})
	require.NoError(t, err)

	chunks, err := collect(t, stream)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"a", "b"}, chunks)
}

func TestChat_FailureLeavesHistoryUnchanged(t *testing.T) {
	srv, _ := fakeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, sseEvent("partial"))
		io.WriteString(w, "data: {not json}\n\n")
	})
	chat := newTestClient(srv.URL).NewChat(nil)

	stream, err := chat.SendMessageStream(context.Background(), []Part{TextPart("x")})
	require.NoError(t, err)
	chunks, err := collect(t, stream)
	assert.Equal(t, []string{"partial"}, chunks)
	assert.True(t, IsInvalidResponse(err))

	// Sticky error.
	_, again := stream.Next()
	assert.Equal(t, err, again)

	assert.Empty(t, chat.History())
}

func TestChat_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	srv, _ := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sseEvent("first"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	chat := newTestClient(srv.URL).NewChat(nil)
	stream, err := chat.SendMessageStream(ctx, []Part{TextPart("x")})
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", chunk)

	cancel()
	_, err = stream.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.True(t, IsConnection(err))
	assert.Empty(t, chat.History())
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"unauthorized", 401, `{"error":{"code":401,"message":"nope"}}`, IsAuth},
		{"bad key", 400, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key."}}`, IsAuth},
		{"rate limited", 429, `{"error":{"code":429,"message":"quota"}}`, IsRateLimited},
		{"bad request", 400, `{"error":{"code":400,"message":"bad"}}`, IsInvalidResponse},
		{"server error", 503, ``, IsConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			chat := newTestClient(srv.URL).NewChat(nil)
			_, err := chat.SendMessageStream(context.Background(), []Part{TextPart("x")})
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
			assert.Empty(t, chat.History())
		})
	}
}

func TestStream_Blocked(t *testing.T) {
	srv, _ := fakeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "data: {\"promptFeedback\":{\"blockReason\":\"SAFETY\"}}\n\n")
	})
	stream, err := newTestClient(srv.URL).NewChat(nil).SendMessageStream(context.Background(), []Part{TextPart("x")})
	require.NoError(t, err)
	_, err = collect(t, stream)
	assert.True(t, IsBlocked(err))
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestStream_InStreamError(t *testing.T) {
	srv, _ := fakeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "data: {\"error\":{\"code\":429,\"message\":\"slow down\"}}\n\n")
	})
	stream, err := newTestClient(srv.URL).NewChat(nil).SendMessageStream(context.Background(), []Part{TextPart("x")})
	require.NoError(t, err)
	_, err = collect(t, stream)
	assert.True(t, IsRateLimited(err))
}

func TestStream_OversizedEvent(t *testing.T) {
	cases := map[string]string{
		"unterminated line": "data: " + strings.Repeat("a", maxEventBytes+1),
		"many data lines":   strings.Repeat("data: "+strings.Repeat("a", 1<<10)+"\n", maxEventBytes>>10+1) + "\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := fakeServer(t, func(w http.ResponseWriter, _ *http.Request) {
				io.WriteString(w, sseEvent("ok"))
				io.WriteString(w, body)
			})
			stream, err := newTestClient(srv.URL).NewChat(nil).SendMessageStream(context.Background(), []Part{TextPart("x")})
			require.NoError(t, err)

			chunks, err := collect(t, stream)
			assert.Equal(t, []string{"ok"}, chunks)
			assert.True(t, IsInvalidResponse(err), "got %v", err)
		})
	}
}

func TestClient_Preconditions(t *testing.T) {
	c := NewClient(&ClientConfig{BaseURL: "http://127.0.0.1:1"})
	assert.Equal(t, "gemini-3-flash-preview", c.Model())

	_, err := c.NewChat(nil).SendMessageStream(context.Background(), []Part{TextPart("x")})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.True(t, IsAuth(err))

	_, err = newTestClient("http://127.0.0.1:1").NewChat(nil).SendMessageStream(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).NewChat(nil).SendMessageStream(context.Background(), []Part{TextPart("x")})
	assert.True(t, IsConnection(err))
	assert.True(t, strings.Contains(err.Error(), "request failed"))
}

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "blocked", ErrTypeBlocked.String())
	assert.Equal(t, "unknown", ErrorType(99).String())
}
