// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// =============================================================================
// STREAM READER
// =============================================================================

var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
	"RECITATION":         true,
}

// maxEventBytes bounds one server-sent event, so a peer that never ends a
// line cannot grow memory without limit.
const maxEventBytes = 4 << 20

// Stream yields the partial texts of a server-sent-event response.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	content strings.Builder

	// onComplete runs once with the full reply when the stream ends cleanly.
	onComplete func(reply string)

	err error
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventBytes)
	return &Stream{body: body, scanner: scanner}
}

// Next returns the next non-empty text chunk. It returns io.EOF after the
// last chunk and a *ClientError on failure; both are sticky.
func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for {
		data, err := s.readEvent()
		if err != nil {
			return "", s.fail(err)
		}
		if data == nil {
			continue
		}

		var resp generateResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return "", s.fail(&ClientError{Type: ErrTypeInvalidResponse, Message: "malformed stream event", Cause: err})
		}
		if resp.Error != nil {
			return "", s.fail(errorFromStatus(resp.Error.Code, resp.Error))
		}
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", s.fail(&ClientError{Type: ErrTypeBlocked, Message: "prompt blocked: " + resp.PromptFeedback.BlockReason})
		}

		var chunk string
		if len(resp.Candidates) > 0 {
			cand := resp.Candidates[0]
			if blockedFinishReasons[cand.FinishReason] {
				return "", s.fail(&ClientError{Type: ErrTypeBlocked, Message: "reply blocked: " + cand.FinishReason})
			}
			chunk = cand.Content.Text()
		}
		if chunk == "" {
			continue
		}
		s.content.WriteString(chunk)
		return chunk, nil
	}
}

// Text returns everything received so far.
func (s *Stream) Text() string {
	return s.content.String()
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}

func (s *Stream) fail(err error) error {
	if errors.Is(err, io.EOF) {
		s.err = io.EOF
		if s.onComplete != nil {
			s.onComplete(s.content.String())
			s.onComplete = nil
		}
		return io.EOF
	}
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		err = &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: err}
	}
	s.err = err
	s.onComplete = nil
	return err
}

// readEvent returns the data payload of the next event, nil for events
// without data, or io.EOF at the end of the body.
func (s *Stream) readEvent() ([]byte, error) {
	var data []byte
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			// Blank line ends the event.
			if data != nil {
				return data, nil
			}
			continue
		}
		if payload, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			payload = bytes.TrimPrefix(payload, []byte(" "))
			if len(data)+len(payload) > maxEventBytes {
				return nil, errEventTooLarge
			}
			if data == nil {
				data = []byte{}
			} else {
				data = append(data, '\n')
			}
			data = append(data, payload...)
		}
		// Comments (":") and other fields are ignored.
	}
	if err := s.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, errEventTooLarge
		}
		return nil, err
	}
	if data != nil {
		return data, nil
	}
	return nil, io.EOF
}

var errEventTooLarge = &ClientError{Type: ErrTypeInvalidResponse, Message: "stream event too large"}
