// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"errors"
	"net/http"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeAuth
	ErrTypeRateLimited
	ErrTypeInvalidResponse
	ErrTypeBlocked
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeAuth:
		return "auth"
	case ErrTypeRateLimited:
		return "rate_limited"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrMissingAPIKey = &ClientError{Type: ErrTypeAuth, Message: "no API key configured"}
	ErrEmptyMessage  = &ClientError{Type: ErrTypeInvalidResponse, Message: "message has no parts"}
)

// errorFromStatus maps a non-200 response to a ClientError.
func errorFromStatus(status int, apiErr *apiError) *ClientError {
	msg := http.StatusText(status)
	if apiErr != nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	t := ErrTypeInvalidResponse
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = ErrTypeAuth
	case status == http.StatusTooManyRequests:
		t = ErrTypeRateLimited
	case status == http.StatusBadRequest && apiErr != nil && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
		t = ErrTypeAuth
	case status >= 500:
		t = ErrTypeConnection
	}
	return &ClientError{Type: t, Message: msg}
}

func isType(err error, t ErrorType) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == t
}

// IsConnection reports a transport or server-side failure.
func IsConnection(err error) bool { return isType(err, ErrTypeConnection) }

// IsAuth reports a rejected or missing API key.
func IsAuth(err error) bool { return isType(err, ErrTypeAuth) }

// IsRateLimited reports a quota or rate-limit rejection.
func IsRateLimited(err error) bool { return isType(err, ErrTypeRateLimited) }

// IsInvalidResponse reports a response the client could not interpret.
func IsInvalidResponse(err error) bool { return isType(err, ErrTypeInvalidResponse) }

// IsBlocked reports a prompt or reply refused by the safety filter.
func IsBlocked(err error) bool { return isType(err, ErrTypeBlocked) }
