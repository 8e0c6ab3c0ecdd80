// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/auth"
	"github.com/jeranaias/iachat/internal/config"
	"github.com/jeranaias/iachat/internal/gemini"
	"github.com/jeranaias/iachat/internal/media"
	"github.com/jeranaias/iachat/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a login or permission failure
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitStorageError indicates the store rejected a write
	ExitStorageError = 6
	// ExitDeviceError indicates a camera or microphone failure
	ExitDeviceError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid flags or arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

func usageErrorf(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError prints err to w in the CLI error style.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+err.Error())
}

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var ttyErr *TTYRequiredError
	var cfgErrs config.ValidateErrors
	var accessErr *media.AccessError
	switch {
	case errors.As(err, &usageErr), errors.As(err, &ttyErr):
		return ExitUsageError
	case errors.As(err, &cfgErrs):
		return ExitConfigError
	case auth.IsValidationError(err),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, app.ErrNotLoggedIn),
		errors.Is(err, app.ErrNotPrivileged),
		gemini.IsAuth(err):
		return ExitAuthError
	case gemini.IsConnection(err), gemini.IsRateLimited(err):
		return ExitNetworkError
	case storage.IsQuotaExceeded(err):
		return ExitStorageError
	case errors.As(err, &accessErr):
		return ExitDeviceError
	}
	return ExitGeneralError
}
