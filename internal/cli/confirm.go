// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// CONFIRMATION HANDLING
// =============================================================================

// RequireConfirmation checks that the user accepted a destructive action.
//
// Confirmation flow:
//  1. If confirmFlag is true (--yes), return true immediately
//  2. If stdin is not a TTY, return an error (can't prompt)
//  3. Otherwise, show question and read a y/N answer from in
func RequireConfirmation(confirmFlag bool, question string, in io.Reader, out io.Writer) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if !IsTTY() {
		return false, usageErrorf("confirmation required but stdin is not a terminal; use --yes")
	}
	return askYesNo(question, in, out)
}

// askYesNo prints question and reads one answer line.
func askYesNo(question string, in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprintln(out, WarningStyle.Render(question))
	fmt.Fprint(out, "[y/N]: ")

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return isYes(input), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "ใช่":
		return true
	}
	return false
}
