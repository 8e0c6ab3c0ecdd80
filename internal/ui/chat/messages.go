// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/commands"
)

// =============================================================================
// MESSAGES
// =============================================================================

// stateMsg delivers a controller snapshot.
type stateMsg struct {
	state app.State
}

// flushMsg asks for a deferred viewport rebuild.
type flushMsg struct{}

// sendDoneMsg reports the end of a send, successful or not.
type sendDoneMsg struct {
	err error
}

// commandDoneMsg reports the outcome of a slash command.
type commandDoneMsg struct {
	result commands.Result
	err    error
}

// authDoneMsg reports a login or registration attempt.
type authDoneMsg struct {
	err error
}

// =============================================================================
// STATE BRIDGE
// =============================================================================

// stateBridge hands controller snapshots to the Bubble Tea loop. It keeps
// only the newest undelivered snapshot, so a slow renderer never blocks the
// controller.
type stateBridge struct {
	ch chan app.State
}

func newStateBridge() *stateBridge {
	return &stateBridge{ch: make(chan app.State, 1)}
}

// push replaces any pending snapshot with s.
func (b *stateBridge) push(s app.State) {
	for {
		select {
		case b.ch <- s:
			return
		default:
		}
		select {
		case <-b.ch:
		default:
		}
	}
}

// wait returns a command that blocks for the next snapshot.
func (b *stateBridge) wait() tea.Cmd {
	return func() tea.Msg {
		return stateMsg{state: <-b.ch}
	}
}
