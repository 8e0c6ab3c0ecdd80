// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat interface built on Bubble Tea.

# Layout

	+-----------+------------------------------------+
	| sidebar   | header: title, voice toggle        |
	| new chat  | storage warning banner (if any)    |
	| history   | messages (viewport)                |
	| profile   | command output / alerts            |
	|           | input                              |
	+-----------+------------------------------------+
	| status bar: shortcuts                          |
	+------------------------------------------------+

Logged-out users get a login and registration form instead.

# State flow

The Model never mutates chat state itself. It renders app.State snapshots
delivered through a subscription on the controller, and turns key presses
into controller calls or slash commands run as tea.Cmds. Snapshots arrive
from streaming goroutines at whatever rate the backend produces chunks; a
rate limiter caps how often the message viewport is rebuilt.
*/
package chat
