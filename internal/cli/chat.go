// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/commands"
	"github.com/jeranaias/iachat/internal/config"
	"github.com/jeranaias/iachat/internal/model"
	"github.com/jeranaias/iachat/internal/util"
)

// =============================================================================
// CHAT COMMAND
// =============================================================================

const (
	historyFileName = "chat_history"

	// replayMessages is how much of the current chat is shown on start.
	replayMessages = 6
)

func newChatCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode",
		Long: `Chat in line mode, for terminals where the full-screen UI is not wanted.

Type a message and press Enter. Lines starting with / are commands; /help
lists them. Ctrl+C while a reply streams stops it; Ctrl+D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), g, bootOptions{speech: true, watch: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			r := newREPL(rt, cmd.OutOrStdout())
			defer r.Close()
			return r.Run(cmd.Context())
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the subset of liner the REPL needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
}

// repl is the line-mode chat loop.
type repl struct {
	rt        *runtime
	out       io.Writer
	parser    *commands.Parser
	completer *commands.Completer

	line        *liner.State
	input       lineReader
	historyFile string
}

func newREPL(rt *runtime, out io.Writer) *repl {
	r := &repl{
		rt:        rt,
		out:       out,
		parser:    commands.NewParser(rt.registry),
		completer: commands.NewCompleter(rt.registry),
	}
	r.completer.SessionCount = func() int { return len(rt.ctrl.Snapshot().Sessions) }
	r.completer.MessageCount = func() int {
		sess, _ := rt.ctrl.Snapshot().ActiveSession()
		return len(sess.Messages)
	}

	r.line = liner.NewLiner()
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(r.completer.CompleteLine)
	r.input = r.line

	if dir, err := config.ConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, historyFileName)
		if f, err := os.Open(r.historyFile); err == nil {
			r.line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

// Close saves the input history and restores the terminal.
func (r *repl) Close() {
	if r.line == nil {
		return
	}
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
				r.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	r.line.Close()
}

// =============================================================================
// MAIN LOOP
// =============================================================================

// Run reads lines until the user quits or input ends.
func (r *repl) Run(ctx context.Context) error {
	for {
		if !r.rt.ctrl.Snapshot().LoggedIn() {
			if err := r.login(ctx); err != nil {
				if isAbort(err) {
					return nil
				}
				return err
			}
			r.printWelcome()
		}

		// liner measures the prompt itself, so it carries no styling.
		text, err := r.input.Prompt("คุณ > ")
		if err != nil {
			if isAbort(err) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(text) != "" && r.line != nil {
			r.line.AppendHistory(text)
		}

		quit, err := r.handleLine(ctx, text)
		if err != nil {
			fmt.Fprintln(r.out, ErrorStyle.Render("✗ ")+err.Error())
		}
		if quit {
			return nil
		}
	}
}

func isAbort(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted)
}

// login prompts until the credentials are accepted.
func (r *repl) login(ctx context.Context) error {
	fmt.Fprintln(r.out, TitleStyle.Render("IA Chat · เข้าสู่ระบบ"))
	for {
		username, err := r.input.Prompt("ชื่อผู้ใช้: ")
		if err != nil {
			return err
		}
		password, err := r.input.PasswordPrompt("รหัสผ่าน: ")
		if err != nil {
			return err
		}
		err = r.rt.ctrl.Login(ctx, strings.TrimSpace(username), password)
		if err == nil {
			return nil
		}
		fmt.Fprintln(r.out, ErrorStyle.Render(err.Error()))
	}
}

// handleLine runs one line of input: a slash command or a message.
func (r *repl) handleLine(ctx context.Context, text string) (quit bool, err error) {
	if commands.IsCommand(text) {
		return r.runCommand(ctx, text)
	}
	return false, r.send(ctx, text)
}

func (r *repl) runCommand(ctx context.Context, text string) (bool, error) {
	parsed := r.parser.Parse(text)
	if parsed.Command == nil {
		return false, fmt.Errorf("%w: %s (try /help)", commands.ErrUnknownCommand, parsed.Name)
	}
	if q := parsed.Command.Confirm; q != "" {
		fmt.Fprintln(r.out, WarningStyle.Render(q))
		answer, err := r.input.Prompt("[y/N]: ")
		if err != nil || !isYes(answer) {
			fmt.Fprintln(r.out, DimStyle.Render("ยกเลิก"))
			return false, nil
		}
	}

	var res commands.Result
	err := r.withInterrupt(ctx, func(ctx context.Context) error {
		var err error
		res, err = r.rt.registry.Execute(ctx, r.rt.env, parsed)
		return err
	})
	if err != nil {
		return false, err
	}
	if res.Alert != "" {
		fmt.Fprintln(r.out, WarningStyle.Render("⚠️ "+res.Alert))
	}
	for _, line := range res.Lines {
		fmt.Fprintln(r.out, line)
	}
	return res.Quit, nil
}

// send streams a reply to text, printing it as it arrives.
func (r *repl) send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" && len(r.rt.env.Pending()) == 0 {
		return nil
	}
	before, ok := r.rt.ctrl.Snapshot().ActiveSession()
	if !ok {
		return app.ErrNotLoggedIn
	}

	p := &replyPrinter{w: r.out, sessionID: before.ID, index: len(before.Messages) + 1}
	unsubscribe := r.rt.ctrl.Subscribe(p.onState)
	fmt.Fprint(r.out, PromptStyle.Render(model.SenderAI.DisplayName())+" > ")
	err := r.withInterrupt(ctx, func(ctx context.Context) error {
		return r.rt.env.Send(ctx, text)
	})
	unsubscribe()
	fmt.Fprintln(r.out)

	// Anything after the reply, such as the connection error notice.
	if after, ok := findSession(r.rt.ctrl.Snapshot(), before.ID); ok {
		for _, m := range after.Messages[min(p.index+1, len(after.Messages)):] {
			fmt.Fprintln(r.out, ErrorStyle.Render(m.Text))
		}
	}
	return err
}

// withInterrupt runs fn, cancelling the streaming reply on Ctrl+C.
func (r *repl) withInterrupt(ctx context.Context, fn func(context.Context) error) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sig:
			r.rt.ctrl.CancelStream()
		case <-done:
		}
	}()
	return fn(ctx)
}

func (r *repl) printWelcome() {
	s := r.rt.ctrl.Snapshot()
	fmt.Fprintln(r.out, RenderSeparator())
	fmt.Fprintln(r.out, TitleStyle.Render(s.User.Initial()+" "+s.User.Name)+"  "+DimStyle.Render(r.rt.cfg.Backend.Model))
	fmt.Fprintln(r.out, DimStyle.Render("/help · /sessions · /new · Ctrl+D"))
	fmt.Fprintln(r.out, RenderSeparator())

	sess, ok := s.ActiveSession()
	if !ok {
		return
	}
	msgs := sess.Messages
	if len(msgs) > replayMessages {
		msgs = msgs[len(msgs)-replayMessages:]
	}
	width := GetTerminalWidth()
	for _, m := range msgs {
		r.printMessage(m, width)
	}
}

func (r *repl) printMessage(m model.Message, width int) {
	label := "คุณ"
	if m.Sender == model.SenderAI {
		label = m.Sender.DisplayName()
	}
	text := m.Text
	for _, a := range m.Attachments {
		text += " " + AttachmentStyle.Render("["+commands.AttachmentLabel(a)+"]")
	}
	prefix := PromptStyle.Render(label) + " > "
	fmt.Fprintln(r.out, prefix+util.TruncateWidth(util.SingleLine(text), width-util.StringWidth(label)-3))
}

// =============================================================================
// STREAMING OUTPUT
// =============================================================================

// replyPrinter writes the growing reply at index of one session as
// snapshots arrive.
type replyPrinter struct {
	mu        sync.Mutex
	w         io.Writer
	sessionID string
	index     int
	printed   string
}

func (p *replyPrinter) onState(s app.State) {
	sess, ok := findSession(s, p.sessionID)
	if !ok || p.index >= len(sess.Messages) {
		return
	}
	text := sess.Messages[p.index].Text

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(text) <= len(p.printed) || !strings.HasPrefix(text, p.printed) {
		return
	}
	fmt.Fprint(p.w, text[len(p.printed):])
	p.printed = text
}

func findSession(s app.State, id string) (model.ChatSession, bool) {
	for _, sess := range s.Sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return model.ChatSession{}, false
}
