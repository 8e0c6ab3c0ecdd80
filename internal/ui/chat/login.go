// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/iachat/internal/ui/styles"
)

// =============================================================================
// LOGIN FORM
// =============================================================================

const (
	loginTitle       = "IA Chat"
	loginSubtitle    = "เข้าสู่ระบบ"
	registerSubtitle = "สมัครสมาชิก"
	nameLabel        = "ชื่อที่ใช้แสดง"
	namePlaceholder  = "เช่น สมชาย ใจดี"
	usernameLabel    = "ชื่อผู้ใช้"
	passwordLabel    = "รหัสผ่าน"
)

// Field order within the form.
const (
	fieldName = iota
	fieldUsername
	fieldPassword
	fieldCount
)

// loginForm collects credentials for login or registration.
type loginForm struct {
	theme    *styles.Theme
	register bool
	focus    int
	fields   [fieldCount]textinput.Model
	err      string
	busy     bool
}

func newLoginForm(theme *styles.Theme) *loginForm {
	f := &loginForm{theme: theme}
	for i := range f.fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 64
		f.fields[i] = ti
	}
	f.fields[fieldName].Placeholder = namePlaceholder
	f.fields[fieldPassword].EchoMode = textinput.EchoPassword
	f.fields[fieldPassword].EchoCharacter = '•'
	f.focus = fieldUsername
	f.fields[fieldUsername].Focus()
	return f
}

func (f *loginForm) init() tea.Cmd {
	return textinput.Blink
}

// values returns the trimmed name, username and password.
func (f *loginForm) values() (name, username, password string) {
	return strings.TrimSpace(f.fields[fieldName].Value()),
		strings.TrimSpace(f.fields[fieldUsername].Value()),
		f.fields[fieldPassword].Value()
}

// toggleMode switches between login and registration.
func (f *loginForm) toggleMode() {
	f.register = !f.register
	f.err = ""
	first := fieldUsername
	if f.register {
		first = fieldName
	}
	f.setFocus(first)
}

// move shifts focus by delta, skipping the name field when logging in.
func (f *loginForm) move(delta int) {
	next := f.focus
	for {
		next = (next + delta + fieldCount) % fieldCount
		if next != fieldName || f.register {
			break
		}
	}
	f.setFocus(next)
}

func (f *loginForm) setFocus(i int) {
	for j := range f.fields {
		if j == i {
			f.fields[j].Focus()
		} else {
			f.fields[j].Blur()
		}
	}
	f.focus = i
}

// lastField reports whether enter should submit rather than advance.
func (f *loginForm) lastField() bool {
	return f.focus == fieldPassword
}

// reset clears the form after a successful login.
func (f *loginForm) reset() {
	for i := range f.fields {
		f.fields[i].Reset()
	}
	f.err = ""
	f.busy = false
	f.register = false
	f.setFocus(fieldUsername)
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.fields[f.focus], cmd = f.fields[f.focus].Update(msg)
	return cmd
}

func (f *loginForm) view(width, height int) string {
	t := f.theme
	subtitle := loginSubtitle
	if f.register {
		subtitle = registerSubtitle
	}

	var b strings.Builder
	b.WriteString(t.LoginTitle.Render(loginTitle + " · " + subtitle))
	b.WriteString("\n")

	row := func(i int, label string) {
		style := t.FieldLabel
		if f.focus == i {
			style = t.FieldActive
		}
		b.WriteString(style.Render(label))
		b.WriteString("\n")
		b.WriteString(f.fields[i].View())
		b.WriteString("\n\n")
	}
	if f.register {
		row(fieldName, nameLabel)
	}
	row(fieldUsername, usernameLabel)
	row(fieldPassword, passwordLabel)

	if f.err != "" {
		b.WriteString(t.ErrorText.Render(f.err))
		b.WriteString("\n")
	}

	box := t.LoginBox.Width(minInt(48, width-4)).Render(strings.TrimRight(b.String(), "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
