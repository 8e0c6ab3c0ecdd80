// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/commands"
	"github.com/jeranaias/iachat/internal/logging"
	"github.com/jeranaias/iachat/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// InputPlaceholder is shown in the empty message box.
	InputPlaceholder = "พิมพ์ข้อความ..."

	// StorageBannerHint follows the storage warning in the banner.
	StorageBannerHint = "กรุณาลบประวัติเก่าออกบ้าง"

	// OnlineLabel marks the assistant as reachable.
	OnlineLabel = "ออนไลน์"

	sidebarWidth   = 32
	inputHeight    = 3
	maxNoticeLines = 12

	// maxRenderFPS caps viewport rebuilds while a reply streams.
	maxRenderFPS = 30
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// focusArea is the pane receiving keys.
type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// Options configures the chat UI.
type Options struct {
	Env      *commands.Env
	Registry *commands.Registry
	Theme    *styles.Theme
	Logger   logging.Logger

	// Markdown renders assistant replies through glamour.
	Markdown bool

	// NarrowWidth is the width below which the history list is hidden
	// unless opened explicitly.
	NarrowWidth int

	// ModelName is shown in the header.
	ModelName string
}

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	ctx    context.Context
	env    *commands.Env
	reg    *commands.Registry
	parser *commands.Parser
	theme  *styles.Theme
	log    logging.Logger
	keys   KeyMap

	bridge      *stateBridge
	unsubscribe func()
	state       app.State
	limiter     *rate.Limiter
	dirty       bool

	// Dimensions
	width       int
	height      int
	narrowWidth int
	modelName   string

	// UI Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	login    *loginForm
	renderer *markdownRenderer

	focus         focusArea
	sidebarCursor int
	sidebarHidden bool
	lastActiveID  string
	lastCount     int

	// Transient output
	notice  []string
	alert   string
	errText string
	confirm *commands.ParseResult
	running bool
}

// New creates the chat model.
func New(ctx context.Context, opts Options) *Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = commands.NewRegistry()
	}
	narrow := opts.NarrowWidth
	if narrow <= 0 {
		narrow = app.DefaultNarrowWidth
	}

	input := textarea.New()
	input.Placeholder = InputPlaceholder
	input.ShowLineNumbers = false
	input.Prompt = "> "
	input.CharLimit = 0
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := &Model{
		ctx:         ctx,
		env:         opts.Env,
		reg:         reg,
		parser:      commands.NewParser(reg),
		theme:       theme,
		log:         log.With("component", "tui"),
		keys:        DefaultKeyMap(),
		bridge:      newStateBridge(),
		limiter:     rate.NewLimiter(rate.Every(time.Second/maxRenderFPS), 1),
		narrowWidth: narrow,
		modelName:   opts.ModelName,
		viewport:    viewport.New(80, 20),
		input:       input,
		spinner:     sp,
		login:       newLoginForm(theme),
		renderer:    newMarkdownRenderer(theme.GlamourStyle(), opts.Markdown),
	}
	m.state = opts.Env.App.Snapshot()
	return m
}

// Init subscribes to the controller and starts the spinner.
func (m *Model) Init() tea.Cmd {
	m.unsubscribe = m.env.App.Subscribe(m.bridge.push)
	return tea.Batch(m.bridge.wait(), m.spinner.Tick, textarea.Blink, m.login.init())
}

// Run starts the full-screen UI and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// =============================================================================
// LAYOUT HELPERS
// =============================================================================

// sidebarVisible reports whether the history list is drawn. Wide terminals
// show it beside the chat unless hidden with the toggle; narrow ones draw it
// over the chat only when opened.
func (m *Model) sidebarVisible() bool {
	if !m.state.LoggedIn() {
		return false
	}
	if m.wide() {
		return !m.sidebarHidden
	}
	return m.state.SidebarOpen
}

// sidebarOverlay reports whether the history list covers the chat.
func (m *Model) sidebarOverlay() bool {
	return !m.wide() && m.sidebarVisible()
}

func (m *Model) wide() bool {
	return m.width >= m.narrowWidth
}

func (m *Model) mainWidth() int {
	w := m.width
	if m.wide() && m.sidebarVisible() {
		w -= sidebarWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}
