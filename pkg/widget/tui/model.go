package tui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	bspinner "github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatwidget/pkg/widget/controller"
	"github.com/go-go-golems/chatwidget/pkg/widget/render"
	"github.com/go-go-golems/chatwidget/pkg/widget/usage"
)

const (
	minViewportHeight = 3
	maxViewportHeight = 16
	// rows taken by header, input, footer and borders
	panelChrome = 9
)

// taskDoneMsg carries a controller task result back into the update loop.
type taskDoneMsg struct {
	ev controller.Event
}

type copiedMsg struct {
	err error
}

var statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Italic(true)

// Model hosts a widget controller inside a bubbletea program. All controller
// calls happen in Update; tasks run as commands and come back as taskDoneMsg.
type Model struct {
	ctx      context.Context
	ctrl     *controller.Controller
	surfaces *render.Surfaces

	input    textinput.Model
	comment  textinput.Model
	spinner  bspinner.Model
	viewport viewport.Model

	commentFocused bool
	copy           func(string) error
	status         string
	width, height  int
}

type Option func(*Model)

// WithClipboard replaces the system clipboard writer.
func WithClipboard(f func(string) error) Option {
	return func(m *Model) {
		if f != nil {
			m.copy = f
		}
	}
}

func New(ctx context.Context, ctrl *controller.Controller, surfaces *render.Surfaces, opts ...Option) Model {
	in := textinput.New()
	in.Placeholder = "Type your message..."
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Width = surfaces.Width() - 6

	cm := textinput.New()
	cm.Placeholder = "Any comments? (optional)"
	cm.Prompt = "✎ "
	cm.CharLimit = 1000
	cm.Width = surfaces.Width() - 10

	sp := bspinner.New()
	sp.Spinner = bspinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	vp := viewport.New(surfaces.Width()-2, maxViewportHeight)

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		surfaces: surfaces,
		input:    in,
		comment:  cm,
		spinner:  sp,
		viewport: vp,
		copy:     clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		h := v.Height - panelChrome
		if h > maxViewportHeight {
			h = maxViewportHeight
		}
		if h < minViewportHeight {
			h = minViewportHeight
		}
		m.viewport.Height = h
		m.refresh()
		return m, nil
	case bspinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(v)
		if m.ctrl.Snapshot().Pending > 0 {
			m.refresh()
		}
		return m, cmd
	case taskDoneMsg:
		tasks := m.ctrl.Apply(v.ev)
		m.syncInputs()
		m.refresh()
		return m, m.run(tasks)
	case copiedMsg:
		if v.err != nil {
			log.Warn().Err(v.err).Str("component", "tui").Msg("clipboard write failed")
			m.status = "Copy failed"
		} else {
			m.status = "Copied last reply"
		}
		return m, nil
	case tea.KeyMsg:
		if v.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.status = ""
		switch m.ctrl.State() {
		case controller.Closed:
			return m.updateClosed(v)
		case controller.Open:
			return m.updateOpen(v)
		case controller.RatingPrompt:
			return m.updateRating(v)
		}
	}
	return m, nil
}

func (m Model) updateClosed(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "enter", " ", "space":
		m.ctrl.Open()
		m.input.Reset()
		cmd := m.input.Focus()
		m.refresh()
		return m, cmd
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateOpen(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "esc":
		tasks := m.ctrl.RequestClose()
		m.syncInputs()
		m.refresh()
		return m, m.run(tasks)
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		tasks := m.ctrl.Send(text)
		m.refresh()
		return m, m.run(tasks)
	case "ctrl+y":
		return m, m.copyLastReply()
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(k)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return m, cmd
}

func (m Model) updateRating(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.ctrl.Snapshot()
	if snap.RatingPhase != controller.RatingPick {
		return m, nil
	}
	// an alert swallows the key that dismisses it
	if snap.Alert != "" {
		m.ctrl.DismissAlert()
		return m, nil
	}

	if m.commentFocused {
		switch k.String() {
		case "tab", "shift+tab", "esc":
			m.commentFocused = false
			m.comment.Blur()
			return m, nil
		case "enter":
			return m.submitRating()
		}
		var cmd tea.Cmd
		m.comment, cmd = m.comment.Update(k)
		m.ctrl.SetComment(m.comment.Value())
		return m, cmd
	}

	switch key := k.String(); key {
	case "1", "2", "3", "4", "5":
		m.ctrl.SelectRating(int(key[0] - '0'))
	case "left", "h":
		if snap.Rating > usage.MinRating {
			m.ctrl.SelectRating(snap.Rating - 1)
		}
	case "right", "l":
		m.ctrl.SelectRating(snap.Rating + 1)
	case "tab":
		m.commentFocused = true
		return m, m.comment.Focus()
	case "enter":
		return m.submitRating()
	case "esc":
		tasks := m.ctrl.SkipRating()
		m.syncInputs()
		m.refresh()
		return m, m.run(tasks)
	}
	return m, nil
}

func (m Model) submitRating() (tea.Model, tea.Cmd) {
	m.commentFocused = false
	m.comment.Blur()
	return m, m.run(m.ctrl.SubmitRating())
}

// run turns controller tasks into commands bound to the model context.
func (m Model) run(tasks []controller.Task) tea.Cmd {
	if len(tasks) == 0 {
		return nil
	}
	ctx := m.ctx
	cmds := make([]tea.Cmd, 0, len(tasks))
	for _, t := range tasks {
		cmds = append(cmds, func() tea.Msg {
			return taskDoneMsg{ev: t(ctx)}
		})
	}
	return tea.Batch(cmds...)
}

func (m Model) copyLastReply() tea.Cmd {
	msgs := m.ctrl.Snapshot().Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == controller.SenderAssistant && !msgs[i].Typing {
			text, copyFn := msgs[i].Text, m.copy
			return func() tea.Msg { return copiedMsg{err: copyFn(text)} }
		}
	}
	return nil
}

// syncInputs clears the rating comment once the controller has left the
// rating panel.
func (m *Model) syncInputs() {
	state := m.ctrl.State()
	if state != controller.RatingPrompt {
		m.comment.Reset()
		m.comment.Blur()
		m.commentFocused = false
	}
	if state == controller.Closed {
		m.input.Blur()
	}
}

func (m *Model) refresh() {
	snap := m.ctrl.Snapshot()
	m.viewport.SetContent(m.surfaces.Messages(snap.Messages, m.spinner.View()))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var content string
	switch m.ctrl.State() {
	case controller.Closed:
		content = m.surfaces.Trigger()
	case controller.Open:
		content = m.surfaces.Panel(m.viewport.View(), m.input.View())
	case controller.RatingPrompt:
		content = m.surfaces.RatingPanel(m.ctrl.Snapshot(), m.comment.View())
	}
	if m.status != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, statusStyle.Render(m.status))
	}
	return m.surfaces.Place(m.width, m.height, content)
}
