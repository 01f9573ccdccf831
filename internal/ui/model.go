package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"yaprooms/internal/chat"
)

const commandTimeout = 45 * time.Second

// Run starts the terminal UI and blocks until the user quits. When start
// is true the UI creates a room, or joins ticket if it is not empty,
// before accepting input.
func Run(cmds *Commands, presenter *Presenter, start bool, ticket string) error {
	m := NewModel(cmds, presenter, start, ticket)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

type (
	eventMsg  chat.Event
	closedMsg struct{}
	resultMsg struct {
		result Result
		err    error
	}
)

// Model implements tea.Model for the chat screen.
type Model struct {
	cmds      *Commands
	presenter *Presenter
	start     bool
	ticket    string

	input    textinput.Model
	view     viewport.Model
	history  []block
	active   string
	busy     bool
	ready    bool
	quitting bool
}

func NewModel(cmds *Commands, presenter *Presenter, start bool, ticket string) *Model {
	in := textinput.New()
	in.Placeholder = "message, or /help"
	in.Prompt = ""
	in.CharLimit = 4096
	in.Focus()
	return &Model{
		cmds:      cmds,
		presenter: presenter,
		start:     start,
		ticket:    ticket,
		input:     in,
		view:      viewport.New(80, 20),
		history:   make([]block, 0, 256),
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForEvent(m.presenter)}
	if m.start {
		m.busy = true
		cmds = append(cmds, m.run(func(ctx context.Context) (Result, error) {
			return m.cmds.Start(ctx, m.ticket)
		}))
	} else {
		m.appendSystem([]string{"type /new to create a room or /join <ticket> to join one"}, false)
	}
	return tea.Batch(cmds...)
}

func waitForEvent(p *Presenter) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-p.Events():
			return eventMsg(ev)
		case <-p.Done():
			return closedMsg{}
		}
	}
}

// run executes a command off the UI goroutine.
func (m *Model) run(fn func(context.Context) (Result, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		res, err := fn(ctx)
		return resultMsg{result: res, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Reset()
			if text == "" || m.busy {
				return m, nil
			}
			m.busy = true
			return m, m.run(func(ctx context.Context) (Result, error) {
				return m.cmds.Handle(ctx, text)
			})
		}
	case tea.WindowSizeMsg:
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-2, 1)
		m.input.Width = max(msg.Width-len(m.active)-len(m.cmds.Name())-8, 10)
		m.ready = true
		m.refresh()
		return m, nil
	case eventMsg:
		ev := chat.Event(msg)
		if ev.Kind == chat.EventConnected && m.active == "" {
			m.active = ev.Topic
		}
		m.history = appendBlock(m.history, renderEvent(ev, m.active))
		m.refresh()
		return m, waitForEvent(m.presenter)
	case closedMsg:
		return m, nil
	case resultMsg:
		m.busy = false
		if msg.result.Active != "" {
			m.active = msg.result.Active
		}
		if len(msg.result.Lines) > 0 {
			m.appendSystem(msg.result.Lines, false)
		}
		if errors.Is(msg.err, ErrQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		if msg.err != nil {
			m.appendSystem([]string{chat.UserMessage(msg.err)}, true)
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.view, cmd = m.view.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) appendSystem(lines []string, isErr bool) {
	m.history = appendBlock(m.history, renderSystem(time.Now(), lines, isErr))
	m.refresh()
}

func (m *Model) refresh() {
	m.view.SetContent(renderHistory(m.history))
	m.view.GotoBottom()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	return m.view.View() + "\n\n" + renderPrompt(m.active, m.cmds.Name()) + " " + m.input.View()
}
