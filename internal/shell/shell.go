// Package shell provides the interactive console. It is a Bubble Tea
// program wrapping the command dispatcher, with a context-aware prompt
// that tracks the selected module.
package shell

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/arsenal-framework/arsenal/internal/dispatch"
	"github.com/arsenal-framework/arsenal/internal/render"
	"github.com/arsenal-framework/arsenal/internal/session"
)

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	promptStyle = lipgloss.NewStyle().Bold(true)
)

type model struct {
	dispatcher *dispatch.Dispatcher
	sess       *session.Session
	input      textinput.Model
	transcript []string
	quitting   bool
}

func newModel(d *dispatch.Dispatcher) model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 512
	ti.Focus()

	stats := d.Reg.Stats()
	banner := bannerStyle.Render("arsenal interactive console") +
		fmt.Sprintf("\n%d modules loaded. Type help for commands, exit to leave.\n", stats.Total)

	return model{
		dispatcher: d,
		sess:       session.New(),
		input:      ti,
		transcript: []string{banner},
	}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) prompt() string {
	if id := m.sess.Prompt(); id != "" {
		return promptStyle.Render(fmt.Sprintf("arsenal(%s)> ", id))
	}
	return promptStyle.Render("arsenal> ")
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			return m.handle(line)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handle(line string) (tea.Model, tea.Cmd) {
	if line == "" {
		return m, nil
	}
	m.transcript = append(m.transcript, m.prompt()+line)

	switch line {
	case "exit", "quit":
		m.quitting = true
		return m, tea.Quit
	case "clear":
		m.transcript = nil
		return m, nil
	}

	res, err := m.dispatcher.Eval(m.sess, line)
	if err != nil {
		m.transcript = append(m.transcript, render.Error(err))
		return m, nil
	}
	if out := render.Result(res); out != "" {
		m.transcript = append(m.transcript, out)
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return strings.Join(m.transcript, "\n") + "\n"
	}
	var b strings.Builder
	for _, line := range m.transcript {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.prompt())
	b.WriteString(m.input.View())
	return b.String()
}

// Run starts the interactive console and blocks until the user exits.
func Run(d *dispatch.Dispatcher) error {
	_, err := tea.NewProgram(newModel(d)).Run()
	return err
}
