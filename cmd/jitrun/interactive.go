package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/jit-runtime/dispatch"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	compileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	rt       *dispatch.Runtime
	demos    []*demo
	inputs   []textinput.Model
	result   string
	compiled bool
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type callResultMsg struct {
	err      error
	result   string
	compiled bool
}

func newInteractiveModel(rt *dispatch.Runtime, demos []*demo) *interactiveModel {
	return &interactiveModel{
		rt:    rt,
		demos: demos,
		state: stateSelectFunc,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateInputArgs || msg.String() == "ctrl+c" {
				m.rt.Close(context.Background())
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.demos)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.compiled = msg.compiled
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	d := m.demos[m.selected]
	names := []string{"a", "b"}
	if d.name == "square" {
		names = []string{"x"}
	}
	m.inputs = make([]textinput.Model, len(names))
	for i, name := range names {
		ti := textinput.New()
		ti.Placeholder = "42 or 4.2"
		ti.Prompt = name + ": "
		ti.Width = 20
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	ctx := context.Background()
	d := m.demos[m.selected]

	args := make([]any, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseArg(strings.TrimSpace(input.Value()))
		if err != nil {
			return callResultMsg{err: err}
		}
		args[i] = v
	}

	before := len(d.callable.Specializations())
	result, err := d.callable.Invoke(ctx, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	compiled := len(d.callable.Specializations()) > before

	return callResultMsg{
		result:   fmt.Sprintf("%v (%T)", result, result),
		compiled: compiled,
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("JIT Runner"))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, d := range m.demos {
			line := funcStyle.Render(d.name) + " " + typeStyle.Render(d.contract) +
				specializationSummary(d.callable)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		d := m.demos[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(d.name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		d := m.demos[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(d.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
			b.WriteString("\n")
			if m.compiled {
				b.WriteString(compileStyle.Render("compiled a new specialization"))
			} else {
				b.WriteString(helpStyle.Render("served from the specialization cache"))
			}
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func specializationSummary(c *dispatch.Callable) string {
	keys := c.Specializations()
	if len(keys) == 0 {
		return ""
	}
	return helpStyle.Render(fmt.Sprintf("  [%s]", strings.Join(keys, ", ")))
}

func runInteractive() error {
	ctx := context.Background()
	rt, demos, err := newDemoRuntime(ctx, nil)
	if err != nil {
		return err
	}

	p := tea.NewProgram(newInteractiveModel(rt, demos), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
