// Package console is the interactive REPL a binding returns from
// console_new. It knows nothing about the runtime behind it beyond
// Evaluator.
package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gladebind/internal/logging"
)

// Evaluator runs one line of input and returns its printable result.
type Evaluator interface {
	Eval(line string) (string, error)
}

// EvalFunc adapts a function to Evaluator.
type EvalFunc func(line string) (string, error)

func (f EvalFunc) Eval(line string) (string, error) { return f(line) }

// Entry is one evaluated line.
type Entry struct {
	Input  string
	Output string
	Err    error
}

// Model is the bubbletea REPL model.
type Model struct {
	title    string
	eval     Evaluator
	input    textinput.Model
	viewport viewport.Model
	styles   Styles

	entries []Entry
	history []string
	histPos int

	width, height int
	quitting      bool
}

// New creates a console titled title over eval.
func New(title string, eval Evaluator) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "expression, or :quit"
	ti.Focus()

	vp := viewport.New(80, 20)

	m := Model{
		title:    title,
		eval:     eval,
		input:    ti,
		viewport: vp,
		styles:   DefaultStyles(),
	}
	m.input.PromptStyle = m.styles.Prompt
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit

		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			if line == ":quit" || line == ":q" {
				m.quitting = true
				return m, tea.Quit
			}
			m.submit(line)
			return m, nil

		case tea.KeyUp:
			m.recall(-1)
			return m, nil

		case tea.KeyDown:
			m.recall(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) submit(line string) {
	out, err := m.eval.Eval(line)
	logging.ConsoleDebug("%s: eval %q err=%v", m.title, line, err)

	m.entries = append(m.entries, Entry{Input: line, Output: out, Err: err})
	m.history = append(m.history, line)
	m.histPos = len(m.history)
	m.refresh()
}

func (m *Model) recall(delta int) {
	if len(m.history) == 0 {
		return
	}
	m.histPos = min(max(m.histPos+delta, 0), len(m.history))
	if m.histPos == len(m.history) {
		m.input.SetValue("")
		return
	}
	m.input.SetValue(m.history[m.histPos])
	m.input.CursorEnd()
}

func (m *Model) refresh() {
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(m.styles.Echo.Render("> " + e.Input))
		b.WriteByte('\n')
		switch {
		case e.Err != nil:
			b.WriteString(m.styles.Error.Render(e.Err.Error()))
			b.WriteByte('\n')
		case e.Output != "":
			b.WriteString(m.styles.Output.Render(e.Output))
			b.WriteByte('\n')
		}
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	header := m.styles.Header.Render(fmt.Sprintf("%s console", m.title))
	footer := m.styles.Footer.Render("enter: eval  up/down: history  esc: quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), m.input.View(), footer)
}

// Entries returns the evaluated lines so far.
func (m Model) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

// Quitting reports whether the user asked to leave.
func (m Model) Quitting() bool { return m.quitting }
