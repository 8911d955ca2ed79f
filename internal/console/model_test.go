package console

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoEval(line string) (string, error) {
	if line == "boom" {
		return "", errors.New("undefined: boom")
	}
	return strings.ToUpper(line), nil
}

func typeLine(t *testing.T, m Model, line string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(line)})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestConsoleEvaluatesLines(t *testing.T) {
	m := New("go", EvalFunc(echoEval))

	m = typeLine(t, m, "abc")
	m = typeLine(t, m, "boom")

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0].Input)
	assert.Equal(t, "ABC", entries[0].Output)
	assert.EqualError(t, entries[1].Err, "undefined: boom")

	view := m.View()
	assert.Contains(t, view, "go console")
	assert.Contains(t, view, "ABC")
	assert.Contains(t, view, "undefined: boom")
}

func TestConsoleIgnoresBlankLines(t *testing.T) {
	m := New("go", EvalFunc(echoEval))
	m = typeLine(t, m, "   ")
	assert.Empty(t, m.Entries())
}

func TestConsoleQuit(t *testing.T) {
	m := New("go", EvalFunc(echoEval))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(":quit")})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, next.(Model).Quitting())
	assert.Empty(t, next.View())

	_, cmd = New("go", EvalFunc(echoEval)).Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestConsoleHistory(t *testing.T) {
	m := New("go", EvalFunc(echoEval))
	m = typeLine(t, m, "first")
	m = typeLine(t, m, "second")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, "second", m.input.Value())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, "first", m.input.Value())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "", next.(Model).input.Value())
}

func TestConsoleResize(t *testing.T) {
	m := New("go", EvalFunc(echoEval))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)
	assert.Equal(t, 100, m.viewport.Width)
	assert.Equal(t, 26, m.viewport.Height)
}

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "15;0")
	assert.True(t, DetectTheme().IsDark)

	t.Setenv("COLORFGBG", "")
	t.Setenv("GLADE_DARK_MODE", "")
	assert.False(t, DetectTheme().IsDark)
}
