package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gladebind/internal/binding"
	"gladebind/internal/config"
)

const argsScript = `package main

import (
	"fmt"
	"glade"
)

func main() {
	fmt.Println("args:", glade.Args())
}
`

const failingScript = `package main

import "glade"

func main() {
	glade.SetExitCode(4)
}
`

// setupCLI points the globals at temp roots and returns the factory script
// root of the go binding.
func setupCLI(t *testing.T) string {
	t.Helper()
	c := config.DefaultConfig()
	c.Paths.PluginsDir = t.TempDir()
	c.Paths.DataDir = t.TempDir()
	c.Paths.UserConfigDir = t.TempDir()
	c.Paths.ModulesDir = t.TempDir()

	prevCfg, prevBuiltins, prevFormat, prevOwner := cfg, useBuiltins, format, scriptsOwner
	cfg, useBuiltins, format, scriptsOwner = c, true, "plain", ""
	t.Cleanup(func() {
		cfg, useBuiltins, format, scriptsOwner = prevCfg, prevBuiltins, prevFormat, prevOwner
	})

	return c.ScriptRoots("go")[0]
}

func writeScript(t *testing.T, path, src string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func newCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	return cmd, &out
}

func TestListBindings(t *testing.T) {
	setupCLI(t)
	cmd, out := newCmd()

	require.NoError(t, listBindings(cmd, nil))
	assert.Contains(t, out.String(), "| go | builtin:go | finalize, library_load, run_script, console_new | 0 |")
	assert.Contains(t, out.String(), "| wasm | builtin:wasm | finalize, library_load, run_script | 0 |")
}

func TestListBindingsWithoutBuiltins(t *testing.T) {
	setupCLI(t)
	useBuiltins = false
	cmd, out := newCmd()

	require.NoError(t, listBindings(cmd, nil))
	assert.Contains(t, out.String(), "No bindings loaded.")
}

func TestListScripts(t *testing.T) {
	root := setupCLI(t)
	writeScript(t, filepath.Join(root, "Tidy.go"), argsScript)
	writeScript(t, filepath.Join(root, "GtkButton", "Say_Hello.go"), argsScript)

	cmd, out := newCmd()
	require.NoError(t, listScripts(cmd, []string{"go"}))
	assert.Contains(t, out.String(), "## Global")
	assert.Contains(t, out.String(), "| Tidy | Tidy |")
	assert.Contains(t, out.String(), "## GtkButton")
	assert.Contains(t, out.String(), "| Say_Hello | Say Hello |")

	scriptsOwner = "GtkButton"
	cmd, out = newCmd()
	require.NoError(t, listScripts(cmd, []string{"go"}))
	assert.Contains(t, out.String(), "go scripts for GtkButton")
	assert.NotContains(t, out.String(), "Tidy")

	cmd, _ = newCmd()
	assert.ErrorIs(t, listScripts(cmd, []string{"nope"}), binding.ErrBindingNotFound)
}

func TestRunScript(t *testing.T) {
	setupCLI(t)
	dir := t.TempDir()
	ok := writeScript(t, filepath.Join(dir, "ok.go"), argsScript)
	bad := writeScript(t, filepath.Join(dir, "bad.go"), failingScript)

	cmd, out := newCmd()
	require.NoError(t, runScript(cmd, []string{"go", ok, "a", "b c"}))
	assert.Equal(t, "args: [a b c]\n", out.String())

	cmd, _ = newCmd()
	err := runScript(cmd, []string{"go", bad})
	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 4, exit.code)

	cmd, _ = newCmd()
	assert.ErrorIs(t, runScript(cmd, []string{"nope", ok}), binding.ErrBindingNotFound)
}

func TestActions(t *testing.T) {
	root := setupCLI(t)
	writeScript(t, filepath.Join(root, "GtkButton", "Say_Hello.go"), argsScript)

	cmd, out := newCmd()
	require.NoError(t, listActions(cmd, []string{"GtkButton"}))
	assert.Contains(t, out.String(), "| go/Say_Hello | Say Hello |")

	cmd, out = newCmd()
	require.NoError(t, activateAction(cmd, []string{"GtkButton", "go/Say_Hello", "button1"}))
	assert.Equal(t, "args: [button1]\n", out.String())

	cmd, _ = newCmd()
	assert.ErrorIs(t, activateAction(cmd, []string{"GtkButton", "go/Nope", "button1"}), binding.ErrActionNotFound)

	cmd, out = newCmd()
	require.NoError(t, listActions(cmd, []string{"GtkLabel"}))
	assert.Contains(t, out.String(), "No actions for GtkLabel.")
}

func TestLoadLibrary(t *testing.T) {
	setupCLI(t)
	pkg := filepath.Join(cfg.Paths.ModulesDir, "src", "greet", "greet.go")
	writeScript(t, pkg, "package greet\n\nfunc Hello() string { return \"hello\" }\n")

	cmd, out := newCmd()
	require.NoError(t, loadLibrary(cmd, []string{"go", "greet"}))
	assert.Contains(t, out.String(), "loaded greet into go")
}

func TestConsoleUnsupported(t *testing.T) {
	setupCLI(t)
	cmd, _ := newCmd()
	assert.ErrorIs(t, openConsole(cmd, []string{"wasm"}), binding.ErrUnsupported)
}

func TestShowTypes(t *testing.T) {
	setupCLI(t)
	cmd, out := newCmd()

	require.NoError(t, showTypes(cmd, []string{"GtkCheckButton"}))
	assert.Contains(t, out.String(), "# GtkCheckButton")
	assert.Contains(t, out.String(), "GtkCheckButton → GtkToggleButton → GtkButton")
	assert.Contains(t, out.String(), "1. GladeWidgetAdaptor")
	assert.Contains(t, out.String(), "active")
}

func TestMdTableEscapesPipes(t *testing.T) {
	got := mdTable([]string{"A"}, [][]string{{"x|y"}})
	assert.Equal(t, "| A |\n| --- |\n| x\\|y |\n", got)
}
