package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"gladebind/internal/binding"
	"gladebind/internal/config"
	"gladebind/internal/host"
	"gladebind/internal/logging"
	"gladebind/internal/runtimes/wasmrt"
	"gladebind/internal/runtimes/yaegirt"
)

// exitError carries a script's nonzero exit indication to main.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("script exited with %d", e.code)
}

// session is one command's host workspace and loaded registry.
type session struct {
	cfg  *config.Config
	host *host.Workspace
	reg  *binding.Registry
}

func builtins() map[string]binding.EntryFunc {
	return map[string]binding.EntryFunc{
		yaegirt.Name: yaegirt.Init,
		wasmrt.Name:  wasmrt.Init,
	}
}

// openSession builds a workspace with one untitled project and loads every
// binding. Skipped modules are reported on stderr.
func openSession(cmd *cobra.Command) (*session, error) {
	c := cfg
	if c == nil {
		c = config.DefaultConfig()
	}

	ws, err := host.NewDefaultWorkspace()
	if err != nil {
		return nil, err
	}
	ws.NewProject("")

	opts := binding.Options{
		PluginsDir:  c.Paths.PluginsDir,
		ScriptRoots: c.ScriptRoots,
		Env: binding.Env{
			Host:       ws,
			ModulesDir: c.Paths.ModulesDir,
			Stdout:     cmd.OutOrStdout(),
			Stderr:     cmd.ErrOrStderr(),
			Settings:   c.RuntimeSettings(),
		},
	}
	if useBuiltins {
		opts.Builtins = builtins()
	}

	reg := binding.NewRegistry(opts)
	report, err := reg.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, f := range report.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.Path, f.Err)
	}
	logging.Boot("session ready with %d binding(s)", reg.Count())
	return &session{cfg: c, host: ws, reg: reg}, nil
}

func (s *session) close() {
	s.reg.UnloadAll()
}

func (s *session) binding(name string) (*binding.Binding, error) {
	b := s.reg.Get(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", binding.ErrBindingNotFound, name)
	}
	return b, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// runContext applies the configured script timeout.
func (s *session) runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if d := s.cfg.GetScriptTimeout(); d > 0 {
		return context.WithTimeout(cmdContext(cmd), d)
	}
	return context.WithCancel(cmdContext(cmd))
}

// mdTable renders a markdown table.
func mdTable(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

// render writes markdown through glamour, or raw with --format plain.
func render(w io.Writer, md string) error {
	if format == "plain" {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
